package resilience

import (
	"github.com/EfeObus/NextProperty-sub003/core"
	"github.com/EfeObus/NextProperty-sub003/telemetry"
)

// ResilienceDependencies holds the optional dependencies injected into the
// factory constructors. Unset fields fall back to production defaults.
type ResilienceDependencies struct {
	Logger    core.Logger
	Telemetry core.Telemetry

	// Handler receives violations from guards and failures from the
	// process boundary.
	Handler *core.ErrorHandler
}

// globalTelemetryAvailable reports whether the telemetry module has been
// initialized globally, so factory constructors can auto-enable metrics.
func globalTelemetryAvailable() bool {
	return telemetry.GetRegistry() != nil
}

func (d ResilienceDependencies) loggerOr(serviceName string) core.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return core.NewProductionLogger(
		core.LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		core.DevelopmentConfig{},
		serviceName,
	)
}

func (d ResilienceDependencies) telemetryActive() bool {
	return d.Telemetry != nil || globalTelemetryAvailable()
}

// CreateCircuitBreaker creates a circuit breaker with dependency injection.
// Telemetry-backed metrics are enabled automatically when telemetry is
// available.
func CreateCircuitBreaker(name string, deps ResilienceDependencies) (*CircuitBreaker, error) {
	config := DefaultConfig()
	config.Name = name
	config.Logger = componentLogger(deps.loggerOr("circuit-breaker"), "resilience/circuit_breaker")

	if deps.telemetryActive() {
		config.Metrics = NewTelemetryMetrics()
		config.Logger.Info("Telemetry integration enabled for circuit breaker", map[string]interface{}{
			"operation": "telemetry_integration",
			"name":      name,
			"component": "circuit_breaker",
		})
	}
	return NewCircuitBreaker(config)
}

// CreateRegistry creates a circuit breaker registry whose lazily created
// breakers use the application-level defaults from cfg.
func CreateRegistry(cfg core.CircuitBreakerConfig, deps ResilienceDependencies) *CircuitBreakerRegistry {
	registryConfig := &RegistryConfig{
		Defaults: cfg,
		Logger:   deps.loggerOr("circuit-breaker"),
	}
	if deps.telemetryActive() {
		registryConfig.Metrics = NewTelemetryMetrics()
	}
	return NewCircuitBreakerRegistry(registryConfig)
}

// CreateRetryExecutor creates a retry executor with dependency injection.
func CreateRetryExecutor(cfg core.RetryConfig, deps ResilienceDependencies) *RetryExecutor {
	executor := NewRetryExecutor(RetryConfigFromCore(cfg))
	executor.SetLogger(deps.loggerOr("retry-executor"))

	if deps.telemetryActive() {
		executor.telemetryEnabled = true
		executor.logger.Info("Telemetry integration enabled for retry executor", map[string]interface{}{
			"operation": "telemetry_integration",
			"component": "retry_executor",
		})
	}
	return executor
}

// CreatePerformanceGuard creates a slow-operation guard with dependency
// injection.
func CreatePerformanceGuard(cfg core.PerformanceConfig, deps ResilienceDependencies) *PerformanceGuard {
	guard := NewPerformanceGuard(&PerformanceGuardConfig{
		SlowThreshold: cfg.SlowThreshold,
		Logger:        deps.loggerOr("performance-guard"),
	})
	guard.telemetryEnabled = deps.telemetryActive()
	return guard
}

// CreateValidationGuard creates a validation guard wired to the error
// handler from deps, creating a handler when none was provided so
// violations are always reported somewhere.
func CreateValidationGuard(rules map[string]ValidationRule, deps ResilienceDependencies) *ValidationGuard {
	handler := deps.Handler
	if handler == nil {
		handler = core.NewErrorHandler(core.ErrorHandlerConfig{Logger: deps.Logger})
	}
	guard := NewValidationGuard(rules, handler)
	guard.SetLogger(deps.loggerOr("validation-guard"))
	guard.telemetryEnabled = deps.telemetryActive()
	return guard
}

// CreateBoundary installs the process-wide failure boundary with dependency
// injection. Safe to call once per process; later calls return the existing
// boundary with core.ErrAlreadyInstalled.
func CreateBoundary(deps ResilienceDependencies) (*ProcessFailureBoundary, error) {
	return InstallBoundary(BoundaryConfig{
		Handler: deps.Handler,
		Logger:  deps.loggerOr("failure-boundary"),
	})
}

// WithLogger creates a dependency injection option.
func WithLogger(logger core.Logger) func(*ResilienceDependencies) {
	return func(d *ResilienceDependencies) {
		d.Logger = logger
	}
}

// WithTelemetry creates a dependency injection option.
func WithTelemetry(telemetry core.Telemetry) func(*ResilienceDependencies) {
	return func(d *ResilienceDependencies) {
		d.Telemetry = telemetry
	}
}

// WithHandler creates a dependency injection option.
func WithHandler(handler *core.ErrorHandler) func(*ResilienceDependencies) {
	return func(d *ResilienceDependencies) {
		d.Handler = handler
	}
}
