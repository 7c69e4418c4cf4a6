package telemetry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/EfeObus/NextProperty-sub003/core"
)

var (
	// globalRegistry holds the singleton Registry instance.
	// atomic.Value gives lock-free reads on the hot path (metric emission):
	// written once during Initialize(), read on every Emit().
	globalRegistry atomic.Value // *Registry

	// initOnce ensures Initialize() can only succeed once.
	// Multiple calls to Initialize() will return the same result.
	initOnce sync.Once

	// declaredMetrics stores metric declarations from init() functions.
	// Packages declare their metrics before the telemetry system is
	// initialized, which solves the init() ordering problem.
	declaredMetrics sync.Map // map[string]ModuleConfig

	// Internal health counters tracked atomically for thread-safety
	telemetryErrors  atomic.Int64 // Total errors encountered
	telemetryDropped atomic.Int64 // Metrics dropped due to limits
)

// ModuleConfig represents metric configuration for a module
type ModuleConfig struct {
	Metrics []MetricDefinition
}

// MetricDefinition defines a metric's metadata.
// Declaring metrics upfront lets the registry pre-create instruments and
// route emissions to the right instrument kind.
type MetricDefinition struct {
	Name    string
	Type    string // counter, histogram, gauge
	Help    string
	Labels  []string
	Unit    string    // optional: milliseconds, bytes, etc.
	Buckets []float64 // optional: for histograms
}

// Registry manages all telemetry components. It coordinates the subsystems
// (provider, circuit breaker, cardinality limiter) and provides a unified
// interface for metric emission. Fields accessed concurrently use atomic
// operations or mutex protection.
type Registry struct {
	config   Config
	provider *OTelProvider            // OpenTelemetry provider for export
	limiter  *CardinalityLimiter      // Prevents metric explosion
	circuit  *TelemetryCircuitBreaker // Protects backend from overload
	metrics  *MetricInstruments       // Cached metric instruments
	logger   *TelemetryLogger         // Self-contained logger

	// Internal metrics for observability of the telemetry system itself
	emitted   atomic.Int64 // Total metrics successfully emitted
	startTime time.Time    // When the registry was created
	lastError atomic.Value // string - Last error message for diagnostics

	// errorLimiter prevents error logging from overwhelming the system
	// when the backend is down
	errorLimiter *RateLimiter
}

// loadRegistry returns the active registry or nil. The global slot may hold
// a typed nil after Shutdown, so both cases are checked.
func loadRegistry() *Registry {
	v := globalRegistry.Load()
	if v == nil {
		return nil
	}
	r, ok := v.(*Registry)
	if !ok || r == nil {
		return nil
	}
	return r
}

// DeclareMetrics registers metric definitions for a module.
// Safe to call from init() functions before Initialize() is called; the
// declarations are stored and processed when Initialize() runs.
//
// Example:
//
//	func init() {
//	    telemetry.DeclareMetrics("retry", telemetry.ModuleConfig{
//	        Metrics: []telemetry.MetricDefinition{
//	            {Name: "nextprop.retry.attempts", Type: "counter"},
//	        },
//	    })
//	}
func DeclareMetrics(module string, config ModuleConfig) {
	declaredMetrics.Store(module, config)
}

// Initialize activates the telemetry system with the given configuration.
// Call once from main() before any metrics are emitted. Safe to call
// multiple times; only the first call takes effect.
//
// Initialize performs the following:
//  1. Creates the OpenTelemetry provider and exporter
//  2. Sets up the circuit breaker (if configured)
//  3. Initializes the cardinality limiter
//  4. Processes all previously declared metrics
//  5. Registers the metrics bridge with the core package
//
// Even if initialization fails, the Emit functions keep working as no-ops
// and the error metrics registry keeps counting, so callers never crash.
func Initialize(config Config) error {
	var initErr error
	initOnce.Do(func() {
		logger := NewTelemetryLogger(config.ServiceName)

		if !config.Enabled {
			logger.Info("Telemetry disabled by configuration", map[string]interface{}{
				"service_name": config.ServiceName,
				"impact":       "Error accounting still works; no metrics exported",
			})
			return
		}

		logger.Info("Telemetry initialization starting", map[string]interface{}{
			"service_name":      config.ServiceName,
			"endpoint":          config.Endpoint,
			"provider":          config.Provider,
			"cardinality_limit": config.CardinalityLimit,
			"circuit_enabled":   config.CircuitBreaker.Enabled,
		})

		registry, err := newRegistry(config)
		if err != nil {
			initErr = err
			logger.Error("Telemetry initialization failed", map[string]interface{}{
				"error":    err.Error(),
				"endpoint": config.Endpoint,
				"action":   "Check OTEL collector is running at endpoint",
				"impact":   "No metrics will be exported",
			})
			return
		}

		registry.logger = logger

		// Process all metrics declared via DeclareMetrics()
		declaredCount := 0
		declaredMetrics.Range(func(key, value interface{}) bool {
			module := key.(string)
			moduleConfig := value.(ModuleConfig)
			registry.registerModule(module, moduleConfig)
			declaredCount++
			logger.Debug("Registered module metrics", map[string]interface{}{
				"module":       module,
				"metric_count": len(moduleConfig.Metrics),
			})
			return true
		})

		// Store globally for access by Emit functions
		globalRegistry.Store(registry)

		// Enable metrics emission in the logger now that registry is available
		logger.EnableMetrics()

		// Register the bridge so core components (logger, middleware,
		// handler) can emit metrics without importing telemetry
		EnableFrameworkIntegration(logger)

		logger.Info("Telemetry system initialized", map[string]interface{}{
			"declared_modules":  declaredCount,
			"circuit_enabled":   registry.circuit != nil,
			"limiter_enabled":   registry.limiter != nil,
			"provider":          config.Provider,
			"initialization_ms": time.Since(registry.startTime).Milliseconds(),
		})
	})
	return initErr
}

// newRegistry creates a new telemetry registry
func newRegistry(config Config) (*Registry, error) {
	startTime := time.Now()

	// Set defaults if not provided
	if config.ServiceName == "" {
		config.ServiceName = "nextprop"
	}
	if config.Provider == "" {
		config.Provider = ProviderOTLP
	}
	if config.Endpoint == "" && config.Provider == ProviderOTLP {
		config.Endpoint = "localhost:4317"
	}
	if config.CardinalityLimit == 0 {
		config.CardinalityLimit = 10000
	}

	provider, err := NewOTelProviderWithConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTel provider: %w", err)
	}

	// Per-label cardinality limits; defaults cover the labels this
	// library emits
	limits := config.CardinalityLimits
	if limits == nil {
		limits = map[string]int{
			"error_type": 50,
			"code":       100,
			"service":    100,
			"component":  50,
		}
	}

	r := &Registry{
		config:       config,
		provider:     provider,
		limiter:      NewCardinalityLimiter(limits),
		circuit:      NewTelemetryCircuitBreaker(config.CircuitBreaker),
		metrics:      provider.metrics,
		startTime:    startTime,
		errorLimiter: NewRateLimiter(1 * time.Second), // Log errors at most once per second
	}

	r.lastError.Store("")

	return r, nil
}

// registerModule registers a module's metric declarations with the provider
// so emissions route to the declared instrument kind.
func (r *Registry) registerModule(_ string, config ModuleConfig) {
	ctx := context.Background()
	for _, m := range config.Metrics {
		r.provider.declareKind(m.Name, m.Type)
		// Pre-create instruments so first emission pays no creation cost
		switch m.Type {
		case "counter":
			_ = r.metrics.RecordCounter(ctx, m.Name, 0)
		case "histogram":
			_ = r.metrics.RecordHistogram(ctx, m.Name, 0)
		case "gauge":
			// Gauges are registered with callbacks when actually used
		}
	}
}

// emit handles metric emission with all safety checks
func (r *Registry) emit(name string, value float64, labels map[string]string) error {
	// Check circuit breaker
	if r.circuit != nil && !r.circuit.Allow() {
		telemetryDropped.Add(1)
		return fmt.Errorf("telemetry circuit breaker open")
	}

	// Apply cardinality limiting
	if r.limiter != nil {
		for key, val := range labels {
			limited := r.limiter.CheckAndLimit(name, key, val)
			if limited != val {
				labels[key] = limited
			}
		}
	}

	// Record the metric
	if r.provider != nil {
		r.provider.RecordMetric(name, value, labels)
		r.emitted.Add(1)

		if r.circuit != nil {
			r.circuit.RecordSuccess()
		}
	}

	return nil
}

// Emit records a metric value with optional label pairs.
// Thread-safe; silent no-op when telemetry is not initialized.
func Emit(name string, value float64, labels ...string) {
	r := loadRegistry()
	if r == nil {
		return
	}

	if err := r.emit(name, value, parseLabels(labels...)); err != nil {
		telemetryErrors.Add(1)
		r.lastError.Store(err.Error())

		// Rate-limited error logging for visibility
		if r.logger != nil && r.errorLimiter != nil && r.errorLimiter.Allow() {
			r.logger.Error("Failed to emit metric", map[string]interface{}{
				"metric": name,
				"value":  value,
				"error":  err.Error(),
			})
		}

		if r.circuit != nil {
			r.circuit.RecordFailure()
		}
	}
}

// EmitWithContext records a metric with the context's baggage labels merged
// in, so request-scoped labels (request id, user id) follow the metric.
func EmitWithContext(ctx context.Context, name string, value float64, labels ...string) {
	allLabels := appendBaggageToLabels(ctx, labels)
	defer returnLabelSlice(allLabels) // Return to pool when done

	Emit(name, value, allLabels...)
}

// parseLabels converts variadic "key1", "val1", "key2", "val2" to a map
func parseLabels(labels ...string) map[string]string {
	m := make(map[string]string)
	for i := 0; i < len(labels)-1; i += 2 {
		m[labels[i]] = labels[i+1]
	}
	return m
}

// Shutdown gracefully shuts down the telemetry system
func Shutdown(ctx context.Context) error {
	r := loadRegistry()
	if r == nil {
		return nil
	}

	if r.logger != nil {
		r.logger.Info("Shutting down telemetry system", map[string]interface{}{
			"total_emitted": r.emitted.Load(),
			"uptime_ms":     time.Since(r.startTime).Milliseconds(),
		})
	}

	if r.limiter != nil {
		r.limiter.Stop()
	}

	// Disconnect core components before the provider goes away
	core.SetMetricsRegistry(nil)

	// Clear global registry so Emit becomes a no-op. A typed nil keeps
	// atomic.Value happy (it rejects plain nil and type changes).
	globalRegistry.Store((*Registry)(nil))

	if r.provider != nil {
		if err := r.provider.Shutdown(ctx); err != nil {
			if r.logger != nil {
				r.logger.Error("Error during provider shutdown", map[string]interface{}{
					"error": err.Error(),
				})
			}
			return err
		}
	}

	if r.logger != nil {
		r.logger.Info("Telemetry system shut down complete", nil)
	}

	return nil
}

// GetRegistry returns the current registry, or nil when not initialized.
func GetRegistry() *Registry {
	return loadRegistry()
}

// GetTelemetryProvider returns the OTelProvider as a core.Telemetry so
// components that create spans can be handed the active provider.
// Returns nil if telemetry is not initialized.
func GetTelemetryProvider() core.Telemetry {
	r := loadRegistry()
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider
}
