// Package resilience provides the protective wrappers that sit between
// request handlers and unreliable dependencies: circuit breakers, retry with
// exponential backoff, slow-operation tracking, parameter validation, and a
// process failure boundary. All wrappers classify failures through the core
// error taxonomy and report through the core error handler, so a failure is
// logged and counted exactly once no matter how many layers surround it.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/EfeObus/NextProperty-sub003/core"
)

// CircuitState represents the current state of a circuit breaker.
type CircuitState int

const (
	// StateClosed allows all requests through. Consecutive failures are
	// counted and the circuit opens when they reach the threshold.
	StateClosed CircuitState = iota

	// StateOpen rejects all requests without invoking the protected call.
	// After the recovery timeout the next request becomes a trial call.
	StateOpen

	// StateHalfOpen admits a limited number of trial calls. Success closes
	// the circuit, failure reopens it.
	StateHalfOpen
)

// String returns the state name used in logs, metrics, and snapshots.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// MetricsCollector receives circuit breaker events. The telemetry package
// provides an implementation; the breaker only depends on the interface so
// it works without telemetry wired in.
type MetricsCollector interface {
	RecordSuccess(name string)
	RecordFailure(name string, errorType string)
	RecordStateChange(name string, from, to string)
	RecordRejection(name string)
}

// noopMetrics is a no-op metrics implementation
type noopMetrics struct{}

func (n *noopMetrics) RecordSuccess(name string)                      {}
func (n *noopMetrics) RecordFailure(name string, errorType string)    {}
func (n *noopMetrics) RecordStateChange(name string, from, to string) {}
func (n *noopMetrics) RecordRejection(name string)                    {}

// FailureClassifier decides which errors count toward opening the circuit.
type FailureClassifier func(error) bool

// DefaultFailureClassifier counts infrastructure failures only. Caller
// mistakes such as validation, authentication, authorization, and
// configuration errors never trip the circuit, and neither does context
// cancellation. Deadline expiry does count: a dependency that times out is
// an unhealthy dependency.
func DefaultFailureClassifier(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if core.IsConfigurationError(err) {
		return false
	}
	if core.IsNotFound(err) {
		return false
	}

	var appErr *core.AppError
	if errors.As(err, &appErr) {
		switch appErr.Kind {
		case core.KindValidation, core.KindAuthentication, core.KindAuthorization, core.KindConfiguration:
			return false
		}
	}
	return true
}

// StateChangeListener is notified after a state transition. Listeners run on
// their own goroutines so they cannot block the transition.
type StateChangeListener func(name string, from, to CircuitState)

// CircuitBreakerConfig holds the tunable parameters for one breaker.
type CircuitBreakerConfig struct {
	// Name identifies the protected service in logs and metrics.
	Name string

	// FailureThreshold is the number of consecutive counted failures that
	// opens the circuit. Defaults to 5.
	FailureThreshold int

	// Timeout is how long the circuit stays open after the last failure
	// before a trial call is admitted. Defaults to 60s.
	Timeout time.Duration

	// HalfOpenRequired is the number of trial successes needed to close
	// the circuit again. Defaults to 1.
	HalfOpenRequired int

	// HalfOpenRequests caps how many trial calls may be in flight at once
	// while half-open. Additional calls are rejected until a slot frees.
	// Defaults to 1, which gives the classic single-trial behavior.
	HalfOpenRequests int

	// Classifier decides which errors count as failures. Defaults to
	// DefaultFailureClassifier.
	Classifier FailureClassifier

	Logger  core.Logger
	Metrics MetricsCollector
}

// DefaultConfig returns a config with production defaults applied.
func DefaultConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Name:             "default",
		FailureThreshold: 5,
		Timeout:          60 * time.Second,
		HalfOpenRequired: 1,
		HalfOpenRequests: 1,
		Classifier:       DefaultFailureClassifier,
		Logger:           &core.NoOpLogger{},
		Metrics:          &noopMetrics{},
	}
}

// ConfigFromCore maps the application-level circuit breaker settings onto a
// breaker config for the named service.
func ConfigFromCore(name string, cfg core.CircuitBreakerConfig) *CircuitBreakerConfig {
	config := DefaultConfig()
	config.Name = name
	if cfg.Threshold > 0 {
		config.FailureThreshold = cfg.Threshold
	}
	if cfg.Timeout > 0 {
		config.Timeout = cfg.Timeout
	}
	if cfg.HalfOpenRequests > 0 {
		config.HalfOpenRequired = cfg.HalfOpenRequests
		config.HalfOpenRequests = cfg.HalfOpenRequests
	}
	return config
}

// Validate checks the configuration for invalid values.
func (c *CircuitBreakerConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("%w: circuit breaker name is required", core.ErrInvalidConfiguration)
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("%w: failure threshold must be at least 1, got %d",
			core.ErrInvalidConfiguration, c.FailureThreshold)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %v",
			core.ErrInvalidConfiguration, c.Timeout)
	}
	if c.HalfOpenRequired < 1 {
		return fmt.Errorf("%w: half-open required successes must be at least 1, got %d",
			core.ErrInvalidConfiguration, c.HalfOpenRequired)
	}
	if c.HalfOpenRequests < 1 {
		return fmt.Errorf("%w: half-open request limit must be at least 1, got %d",
			core.ErrInvalidConfiguration, c.HalfOpenRequests)
	}
	return nil
}

// ExecutionToken tracks one in-flight protected call from admission to
// completion so concurrent completions cannot corrupt the state counters.
type ExecutionToken struct {
	id         uint64
	startTime  time.Time
	halfOpen   bool
	generation uint64
}

// CircuitBreaker protects calls to one downstream service. It opens after a
// run of consecutive failures, rejects calls while open, and probes the
// service with trial calls after the recovery timeout.
//
// State reads are lock-free. The transition mutex is held only while the
// state machine itself changes, never while a protected call runs.
type CircuitBreaker struct {
	config *CircuitBreakerConfig

	state          atomic.Value // CircuitState
	stateChangedAt atomic.Value // time.Time
	lastFailure    atomic.Value // time.Time

	// generation increments on every transition. Tokens carry the
	// generation they were admitted under so completions from a previous
	// state cannot affect counters that were reset since.
	generation atomic.Uint64

	consecutiveFailures atomic.Int32
	halfOpenSuccesses   atomic.Int32
	halfOpenInFlight    atomic.Int32

	executionsInFlight atomic.Int32
	totalExecutions    atomic.Uint64
	totalSuccesses     atomic.Uint64
	totalFailures      atomic.Uint64
	rejectedExecutions atomic.Uint64

	forcedOpen   atomic.Bool
	forcedClosed atomic.Bool

	tokenCounter atomic.Uint64
	activeTokens sync.Map // token id -> *ExecutionToken

	errorTypeCache sync.Map // reflect.Type -> string

	mu         sync.Mutex // guards state transitions
	listenerMu sync.RWMutex
	listeners  []StateChangeListener
}

// Compile-time check that the breaker satisfies the core interface.
var _ core.CircuitBreaker = (*CircuitBreaker)(nil)

// NewCircuitBreaker creates a circuit breaker from the given config. A nil
// config gets production defaults. Zero-valued fields are filled in before
// validation so callers only set what they need.
func NewCircuitBreaker(config *CircuitBreakerConfig) (*CircuitBreaker, error) {
	if config == nil {
		config = DefaultConfig()
	}

	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	if config.HalfOpenRequired == 0 {
		config.HalfOpenRequired = 1
	}
	if config.HalfOpenRequests == 0 {
		config.HalfOpenRequests = 1
	}
	if config.Classifier == nil {
		config.Classifier = DefaultFailureClassifier
	}
	if config.Logger == nil {
		config.Logger = &core.NoOpLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &noopMetrics{}
	}

	if err := config.Validate(); err != nil {
		config.Logger.Error("Circuit breaker configuration validation failed", map[string]interface{}{
			"operation": "circuit_breaker_validation_failed",
			"name":      config.Name,
			"error":     err.Error(),
		})
		return nil, fmt.Errorf("invalid circuit breaker config: %w", err)
	}

	cb := &CircuitBreaker{
		config:    config,
		listeners: make([]StateChangeListener, 0),
	}
	cb.state.Store(StateClosed)
	cb.stateChangedAt.Store(time.Now())
	cb.lastFailure.Store(time.Time{})

	config.Logger.Info("Creating circuit breaker", map[string]interface{}{
		"operation":          "circuit_breaker_created",
		"name":               config.Name,
		"failure_threshold":  config.FailureThreshold,
		"timeout_ms":         config.Timeout.Milliseconds(),
		"half_open_required": config.HalfOpenRequired,
		"half_open_requests": config.HalfOpenRequests,
	})
	return cb, nil
}

// SetLogger replaces the breaker's logger. Component-aware loggers are
// tagged with "resilience/circuit_breaker" so log aggregators can slice
// breaker output from the rest of the service.
func (cb *CircuitBreaker) SetLogger(logger core.Logger) {
	cb.config.Logger = componentLogger(logger, "resilience/circuit_breaker")
}

// OnStateChange registers a listener invoked after every state transition.
func (cb *CircuitBreaker) OnStateChange(listener StateChangeListener) {
	if listener == nil {
		return
	}
	cb.listenerMu.Lock()
	cb.listeners = append(cb.listeners, listener)
	cb.listenerMu.Unlock()
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() CircuitState {
	return cb.currentState()
}

// GetState returns the current state name: "closed", "open", or "half_open".
func (cb *CircuitBreaker) GetState() string {
	return cb.currentState().String()
}

// Name returns the service name this breaker protects.
func (cb *CircuitBreaker) Name() string {
	return cb.config.Name
}

func (cb *CircuitBreaker) currentState() CircuitState {
	state, _ := cb.state.Load().(CircuitState)
	return state
}

// Execute runs fn under circuit breaker protection. While the circuit is
// open the call is rejected without invoking fn and the returned error
// matches both core.ErrCircuitBreakerOpen and core.ErrServiceUnavailable.
// Panics inside fn are recovered and surfaced as errors.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	return cb.ExecuteWithTimeout(ctx, 0, fn)
}

// ExecuteWithTimeout runs fn with an additional deadline. A timeout of zero
// means no extra deadline beyond whatever ctx carries. When the deadline
// expires the call is accounted as a failure immediately even though fn may
// still be running; its eventual result is discarded.
func (cb *CircuitBreaker) ExecuteWithTimeout(ctx context.Context, timeout time.Duration, fn func() error) error {
	token, allowed := cb.startExecution()
	if !allowed {
		cb.rejectedExecutions.Add(1)
		cb.config.Metrics.RecordRejection(cb.config.Name)
		cb.config.Logger.Debug("Circuit breaker rejected execution", map[string]interface{}{
			"operation":     "circuit_breaker_reject",
			"name":          cb.config.Name,
			"current_state": cb.GetState(),
		})
		return fmt.Errorf("circuit breaker '%s' is open: %w", cb.config.Name, core.ErrCircuitBreakerOpen)
	}

	cb.executionsInFlight.Add(1)
	defer cb.executionsInFlight.Add(-1)
	cb.totalExecutions.Add(1)

	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				var panicErr error
				switch v := r.(type) {
				case error:
					panicErr = fmt.Errorf("panic in protected call: %w", v)
				case string:
					panicErr = fmt.Errorf("panic in protected call: %s", v)
				default:
					panicErr = fmt.Errorf("panic in protected call: %v (%T)", v, v)
				}
				cb.config.Logger.Error("Circuit breaker recovered panic", map[string]interface{}{
					"operation":  "circuit_breaker_panic",
					"name":       cb.config.Name,
					"panic":      fmt.Sprintf("%v", r),
					"panic_type": fmt.Sprintf("%T", r),
					"stack":      string(stack),
				})
				done <- panicErr
			}
		}()
		done <- fn()
	}()

	select {
	case err := <-done:
		cb.completeExecution(token, err)
		return err
	case <-ctx.Done():
		// The call is accounted now so a hung dependency still trips the
		// circuit. The worker goroutine is drained when fn returns; its
		// late result no longer matters.
		ctxErr := ctx.Err()
		cb.completeExecution(token, ctxErr)
		go func() { <-done }()
		cb.config.Logger.Debug("Circuit breaker execution abandoned", map[string]interface{}{
			"operation": "circuit_breaker_abandoned",
			"name":      cb.config.Name,
			"reason":    ctxErr.Error(),
		})
		return ctxErr
	}
}

// startExecution decides whether a call may proceed and returns its token.
// For half-open admission it reserves one of the limited trial slots.
func (cb *CircuitBreaker) startExecution() (*ExecutionToken, bool) {
	if cb.forcedOpen.Load() {
		return nil, false
	}
	if cb.forcedClosed.Load() {
		return cb.newToken(false), true
	}

	switch cb.currentState() {
	case StateClosed:
		return cb.newToken(false), true

	case StateOpen:
		last, _ := cb.lastFailure.Load().(time.Time)
		if !last.IsZero() && time.Since(last) < cb.config.Timeout {
			return nil, false
		}
		// Recovery window elapsed. Move to half-open under the transition
		// lock, then re-enter so trial slot accounting applies.
		cb.mu.Lock()
		if cb.currentState() == StateOpen {
			cb.transitionLocked(StateHalfOpen)
		}
		cb.mu.Unlock()
		return cb.startExecution()

	case StateHalfOpen:
		gen := cb.generation.Load()
		for {
			current := cb.halfOpenInFlight.Load()
			if int(current) >= cb.config.HalfOpenRequests {
				return nil, false
			}
			if !cb.halfOpenInFlight.CompareAndSwap(current, current+1) {
				continue
			}
			if cb.generation.Load() != gen {
				// Lost a transition race; release the slot and retry.
				cb.halfOpenInFlight.Add(-1)
				return cb.startExecution()
			}
			return cb.newTokenWithGeneration(true, gen), true
		}

	default:
		return nil, false
	}
}

func (cb *CircuitBreaker) newToken(halfOpen bool) *ExecutionToken {
	return cb.newTokenWithGeneration(halfOpen, cb.generation.Load())
}

func (cb *CircuitBreaker) newTokenWithGeneration(halfOpen bool, gen uint64) *ExecutionToken {
	token := &ExecutionToken{
		id:         cb.tokenCounter.Add(1),
		startTime:  time.Now(),
		halfOpen:   halfOpen,
		generation: gen,
	}
	cb.activeTokens.Store(token.id, token)
	return token
}

// completeExecution records the outcome of a call. Each token completes at
// most once; late completions after a timeout accounting are dropped.
func (cb *CircuitBreaker) completeExecution(token *ExecutionToken, err error) {
	if _, present := cb.activeTokens.LoadAndDelete(token.id); !present {
		return
	}

	current := token.generation == cb.generation.Load()
	if token.halfOpen && current {
		cb.halfOpenInFlight.Add(-1)
	}

	if cb.forcedOpen.Load() || cb.forcedClosed.Load() {
		return
	}

	if err == nil {
		cb.recordSuccess(token, current)
		return
	}
	if !cb.config.Classifier(err) {
		// Caller errors and cancellations are neutral: they neither trip
		// the circuit nor count toward recovery.
		cb.config.Logger.Debug("Error not counted by circuit breaker", map[string]interface{}{
			"operation":  "circuit_breaker_neutral",
			"name":       cb.config.Name,
			"error":      err.Error(),
			"error_type": cb.classifyErrorType(err),
		})
		return
	}
	cb.recordFailure(token, current, err)
}

func (cb *CircuitBreaker) recordSuccess(token *ExecutionToken, current bool) {
	cb.totalSuccesses.Add(1)
	cb.config.Metrics.RecordSuccess(cb.config.Name)

	switch cb.currentState() {
	case StateClosed:
		cb.consecutiveFailures.Store(0)
	case StateHalfOpen:
		if !token.halfOpen || !current {
			return
		}
		if cb.halfOpenSuccesses.Add(1) >= int32(cb.config.HalfOpenRequired) {
			cb.mu.Lock()
			if cb.currentState() == StateHalfOpen {
				cb.transitionLocked(StateClosed)
			}
			cb.mu.Unlock()
		}
	}
}

func (cb *CircuitBreaker) recordFailure(token *ExecutionToken, current bool, err error) {
	errorType := cb.classifyErrorType(err)
	cb.totalFailures.Add(1)
	cb.lastFailure.Store(time.Now())
	cb.config.Metrics.RecordFailure(cb.config.Name, errorType)

	switch cb.currentState() {
	case StateClosed:
		failures := cb.consecutiveFailures.Add(1)
		if int(failures) >= cb.config.FailureThreshold {
			cb.mu.Lock()
			if cb.currentState() == StateClosed {
				cb.config.Logger.Warn("Circuit breaker failure threshold reached", map[string]interface{}{
					"operation":            "circuit_breaker_threshold",
					"name":                 cb.config.Name,
					"consecutive_failures": failures,
					"failure_threshold":    cb.config.FailureThreshold,
					"error_type":           errorType,
				})
				cb.transitionLocked(StateOpen)
			}
			cb.mu.Unlock()
		}
	case StateHalfOpen:
		if !token.halfOpen || !current {
			return
		}
		cb.mu.Lock()
		if cb.currentState() == StateHalfOpen {
			cb.transitionLocked(StateOpen)
		}
		cb.mu.Unlock()
	}
}

// transitionLocked moves the state machine. Callers must hold cb.mu.
func (cb *CircuitBreaker) transitionLocked(to CircuitState) {
	from := cb.currentState()
	if from == to {
		return
	}

	cb.state.Store(to)
	cb.stateChangedAt.Store(time.Now())
	cb.generation.Add(1)

	switch to {
	case StateHalfOpen:
		cb.halfOpenSuccesses.Store(0)
		cb.halfOpenInFlight.Store(0)
	case StateClosed:
		cb.consecutiveFailures.Store(0)
	}

	cb.config.Logger.Info("Circuit breaker state changed", map[string]interface{}{
		"operation":  "circuit_breaker_transition",
		"name":       cb.config.Name,
		"from_state": from.String(),
		"to_state":   to.String(),
	})
	cb.config.Metrics.RecordStateChange(cb.config.Name, from.String(), to.String())
	cb.notifyListeners(from, to)
}

func (cb *CircuitBreaker) notifyListeners(from, to CircuitState) {
	cb.listenerMu.RLock()
	listeners := make([]StateChangeListener, len(cb.listeners))
	copy(listeners, cb.listeners)
	cb.listenerMu.RUnlock()

	for _, listener := range listeners {
		go listener(cb.config.Name, from, to)
	}
}

// classifyErrorType maps an error to the label used in failure metrics.
// Taxonomy errors report their kind; other types are cached by reflect.Type
// to avoid repeated formatting on hot paths.
func (cb *CircuitBreaker) classifyErrorType(err error) string {
	var appErr *core.AppError
	if errors.As(err, &appErr) {
		return string(appErr.Kind)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}

	t := reflect.TypeOf(err)
	if t == nil {
		return "unknown"
	}
	if cached, ok := cb.errorTypeCache.Load(t); ok {
		return cached.(string)
	}
	name := t.String()
	cb.errorTypeCache.Store(t, name)
	return name
}

// CanExecute reports whether a call would currently be admitted. It is
// advisory only: it reserves nothing, so a subsequent Execute may still be
// rejected by a concurrent caller taking the last half-open slot.
func (cb *CircuitBreaker) CanExecute() bool {
	if cb.forcedOpen.Load() {
		return false
	}
	if cb.forcedClosed.Load() {
		return true
	}
	switch cb.currentState() {
	case StateClosed:
		return true
	case StateOpen:
		last, _ := cb.lastFailure.Load().(time.Time)
		return last.IsZero() || time.Since(last) >= cb.config.Timeout
	case StateHalfOpen:
		return int(cb.halfOpenInFlight.Load()) < cb.config.HalfOpenRequests
	default:
		return false
	}
}

// GetMetrics returns a point-in-time snapshot of breaker counters for
// operational endpoints.
func (cb *CircuitBreaker) GetMetrics() map[string]interface{} {
	state := cb.currentState()
	metrics := map[string]interface{}{
		"name":                 cb.config.Name,
		"state":                state.String(),
		"consecutive_failures": cb.consecutiveFailures.Load(),
		"failure_threshold":    cb.config.FailureThreshold,
		"timeout_ms":           cb.config.Timeout.Milliseconds(),
		"total_executions":     cb.totalExecutions.Load(),
		"total_successes":      cb.totalSuccesses.Load(),
		"total_failures":       cb.totalFailures.Load(),
		"rejected_executions":  cb.rejectedExecutions.Load(),
		"executions_in_flight": cb.executionsInFlight.Load(),
		"forced_open":          cb.forcedOpen.Load(),
		"forced_closed":        cb.forcedClosed.Load(),
	}
	if at, ok := cb.stateChangedAt.Load().(time.Time); ok && !at.IsZero() {
		metrics["state_changed_at"] = at.UTC().Format(time.RFC3339)
	}
	if last, ok := cb.lastFailure.Load().(time.Time); ok && !last.IsZero() {
		metrics["last_failure_at"] = last.UTC().Format(time.RFC3339)
	}
	if state == StateHalfOpen {
		metrics["half_open_successes"] = cb.halfOpenSuccesses.Load()
		metrics["half_open_in_flight"] = cb.halfOpenInFlight.Load()
	}
	return metrics
}

// Reset returns the breaker to closed with all counters cleared. Intended
// for operational tooling and tests.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	cb.transitionLocked(StateClosed)
	cb.mu.Unlock()

	cb.consecutiveFailures.Store(0)
	cb.halfOpenSuccesses.Store(0)
	cb.halfOpenInFlight.Store(0)
	cb.lastFailure.Store(time.Time{})

	cb.config.Logger.Info("Circuit breaker reset", map[string]interface{}{
		"operation": "circuit_breaker_reset",
		"name":      cb.config.Name,
	})
}

// ForceOpen rejects all calls regardless of machine state until ClearForce.
// Used to take a dependency out of rotation during incidents.
func (cb *CircuitBreaker) ForceOpen() {
	cb.forcedClosed.Store(false)
	cb.forcedOpen.Store(true)
	cb.config.Logger.Warn("Circuit breaker forced open", map[string]interface{}{
		"operation": "circuit_breaker_force_open",
		"name":      cb.config.Name,
	})
}

// ForceClosed admits all calls regardless of machine state until ClearForce.
// Outcomes in forced mode are not counted against the state machine.
func (cb *CircuitBreaker) ForceClosed() {
	cb.forcedOpen.Store(false)
	cb.forcedClosed.Store(true)
	cb.config.Logger.Warn("Circuit breaker forced closed", map[string]interface{}{
		"operation": "circuit_breaker_force_closed",
		"name":      cb.config.Name,
	})
}

// ClearForce returns the breaker to normal state machine operation.
func (cb *CircuitBreaker) ClearForce() {
	cb.forcedOpen.Store(false)
	cb.forcedClosed.Store(false)
	cb.config.Logger.Info("Circuit breaker force mode cleared", map[string]interface{}{
		"operation": "circuit_breaker_clear_force",
		"name":      cb.config.Name,
	})
}

// CleanupHungExecutions marks executions older than maxAge as timed-out
// failures. Their late completions become no-ops. Returns the number of
// executions cleaned. Intended to be called periodically by a janitor when
// protected calls cannot be trusted to honor their contexts.
func (cb *CircuitBreaker) CleanupHungExecutions(maxAge time.Duration) int {
	cleaned := 0
	cb.activeTokens.Range(func(_, value interface{}) bool {
		token := value.(*ExecutionToken)
		if time.Since(token.startTime) > maxAge {
			cb.completeExecution(token, core.ErrTimeout)
			cleaned++
		}
		return true
	})
	if cleaned > 0 {
		cb.config.Logger.Warn("Cleaned up hung circuit breaker executions", map[string]interface{}{
			"operation": "circuit_breaker_cleanup",
			"name":      cb.config.Name,
			"cleaned":   cleaned,
			"max_age":   maxAge.String(),
		})
	}
	return cleaned
}

// componentLogger tags a logger with a component name when it supports it.
func componentLogger(logger core.Logger, component string) core.Logger {
	if logger == nil {
		return &core.NoOpLogger{}
	}
	if cal, ok := logger.(core.ComponentAwareLogger); ok {
		return cal.WithComponent(component)
	}
	return logger
}
