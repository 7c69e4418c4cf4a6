package telemetry

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// TelemetryCircuitBreaker protects the telemetry backend from overload.
// This is deliberately separate from the resilience package's circuit
// breaker: it has no dependencies, so the telemetry pipeline stays
// self-contained even though both implement the same state machine family.
type TelemetryCircuitBreaker struct {
	config CircuitConfig

	state           atomic.Value // string: "closed", "open", "half_open"
	failures        atomic.Int64
	successes       atomic.Int64
	lastFailureTime atomic.Value // time.Time

	mu sync.Mutex
}

// CircuitConfig configures the telemetry circuit breaker
type CircuitConfig struct {
	Enabled      bool
	MaxFailures  int
	RecoveryTime time.Duration
	HalfOpenMax  int // Max requests in half-open state
}

// NewTelemetryCircuitBreaker creates a new circuit breaker.
// Returns nil when disabled; a nil breaker allows everything.
func NewTelemetryCircuitBreaker(config CircuitConfig) *TelemetryCircuitBreaker {
	if !config.Enabled {
		return nil
	}

	// Set defaults
	if config.MaxFailures == 0 {
		config.MaxFailures = 10
	}
	if config.RecoveryTime == 0 {
		config.RecoveryTime = 30 * time.Second
	}
	if config.HalfOpenMax == 0 {
		config.HalfOpenMax = 5
	}

	cb := &TelemetryCircuitBreaker{
		config: config,
	}
	cb.state.Store("closed")
	cb.lastFailureTime.Store(time.Time{})

	return cb
}

// Allow checks if a request should be allowed
func (cb *TelemetryCircuitBreaker) Allow() bool {
	if cb == nil {
		return true // No circuit breaker configured
	}

	state := cb.State()

	switch state {
	case "open":
		// Check if we should transition to half-open
		lastFailureVal := cb.lastFailureTime.Load()
		if lastFailure, ok := lastFailureVal.(time.Time); ok && !lastFailure.IsZero() {
			if time.Since(lastFailure) > cb.config.RecoveryTime {
				cb.mu.Lock()
				// Double-check after acquiring lock
				if cb.state.Load().(string) == "open" {
					cb.state.Store("half_open")
					cb.successes.Store(0)

					GetLogger().Info("Telemetry circuit breaker entering half-open state", map[string]interface{}{
						"previous_state":     "open",
						"recovery_wait":      cb.config.RecoveryTime.String(),
						"time_since_failure": time.Since(lastFailure).String(),
						"max_test_requests":  cb.config.HalfOpenMax,
						"action":             "Testing backend connectivity with limited requests",
					})
				}
				cb.mu.Unlock()
				return true
			}
		}
		return false

	case "half_open":
		// Allow limited requests in half-open state
		currentRequests := cb.successes.Load()
		allowed := currentRequests < int64(cb.config.HalfOpenMax)

		if !allowed {
			GetLogger().Debug("Telemetry circuit breaker rejecting request in half-open state", map[string]interface{}{
				"current_tests": currentRequests,
				"max_tests":     cb.config.HalfOpenMax,
				"state":         "half_open",
			})
		}

		return allowed

	default: // closed
		return true
	}
}

// RecordSuccess records a successful emission.
// In half-open state, enough successes will close the circuit.
// In closed state, this resets the failure counter.
func (cb *TelemetryCircuitBreaker) RecordSuccess() {
	if cb == nil {
		return
	}

	cb.successes.Add(1)
	state := cb.State()

	if state == "half_open" {
		successes := cb.successes.Load()

		GetLogger().Debug("Telemetry circuit breaker recovery test", map[string]interface{}{
			"successes": successes,
			"required":  cb.config.HalfOpenMax,
			"progress":  fmt.Sprintf("%d/%d", successes, cb.config.HalfOpenMax),
			"state":     "half_open",
		})

		// Check if we should close the circuit
		if successes >= int64(cb.config.HalfOpenMax) {
			cb.mu.Lock()
			if cb.state.Load().(string) == "half_open" {
				cb.state.Store("closed")
				cb.failures.Store(0)

				var recoveryDuration string
				if lastFailure, ok := cb.lastFailureTime.Load().(time.Time); ok && !lastFailure.IsZero() {
					recoveryDuration = time.Since(lastFailure).String()
				} else {
					recoveryDuration = "unknown"
				}

				GetLogger().Info("Telemetry circuit breaker closed, emission resumed", map[string]interface{}{
					"recovery_tests":    successes,
					"state":             "closed",
					"recovery_duration": recoveryDuration,
				})
			}
			cb.mu.Unlock()
		}
	} else if state == "closed" {
		// Reset failure count on success in closed state
		cb.failures.Store(0)
	}
}

// RecordFailure records a failed emission
func (cb *TelemetryCircuitBreaker) RecordFailure() {
	if cb == nil {
		return
	}

	failures := cb.failures.Add(1)
	cb.lastFailureTime.Store(time.Now())

	if failures >= int64(cb.config.MaxFailures) {
		cb.mu.Lock()
		if cb.state.Load().(string) != "open" {
			previousState := cb.state.Load().(string)
			cb.state.Store("open")
			cb.successes.Store(0)

			// Operators need to know metrics are being dropped
			GetLogger().Warn("Telemetry circuit breaker opened, metrics will be dropped", map[string]interface{}{
				"previous_state": previousState,
				"failure_count":  failures,
				"max_failures":   cb.config.MaxFailures,
				"recovery_time":  cb.config.RecoveryTime.String(),
				"action":         "Check OTEL collector health at configured endpoint",
			})
		}
		cb.mu.Unlock()
	} else if failures == 1 {
		GetLogger().Info("Telemetry circuit breaker recorded first failure", map[string]interface{}{
			"failure_count": 1,
			"max_failures":  cb.config.MaxFailures,
			"state":         cb.State(),
		})
	} else if cb.config.MaxFailures > 2 && failures == int64(cb.config.MaxFailures)-1 {
		GetLogger().Warn("Telemetry circuit breaker one failure from opening", map[string]interface{}{
			"failure_count": failures,
			"max_failures":  cb.config.MaxFailures,
			"status":        "critical",
		})
	}
}

// State returns the current circuit breaker state
func (cb *TelemetryCircuitBreaker) State() string {
	if cb == nil {
		return "disabled"
	}
	return cb.state.Load().(string)
}

// Reset resets the circuit breaker to closed
func (cb *TelemetryCircuitBreaker) Reset() {
	if cb == nil {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	previousState := cb.state.Load().(string)
	previousFailures := cb.failures.Load()

	cb.state.Store("closed")
	cb.failures.Store(0)
	cb.successes.Store(0)
	cb.lastFailureTime.Store(time.Time{})

	if previousState != "closed" || previousFailures > 0 {
		GetLogger().Info("Telemetry circuit breaker manually reset", map[string]interface{}{
			"previous_state":    previousState,
			"previous_failures": previousFailures,
			"state":             "closed",
		})
	}
}
