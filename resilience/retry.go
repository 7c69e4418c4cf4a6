package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/EfeObus/NextProperty-sub003/core"
	"github.com/EfeObus/NextProperty-sub003/telemetry"
)

// RetryPolicy decides whether a failed attempt should be retried.
type RetryPolicy func(error) bool

// RetryConfig defines retry behavior. The delay before attempt n (zero
// based) is backoff_factor * 2^n seconds plus up to one second of random
// jitter, capped at MaxDelay.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt, so the
	// operation runs at most MaxRetries+1 times. Zero disables retrying.
	MaxRetries int

	// BackoffFactor scales the exponential delay. Values <= 0 fall back
	// to 1.0.
	BackoffFactor float64

	// MaxDelay caps a single backoff sleep. Zero leaves the delay
	// uncapped.
	MaxDelay time.Duration

	// Policy decides which errors are worth retrying. Defaults to
	// core.IsRetryable, which stops on validation, authentication,
	// authorization, configuration, and model errors as well as open
	// circuits and context cancellation.
	Policy RetryPolicy

	Logger core.Logger
}

// DefaultRetryConfig returns the production retry settings.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:    3,
		BackoffFactor: 1.0,
		MaxDelay:      30 * time.Second,
		Policy:        core.IsRetryable,
		Logger:        &core.NoOpLogger{},
	}
}

// RetryConfigFromCore maps the application-level retry settings onto a
// retry config.
func RetryConfigFromCore(cfg core.RetryConfig) *RetryConfig {
	config := DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		config.MaxRetries = cfg.MaxRetries
	}
	if cfg.BackoffFactor > 0 {
		config.BackoffFactor = cfg.BackoffFactor
	}
	if cfg.MaxDelay > 0 {
		config.MaxDelay = cfg.MaxDelay
	}
	return config
}

// RetryExecutor runs operations with exponential backoff. Failures are
// logged per attempt; when all attempts fail the LAST error is returned
// unchanged so callers can match it with errors.Is exactly as if the
// operation had been called directly.
type RetryExecutor struct {
	config           *RetryConfig
	logger           core.Logger
	telemetryEnabled bool
}

// NewRetryExecutor creates a retry executor. A nil config uses production
// defaults.
func NewRetryExecutor(config *RetryConfig) *RetryExecutor {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.BackoffFactor <= 0 {
		config.BackoffFactor = 1.0
	}
	if config.Policy == nil {
		config.Policy = core.IsRetryable
	}
	if config.Logger == nil {
		config.Logger = &core.NoOpLogger{}
	}
	return &RetryExecutor{
		config: config,
		logger: config.Logger,
	}
}

// SetLogger replaces the executor's logger. Component-aware loggers are
// tagged with "resilience/retry".
func (r *RetryExecutor) SetLogger(logger core.Logger) {
	r.logger = componentLogger(logger, "resilience/retry")
}

// Execute runs fn up to MaxRetries+1 times. Each failed attempt is logged
// at warning level with the attempt number and target name before the
// backoff sleep. Non-retryable errors and context cancellation stop the
// loop immediately. The returned error is always exactly what fn (or the
// context) produced, never wrapped.
func (r *RetryExecutor) Execute(ctx context.Context, name string, fn func() error) error {
	start := time.Now()
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			if attempt > 0 {
				r.logger.Info("Operation succeeded after retry", map[string]interface{}{
					"operation":   "retry_success",
					"target":      name,
					"attempt":     attempt + 1,
					"duration_ms": time.Since(start).Milliseconds(),
				})
			}
			if r.telemetryEnabled {
				telemetry.Counter(telemetry.MetricRetrySuccess,
					"operation", name,
					"final_attempt", fmt.Sprintf("%d", attempt+1))
				telemetry.Duration(telemetry.MetricRetryDurationMs, start, "operation", name)
			}
			return nil
		}
		lastErr = err

		if !r.config.Policy(err) {
			r.logger.Debug("Error is not retryable", map[string]interface{}{
				"operation": "retry_abort",
				"target":    name,
				"attempt":   attempt + 1,
				"error":     err.Error(),
			})
			return err
		}
		if attempt == r.config.MaxRetries {
			break
		}

		delay := r.backoffDelay(attempt)
		r.logger.Warn("Operation failed, retrying", map[string]interface{}{
			"operation":    "retry_attempt",
			"target":       name,
			"attempt":      attempt + 1,
			"max_attempts": r.config.MaxRetries + 1,
			"delay_ms":     delay.Milliseconds(),
			"error":        err.Error(),
		})
		if r.telemetryEnabled {
			telemetry.Counter(telemetry.MetricRetryAttempts,
				"operation", name,
				"attempt_number", fmt.Sprintf("%d", attempt+1))
			telemetry.Histogram(telemetry.MetricRetryBackoffMs, float64(delay.Milliseconds()),
				"operation", name,
				"strategy", "exponential_jitter")
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	r.logger.Error("Operation failed after all retry attempts", map[string]interface{}{
		"operation":   "retry_exhausted",
		"target":      name,
		"attempts":    r.config.MaxRetries + 1,
		"duration_ms": time.Since(start).Milliseconds(),
		"error":       lastErr.Error(),
	})
	if r.telemetryEnabled {
		telemetry.Counter(telemetry.MetricRetryExhausted, "operation", name)
	}
	return lastErr
}

// backoffDelay computes the sleep before the next attempt. Ignoring jitter
// the delays are non-decreasing; the cap keeps a high attempt count from
// producing hour-long sleeps.
func (r *RetryExecutor) backoffDelay(attempt int) time.Duration {
	seconds := r.config.BackoffFactor*math.Pow(2, float64(attempt)) + rand.Float64()
	delay := time.Duration(seconds * float64(time.Second))
	if r.config.MaxDelay > 0 && delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}
	return delay
}

// RetryWithBreaker routes every retry attempt through a circuit breaker.
// When the breaker opens mid-sequence the rejection is not retryable, so
// the loop stops instead of hammering an open circuit.
func RetryWithBreaker(ctx context.Context, executor *RetryExecutor, breaker *CircuitBreaker, name string, fn func() error) error {
	if executor == nil {
		executor = NewRetryExecutor(nil)
	}
	if breaker == nil {
		return executor.Execute(ctx, name, fn)
	}
	return executor.Execute(ctx, name, func() error {
		return breaker.Execute(ctx, fn)
	})
}
