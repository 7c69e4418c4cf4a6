package core

import (
	"context"
	"time"
)

// Logger interface - structured logging interface.
// The *WithContext variants attach request-scoped fields (URL, method,
// user id) extracted from the context, so log lines correlate with the
// error reports produced for the same request.
type Logger interface {
	Info(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Debug(msg string, fields map[string]interface{})
	InfoWithContext(ctx context.Context, msg string, fields map[string]interface{})
	ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{})
	WarnWithContext(ctx context.Context, msg string, fields map[string]interface{})
	DebugWithContext(ctx context.Context, msg string, fields map[string]interface{})
}

// ComponentAwareLogger extends Logger with the ability to derive child loggers
// tagged with a component name (e.g. "resilience/retry"). Component tags let a
// log aggregator slice a single service's output by subsystem.
type ComponentAwareLogger interface {
	Logger
	WithComponent(component string) Logger
}

// Telemetry interface - optional telemetry support
type Telemetry interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
	RecordMetric(name string, value float64, labels map[string]string)
}

// Span represents a telemetry span
type Span interface {
	End()
	SetAttribute(key string, value interface{})
	RecordError(err error)
}

// MetricsRecorder receives one record per handled error. The error metrics
// registry in the telemetry package implements this; the handler only depends
// on the interface so core stays free of telemetry imports.
type MetricsRecorder interface {
	RecordError(errorType, code string)
}

// ReportStore persists error reports keyed by their opaque id so support
// staff can look up the full report from the id shown to an end user.
type ReportStore interface {
	SaveReport(ctx context.Context, id string, report *ErrorReport) error
	GetReport(ctx context.Context, id string) (*ErrorReport, error)
}

// CircuitBreaker provides circuit breaker functionality for fault tolerance.
// Implementations protect against cascading failures by rejecting calls when
// a threshold of consecutive failures is reached.
type CircuitBreaker interface {
	// Execute runs the provided function with circuit breaker protection.
	// If the circuit is open, it returns ErrCircuitBreakerOpen immediately
	// without invoking fn.
	Execute(ctx context.Context, fn func() error) error

	// ExecuteWithTimeout runs the function with both circuit breaker protection
	// and a timeout. This is useful for operations that might hang.
	ExecuteWithTimeout(ctx context.Context, timeout time.Duration, fn func() error) error

	// GetState returns the current circuit breaker state as a string.
	// Possible values: "closed", "open", "half_open"
	GetState() string

	// GetMetrics returns current metrics about the circuit breaker.
	GetMetrics() map[string]interface{}

	// Reset manually resets the circuit breaker to closed state.
	Reset()

	// CanExecute returns true if the circuit breaker would allow execution.
	CanExecute() bool
}

// Memory interface for state storage
type Memory interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Default no-op implementations

// NoOpLogger provides a no-op logger implementation
type NoOpLogger struct{}

func (n *NoOpLogger) Info(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Error(msg string, fields map[string]interface{}) {}
func (n *NoOpLogger) Warn(msg string, fields map[string]interface{})  {}
func (n *NoOpLogger) Debug(msg string, fields map[string]interface{}) {}

func (n *NoOpLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}
func (n *NoOpLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}
func (n *NoOpLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}
func (n *NoOpLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
}

// NoOpTelemetry provides a no-op telemetry implementation
type NoOpTelemetry struct{}

func (n *NoOpTelemetry) StartSpan(ctx context.Context, name string) (context.Context, Span) {
	return ctx, &NoOpSpan{}
}

func (n *NoOpTelemetry) RecordMetric(name string, value float64, labels map[string]string) {}

// NoOpSpan provides a no-op span implementation
type NoOpSpan struct{}

func (n *NoOpSpan) End()                                       {}
func (n *NoOpSpan) SetAttribute(key string, value interface{}) {}
func (n *NoOpSpan) RecordError(err error)                      {}

// NoOpMetricsRecorder provides a no-op metrics recorder implementation
type NoOpMetricsRecorder struct{}

func (n *NoOpMetricsRecorder) RecordError(errorType, code string) {}
