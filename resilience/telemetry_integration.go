package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/EfeObus/NextProperty-sub003/core"
	"github.com/EfeObus/NextProperty-sub003/telemetry"
)

// TelemetryMetrics implements MetricsCollector on top of the telemetry
// package's progressive API. Emissions are no-ops until telemetry is
// initialized, so the collector can be wired unconditionally.
type TelemetryMetrics struct{}

// NewTelemetryMetrics creates a telemetry-backed metrics collector.
func NewTelemetryMetrics() *TelemetryMetrics {
	return &TelemetryMetrics{}
}

// RecordSuccess records a successful circuit breaker execution.
func (t *TelemetryMetrics) RecordSuccess(name string) {
	telemetry.Counter(telemetry.MetricCircuitBreakerSuccess, "name", name)
}

// RecordFailure records a counted circuit breaker failure.
func (t *TelemetryMetrics) RecordFailure(name string, errorType string) {
	telemetry.Counter(telemetry.MetricCircuitBreakerFailure,
		"name", name,
		"error_type", errorType)
}

// RecordStateChange updates the state gauge and counts transitions into the
// open state, which is the event dashboards alert on.
func (t *TelemetryMetrics) RecordStateChange(name string, from, to string) {
	if to == "open" {
		telemetry.Counter(telemetry.MetricCircuitBreakerOpen,
			"name", name,
			"from_state", from)
	}
	telemetry.Gauge(telemetry.MetricCircuitBreakerState, stateGaugeValue(to), "name", name)
}

// RecordRejection records a request rejected by an open circuit.
func (t *TelemetryMetrics) RecordRejection(name string) {
	telemetry.Counter(telemetry.MetricCircuitBreakerRejected, "name", name)
}

// stateGaugeValue maps a state name onto the gauge scale dashboards plot:
// 0 closed, 0.5 half_open, 1 open.
func stateGaugeValue(state string) float64 {
	switch state {
	case "open":
		return 1.0
	case "half_open":
		return 0.5
	default:
		return 0.0
	}
}

// ExecuteWithTelemetry wraps a circuit breaker execution with a duration
// histogram. Rejections are recorded with their own status so dashboards
// can separate fast-fail time from real call time.
func ExecuteWithTelemetry(ctx context.Context, cb *CircuitBreaker, fn func() error) error {
	start := time.Now()
	err := cb.Execute(ctx, fn)

	status := "success"
	switch {
	case errors.Is(err, core.ErrCircuitBreakerOpen):
		status = "rejected"
	case err != nil:
		status = "failure"
	}
	telemetry.Histogram(telemetry.MetricCircuitBreakerDurationMs,
		float64(time.Since(start).Milliseconds()),
		"name", cb.Name(),
		"status", status)
	return err
}

// NewCircuitBreakerWithTelemetry creates a circuit breaker that reports to
// the telemetry package.
func NewCircuitBreakerWithTelemetry(name string) (*CircuitBreaker, error) {
	config := DefaultConfig()
	config.Name = name
	config.Metrics = NewTelemetryMetrics()
	return NewCircuitBreaker(config)
}
