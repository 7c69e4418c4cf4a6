package resilience

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/EfeObus/NextProperty-sub003/telemetry"
)

// OTelMetricsCollector implements MetricsCollector directly on OpenTelemetry
// instruments, for deployments that run their own meter provider instead of
// the telemetry package's managed pipeline. The state gauge is observable:
// collectors sample it on their own schedule rather than on transitions.
type OTelMetricsCollector struct {
	metrics *telemetry.MetricInstruments
	ctx     context.Context

	mu       sync.Mutex
	states   map[string]float64
	breakers map[string]*CircuitBreaker
}

// NewOTelMetricsCollector creates an OpenTelemetry metrics collector. The
// context is attached to counter recordings.
func NewOTelMetricsCollector(ctx context.Context) (*OTelMetricsCollector, error) {
	o := &OTelMetricsCollector{
		metrics:  telemetry.NewMetricInstruments("nextprop-resilience"),
		ctx:      ctx,
		states:   make(map[string]float64),
		breakers: make(map[string]*CircuitBreaker),
	}

	err := o.metrics.RegisterGauge(
		telemetry.MetricCircuitBreakerState,
		nil,
		metric.WithDescription("Current circuit breaker state (0=closed, 0.5=half_open, 1=open)"),
		metric.WithFloat64Callback(func(_ context.Context, observer metric.Float64Observer) error {
			o.mu.Lock()
			defer o.mu.Unlock()
			for name, value := range o.states {
				observer.Observe(value, metric.WithAttributes(attribute.String("name", name)))
			}
			for name, cb := range o.breakers {
				observer.Observe(stateGaugeValue(cb.GetState()),
					metric.WithAttributes(attribute.String("name", name)))
			}
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// RegisterBreaker samples the breaker's state at each metrics collection.
// Registered breakers supersede the transition-driven state tracking for
// their name.
func (o *OTelMetricsCollector) RegisterBreaker(cb *CircuitBreaker) {
	o.mu.Lock()
	o.breakers[cb.Name()] = cb
	delete(o.states, cb.Name())
	o.mu.Unlock()
}

// RecordSuccess records a successful circuit breaker execution.
func (o *OTelMetricsCollector) RecordSuccess(name string) {
	_ = o.metrics.RecordCounter(o.ctx, telemetry.MetricCircuitBreakerSuccess, 1,
		metric.WithAttributes(
			attribute.String("name", name),
		))
}

// RecordFailure records a counted circuit breaker failure.
func (o *OTelMetricsCollector) RecordFailure(name string, errorType string) {
	_ = o.metrics.RecordCounter(o.ctx, telemetry.MetricCircuitBreakerFailure, 1,
		metric.WithAttributes(
			attribute.String("name", name),
			attribute.String("error_type", errorType),
		))
}

// RecordStateChange counts transitions into open and keeps the observable
// gauge's last-known state current for unregistered breakers.
func (o *OTelMetricsCollector) RecordStateChange(name string, from, to string) {
	if to == "open" {
		_ = o.metrics.RecordCounter(o.ctx, telemetry.MetricCircuitBreakerOpen, 1,
			metric.WithAttributes(
				attribute.String("name", name),
				attribute.String("from_state", from),
			))
	}

	o.mu.Lock()
	if _, sampled := o.breakers[name]; !sampled {
		o.states[name] = stateGaugeValue(to)
	}
	o.mu.Unlock()
}

// RecordRejection records a request rejected by an open circuit.
func (o *OTelMetricsCollector) RecordRejection(name string) {
	_ = o.metrics.RecordCounter(o.ctx, telemetry.MetricCircuitBreakerRejected, 1,
		metric.WithAttributes(
			attribute.String("name", name),
		))
}

// Shutdown unregisters the gauge callbacks.
func (o *OTelMetricsCollector) Shutdown() error {
	return o.metrics.Shutdown()
}
