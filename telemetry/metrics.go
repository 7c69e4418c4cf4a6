package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricInstruments holds cached metric instruments for efficient recording.
// Instruments are created lazily on first use and cached by name, so the hot
// path is a read-locked map lookup.
type MetricInstruments struct {
	meter      metric.Meter
	counters   map[string]metric.Int64Counter
	histograms map[string]metric.Float64Histogram
	gauges     map[string]gaugeCallback
	mu         sync.RWMutex
}

// gaugeCallback holds gauge registration info
type gaugeCallback struct {
	registration metric.Registration
	callback     metric.Callback
	gauge        metric.Float64ObservableGauge
}

// NewMetricInstruments creates a new metrics instrument cache
func NewMetricInstruments(meterName string) *MetricInstruments {
	return &MetricInstruments{
		meter:      otel.Meter(meterName),
		counters:   make(map[string]metric.Int64Counter),
		histograms: make(map[string]metric.Float64Histogram),
		gauges:     make(map[string]gaugeCallback),
	}
}

// RecordCounter increments a counter metric
func (m *MetricInstruments) RecordCounter(ctx context.Context, name string, value int64, opts ...metric.AddOption) error {
	m.mu.RLock()
	counter, exists := m.counters[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		// Double-check after acquiring write lock
		if counter, exists = m.counters[name]; !exists {
			var err error
			counter, err = m.meter.Int64Counter(name)
			if err != nil {
				m.mu.Unlock()
				return fmt.Errorf("failed to create counter %s: %w", name, err)
			}
			m.counters[name] = counter
		}
		m.mu.Unlock()
	}

	counter.Add(ctx, value, opts...)
	return nil
}

// RecordHistogram records a value distribution (like latencies)
func (m *MetricInstruments) RecordHistogram(ctx context.Context, name string, value float64, opts ...metric.RecordOption) error {
	m.mu.RLock()
	histogram, exists := m.histograms[name]
	m.mu.RUnlock()

	if !exists {
		m.mu.Lock()
		if histogram, exists = m.histograms[name]; !exists {
			var err error
			histogram, err = m.meter.Float64Histogram(name)
			if err != nil {
				m.mu.Unlock()
				return fmt.Errorf("failed to create histogram %s: %w", name, err)
			}
			m.histograms[name] = histogram
		}
		m.mu.Unlock()
	}

	histogram.Record(ctx, value, opts...)
	return nil
}

// RecordDuration records a duration in milliseconds as a histogram
func (m *MetricInstruments) RecordDuration(ctx context.Context, name string, milliseconds float64, opts ...metric.RecordOption) error {
	return m.RecordHistogram(ctx, name, milliseconds, opts...)
}

// RecordErrorCount increments an error counter with the error type attached
func (m *MetricInstruments) RecordErrorCount(ctx context.Context, name string, errorType string) error {
	return m.RecordCounter(ctx, name, 1,
		metric.WithAttributes(attribute.String("error.type", errorType)))
}

// RegisterGauge registers an observable gauge. The callback may be nil when
// the gauge options carry their own (metric.WithFloat64Callback), which is
// the usual way since a multi-instrument callback cannot reference the gauge
// before it exists.
func (m *MetricInstruments) RegisterGauge(name string, callback metric.Callback, opts ...metric.Float64ObservableGaugeOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.gauges[name]; exists {
		return fmt.Errorf("gauge %s already registered", name)
	}

	gauge, err := m.meter.Float64ObservableGauge(name, opts...)
	if err != nil {
		return fmt.Errorf("failed to create gauge %s: %w", name, err)
	}

	var registration metric.Registration
	if callback != nil {
		registration, err = m.meter.RegisterCallback(callback, gauge)
		if err != nil {
			return fmt.Errorf("failed to register callback for gauge %s: %w", name, err)
		}
	}

	m.gauges[name] = gaugeCallback{
		registration: registration,
		callback:     callback,
		gauge:        gauge,
	}

	return nil
}

// UnregisterGauge unregisters a gauge callback
func (m *MetricInstruments) UnregisterGauge(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	gauge, exists := m.gauges[name]
	if !exists {
		return fmt.Errorf("gauge %s not found", name)
	}

	if gauge.registration != nil {
		if err := gauge.registration.Unregister(); err != nil {
			return fmt.Errorf("failed to unregister gauge %s: %w", name, err)
		}
	}

	delete(m.gauges, name)
	return nil
}

// Shutdown unregisters all gauge callbacks
func (m *MetricInstruments) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, gauge := range m.gauges {
		if gauge.registration == nil {
			continue
		}
		if err := gauge.registration.Unregister(); err != nil {
			errs = append(errs, fmt.Errorf("failed to unregister gauge %s: %w", name, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}

// Metric name constants. All modules emit under the "nextprop." prefix using
// these names so dashboards and alerts have a single naming scheme to query.
const (
	// Error accounting metrics
	MetricErrorsTotal = "nextprop.errors.total"

	// Error report persistence metrics
	MetricReportsSaved       = "nextprop.reports.saved"
	MetricReportSaveFailures = "nextprop.reports.save_failures"

	// Retry metrics
	MetricRetryAttempts   = "nextprop.retry.attempts"
	MetricRetrySuccess    = "nextprop.retry.success"
	MetricRetryExhausted  = "nextprop.retry.exhausted"
	MetricRetryBackoffMs  = "nextprop.retry.backoff_ms"
	MetricRetryDurationMs = "nextprop.retry.duration_ms"

	// Circuit breaker metrics
	MetricCircuitBreakerSuccess    = "nextprop.circuit_breaker.success"
	MetricCircuitBreakerFailure    = "nextprop.circuit_breaker.failure"
	MetricCircuitBreakerRejected   = "nextprop.circuit_breaker.rejected"
	MetricCircuitBreakerOpen       = "nextprop.circuit_breaker.open"
	MetricCircuitBreakerState      = "nextprop.circuit_breaker.state"
	MetricCircuitBreakerDurationMs = "nextprop.circuit_breaker.duration_ms"

	// Guard metrics
	MetricSlowOperations     = "nextprop.performance.slow_operations"
	MetricOperationDuration  = "nextprop.performance.duration_ms"
	MetricValidationFailures = "nextprop.validation.failures"

	// Process boundary metrics
	MetricPanicsRecovered = "nextprop.boundary.panics_recovered"

	// Logging and HTTP ambient metrics
	MetricLogErrors       = "nextprop.log.errors"
	MetricRequestDuration = "nextprop.http.request.duration_ms"
	MetricRequestTotal    = "nextprop.http.request.total"
	MetricRequestErrors   = "nextprop.http.request.errors"
)
