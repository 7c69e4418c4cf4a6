package resilience

import "github.com/EfeObus/NextProperty-sub003/telemetry"

// Metric declarations for this package. Declaration is passive: nothing is
// created until telemetry.Initialize runs, and without it every emission is
// a no-op.
func init() {
	telemetry.DeclareMetrics("circuit_breaker", telemetry.ModuleConfig{
		Metrics: []telemetry.MetricDefinition{
			{
				Name:   telemetry.MetricCircuitBreakerSuccess,
				Type:   "counter",
				Help:   "Successful circuit breaker executions",
				Labels: []string{"name"},
			},
			{
				Name:   telemetry.MetricCircuitBreakerFailure,
				Type:   "counter",
				Help:   "Counted circuit breaker failures",
				Labels: []string{"name", "error_type"},
			},
			{
				Name:   telemetry.MetricCircuitBreakerRejected,
				Type:   "counter",
				Help:   "Requests rejected by an open circuit",
				Labels: []string{"name"},
			},
			{
				Name:   telemetry.MetricCircuitBreakerOpen,
				Type:   "counter",
				Help:   "Transitions into the open state",
				Labels: []string{"name", "from_state"},
			},
			{
				Name:   telemetry.MetricCircuitBreakerState,
				Type:   "gauge",
				Help:   "Current circuit breaker state (0=closed, 0.5=half_open, 1=open)",
				Labels: []string{"name"},
			},
			{
				Name:    telemetry.MetricCircuitBreakerDurationMs,
				Type:    "histogram",
				Help:    "Protected call duration in milliseconds",
				Labels:  []string{"name", "status"},
				Unit:    "ms",
				Buckets: []float64{0.1, 1, 10, 100, 1000},
			},
		},
	})

	telemetry.DeclareMetrics("retry", telemetry.ModuleConfig{
		Metrics: []telemetry.MetricDefinition{
			{
				Name:   telemetry.MetricRetryAttempts,
				Type:   "counter",
				Help:   "Failed attempts that will be retried",
				Labels: []string{"operation", "attempt_number"},
			},
			{
				Name:   telemetry.MetricRetrySuccess,
				Type:   "counter",
				Help:   "Operations that eventually succeeded",
				Labels: []string{"operation", "final_attempt"},
			},
			{
				Name:   telemetry.MetricRetryExhausted,
				Type:   "counter",
				Help:   "Operations that failed after all attempts",
				Labels: []string{"operation"},
			},
			{
				Name:    telemetry.MetricRetryDurationMs,
				Type:    "histogram",
				Help:    "Total duration including all retry attempts",
				Labels:  []string{"operation"},
				Unit:    "ms",
				Buckets: []float64{1, 10, 100, 1000, 10000},
			},
			{
				Name:    telemetry.MetricRetryBackoffMs,
				Type:    "histogram",
				Help:    "Backoff duration between retries",
				Labels:  []string{"operation", "strategy"},
				Unit:    "ms",
				Buckets: []float64{10, 50, 100, 500, 1000, 5000},
			},
		},
	})

	telemetry.DeclareMetrics("guards", telemetry.ModuleConfig{
		Metrics: []telemetry.MetricDefinition{
			{
				Name:    telemetry.MetricOperationDuration,
				Type:    "histogram",
				Help:    "Tracked operation duration in milliseconds",
				Labels:  []string{"operation", "status"},
				Unit:    "ms",
				Buckets: []float64{1, 10, 100, 1000, 3000, 10000},
			},
			{
				Name:   telemetry.MetricSlowOperations,
				Type:   "counter",
				Help:   "Operations exceeding the slow threshold",
				Labels: []string{"operation"},
			},
			{
				Name:   telemetry.MetricValidationFailures,
				Type:   "counter",
				Help:   "Parameter validation violations",
				Labels: []string{"param"},
			},
			{
				Name:   telemetry.MetricPanicsRecovered,
				Type:   "counter",
				Help:   "Panics contained by the failure boundary",
				Labels: []string{"component"},
			},
		},
	})
}
