package telemetry

// Metric declarations for the core module and the error accounting built
// into this package. They live here rather than in core to avoid an import
// cycle: core never imports telemetry, so its metrics are declared on its
// behalf. The resilience package declares its own metrics in its init().

func init() {
	// Error accounting metrics (emitted by ErrorMetrics)
	DeclareMetrics("errors", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:   MetricErrorsTotal,
				Type:   "counter",
				Help:   "Errors recorded by the error handler",
				Labels: []string{"error_type", "code"},
			},
		},
	})

	// Error report persistence metrics (emitted by report stores via the
	// framework bridge)
	DeclareMetrics("reports", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:   MetricReportsSaved,
				Type:   "counter",
				Help:   "Error reports persisted",
				Labels: []string{"provider"},
			},
			{
				Name:   MetricReportSaveFailures,
				Type:   "counter",
				Help:   "Error report persistence failures",
				Labels: []string{"provider"},
			},
		},
	})

	// Ambient metrics emitted by core logging and middleware
	DeclareMetrics("core", ModuleConfig{
		Metrics: []MetricDefinition{
			{
				Name:   MetricLogErrors,
				Type:   "counter",
				Help:   "Error-level log lines",
				Labels: []string{"component"},
			},
			{
				Name:    MetricRequestDuration,
				Type:    "histogram",
				Help:    "HTTP request duration in milliseconds",
				Labels:  []string{"method", "status"},
				Unit:    "ms",
				Buckets: []float64{1, 10, 100, 1000, 3000, 10000},
			},
			{
				Name:   MetricRequestTotal,
				Type:   "counter",
				Help:   "HTTP requests handled",
				Labels: []string{"method", "status"},
			},
			{
				Name:   MetricRequestErrors,
				Type:   "counter",
				Help:   "HTTP requests that returned 5xx",
				Labels: []string{"method"},
			},
		},
	})
}
