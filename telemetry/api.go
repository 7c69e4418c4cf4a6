package telemetry

import (
	"time"
)

// Counter increments a counter metric by 1.
// Use for counting events: handled errors, retries, rejections.
// Labels are key-value pairs.
// Example: Counter("nextprop.retry.attempts", "target", "geocoding-api")
func Counter(name string, labels ...string) {
	Emit(name, 1, labels...)
}

// Histogram records a value in a distribution.
// Use for latencies, payload sizes, backoff delays.
// Example: Histogram("nextprop.performance.duration_ms", 125.3, "operation", "valuation")
func Histogram(name string, value float64, labels ...string) {
	Emit(name, value, labels...)
}

// Gauge records a current value (values that go up and down, like the
// number of open circuit breakers). Recorded as a histogram sample
// internally; observable gauges with callbacks are registered through
// MetricInstruments.RegisterGauge.
func Gauge(name string, value float64, labels ...string) {
	Emit(name, value, labels...)
}

// Duration records elapsed time since startTime in milliseconds.
// Example:
//
//	start := time.Now()
//	defer Duration("nextprop.performance.duration_ms", start, "operation", "valuation")
func Duration(name string, startTime time.Time, labels ...string) {
	ms := float64(time.Since(startTime).Milliseconds())
	Emit(name, ms, labels...)
}

// RecordLatency records operation latency with a bucket label attached for
// cheap aggregation in backends without histogram support.
func RecordLatency(name string, milliseconds float64, labels ...string) {
	bucket := latencyBucket(milliseconds)
	allLabels := append(labels, "latency_bucket", bucket)
	Histogram(name, milliseconds, allLabels...)
}

// TimeOperation times an operation and records its duration when the
// returned function runs.
//
//	defer telemetry.TimeOperation("nextprop.performance.duration_ms", "operation", "valuation")()
func TimeOperation(name string, labels ...string) func() {
	start := time.Now()
	return func() {
		Duration(name, start, labels...)
	}
}

// latencyBucket returns a human-readable latency bucket
func latencyBucket(ms float64) string {
	switch {
	case ms < 1:
		return "<1ms"
	case ms < 10:
		return "1-10ms"
	case ms < 100:
		return "10-100ms"
	case ms < 1000:
		return "100ms-1s"
	case ms < 10000:
		return "1-10s"
	default:
		return ">10s"
	}
}
