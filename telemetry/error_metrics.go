package telemetry

import (
	"sort"
	"sync"
)

const (
	// topErrorsLimit caps the number of patterns returned by Summary.
	topErrorsLimit = 10

	// defaultCodeLimit bounds how many distinct codes are tracked per error
	// type before new codes collapse into the "other" bucket. Codes are
	// caller-controlled strings, so without a bound a misbehaving caller
	// could grow the pattern map without limit.
	defaultCodeLimit = 100
)

// ErrorMetrics is the process-wide error accounting registry. Every error
// that passes through the core error handler is recorded here exactly once,
// counted by error type and by "type:code" pattern.
//
// ErrorMetrics is self-contained: it works before telemetry.Initialize() is
// called and keeps working if the OpenTelemetry backend goes away. When the
// emission pipeline is available each record is additionally forwarded as a
// counter metric, so dashboards see the same numbers as Summary().
//
// Counts are monotonically non-decreasing and entries are never removed
// during normal operation. Reset exists for tests.
type ErrorMetrics struct {
	mu       sync.RWMutex
	counts   map[string]int64 // error type -> occurrences
	patterns map[string]int64 // "type:code" -> occurrences
	total    int64

	// limiter bounds per-type code cardinality. Nil disables limiting.
	limiter *CardinalityLimiter
}

// PatternCount is one "type:code" pattern with its occurrence count.
type PatternCount struct {
	Pattern string `json:"pattern"`
	Count   int64  `json:"count"`
}

// MetricsSummary is the stable snapshot contract for error metrics.
// TopErrors holds at most ten patterns sorted by count descending.
type MetricsSummary struct {
	TotalErrors   int64            `json:"total_errors"`
	ErrorCounts   map[string]int64 `json:"error_counts"`
	ErrorPatterns map[string]int64 `json:"error_patterns"`
	TopErrors     []PatternCount   `json:"top_errors"`
}

// NewErrorMetrics creates an error metrics registry with the default
// per-type code limit.
func NewErrorMetrics() *ErrorMetrics {
	return NewErrorMetricsWithLimit(defaultCodeLimit)
}

// NewErrorMetricsWithLimit creates an error metrics registry that tracks at
// most maxCodesPerType distinct codes per error type. Further codes are
// recorded under the "other" bucket so the type total stays exact while the
// pattern map stays bounded. A limit <= 0 disables limiting.
func NewErrorMetricsWithLimit(maxCodesPerType int) *ErrorMetrics {
	m := &ErrorMetrics{
		counts:   make(map[string]int64),
		patterns: make(map[string]int64),
	}
	if maxCodesPerType > 0 {
		m.limiter = NewCardinalityLimiter(map[string]int{"code": maxCodesPerType})
	}
	return m
}

// RecordError counts one occurrence of errorType with the given code.
// Implements core.MetricsRecorder. Safe for concurrent use.
func (m *ErrorMetrics) RecordError(errorType, code string) {
	if errorType == "" {
		errorType = "UNKNOWN"
	}
	if code == "" {
		code = errorType
	}
	if m.limiter != nil {
		code = m.limiter.CheckAndLimit(errorType, "code", code)
	}
	pattern := errorType + ":" + code

	m.mu.Lock()
	m.counts[errorType]++
	m.patterns[pattern]++
	m.total++
	m.mu.Unlock()

	// Forward to the emission pipeline outside the lock. No-op when the
	// telemetry registry is not initialized.
	Counter(MetricErrorsTotal, "error_type", errorType, "code", code)
}

// Total returns the number of errors recorded so far.
func (m *ErrorMetrics) Total() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total
}

// CountFor returns the occurrence count for a single error type.
func (m *ErrorMetrics) CountFor(errorType string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[errorType]
}

// PatternCountFor returns the occurrence count for one "type:code" pattern.
func (m *ErrorMetrics) PatternCountFor(errorType, code string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.patterns[errorType+":"+code]
}

// Summary returns a consistent snapshot of all error counts. The returned
// maps are copies, so callers may hold or mutate them freely.
func (m *ErrorMetrics) Summary() MetricsSummary {
	m.mu.RLock()
	counts := make(map[string]int64, len(m.counts))
	for k, v := range m.counts {
		counts[k] = v
	}
	patterns := make(map[string]int64, len(m.patterns))
	for k, v := range m.patterns {
		patterns[k] = v
	}
	total := m.total
	m.mu.RUnlock()

	top := make([]PatternCount, 0, len(patterns))
	for pattern, count := range patterns {
		top = append(top, PatternCount{Pattern: pattern, Count: count})
	}
	// Sort by count descending; ties break on pattern name so the
	// ordering is deterministic for equal counts.
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Pattern < top[j].Pattern
	})
	if len(top) > topErrorsLimit {
		top = top[:topErrorsLimit]
	}

	return MetricsSummary{
		TotalErrors:   total,
		ErrorCounts:   counts,
		ErrorPatterns: patterns,
		TopErrors:     top,
	}
}

// Reset clears all counts. Only intended for tests.
func (m *ErrorMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts = make(map[string]int64)
	m.patterns = make(map[string]int64)
	m.total = 0
}

// defaultErrorMetrics is the process-wide registry used by the package-level
// helpers and by the resilience factories when no explicit registry is given.
var defaultErrorMetrics = NewErrorMetrics()

// Errors returns the process-wide error metrics registry.
func Errors() *ErrorMetrics {
	return defaultErrorMetrics
}

// RecordError counts one error occurrence in the process-wide registry.
// This is the function handed to core.NewErrorHandler via telemetry.Errors().
func RecordError(errorType, code string) {
	defaultErrorMetrics.RecordError(errorType, code)
}
