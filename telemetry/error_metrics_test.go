package telemetry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/EfeObus/NextProperty-sub003/core"
)

// ErrorMetrics must satisfy the framework's recorder interface so the core
// error handler can be wired to it without importing this package.
var _ core.MetricsRecorder = (*ErrorMetrics)(nil)

func TestErrorMetricsRecordError(t *testing.T) {
	m := NewErrorMetrics()

	m.RecordError("DATABASE_ERROR", "CONNECTION_LOST")
	m.RecordError("DATABASE_ERROR", "CONNECTION_LOST")
	m.RecordError("DATABASE_ERROR", "TIMEOUT")
	m.RecordError("VALIDATION_ERROR", "VALIDATION_FAILED")

	if got := m.Total(); got != 4 {
		t.Errorf("Total() = %d, want 4", got)
	}
	if got := m.CountFor("DATABASE_ERROR"); got != 3 {
		t.Errorf("CountFor(DATABASE_ERROR) = %d, want 3", got)
	}
	if got := m.CountFor("VALIDATION_ERROR"); got != 1 {
		t.Errorf("CountFor(VALIDATION_ERROR) = %d, want 1", got)
	}
	if got := m.PatternCountFor("DATABASE_ERROR", "CONNECTION_LOST"); got != 2 {
		t.Errorf("PatternCountFor(DATABASE_ERROR, CONNECTION_LOST) = %d, want 2", got)
	}
	if got := m.PatternCountFor("DATABASE_ERROR", "TIMEOUT"); got != 1 {
		t.Errorf("PatternCountFor(DATABASE_ERROR, TIMEOUT) = %d, want 1", got)
	}

	// Types that never occurred read as zero, not as an error
	if got := m.CountFor("CACHE_ERROR"); got != 0 {
		t.Errorf("CountFor(CACHE_ERROR) = %d, want 0", got)
	}
}

func TestErrorMetricsEmptyFields(t *testing.T) {
	m := NewErrorMetrics()

	// Empty code falls back to the error type, so the pattern is "type:type"
	m.RecordError("CACHE_ERROR", "")
	if got := m.PatternCountFor("CACHE_ERROR", "CACHE_ERROR"); got != 1 {
		t.Errorf("empty code: PatternCountFor(CACHE_ERROR, CACHE_ERROR) = %d, want 1", got)
	}

	// Empty type is recorded under UNKNOWN rather than dropped
	m.RecordError("", "weird")
	if got := m.CountFor("UNKNOWN"); got != 1 {
		t.Errorf("empty type: CountFor(UNKNOWN) = %d, want 1", got)
	}
	if got := m.PatternCountFor("UNKNOWN", "weird"); got != 1 {
		t.Errorf("empty type: PatternCountFor(UNKNOWN, weird) = %d, want 1", got)
	}

	// Both empty
	m.RecordError("", "")
	if got := m.PatternCountFor("UNKNOWN", "UNKNOWN"); got != 1 {
		t.Errorf("both empty: PatternCountFor(UNKNOWN, UNKNOWN) = %d, want 1", got)
	}

	if got := m.Total(); got != 3 {
		t.Errorf("Total() = %d, want 3", got)
	}
}

func TestErrorMetricsSummary(t *testing.T) {
	m := NewErrorMetrics()

	m.RecordError("DATABASE_ERROR", "CONNECTION_LOST")
	m.RecordError("DATABASE_ERROR", "CONNECTION_LOST")
	m.RecordError("DATABASE_ERROR", "CONNECTION_LOST")
	m.RecordError("EXTERNAL_API_ERROR", "GEOCODING_TIMEOUT")
	m.RecordError("EXTERNAL_API_ERROR", "GEOCODING_TIMEOUT")
	m.RecordError("CACHE_ERROR", "MISS_STORM")

	summary := m.Summary()

	if summary.TotalErrors != 6 {
		t.Errorf("TotalErrors = %d, want 6", summary.TotalErrors)
	}
	if got := summary.ErrorCounts["DATABASE_ERROR"]; got != 3 {
		t.Errorf("ErrorCounts[DATABASE_ERROR] = %d, want 3", got)
	}
	if got := summary.ErrorPatterns["EXTERNAL_API_ERROR:GEOCODING_TIMEOUT"]; got != 2 {
		t.Errorf("ErrorPatterns[EXTERNAL_API_ERROR:GEOCODING_TIMEOUT] = %d, want 2", got)
	}

	// Top errors are sorted by count descending
	if len(summary.TopErrors) != 3 {
		t.Fatalf("len(TopErrors) = %d, want 3", len(summary.TopErrors))
	}
	wantOrder := []PatternCount{
		{Pattern: "DATABASE_ERROR:CONNECTION_LOST", Count: 3},
		{Pattern: "EXTERNAL_API_ERROR:GEOCODING_TIMEOUT", Count: 2},
		{Pattern: "CACHE_ERROR:MISS_STORM", Count: 1},
	}
	for i, want := range wantOrder {
		if summary.TopErrors[i] != want {
			t.Errorf("TopErrors[%d] = %+v, want %+v", i, summary.TopErrors[i], want)
		}
	}
}

func TestErrorMetricsSummaryTopTen(t *testing.T) {
	m := NewErrorMetrics()

	// 15 distinct patterns with distinct counts: pattern i occurs i+1 times
	for i := 0; i < 15; i++ {
		code := fmt.Sprintf("CODE_%02d", i)
		for n := 0; n <= i; n++ {
			m.RecordError("SYSTEM_ERROR", code)
		}
	}

	summary := m.Summary()
	if len(summary.TopErrors) != 10 {
		t.Fatalf("len(TopErrors) = %d, want 10", len(summary.TopErrors))
	}
	// Highest count first (CODE_14 occurred 15 times)
	if summary.TopErrors[0].Pattern != "SYSTEM_ERROR:CODE_14" || summary.TopErrors[0].Count != 15 {
		t.Errorf("TopErrors[0] = %+v, want SYSTEM_ERROR:CODE_14 x15", summary.TopErrors[0])
	}
	// Counts never increase down the list
	for i := 1; i < len(summary.TopErrors); i++ {
		if summary.TopErrors[i].Count > summary.TopErrors[i-1].Count {
			t.Errorf("TopErrors not sorted: [%d]=%+v after [%d]=%+v",
				i, summary.TopErrors[i], i-1, summary.TopErrors[i-1])
		}
	}
	// The full pattern map is not truncated
	if len(summary.ErrorPatterns) != 15 {
		t.Errorf("len(ErrorPatterns) = %d, want 15", len(summary.ErrorPatterns))
	}
}

func TestErrorMetricsSummaryTieBreak(t *testing.T) {
	m := NewErrorMetrics()

	// Equal counts must produce a deterministic order (pattern ascending)
	m.RecordError("CACHE_ERROR", "B_CODE")
	m.RecordError("CACHE_ERROR", "A_CODE")
	m.RecordError("CACHE_ERROR", "C_CODE")

	for i := 0; i < 5; i++ {
		summary := m.Summary()
		want := []string{"CACHE_ERROR:A_CODE", "CACHE_ERROR:B_CODE", "CACHE_ERROR:C_CODE"}
		for j, w := range want {
			if summary.TopErrors[j].Pattern != w {
				t.Fatalf("iteration %d: TopErrors[%d] = %s, want %s",
					i, j, summary.TopErrors[j].Pattern, w)
			}
		}
	}
}

func TestErrorMetricsSummaryIsCopy(t *testing.T) {
	m := NewErrorMetrics()
	m.RecordError("SYSTEM_ERROR", "PANIC")

	summary := m.Summary()
	summary.ErrorCounts["SYSTEM_ERROR"] = 999
	summary.ErrorPatterns["SYSTEM_ERROR:PANIC"] = 999

	if got := m.CountFor("SYSTEM_ERROR"); got != 1 {
		t.Errorf("mutating summary changed internal counts: got %d, want 1", got)
	}
	if got := m.Summary().ErrorCounts["SYSTEM_ERROR"]; got != 1 {
		t.Errorf("second summary sees mutation: got %d, want 1", got)
	}
}

func TestErrorMetricsConcurrent(t *testing.T) {
	m := NewErrorMetrics()

	const goroutines = 20
	const perGoroutine = 200

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			errorType := fmt.Sprintf("TYPE_%d", g%4)
			for i := 0; i < perGoroutine; i++ {
				m.RecordError(errorType, "CODE")
			}
		}(g)
	}
	wg.Wait()

	// Totals must exactly match the number of RecordError calls
	want := int64(goroutines * perGoroutine)
	if got := m.Total(); got != want {
		t.Errorf("Total() = %d, want %d", got, want)
	}

	var sum int64
	summary := m.Summary()
	for _, count := range summary.ErrorCounts {
		sum += count
	}
	if sum != want {
		t.Errorf("sum of ErrorCounts = %d, want %d", sum, want)
	}
	// 4 types were used, 5 goroutines each
	if got := m.CountFor("TYPE_0"); got != 5*perGoroutine {
		t.Errorf("CountFor(TYPE_0) = %d, want %d", got, 5*perGoroutine)
	}
}

func TestErrorMetricsCodeCardinality(t *testing.T) {
	m := NewErrorMetricsWithLimit(3)

	// First three distinct codes are tracked as-is
	m.RecordError("EXTERNAL_API_ERROR", "CODE_A")
	m.RecordError("EXTERNAL_API_ERROR", "CODE_B")
	m.RecordError("EXTERNAL_API_ERROR", "CODE_C")
	// Beyond the limit, codes collapse into "other"
	m.RecordError("EXTERNAL_API_ERROR", "CODE_D")
	m.RecordError("EXTERNAL_API_ERROR", "CODE_E")
	// Existing codes still pass through
	m.RecordError("EXTERNAL_API_ERROR", "CODE_A")

	if got := m.PatternCountFor("EXTERNAL_API_ERROR", "CODE_A"); got != 2 {
		t.Errorf("PatternCountFor(CODE_A) = %d, want 2", got)
	}
	if got := m.PatternCountFor("EXTERNAL_API_ERROR", "other"); got != 2 {
		t.Errorf("PatternCountFor(other) = %d, want 2", got)
	}
	if got := m.PatternCountFor("EXTERNAL_API_ERROR", "CODE_D"); got != 0 {
		t.Errorf("PatternCountFor(CODE_D) = %d, want 0 (collapsed)", got)
	}

	// The type total stays exact even when codes are collapsed
	if got := m.CountFor("EXTERNAL_API_ERROR"); got != 6 {
		t.Errorf("CountFor(EXTERNAL_API_ERROR) = %d, want 6", got)
	}
	if got := m.Total(); got != 6 {
		t.Errorf("Total() = %d, want 6", got)
	}
}

func TestErrorMetricsReset(t *testing.T) {
	m := NewErrorMetrics()
	m.RecordError("DATABASE_ERROR", "X")
	m.RecordError("CACHE_ERROR", "Y")

	m.Reset()

	if got := m.Total(); got != 0 {
		t.Errorf("Total() after Reset = %d, want 0", got)
	}
	summary := m.Summary()
	if len(summary.ErrorCounts) != 0 || len(summary.ErrorPatterns) != 0 || len(summary.TopErrors) != 0 {
		t.Errorf("Summary after Reset not empty: %+v", summary)
	}

	// The registry is reusable after Reset
	m.RecordError("DATABASE_ERROR", "X")
	if got := m.Total(); got != 1 {
		t.Errorf("Total() after re-record = %d, want 1", got)
	}
}

func TestPackageLevelErrorRecording(t *testing.T) {
	defaultErrorMetrics.Reset()
	defer defaultErrorMetrics.Reset()

	RecordError("ML_MODEL_ERROR", "MODEL_LOAD_FAILED")
	RecordError("ML_MODEL_ERROR", "MODEL_LOAD_FAILED")

	if got := Errors().CountFor("ML_MODEL_ERROR"); got != 2 {
		t.Errorf("Errors().CountFor(ML_MODEL_ERROR) = %d, want 2", got)
	}
	if got := Errors().Total(); got != 2 {
		t.Errorf("Errors().Total() = %d, want 2", got)
	}
}
