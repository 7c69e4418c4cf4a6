package telemetry

import (
	"encoding/json"
	"net/http"
	"time"
)

// Health represents the health status of the telemetry system
type Health struct {
	Enabled         bool   `json:"enabled"`
	Provider        string `json:"provider"`
	MetricsEmitted  int64  `json:"metrics_emitted"`
	MetricsDropped  int64  `json:"metrics_dropped"`
	Errors          int64  `json:"errors"`
	LastError       string `json:"last_error,omitempty"`
	CircuitState    string `json:"circuit_state"`
	Uptime          string `json:"uptime"`
	CardinalityUsed int    `json:"cardinality_used"`
	CardinalityMax  int    `json:"cardinality_max"`
	Initialized     bool   `json:"initialized"`

	// Error accounting works without initialization, so these are
	// reported either way.
	TrackedErrorTypes int `json:"tracked_error_types"`
	TrackedPatterns   int `json:"tracked_patterns"`
}

// GetHealth returns the current health status of the telemetry system
func GetHealth() Health {
	summary := defaultErrorMetrics.Summary()

	r := loadRegistry()
	if r == nil {
		return Health{
			Enabled:           false,
			Initialized:       false,
			TrackedErrorTypes: len(summary.ErrorCounts),
			TrackedPatterns:   len(summary.ErrorPatterns),
		}
	}

	lastErr := ""
	if errVal := r.lastError.Load(); errVal != nil {
		if errStr, ok := errVal.(string); ok && errStr != "" {
			lastErr = errStr
		}
	}

	circuitState := "disabled"
	if r.circuit != nil {
		circuitState = r.circuit.State()
	}

	cardinalityUsed := 0
	cardinalityMax := 0
	if r.limiter != nil {
		cardinalityUsed = r.limiter.CurrentCardinality()
		cardinalityMax = r.limiter.MaxCardinality()
	}

	return Health{
		Enabled:           r.config.Enabled,
		Provider:          r.config.Provider,
		MetricsEmitted:    r.emitted.Load(),
		MetricsDropped:    telemetryDropped.Load(),
		Errors:            telemetryErrors.Load(),
		LastError:         lastErr,
		CircuitState:      circuitState,
		Uptime:            time.Since(r.startTime).String(),
		CardinalityUsed:   cardinalityUsed,
		CardinalityMax:    cardinalityMax,
		Initialized:       true,
		TrackedErrorTypes: len(summary.ErrorCounts),
		TrackedPatterns:   len(summary.ErrorPatterns),
	}
}

// HealthHandler provides an HTTP endpoint for telemetry health
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := GetHealth()
	w.Header().Set("Content-Type", "application/json")

	if !health.Enabled || !health.Initialized {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else if health.CircuitState == "open" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else if health.Errors > 0 && health.MetricsEmitted == 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	_ = json.NewEncoder(w).Encode(health)
}

// SummaryHandler provides an HTTP endpoint for the error metrics summary.
// The payload follows the stable summary contract: total_errors,
// error_counts, error_patterns, and top_errors.
func SummaryHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(defaultErrorMetrics.Summary())
}

// InternalMetrics returns internal telemetry metrics for monitoring
type InternalMetrics struct {
	Errors  int64 `json:"errors"`
	Dropped int64 `json:"dropped"`
	Emitted int64 `json:"emitted"`
}

// GetInternalMetrics returns internal telemetry metrics
func GetInternalMetrics() InternalMetrics {
	emitted := int64(0)
	if r := loadRegistry(); r != nil {
		emitted = r.emitted.Load()
	}

	return InternalMetrics{
		Errors:  telemetryErrors.Load(),
		Dropped: telemetryDropped.Load(),
		Emitted: emitted,
	}
}

// ResetInternalMetrics resets internal metrics (useful for testing)
func ResetInternalMetrics() {
	telemetryErrors.Store(0)
	telemetryDropped.Store(0)

	if r := loadRegistry(); r != nil {
		r.emitted.Store(0)
	}
}
