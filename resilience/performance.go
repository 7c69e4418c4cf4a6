package resilience

import (
	"context"
	"time"

	"github.com/EfeObus/NextProperty-sub003/core"
	"github.com/EfeObus/NextProperty-sub003/telemetry"
)

// PerformanceGuardConfig holds slow-operation tracking settings.
type PerformanceGuardConfig struct {
	// SlowThreshold is the duration at which a successful operation is
	// logged as slow. Defaults to 3s.
	SlowThreshold time.Duration

	Logger core.Logger
}

// PerformanceGuard measures wrapped operations and logs the slow ones. It
// never alters the result: the wrapped call's return value and error pass
// through untouched whether the call was fast, slow, or failed.
type PerformanceGuard struct {
	threshold        time.Duration
	logger           core.Logger
	telemetryEnabled bool
}

// NewPerformanceGuard creates a guard. A nil config uses the 3s default.
func NewPerformanceGuard(config *PerformanceGuardConfig) *PerformanceGuard {
	g := &PerformanceGuard{
		threshold: 3 * time.Second,
		logger:    &core.NoOpLogger{},
	}
	if config != nil {
		if config.SlowThreshold > 0 {
			g.threshold = config.SlowThreshold
		}
		if config.Logger != nil {
			g.logger = componentLogger(config.Logger, "resilience/performance")
		}
	}
	return g
}

// SetLogger replaces the guard's logger.
func (g *PerformanceGuard) SetLogger(logger core.Logger) {
	g.logger = componentLogger(logger, "resilience/performance")
}

// Track runs fn and records its duration. Successful operations at or over
// the slow threshold are logged at warning level with the measured time and
// the threshold crossed. Failed operations are logged with their duration;
// the error itself is the error handler's to classify, so it is returned
// unchanged and not reported here.
func (g *PerformanceGuard) Track(ctx context.Context, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	if g.telemetryEnabled {
		status := "success"
		if err != nil {
			status = "error"
		}
		telemetry.Histogram(telemetry.MetricOperationDuration, float64(elapsed.Milliseconds()),
			"operation", name,
			"status", status)
	}

	switch {
	case err != nil:
		g.logger.Warn("Operation failed", map[string]interface{}{
			"operation":   "performance_track",
			"target":      name,
			"duration_ms": elapsed.Milliseconds(),
			"error":       err.Error(),
		})
	case elapsed >= g.threshold:
		g.logger.Warn("Slow operation detected", map[string]interface{}{
			"operation":    "performance_slow",
			"target":       name,
			"duration_ms":  elapsed.Milliseconds(),
			"threshold_ms": g.threshold.Milliseconds(),
		})
		if g.telemetryEnabled {
			telemetry.Counter(telemetry.MetricSlowOperations, "operation", name)
		}
	default:
		g.logger.Debug("Operation completed", map[string]interface{}{
			"operation":   "performance_track",
			"target":      name,
			"duration_ms": elapsed.Milliseconds(),
		})
	}
	return err
}
