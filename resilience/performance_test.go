package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPerformanceGuardFastOperation(t *testing.T) {
	logger := &TestLogger{}
	guard := NewPerformanceGuard(&PerformanceGuardConfig{
		SlowThreshold: 100 * time.Millisecond,
		Logger:        logger,
	})

	err := guard.Track(context.Background(), "calculate-valuation", func() error {
		return nil
	})
	if err != nil {
		t.Fatalf("Expected nil error, got %v", err)
	}
	if len(logger.GetLogsByLevel("WARN")) != 0 {
		t.Error("Fast operations must not warn")
	}
	if len(logger.GetLogsByLevel("DEBUG")) != 1 {
		t.Error("Expected a debug completion log")
	}
}

func TestPerformanceGuardSlowOperation(t *testing.T) {
	logger := &TestLogger{}
	guard := NewPerformanceGuard(&PerformanceGuardConfig{
		SlowThreshold: 30 * time.Millisecond,
		Logger:        logger,
	})

	err := guard.Track(context.Background(), "fetch-comparables", func() error {
		time.Sleep(60 * time.Millisecond)
		return nil
	})
	if err != nil {
		t.Fatalf("Slow success must still return nil, got %v", err)
	}

	warnings := logger.GetLogsByLevel("WARN")
	if len(warnings) != 1 {
		t.Fatalf("Expected 1 slow warning, got %d", len(warnings))
	}
	entry := warnings[0]
	if entry.Message != "Slow operation detected" {
		t.Errorf("Unexpected message %q", entry.Message)
	}
	if entry.Fields["target"] != "fetch-comparables" {
		t.Errorf("Expected target field, got %v", entry.Fields["target"])
	}
	duration, ok := entry.Fields["duration_ms"].(int64)
	if !ok || duration < 60 {
		t.Errorf("Expected measured duration >= 60ms, got %v", entry.Fields["duration_ms"])
	}
	if entry.Fields["threshold_ms"] != int64(30) {
		t.Errorf("Expected threshold field 30, got %v", entry.Fields["threshold_ms"])
	}
}

func TestPerformanceGuardErrorPassthrough(t *testing.T) {
	logger := &TestLogger{}
	guard := NewPerformanceGuard(&PerformanceGuardConfig{
		SlowThreshold: time.Second,
		Logger:        logger,
	})

	sentinel := errors.New("valuation model unavailable")
	err := guard.Track(context.Background(), "calculate-valuation", func() error {
		return sentinel
	})
	if err != sentinel {
		t.Errorf("Error must pass through unchanged, got %v", err)
	}

	warnings := logger.GetLogsByLevel("WARN")
	if len(warnings) != 1 || warnings[0].Message != "Operation failed" {
		t.Errorf("Expected a single failure log, got %v", warnings)
	}
	// The guard observes, it does not classify: no error-level logs.
	if len(logger.GetLogsByLevel("ERROR")) != 0 {
		t.Error("Guard must not log failures at error level")
	}
}

func TestPerformanceGuardSlowFailureLogsOnce(t *testing.T) {
	logger := &TestLogger{}
	guard := NewPerformanceGuard(&PerformanceGuardConfig{
		SlowThreshold: 20 * time.Millisecond,
		Logger:        logger,
	})

	sentinel := errors.New("timeout")
	err := guard.Track(context.Background(), "op", func() error {
		time.Sleep(50 * time.Millisecond)
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("Expected passthrough, got %v", err)
	}

	// A slow failure is reported as a failure, not double-logged as slow.
	warnings := logger.GetLogsByLevel("WARN")
	if len(warnings) != 1 {
		t.Fatalf("Expected exactly 1 warning, got %d", len(warnings))
	}
	if warnings[0].Message != "Operation failed" {
		t.Errorf("Expected failure log, got %q", warnings[0].Message)
	}
}

func TestPerformanceGuardDefaults(t *testing.T) {
	guard := NewPerformanceGuard(nil)
	if guard.threshold != 3*time.Second {
		t.Errorf("Expected 3s default threshold, got %v", guard.threshold)
	}

	// Works without a logger configured.
	if err := guard.Track(context.Background(), "op", func() error { return nil }); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
}
