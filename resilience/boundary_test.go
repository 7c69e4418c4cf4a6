package resilience

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/EfeObus/NextProperty-sub003/core"
)

func newTestBoundary() (*ProcessFailureBoundary, *TestLogger, *captureRecorder) {
	logger := &TestLogger{}
	recorder := &captureRecorder{}
	handler := core.NewErrorHandler(core.ErrorHandlerConfig{Logger: logger, Metrics: recorder})
	boundary := NewProcessFailureBoundary(BoundaryConfig{Handler: handler, Logger: logger})
	return boundary, logger, recorder
}

func resetInstalledBoundary() {
	installMu.Lock()
	installedBoundary = nil
	installMu.Unlock()
}

func TestBoundaryRunSuccess(t *testing.T) {
	boundary, logger, recorder := newTestBoundary()

	err := boundary.Run(context.Background(), "api-server", func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Expected nil, got %v", err)
	}
	if len(logger.GetLogsByLevel("ERROR")) != 0 {
		t.Error("Success must not produce error logs")
	}
	if len(recorder.all()) != 0 {
		t.Error("Success must not record error metrics")
	}
}

func TestBoundaryRunClassifiesPanic(t *testing.T) {
	boundary, logger, recorder := newTestBoundary()

	err := boundary.Run(context.Background(), "valuation-worker", func(ctx context.Context) error {
		panic("model cache corrupted")
	})
	if err == nil {
		t.Fatal("Expected classified error from panic")
	}

	var appErr *core.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("Expected AppError, got %T", err)
	}
	if appErr.Kind != core.KindSystem {
		t.Errorf("Expected system kind, got %s", appErr.Kind)
	}
	if !strings.Contains(appErr.Message, "panic in valuation-worker") {
		t.Errorf("Expected panic context in message, got %q", appErr.Message)
	}
	if !strings.Contains(appErr.Message, "model cache corrupted") {
		t.Errorf("Expected panic value in message, got %q", appErr.Message)
	}

	// System errors log at error severity with the captured stack.
	errorLogs := logger.GetLogsByLevel("ERROR")
	if len(errorLogs) != 1 {
		t.Fatalf("Expected 1 error log, got %d", len(errorLogs))
	}
	stack, ok := errorLogs[0].Fields["stack_trace"].(string)
	if !ok || stack == "" {
		t.Error("Expected stack_trace field on the panic log")
	}

	records := recorder.all()
	if len(records) != 1 || records[0] != "SYSTEM_ERROR:SYSTEM_ERROR" {
		t.Errorf("Expected system error metric, got %v", records)
	}
}

func TestBoundaryRunClassifiesError(t *testing.T) {
	boundary, logger, recorder := newTestBoundary()

	dbErr := core.NewDatabaseError("migrate", "properties", "", errors.New("connection refused"))
	err := boundary.Run(context.Background(), "api-server", func(ctx context.Context) error {
		return dbErr
	})
	if err != dbErr {
		t.Errorf("Error must be returned unchanged, got %v", err)
	}

	if len(logger.GetLogsByLevel("ERROR")) != 1 {
		t.Error("Expected database error logged at error level")
	}
	records := recorder.all()
	if len(records) != 1 || records[0] != "DATABASE_ERROR:DATABASE_ERROR" {
		t.Errorf("Expected database error metric, got %v", records)
	}
}

func TestBoundaryRunShutdownPassesThrough(t *testing.T) {
	boundary, logger, recorder := newTestBoundary()

	// Cancelling the parent context stands in for a shutdown signal: the
	// boundary's derived context ends the same way.
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := boundary.Run(ctx, "api-server", func(runCtx context.Context) error {
		<-runCtx.Done()
		return runCtx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}

	// Shutdown is not a failure: nothing classified, nothing counted.
	if len(recorder.all()) != 0 {
		t.Errorf("Shutdown must not record error metrics, got %v", recorder.all())
	}
	if len(logger.GetLogsByLevel("ERROR")) != 0 {
		t.Error("Shutdown must not log errors")
	}
	if !logger.HasLogWithMessage("Shutting down") {
		t.Error("Expected shutdown log")
	}
}

func TestBoundaryRunDeadlinePassesThrough(t *testing.T) {
	boundary, _, recorder := newTestBoundary()

	// fn enforces its own deadline; the boundary context is still alive,
	// so this is not a shutdown but still passes through unclassified.
	err := boundary.Run(context.Background(), "report-job", func(ctx context.Context) error {
		jobCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		<-jobCtx.Done()
		return jobCtx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}
	if len(recorder.all()) != 0 {
		t.Errorf("Deadline must not be classified, got %v", recorder.all())
	}
}

func TestBoundaryGoRecoversPanic(t *testing.T) {
	boundary, logger, recorder := newTestBoundary()

	boundary.Go(context.Background(), "cache-refresh", func(ctx context.Context) error {
		panic(errors.New("refresh failed"))
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(recorder.all()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	records := recorder.all()
	if len(records) != 1 || records[0] != "SYSTEM_ERROR:SYSTEM_ERROR" {
		t.Fatalf("Expected recovered panic metric, got %v", records)
	}
	if !logger.HasLogWithMessage("panic in cache-refresh") {
		t.Error("Expected panic log from goroutine")
	}
}

func TestBoundaryGoReportsError(t *testing.T) {
	boundary, _, recorder := newTestBoundary()

	boundary.Go(context.Background(), "listing-sync", func(ctx context.Context) error {
		return core.NewExternalAPIError("mls", "/listings", 500, "", errors.New("upstream error"))
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(recorder.all()) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	records := recorder.all()
	if len(records) != 1 || records[0] != "EXTERNAL_API_ERROR:EXTERNAL_API_ERROR" {
		t.Errorf("Expected external API metric, got %v", records)
	}
}

func TestBoundaryGoIgnoresCancellation(t *testing.T) {
	boundary, _, recorder := newTestBoundary()

	done := make(chan struct{})
	boundary.Go(context.Background(), "worker", func(ctx context.Context) error {
		defer close(done)
		return context.Canceled
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Goroutine did not run")
	}
	time.Sleep(20 * time.Millisecond)

	if len(recorder.all()) != 0 {
		t.Errorf("Cancellation must not be reported, got %v", recorder.all())
	}
}

func TestBoundaryProtect(t *testing.T) {
	boundary, _, recorder := newTestBoundary()

	ran := false
	boundary.Protect("render-chart", func() {
		ran = true
		panic("nil canvas")
	})
	if !ran {
		t.Fatal("Protected function did not run")
	}
	records := recorder.all()
	if len(records) != 1 || records[0] != "SYSTEM_ERROR:SYSTEM_ERROR" {
		t.Errorf("Expected contained panic metric, got %v", records)
	}

	// A clean function passes through without noise.
	boundary.Protect("noop", func() {})
	if len(recorder.all()) != 1 {
		t.Error("Clean Protect call must not report")
	}
}

func TestInstallBoundaryOnce(t *testing.T) {
	resetInstalledBoundary()
	defer resetInstalledBoundary()

	logger := &TestLogger{}
	first, err := InstallBoundary(BoundaryConfig{Logger: logger})
	if err != nil {
		t.Fatalf("First install failed: %v", err)
	}
	if first == nil {
		t.Fatal("Expected installed boundary")
	}
	if InstalledBoundary() != first {
		t.Error("InstalledBoundary must return the installed instance")
	}

	second, err := InstallBoundary(BoundaryConfig{Logger: logger})
	if !errors.Is(err, core.ErrAlreadyInstalled) {
		t.Errorf("Expected ErrAlreadyInstalled, got %v", err)
	}
	if second != first {
		t.Error("Second install must return the existing boundary")
	}
}

func TestInstalledBoundaryBeforeInstall(t *testing.T) {
	resetInstalledBoundary()
	defer resetInstalledBoundary()

	if InstalledBoundary() != nil {
		t.Error("Expected nil before install")
	}
}
