package resilience

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/EfeObus/NextProperty-sub003/core"
	"github.com/EfeObus/NextProperty-sub003/telemetry"
)

// shutdownSignals are the process-termination signals the boundary treats
// as orderly shutdown rather than failure.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// BoundaryConfig holds the dependencies of the process failure boundary.
type BoundaryConfig struct {
	// Handler classifies and reports failures that reach the boundary.
	// When nil a handler with the boundary's logger is created.
	Handler *core.ErrorHandler

	Logger core.Logger
}

// ProcessFailureBoundary is the last line of defense: it wraps a process
// entry point (and worker goroutines) so that panics and unhandled errors
// are classified through the error handler and counted in error metrics
// instead of crashing with a bare stack trace. Shutdown signals pass
// through untouched.
type ProcessFailureBoundary struct {
	handler *core.ErrorHandler
	logger  core.Logger
}

var (
	installMu         sync.Mutex
	installedBoundary *ProcessFailureBoundary
)

// NewProcessFailureBoundary creates a boundary without installing it as the
// process-wide one. Useful for tests and for components that want local
// panic containment.
func NewProcessFailureBoundary(config BoundaryConfig) *ProcessFailureBoundary {
	logger := config.Logger
	if logger == nil {
		logger = &core.NoOpLogger{}
	} else {
		logger = componentLogger(logger, "resilience/boundary")
	}
	handler := config.Handler
	if handler == nil {
		handler = core.NewErrorHandler(core.ErrorHandlerConfig{Logger: config.Logger})
	}
	return &ProcessFailureBoundary{
		handler: handler,
		logger:  logger,
	}
}

// InstallBoundary registers the process-wide failure boundary. Only the
// first call installs; later calls return the already installed boundary
// together with core.ErrAlreadyInstalled.
func InstallBoundary(config BoundaryConfig) (*ProcessFailureBoundary, error) {
	installMu.Lock()
	defer installMu.Unlock()

	if installedBoundary != nil {
		return installedBoundary, core.ErrAlreadyInstalled
	}
	b := NewProcessFailureBoundary(config)
	installedBoundary = b
	b.logger.Info("Process failure boundary installed", map[string]interface{}{
		"operation": "boundary_installed",
	})
	return b, nil
}

// InstalledBoundary returns the process-wide boundary, or nil before
// InstallBoundary has run.
func InstalledBoundary() *ProcessFailureBoundary {
	installMu.Lock()
	defer installMu.Unlock()
	return installedBoundary
}

// Run executes the process entry point under the boundary. The context
// passed to fn is canceled on SIGINT or SIGTERM; when fn then returns a
// context error it is passed through untouched so main can exit cleanly.
// A panic or any other error is classified through the error handler and
// returned, never re-raised.
func (b *ProcessFailureBoundary) Run(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	runCtx, stop := signal.NotifyContext(ctx, shutdownSignals...)
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			err = b.recovered(runCtx, name, r)
		}
	}()

	err = fn(runCtx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		if runCtx.Err() != nil {
			b.logger.Info("Shutting down", map[string]interface{}{
				"operation": "boundary_shutdown",
				"target":    name,
			})
		} else {
			b.logger.Debug("Context ended", map[string]interface{}{
				"operation": "boundary_context_done",
				"target":    name,
				"error":     err.Error(),
			})
		}
		return err
	}

	b.handler.Handle(runCtx, err, map[string]interface{}{"operation": name})
	return err
}

// Go spawns fn on a new goroutine under the boundary. Panics and errors are
// classified instead of crashing the process; cancellation is ignored.
func (b *ProcessFailureBoundary) Go(ctx context.Context, name string, fn func(context.Context) error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				b.recovered(ctx, name, r)
			}
		}()
		err := fn(ctx)
		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		b.handler.Handle(ctx, err, map[string]interface{}{
			"operation": name,
			"goroutine": true,
		})
	}()
}

// Protect runs fn synchronously, containing any panic. For call sites that
// have no context and no error to return.
func (b *ProcessFailureBoundary) Protect(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.recovered(context.Background(), name, r)
		}
	}()
	fn()
}

// recovered classifies a panic value through the error handler. The handler
// logs it at error severity with the stack captured at wrap time and counts
// it under SYSTEM_ERROR.
func (b *ProcessFailureBoundary) recovered(ctx context.Context, name string, r interface{}) error {
	sysErr := core.NewSystemError(fmt.Sprintf("panic in %s: %v", name, r), nil)
	b.handler.Handle(ctx, sysErr, map[string]interface{}{
		"operation":  name,
		"panic":      true,
		"panic_type": fmt.Sprintf("%T", r),
	})
	telemetry.Counter(telemetry.MetricPanicsRecovered, "component", name)
	return sysErr
}
