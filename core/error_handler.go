package core

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
)

// BatchValidationCode is the code carried by a report aggregating several
// field-level validation failures from one submission.
const BatchValidationCode = "VALIDATION_FAILED"

// ErrorHandlerConfig configures an ErrorHandler. All fields are optional;
// zero values degrade to no-op collaborators so handling never fails for
// lack of wiring.
type ErrorHandlerConfig struct {
	// Logger receives one structured line per handled error
	Logger Logger

	// Metrics receives one record per handled error
	Metrics MetricsRecorder

	// Store persists reports by id for support correlation. Optional; save
	// failures are swallowed after a debug log because report persistence
	// must never escalate the error being handled.
	Store ReportStore
}

// ErrorHandler classifies failures into the taxonomy, logs them at a
// severity determined by kind, counts them, and produces the serializable
// report callers surface to their own consumers.
//
// Policy: every failure is logged exactly once, here. Callers must not log
// the same failure again after handing it to the handler.
type ErrorHandler struct {
	logger  Logger
	metrics MetricsRecorder
	store   ReportStore
}

// NewErrorHandler creates an error handler. Nil collaborators are replaced
// with no-op implementations.
func NewErrorHandler(config ErrorHandlerConfig) *ErrorHandler {
	h := &ErrorHandler{
		logger:  config.Logger,
		metrics: config.Metrics,
		store:   config.Store,
	}
	if h.logger == nil {
		h.logger = &NoOpLogger{}
	} else {
		h.logger = createComponentLogger(h.logger, "resilience/errors")
	}
	if h.metrics == nil {
		h.metrics = &NoOpMetricsRecorder{}
	}
	return h
}

// Handle classifies err, logs it once, records it in metrics, and returns
// its report. The extra map is merged into the report details (useful for
// caller-side context like the route or job name). Untyped errors are
// wrapped as System errors with a captured stack trace.
//
// Handle never panics and never returns nil.
func (h *ErrorHandler) Handle(ctx context.Context, err error, extra map[string]interface{}) (report *ErrorReport) {
	defer func() {
		if r := recover(); r != nil {
			// Handling must not take down the caller. Produce a minimal
			// system report for the panic itself.
			report = h.panicReport(r)
		}
	}()

	appErr := h.classify(ctx, err)
	report = appErr.Report()
	for k, v := range extra {
		report.Details[k] = v
	}

	fields := report.LogFields()
	fields["error_id"] = appErr.ID
	if appErr.Err != nil {
		fields["cause"] = appErr.Err.Error()
	}

	switch appErr.Kind {
	case KindValidation, KindAuthentication, KindAuthorization:
		h.logger.Warn(report.Message, fields)
	case KindSystem:
		fields["stack_trace"] = appErr.StackTrace()
		h.logger.Error(report.Message, fields)
	default:
		h.logger.Error(report.Message, fields)
	}

	h.metrics.RecordError(report.ErrorType, report.Code)
	h.saveReport(ctx, appErr.ID, report)
	return report
}

// HandleValidationBatch aggregates several field-level validation failures
// into one report with code VALIDATION_FAILED and logs once at warning
// severity regardless of how many fields failed. This keeps a ten-field form
// submission from producing ten log lines.
func (h *ErrorHandler) HandleValidationBatch(ctx context.Context, errs []*AppError) *ErrorReport {
	agg := NewAppError(KindValidation, BatchValidationCode,
		fmt.Sprintf("validation failed for %d field(s)", len(errs)))
	agg = agg.WithRequestFrom(ctx)

	fieldErrors := make([]map[string]interface{}, 0, len(errs))
	for _, e := range errs {
		if e == nil {
			continue
		}
		field, _ := e.Details["field"].(string)
		fieldErrors = append(fieldErrors, map[string]interface{}{
			"field":   field,
			"message": e.Message,
			"code":    e.Code,
		})
	}

	report := agg.Report()
	report.Details["errors"] = fieldErrors
	report.Details["error_count"] = len(fieldErrors)

	fields := report.LogFields()
	fields["error_id"] = agg.ID
	h.logger.Warn(report.Message, fields)

	h.metrics.RecordError(report.ErrorType, report.Code)
	h.saveReport(ctx, agg.ID, report)
	return report
}

// classify returns err as an AppError, wrapping unknown failures as System
// errors. A request snapshot from ctx is attached when the error lacks one.
func (h *ErrorHandler) classify(ctx context.Context, err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.RequestContext == nil {
			appErr = appErr.WithRequestFrom(ctx)
		}
		return appErr
	}

	msg := "unhandled error"
	if err != nil {
		msg = err.Error()
	}
	sysErr := NewSystemError(msg, err)
	return sysErr.WithRequestFrom(ctx)
}

func (h *ErrorHandler) saveReport(ctx context.Context, id string, report *ErrorReport) {
	if h.store == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := h.store.SaveReport(ctx, id, report); err != nil {
		h.logger.Debug("Failed to persist error report", map[string]interface{}{
			"operation": "error_handler.save_report",
			"error_id":  id,
			"error":     err.Error(),
		})
	}
}

// panicReport is the last-resort path when handling itself panics. The
// collaborator that panicked may panic again here, so every call is fenced.
func (h *ErrorHandler) panicReport(r interface{}) *ErrorReport {
	sysErr := NewSystemError(fmt.Sprintf("error handling panicked: %v", r), nil)
	report := sysErr.Report()
	func() {
		defer func() { recover() }()
		h.logger.Error(report.Message, map[string]interface{}{
			"operation":   "error_handler.handle",
			"error_type":  report.ErrorType,
			"stack_trace": string(debug.Stack()),
		})
	}()
	func() {
		defer func() { recover() }()
		h.metrics.RecordError(report.ErrorType, report.Code)
	}()
	return report
}
