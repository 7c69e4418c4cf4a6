package core

import (
	"context"
	"errors"
	"fmt"
)

// Standard sentinel errors for comparison using errors.Is()
// These are generic errors that can be wrapped with additional context
var (
	// Availability errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrCircuitBreakerOpen = fmt.Errorf("circuit breaker is open: %w", ErrServiceUnavailable)

	// Configuration errors
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrMissingConfiguration = errors.New("missing required configuration")

	// State errors
	ErrAlreadyInstalled = errors.New("already installed")
	ErrNotInitialized   = errors.New("not initialized")

	// Operation errors
	ErrTimeout         = errors.New("operation timeout")
	ErrContextCanceled = errors.New("context canceled")

	// Storage errors
	ErrConnectionFailed = errors.New("connection failed")
	ErrReportNotFound   = errors.New("error report not found")
)

// IsRetryable reports whether an error is worth retrying. Typed application
// errors decide by kind; untyped errors are assumed transient so plain
// failures from drivers and clients still get retried. Context cancellation
// and circuit rejections are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrCircuitBreakerOpen) {
		return false
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable()
	}
	return true
}

// IsNotFound checks if an error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrReportNotFound)
}

// IsConfigurationError checks if an error is configuration-related
func IsConfigurationError(err error) bool {
	if errors.Is(err, ErrInvalidConfiguration) || errors.Is(err, ErrMissingConfiguration) {
		return true
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == KindConfiguration
	}
	return false
}

// IsServiceUnavailable checks if an error signals a rejected or unreachable
// dependency (circuit open, connection refused)
func IsServiceUnavailable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrConnectionFailed)
}

// IsValidation checks if an error is a validation failure
func IsValidation(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == KindValidation
	}
	return false
}
