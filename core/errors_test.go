package core

import (
	"errors"
	"fmt"
	"testing"
)

// Test sentinel error relationships
func TestSentinelErrorWrapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		target   error
		expected bool
	}{
		{
			name:     "circuit breaker open implies service unavailable",
			err:      ErrCircuitBreakerOpen,
			target:   ErrServiceUnavailable,
			expected: true,
		},
		{
			name:     "wrapped circuit breaker open still matches",
			err:      fmt.Errorf("calling payments-api: %w", ErrCircuitBreakerOpen),
			target:   ErrServiceUnavailable,
			expected: true,
		},
		{
			name:     "connection failure is not a circuit rejection",
			err:      ErrConnectionFailed,
			target:   ErrCircuitBreakerOpen,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.expected {
				t.Errorf("errors.Is() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// Test IsNotFound function
func TestIsNotFound(t *testing.T) {
	if !IsNotFound(ErrReportNotFound) {
		t.Error("ErrReportNotFound should match")
	}
	if !IsNotFound(fmt.Errorf("report abc123: %w", ErrReportNotFound)) {
		t.Error("wrapped ErrReportNotFound should match")
	}
	if IsNotFound(ErrConnectionFailed) {
		t.Error("ErrConnectionFailed should not match")
	}
	if IsNotFound(nil) {
		t.Error("nil should not match")
	}
}

// Test IsConfigurationError function
func TestIsConfigurationError(t *testing.T) {
	if !IsConfigurationError(ErrInvalidConfiguration) {
		t.Error("ErrInvalidConfiguration should match")
	}
	if !IsConfigurationError(ErrMissingConfiguration) {
		t.Error("ErrMissingConfiguration should match")
	}
	if !IsConfigurationError(NewConfigurationError("redis.url", "malformed")) {
		t.Error("configuration AppError should match")
	}
	if IsConfigurationError(errors.New("random")) {
		t.Error("unrelated errors should not match")
	}
}

// Test IsServiceUnavailable function
func TestIsServiceUnavailable(t *testing.T) {
	if !IsServiceUnavailable(ErrServiceUnavailable) {
		t.Error("ErrServiceUnavailable should match")
	}
	if !IsServiceUnavailable(ErrCircuitBreakerOpen) {
		t.Error("ErrCircuitBreakerOpen should match")
	}
	if !IsServiceUnavailable(ErrConnectionFailed) {
		t.Error("ErrConnectionFailed should match")
	}
	if IsServiceUnavailable(ErrTimeout) {
		t.Error("ErrTimeout should not match")
	}
}

// Test IsValidation function
func TestIsValidation(t *testing.T) {
	if !IsValidation(NewValidationError("price", "required")) {
		t.Error("validation AppError should match")
	}
	if !IsValidation(fmt.Errorf("checking form: %w", NewValidationError("price", "required"))) {
		t.Error("wrapped validation AppError should match")
	}
	if IsValidation(NewCacheError("get", "k", nil)) {
		t.Error("cache errors should not match")
	}
	if IsValidation(nil) {
		t.Error("nil should not match")
	}
}
