package resilience

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/EfeObus/NextProperty-sub003/core"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func propertyRules() map[string]ValidationRule {
	return map[string]ValidationRule{
		"address":   {Required: true, Type: "string", MinLength: intPtr(5), MaxLength: intPtr(200), Sanitize: true},
		"price":     {Required: true, Type: "float", Min: floatPtr(0)},
		"bedrooms":  {Type: "int", Min: floatPtr(0), Max: floatPtr(20)},
		"amenities": {Type: "list", MaxLength: intPtr(50)},
	}
}

func TestValidationGuardValidInput(t *testing.T) {
	guard := NewValidationGuard(propertyRules(), nil)

	var received map[string]interface{}
	err := guard.Execute(context.Background(), map[string]interface{}{
		"address":  "120 Bremner Blvd, Toronto",
		"price":    749000.0,
		"bedrooms": 2,
	}, func(params map[string]interface{}) error {
		received = params
		return nil
	})
	if err != nil {
		t.Fatalf("Expected valid input to pass, got %v", err)
	}
	if received == nil {
		t.Fatal("Wrapped function was not invoked")
	}
	if received["price"] != 749000.0 {
		t.Errorf("Parameters not passed through, got %v", received["price"])
	}
}

func TestValidationGuardRuleMatrix(t *testing.T) {
	cases := []struct {
		name    string
		rules   map[string]ValidationRule
		params  map[string]interface{}
		message string
	}{
		{
			"required missing",
			map[string]ValidationRule{"price": {Required: true}},
			map[string]interface{}{},
			"price is required",
		},
		{
			"required nil",
			map[string]ValidationRule{"price": {Required: true}},
			map[string]interface{}{"price": nil},
			"price is required",
		},
		{
			"wrong type string",
			map[string]ValidationRule{"address": {Type: "string"}},
			map[string]interface{}{"address": 42},
			"address must be of type string",
		},
		{
			"wrong type int",
			map[string]ValidationRule{"bedrooms": {Type: "int"}},
			map[string]interface{}{"bedrooms": "three"},
			"bedrooms must be of type int",
		},
		{
			"fractional float fails int",
			map[string]ValidationRule{"bedrooms": {Type: "int"}},
			map[string]interface{}{"bedrooms": 2.5},
			"bedrooms must be of type int",
		},
		{
			"below min",
			map[string]ValidationRule{"price": {Min: floatPtr(0)}},
			map[string]interface{}{"price": -100.0},
			"price must be at least 0",
		},
		{
			"above max",
			map[string]ValidationRule{"bedrooms": {Max: floatPtr(20)}},
			map[string]interface{}{"bedrooms": 21},
			"bedrooms must be at most 20",
		},
		{
			"below min length",
			map[string]ValidationRule{"postal_code": {MinLength: intPtr(6)}},
			map[string]interface{}{"postal_code": "M5V"},
			"postal_code must be at least 6 characters",
		},
		{
			"above max length",
			map[string]ValidationRule{"city": {MaxLength: intPtr(4)}},
			map[string]interface{}{"city": "Toronto"},
			"city must be at most 4 characters",
		},
		{
			"list too long",
			map[string]ValidationRule{"amenities": {MaxLength: intPtr(2)}},
			map[string]interface{}{"amenities": []interface{}{"pool", "gym", "sauna"}},
			"amenities must be at most 2 items",
		},
		{
			"type checked before length",
			map[string]ValidationRule{"address": {Type: "string", MinLength: intPtr(10)}},
			map[string]interface{}{"address": 42},
			"address must be of type string",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			guard := NewValidationGuard(tc.rules, nil)
			invoked := false
			err := guard.Execute(context.Background(), tc.params, func(map[string]interface{}) error {
				invoked = true
				return nil
			})
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if invoked {
				t.Error("Wrapped function must not run on violation")
			}
			var appErr *core.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("Expected AppError, got %T", err)
			}
			if appErr.Kind != core.KindValidation {
				t.Errorf("Expected validation kind, got %s", appErr.Kind)
			}
			if appErr.Message != tc.message {
				t.Errorf("Expected message %q, got %q", tc.message, appErr.Message)
			}
		})
	}
}

func TestValidationGuardAcceptedValues(t *testing.T) {
	cases := []struct {
		name   string
		rules  map[string]ValidationRule
		params map[string]interface{}
	}{
		{
			"integral float satisfies int",
			map[string]ValidationRule{"bedrooms": {Type: "int"}},
			map[string]interface{}{"bedrooms": 3.0},
		},
		{
			"int satisfies float",
			map[string]ValidationRule{"price": {Type: "float"}},
			map[string]interface{}{"price": 500000},
		},
		{
			"optional missing",
			map[string]ValidationRule{"bedrooms": {Type: "int", Min: floatPtr(0)}},
			map[string]interface{}{},
		},
		{
			"bounds inclusive",
			map[string]ValidationRule{"bedrooms": {Min: floatPtr(0), Max: floatPtr(20)}},
			map[string]interface{}{"bedrooms": 20},
		},
		{
			"length bounds inclusive",
			map[string]ValidationRule{"postal_code": {MinLength: intPtr(6), MaxLength: intPtr(7)}},
			map[string]interface{}{"postal_code": "M5V2L7"},
		},
		{
			"min on non-numeric ignored",
			map[string]ValidationRule{"note": {Min: floatPtr(5)}},
			map[string]interface{}{"note": "hi"},
		},
		{
			"unknown type ignored",
			map[string]ValidationRule{"extra": {Type: "uuid"}},
			map[string]interface{}{"extra": 42},
		},
		{
			"unruled params pass",
			map[string]ValidationRule{"price": {Type: "float"}},
			map[string]interface{}{"price": 1.0, "free_form": "<anything>"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			guard := NewValidationGuard(tc.rules, nil)
			if _, err := guard.Validate(context.Background(), tc.params); err != nil {
				t.Errorf("Expected pass, got %v", err)
			}
		})
	}
}

func TestValidationGuardAllParamsChecked(t *testing.T) {
	logger := &TestLogger{}
	recorder := &captureRecorder{}
	handler := core.NewErrorHandler(core.ErrorHandlerConfig{Logger: logger, Metrics: recorder})
	guard := NewValidationGuard(propertyRules(), handler)

	// Three independent violations in one submission.
	invoked := false
	err := guard.Execute(context.Background(), map[string]interface{}{
		"address":  "abc",
		"bedrooms": -1,
	}, func(map[string]interface{}) error {
		invoked = true
		return nil
	})
	if err == nil {
		t.Fatal("Expected batch validation error")
	}
	if invoked {
		t.Error("Wrapped function must not run")
	}

	var appErr *core.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("Expected AppError, got %T", err)
	}
	if appErr.Code != core.BatchValidationCode {
		t.Errorf("Expected code %s, got %s", core.BatchValidationCode, appErr.Code)
	}
	if appErr.Message != "validation failed for 3 field(s)" {
		t.Errorf("Unexpected aggregate message %q", appErr.Message)
	}

	fieldErrors, ok := appErr.Details["errors"].([]map[string]interface{})
	if !ok {
		t.Fatalf("Expected field error list, got %T", appErr.Details["errors"])
	}
	if len(fieldErrors) != 3 {
		t.Fatalf("Expected 3 field errors, got %d", len(fieldErrors))
	}
	// Violations are reported in parameter-name order.
	wantFields := []string{"address", "bedrooms", "price"}
	for i, fe := range fieldErrors {
		if fe["field"] != wantFields[i] {
			t.Errorf("Field error %d: expected %s, got %v", i, wantFields[i], fe["field"])
		}
	}

	// The whole batch produces exactly one warning, not one per field.
	if got := len(logger.GetLogsByLevel("WARN")); got != 1 {
		t.Errorf("Expected 1 warning for the batch, got %d", got)
	}
	if !logger.HasLogWithMessage("validation failed for 3 field(s)") {
		t.Error("Expected aggregate message in the log")
	}
	records := recorder.all()
	if len(records) != 1 || records[0] != "VALIDATION_ERROR:VALIDATION_FAILED" {
		t.Errorf("Expected a single batch metric record, got %v", records)
	}
}

func TestValidationGuardSingleViolation(t *testing.T) {
	logger := &TestLogger{}
	recorder := &captureRecorder{}
	handler := core.NewErrorHandler(core.ErrorHandlerConfig{Logger: logger, Metrics: recorder})
	guard := NewValidationGuard(map[string]ValidationRule{
		"price": {Required: true},
	}, handler)

	_, err := guard.Validate(context.Background(), map[string]interface{}{})
	if err == nil {
		t.Fatal("Expected violation")
	}

	var appErr *core.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("Expected AppError, got %T", err)
	}
	if appErr.Code != "VALIDATION_ERROR" {
		t.Errorf("Single violation keeps the field error code, got %s", appErr.Code)
	}
	if appErr.Details["field"] != "price" {
		t.Errorf("Expected field detail, got %v", appErr.Details["field"])
	}

	warnings := logger.GetLogsByLevel("WARN")
	if len(warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %d", len(warnings))
	}
	if !strings.Contains(warnings[0].Message, "price is required") {
		t.Errorf("Expected field message in log, got %q", warnings[0].Message)
	}
	records := recorder.all()
	if len(records) != 1 || records[0] != "VALIDATION_ERROR:VALIDATION_ERROR" {
		t.Errorf("Expected one field metric record, got %v", records)
	}
}

func TestValidationGuardFirstViolationPerParam(t *testing.T) {
	guard := NewValidationGuard(map[string]ValidationRule{
		"postal_code": {Type: "string", MinLength: intPtr(6), MaxLength: intPtr(7)},
	}, nil)

	// The value violates both the type and length rules; only the first
	// check in order is reported.
	_, err := guard.Validate(context.Background(), map[string]interface{}{
		"postal_code": 12,
	})
	if err == nil {
		t.Fatal("Expected violation")
	}
	var appErr *core.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("Expected AppError, got %T", err)
	}
	if appErr.Message != "postal_code must be of type string" {
		t.Errorf("Expected the type violation only, got %q", appErr.Message)
	}
}

func TestValidationGuardSanitize(t *testing.T) {
	guard := NewValidationGuard(map[string]ValidationRule{
		"description": {Type: "string", Sanitize: true},
	}, nil)

	original := map[string]interface{}{
		"description": "  Great view<script>alert('xss')</script> of the lake </script> ",
		"untouched":   "<script>left alone</script>",
	}
	cleaned, err := guard.Validate(context.Background(), original)
	if err != nil {
		t.Fatalf("Expected pass, got %v", err)
	}

	got, _ := cleaned["description"].(string)
	if strings.Contains(strings.ToLower(got), "script") {
		t.Errorf("Script tags not stripped: %q", got)
	}
	if got != "Great view of the lake" {
		t.Errorf("Unexpected sanitized value %q", got)
	}
	// Only ruled parameters are sanitized, and the caller's map is never
	// mutated.
	if cleaned["untouched"] != original["untouched"] {
		t.Error("Unruled parameter was modified")
	}
	if original["description"] != "  Great view<script>alert('xss')</script> of the lake </script> " {
		t.Error("Input map was mutated")
	}
}

func TestValidationGuardSanitizeCaseInsensitive(t *testing.T) {
	cases := map[string]string{
		"<SCRIPT>alert(1)</SCRIPT>x":             "x",
		"<ScRiPt type='x'>\nmultiline\n</sCrIpT>": "",
		"plain text":                              "plain text",
	}
	for in, want := range cases {
		if got := sanitizeString(in); got != want {
			t.Errorf("sanitizeString(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidationGuardComposesWithRetry(t *testing.T) {
	guard := NewValidationGuard(map[string]ValidationRule{
		"price": {Required: true},
	}, nil)
	executor := NewRetryExecutor(&RetryConfig{MaxRetries: 3})

	// A validation failure surfacing through a retry loop is final: the
	// submission needs fixing, not repeating.
	calls := 0
	err := executor.Execute(context.Background(), "save-listing", func() error {
		calls++
		return guard.Execute(context.Background(), map[string]interface{}{}, func(map[string]interface{}) error {
			return nil
		})
	})
	if !core.IsValidation(err) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Validation failures must not be retried, got %d calls", calls)
	}
}
