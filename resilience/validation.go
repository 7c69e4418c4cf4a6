package resilience

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/EfeObus/NextProperty-sub003/core"
	"github.com/EfeObus/NextProperty-sub003/telemetry"
)

// ValidationRule declares the checks applied to one named parameter.
// Checks run in a fixed order and only the first violation per parameter is
// reported: required, type, min, max, min length, max length.
type ValidationRule struct {
	// Required rejects the call when the parameter is absent or nil.
	Required bool

	// Type names the expected type: "string", "int", "float", "bool",
	// "map", or "list". Empty means any type. JSON-decoded integral
	// floats satisfy "int".
	Type string

	// Min and Max bound numeric values inclusively. They only apply when
	// the value is numeric; pair them with Type to reject non-numbers.
	Min *float64
	Max *float64

	// MinLength and MaxLength bound string and list lengths inclusively.
	MinLength *int
	MaxLength *int

	// Sanitize strips script-tag patterns from string values before they
	// reach the wrapped call.
	Sanitize bool
}

var (
	scriptBlockPattern  = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	scriptOrphanPattern = regexp.MustCompile(`(?i)</?script[^>]*>`)
)

// sanitizeString removes script-tag patterns. Best effort only; rendering
// layers still escape output.
func sanitizeString(s string) string {
	out := scriptBlockPattern.ReplaceAllString(s, "")
	out = scriptOrphanPattern.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}

// ValidationGuard validates a parameter map against declared rules before
// invoking the wrapped call. All parameters are checked even after one
// fails, so a caller fixing a form sees every problem at once. On any
// violation the wrapped call is never invoked.
//
// With a handler wired, violations are reported through it exactly once: a
// single violation via Handle, several via HandleValidationBatch which logs
// one warning for the whole batch. Callers receiving the returned error
// must not report it again.
type ValidationGuard struct {
	rules            map[string]ValidationRule
	handler          *core.ErrorHandler
	logger           core.Logger
	telemetryEnabled bool
}

// NewValidationGuard creates a guard for the given rule set. The handler
// may be nil, in which case violations are returned without being reported.
func NewValidationGuard(rules map[string]ValidationRule, handler *core.ErrorHandler) *ValidationGuard {
	return &ValidationGuard{
		rules:   rules,
		handler: handler,
		logger:  &core.NoOpLogger{},
	}
}

// SetLogger replaces the guard's logger.
func (g *ValidationGuard) SetLogger(logger core.Logger) {
	g.logger = componentLogger(logger, "resilience/validation")
}

// Execute validates params and invokes fn with the sanitized copy when all
// rules pass. On violation fn is not invoked and a Validation-kind error is
// returned.
func (g *ValidationGuard) Execute(ctx context.Context, params map[string]interface{}, fn func(map[string]interface{}) error) error {
	cleaned, err := g.Validate(ctx, params)
	if err != nil {
		return err
	}
	return fn(cleaned)
}

// Validate checks params against the rule set. It returns a sanitized copy
// of the parameters on success. On failure it returns the violation as an
// AppError: the field error itself when one rule failed, or an aggregate
// with code VALIDATION_FAILED when several did.
func (g *ValidationGuard) Validate(ctx context.Context, params map[string]interface{}) (map[string]interface{}, error) {
	cleaned := make(map[string]interface{}, len(params))
	for k, v := range params {
		cleaned[k] = v
	}

	names := make([]string, 0, len(g.rules))
	for name := range g.rules {
		names = append(names, name)
	}
	sort.Strings(names)

	var violations []*core.AppError
	for _, name := range names {
		rule := g.rules[name]
		value, present := params[name]
		if violation := checkRule(name, rule, value, present); violation != nil {
			violations = append(violations, violation)
			if g.telemetryEnabled {
				telemetry.Counter(telemetry.MetricValidationFailures, "param", name)
			}
			continue
		}
		if rule.Sanitize {
			if s, ok := value.(string); ok && present {
				cleaned[name] = sanitizeString(s)
			}
		}
	}

	if len(violations) == 0 {
		g.logger.Debug("Validation passed", map[string]interface{}{
			"operation":   "validation_pass",
			"param_count": len(params),
		})
		return cleaned, nil
	}
	return nil, g.report(ctx, violations)
}

func (g *ValidationGuard) report(ctx context.Context, violations []*core.AppError) error {
	if len(violations) == 1 {
		if g.handler != nil {
			g.handler.Handle(ctx, violations[0], nil)
		}
		return violations[0]
	}

	if g.handler != nil {
		g.handler.HandleValidationBatch(ctx, violations)
	}

	fieldErrors := make([]map[string]interface{}, 0, len(violations))
	for _, v := range violations {
		field, _ := v.Details["field"].(string)
		fieldErrors = append(fieldErrors, map[string]interface{}{
			"field":   field,
			"message": v.Message,
			"code":    v.Code,
		})
	}
	agg := core.NewAppError(core.KindValidation, core.BatchValidationCode,
		fmt.Sprintf("validation failed for %d field(s)", len(violations)))
	return agg.WithDetail("errors", fieldErrors)
}

// checkRule returns the first violation for one parameter, or nil.
func checkRule(name string, rule ValidationRule, value interface{}, present bool) *core.AppError {
	if !present || value == nil {
		if rule.Required {
			return core.NewValidationError(name, fmt.Sprintf("%s is required", name))
		}
		return nil
	}

	if rule.Type != "" && !matchesType(value, rule.Type) {
		return core.NewValidationError(name, fmt.Sprintf("%s must be of type %s", name, rule.Type))
	}

	if num, ok := numericValue(value); ok {
		if rule.Min != nil && num < *rule.Min {
			return core.NewValidationError(name,
				fmt.Sprintf("%s must be at least %s", name, formatBound(*rule.Min)))
		}
		if rule.Max != nil && num > *rule.Max {
			return core.NewValidationError(name,
				fmt.Sprintf("%s must be at most %s", name, formatBound(*rule.Max)))
		}
	}

	if length, unit, ok := lengthOf(value); ok {
		if rule.MinLength != nil && length < *rule.MinLength {
			return core.NewValidationError(name,
				fmt.Sprintf("%s must be at least %d %s", name, *rule.MinLength, unit))
		}
		if rule.MaxLength != nil && length > *rule.MaxLength {
			return core.NewValidationError(name,
				fmt.Sprintf("%s must be at most %d %s", name, *rule.MaxLength, unit))
		}
	}
	return nil
}

// matchesType checks a value against a declared type name. Unknown type
// names are not enforced.
func matchesType(value interface{}, typeName string) bool {
	switch strings.ToLower(typeName) {
	case "string", "str":
		_, ok := value.(string)
		return ok
	case "int", "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64:
			return v == float64(int64(v))
		case float32:
			return v == float32(int32(v))
		default:
			return false
		}
	case "float", "number":
		_, ok := numericValue(value)
		return ok
	case "bool", "boolean":
		_, ok := value.(bool)
		return ok
	case "map", "object", "dict":
		_, ok := value.(map[string]interface{})
		return ok
	case "list", "array":
		_, ok := value.([]interface{})
		return ok
	default:
		return true
	}
}

func numericValue(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func lengthOf(value interface{}) (int, string, bool) {
	switch v := value.(type) {
	case string:
		return len(v), "characters", true
	case []interface{}:
		return len(v), "items", true
	default:
		return 0, "", false
	}
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
