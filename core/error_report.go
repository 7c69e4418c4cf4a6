package core

import (
	"encoding/json"
	"time"
)

// ErrorReport is the serializable form of an AppError. This is the only
// representation outer layers (route handlers, API responses, the report
// store) may depend on, and its field set is stable across releases.
type ErrorReport struct {
	ErrorType      string                 `json:"error_type"`
	Message        string                 `json:"message"`
	Code           string                 `json:"code"`
	Details        map[string]interface{} `json:"details"`
	Timestamp      string                 `json:"timestamp"`
	RequestContext *RequestContext        `json:"request_context"`
}

// Report produces the external representation of the error. The returned
// report owns its own details map; mutating it does not touch the error.
func (e *AppError) Report() *ErrorReport {
	details := make(map[string]interface{}, len(e.Details))
	for k, v := range e.Details {
		details[k] = v
	}
	return &ErrorReport{
		ErrorType:      string(e.Kind),
		Message:        e.Message,
		Code:           e.Code,
		Details:        details,
		Timestamp:      e.Timestamp.Format(time.RFC3339Nano),
		RequestContext: e.RequestContext,
	}
}

// MarshalJSON keeps report serialization in one place so the schema cannot
// drift between the log sink and the report store.
func (r *ErrorReport) MarshalJSON() ([]byte, error) {
	type alias ErrorReport
	return json.Marshal((*alias)(r))
}

// LogFields flattens the report into structured log fields. The logging sink
// contract mirrors the report schema field for field.
func (r *ErrorReport) LogFields() map[string]interface{} {
	fields := map[string]interface{}{
		"error_type": r.ErrorType,
		"code":       r.Code,
		"details":    r.Details,
		"timestamp":  r.Timestamp,
	}
	if r.RequestContext != nil {
		fields["request_context"] = r.RequestContext
	}
	return fields
}

// UserFacingError is what an end user sees for non-validation failures: a
// generic message plus the opaque id support staff can resolve to a full
// report. Raw messages and stack traces never reach users.
type UserFacingError struct {
	Message string `json:"message"`
	ErrorID string `json:"error_id"`
	Field   string `json:"field,omitempty"`
}

// UserPayload maps an error onto its user-visible form. Validation and auth
// kinds keep their specific messages (they describe the caller's own input);
// every other kind collapses to a generic message.
func UserPayload(e *AppError) UserFacingError {
	switch e.Kind {
	case KindValidation:
		field, _ := e.Details["field"].(string)
		return UserFacingError{Message: e.Message, ErrorID: e.ID, Field: field}
	case KindAuthentication, KindAuthorization:
		return UserFacingError{Message: e.Message, ErrorID: e.ID}
	default:
		return UserFacingError{Message: "Something went wrong. Please try again later.", ErrorID: e.ID}
	}
}
