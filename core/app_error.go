package core

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Application Error Taxonomy
// ============================================================================
//
// This file defines the closed set of error kinds used across the platform
// and the structured AppError type that carries them. Route handlers, the
// data layer, external API clients and the valuation models all raise errors
// through these constructors; the error handler consumes them exactly once.
//
// What's here:
//   - ErrorKind: shared vocabulary for error classification
//   - AppError: structured error with kind-specific details
//   - RequestContext: ambient request snapshot attached at construction
//   - HTTPStatusForKind: utility for consistent HTTP status codes
//
// AppError values are immutable after construction: the WithX helpers return
// copies so an error propagating up the stack is never mutated underneath a
// concurrent reader.

// ErrorKind classifies an application error. The set is closed: new kinds are
// a contract change for everything consuming error reports.
type ErrorKind string

const (
	// KindValidation indicates malformed or out-of-range caller input
	KindValidation ErrorKind = "VALIDATION_ERROR"

	// KindDatabase indicates a query or connection failure in the data layer
	KindDatabase ErrorKind = "DATABASE_ERROR"

	// KindExternalAPI indicates a third-party call failure
	KindExternalAPI ErrorKind = "EXTERNAL_API_ERROR"

	// KindAuthentication indicates bad credentials or an invalid token
	KindAuthentication ErrorKind = "AUTHENTICATION_ERROR"

	// KindAuthorization indicates insufficient permission for an operation
	KindAuthorization ErrorKind = "AUTHORIZATION_ERROR"

	// KindCache indicates a cache backend failure (typically degraded to a miss)
	KindCache ErrorKind = "CACHE_ERROR"

	// KindMLModel indicates a valuation model inference or loading failure
	KindMLModel ErrorKind = "ML_MODEL_ERROR"

	// KindDataProcessing indicates a pipeline stage failure
	KindDataProcessing ErrorKind = "DATA_PROCESSING_ERROR"

	// KindConfiguration indicates a missing or invalid configuration key.
	// Configuration errors are fatal at startup and never retried.
	KindConfiguration ErrorKind = "CONFIGURATION_ERROR"

	// KindSystem is the fallback for unclassified failures. System errors
	// always carry a captured stack trace.
	KindSystem ErrorKind = "SYSTEM_ERROR"
)

// previewLimit caps how much of a query, response body or model input is
// copied into error details. Previews exist for debugging, not archival.
const previewLimit = 200

// RequestContext is a snapshot of the ambient HTTP request taken when an
// error is constructed during request handling. It is nil for errors raised
// outside a request (startup, background jobs).
type RequestContext struct {
	URL        string `json:"url"`
	Method     string `json:"method"`
	RemoteAddr string `json:"remote_addr"`
	UserAgent  string `json:"user_agent"`
	UserID     string `json:"user_id,omitempty"`
}

// requestContextKey is the context key under which middleware stores the
// captured RequestContext for the duration of a request.
type requestContextKey struct{}

// userIDKey is the context key under which an authentication layer may store
// the caller identity.
type userIDKey struct{}

// CaptureRequestContext builds a RequestContext snapshot from an HTTP request.
// Returns nil for a nil request.
func CaptureRequestContext(r *http.Request) *RequestContext {
	if r == nil {
		return nil
	}
	rc := &RequestContext{
		URL:        r.URL.String(),
		Method:     r.Method,
		RemoteAddr: r.RemoteAddr,
		UserAgent:  r.UserAgent(),
	}
	if id, ok := r.Context().Value(userIDKey{}).(string); ok {
		rc.UserID = id
	}
	return rc
}

// ContextWithRequestContext stores a request snapshot in the context so error
// constructors and the handler can find it without holding the *http.Request.
func ContextWithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// RequestContextFromContext returns the ambient request snapshot, or nil when
// no request is in flight.
func RequestContextFromContext(ctx context.Context) *RequestContext {
	if ctx == nil {
		return nil
	}
	rc, _ := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc
}

// ContextWithUserID records the authenticated caller identity so request
// snapshots include it.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// AppError is the structured error raised across the platform. Every kind
// carries its own detail payload (see the constructors); the common fields
// are stable for all kinds.
type AppError struct {
	// Kind classifies the error within the closed taxonomy
	Kind ErrorKind

	// Code is a machine-readable identifier, defaulting to the kind name
	Code string

	// Message is a human-readable description
	Message string

	// Details holds kind-specific structured context
	Details map[string]interface{}

	// Timestamp records construction time in UTC
	Timestamp time.Time

	// RequestContext is the ambient request snapshot, nil outside requests
	RequestContext *RequestContext

	// ID is an opaque identifier surfaced to end users for support
	// correlation. Reports are stored under this id.
	ID string

	// Err is the wrapped cause, if any
	Err error

	stack []byte
}

// newAppError builds the common fields. Construction never fails.
func newAppError(kind ErrorKind, message string, err error) *AppError {
	return &AppError{
		Kind:      kind,
		Code:      string(kind),
		Message:   message,
		Details:   make(map[string]interface{}),
		Timestamp: time.Now().UTC(),
		ID:        uuid.NewString(),
		Err:       err,
	}
}

// NewAppError creates an error of an arbitrary kind with an explicit code.
// Prefer the kind-specific constructors; this exists for callers that carry
// their own code vocabulary.
func NewAppError(kind ErrorKind, code, message string) *AppError {
	e := newAppError(kind, message, nil)
	if code != "" {
		e.Code = code
	}
	return e
}

// NewValidationError creates a validation error for a single field.
func NewValidationError(field, message string) *AppError {
	e := newAppError(KindValidation, message, nil)
	e.Details["field"] = field
	return e
}

// NewDatabaseError creates a database error. The query is truncated to a
// preview; never log full statements with bound values.
func NewDatabaseError(operation, table, query string, err error) *AppError {
	e := newAppError(KindDatabase, fmt.Sprintf("database %s failed", operation), err)
	e.Details["operation"] = operation
	e.Details["table"] = table
	if query != "" {
		e.Details["query_preview"] = preview(query)
	}
	return e
}

// NewExternalAPIError creates an error for a failed third-party call.
func NewExternalAPIError(apiName, endpoint string, statusCode int, responseBody string, err error) *AppError {
	e := newAppError(KindExternalAPI, fmt.Sprintf("call to %s failed", apiName), err)
	e.Details["api_name"] = apiName
	e.Details["endpoint"] = endpoint
	if statusCode != 0 {
		e.Details["status_code"] = statusCode
	}
	if responseBody != "" {
		e.Details["response_preview"] = preview(responseBody)
	}
	return e
}

// NewAuthenticationError creates an authentication failure.
func NewAuthenticationError(message string) *AppError {
	return newAppError(KindAuthentication, message, nil)
}

// NewAuthorizationError creates an authorization failure.
func NewAuthorizationError(message string) *AppError {
	return newAppError(KindAuthorization, message, nil)
}

// NewCacheError creates a cache backend error. Callers typically treat these
// as cache misses and fall through to the source of truth.
func NewCacheError(operation, key string, err error) *AppError {
	e := newAppError(KindCache, fmt.Sprintf("cache %s failed", operation), err)
	e.Details["operation"] = operation
	e.Details["cache_key"] = key
	return e
}

// NewMLModelError creates a model inference or loading error. The input is
// reduced to a preview so reports never embed full feature vectors.
func NewMLModelError(modelName, operation string, input interface{}, err error) *AppError {
	e := newAppError(KindMLModel, fmt.Sprintf("model %s failed during %s", modelName, operation), err)
	e.Details["model_name"] = modelName
	e.Details["operation"] = operation
	if input != nil {
		e.Details["input_preview"] = preview(fmt.Sprintf("%v", input))
	}
	return e
}

// NewDataProcessingError creates a pipeline stage error.
func NewDataProcessingError(stage string, sample interface{}, err error) *AppError {
	e := newAppError(KindDataProcessing, fmt.Sprintf("processing failed at stage %s", stage), err)
	e.Details["stage"] = stage
	if sample != nil {
		e.Details["sample"] = preview(fmt.Sprintf("%v", sample))
	}
	return e
}

// NewConfigurationError creates a configuration error for a named key.
func NewConfigurationError(key, message string) *AppError {
	e := newAppError(KindConfiguration, message, ErrInvalidConfiguration)
	e.Details["config_key"] = key
	return e
}

// NewSystemError wraps an unclassified failure. A stack trace is captured at
// construction so boundary logging can include it.
func NewSystemError(message string, err error) *AppError {
	e := newAppError(KindSystem, message, err)
	e.stack = debug.Stack()
	return e
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for use with errors.Is/As
func (e *AppError) Unwrap() error {
	return e.Err
}

// Retryable reports whether work failing with this kind may be safely
// attempted again. Input, auth and configuration failures are deterministic;
// model inference is excluded because a retried partial inference is not
// guaranteed idempotent.
func (e *AppError) Retryable() bool {
	switch e.Kind {
	case KindValidation, KindAuthentication, KindAuthorization, KindConfiguration, KindMLModel:
		return false
	default:
		return true
	}
}

// StackTrace returns the stack captured at construction, empty for kinds
// other than System.
func (e *AppError) StackTrace() string {
	return string(e.stack)
}

// WithCode returns a copy with a caller-specific code.
func (e *AppError) WithCode(code string) *AppError {
	c := e.clone()
	c.Code = code
	return c
}

// WithDetail returns a copy with an extra detail entry.
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	c := e.clone()
	c.Details[key] = value
	return c
}

// WithRequestContext returns a copy carrying the given request snapshot.
func (e *AppError) WithRequestContext(rc *RequestContext) *AppError {
	c := e.clone()
	c.RequestContext = rc
	return c
}

// WithRequestFrom returns a copy carrying the request snapshot stored in ctx,
// or the receiver unchanged when ctx has none.
func (e *AppError) WithRequestFrom(ctx context.Context) *AppError {
	rc := RequestContextFromContext(ctx)
	if rc == nil {
		return e
	}
	return e.WithRequestContext(rc)
}

func (e *AppError) clone() *AppError {
	details := make(map[string]interface{}, len(e.Details))
	for k, v := range e.Details {
		details[k] = v
	}
	c := *e
	c.Details = details
	return &c
}

// preview truncates a string for inclusion in error details.
func preview(s string) string {
	if len(s) <= previewLimit {
		return s
	}
	return s[:previewLimit] + "..."
}

// HTTPStatusForKind returns the appropriate HTTP status code for an error
// kind. Outer layers use this when mapping reports onto API responses.
//
// Mapping:
//   - KindValidation     → 400 Bad Request
//   - KindAuthentication → 401 Unauthorized
//   - KindAuthorization  → 403 Forbidden
//   - KindDatabase       → 500 Internal Server Error
//   - KindExternalAPI    → 502 Bad Gateway
//   - KindCache          → 500 Internal Server Error
//   - Unknown            → 500 Internal Server Error
func HTTPStatusForKind(kind ErrorKind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest // 400
	case KindAuthentication:
		return http.StatusUnauthorized // 401
	case KindAuthorization:
		return http.StatusForbidden // 403
	case KindExternalAPI:
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}
