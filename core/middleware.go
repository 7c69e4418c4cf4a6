package core

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	return rw.ResponseWriter.Write(b)
}

// Flush implements http.Flusher to support SSE streaming.
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// RequestContextMiddleware captures the request's URL, method, remote address,
// user agent, and authenticated user id into the request context. Error
// handling downstream attaches this snapshot to every report it produces.
//
// Install this before any middleware or handler that may classify errors.
func RequestContextMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rc := CaptureRequestContext(r)
			ctx := ContextWithRequestContext(r.Context(), rc)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggingMiddleware logs HTTP requests and responses with structured logging.
// In development mode (devMode=true), it logs all requests.
// In production mode (devMode=false), it only logs non-2xx responses and slow requests (>1s).
func LoggingMiddleware(logger Logger, devMode bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				written:        false,
			}

			// Call next handler
			next.ServeHTTP(wrapped, r)

			// Calculate duration
			duration := time.Since(start)

			// Determine if we should log this request
			shouldLog := devMode || // Always log in dev mode
				wrapped.statusCode >= 400 || // Log errors
				duration > time.Second // Log slow requests

			if shouldLog && logger != nil {
				logData := map[string]interface{}{
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      wrapped.statusCode,
					"duration_ms": duration.Milliseconds(),
					"remote_addr": r.RemoteAddr,
					"user_agent":  r.UserAgent(),
				}

				// Add query params if present
				if r.URL.RawQuery != "" {
					logData["query"] = r.URL.RawQuery
				}

				// Add content length if present
				if r.ContentLength > 0 {
					logData["content_length"] = r.ContentLength
				}

				// Log at appropriate level
				if wrapped.statusCode >= 500 {
					logger.ErrorWithContext(r.Context(), "HTTP request error", logData)
				} else if wrapped.statusCode >= 400 {
					logger.WarnWithContext(r.Context(), "HTTP request client error", logData)
				} else if duration > time.Second {
					logger.WarnWithContext(r.Context(), "HTTP request slow", logData)
				} else {
					logger.InfoWithContext(r.Context(), "HTTP request", logData)
				}
			}

			// Request metrics flow through the bridge when telemetry is
			// installed, and are dropped otherwise
			if registry := GetGlobalMetricsRegistry(); registry != nil {
				status := strconv.Itoa(wrapped.statusCode)
				registry.Histogram("nextprop.http.request.duration_ms",
					float64(duration.Milliseconds()), "method", r.Method, "status", status)
				registry.Counter("nextprop.http.request.total", "method", r.Method, "status", status)
				if wrapped.statusCode >= 500 {
					registry.Counter("nextprop.http.request.errors", "method", r.Method)
				}
			}
		})
	}
}

// RecoveryMiddleware converts handler panics into classified error reports
// and a safe JSON response. The panic is routed through the error handler,
// which records metrics and persists the report, and the client receives the
// sanitized payload for the report's error kind.
func RecoveryMiddleware(handler *ErrorHandler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					// http.ErrAbortHandler is the sentinel for deliberately
					// aborted responses, re-panic so the server handles it
					if rec == http.ErrAbortHandler {
						panic(rec)
					}

					err, ok := rec.(error)
					if !ok {
						err = fmt.Errorf("panic: %v", rec)
					}

					appErr := NewSystemError("request handler panicked", err).
						WithRequestFrom(r.Context())
					handler.Handle(r.Context(), appErr, map[string]interface{}{
						"path": r.URL.Path,
					})

					writeErrorResponse(w, appErr)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// writeErrorResponse writes the sanitized user payload for an error.
// Internal details never reach the client, only validation and auth
// messages pass through verbatim.
func writeErrorResponse(w http.ResponseWriter, e *AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatusForKind(e.Kind))
	// Encode errors are unrecoverable at this point, the status is already sent
	_ = json.NewEncoder(w).Encode(UserPayload(e))
}
