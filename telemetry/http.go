// Package telemetry provides distributed tracing HTTP instrumentation.
//
// This file provides HTTP middleware and client instrumentation built on
// OpenTelemetry. The middleware extracts W3C TraceContext headers from
// incoming requests and creates a span per request; the traced client
// injects those headers into outgoing requests, so error reports and logs
// on both sides of a call correlate to the same trace.
//
// Call telemetry.Initialize() before using these functions. Without
// initialization they fall back to no-op tracers (safe, but no traces).
package telemetry

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TracingMiddlewareConfig configures the tracing middleware behavior.
type TracingMiddlewareConfig struct {
	// ExcludedPaths lists URL paths to exclude from tracing.
	// Useful for health checks and metrics endpoints.
	ExcludedPaths []string

	// SpanNameFormatter customizes how span names are generated.
	// If nil, uses "HTTP {method} {path}".
	SpanNameFormatter func(operation string, r *http.Request) string
}

// TracingMiddleware returns HTTP middleware that extracts trace context
// from incoming requests and creates a span for each request.
//
// Example:
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/api/valuations", valuationHandler)
//	traced := telemetry.TracingMiddleware("valuation-api")(mux)
//	http.ListenAndServe(":8080", traced)
func TracingMiddleware(serviceName string) func(http.Handler) http.Handler {
	return TracingMiddlewareWithConfig(serviceName, nil)
}

// TracingMiddlewareWithConfig returns HTTP middleware with custom
// configuration; see TracingMiddleware for basic usage.
//
// Example:
//
//	config := &telemetry.TracingMiddlewareConfig{
//	    ExcludedPaths: []string{"/health", "/metrics"},
//	}
//	traced := telemetry.TracingMiddlewareWithConfig("valuation-api", config)(mux)
func TracingMiddlewareWithConfig(serviceName string, config *TracingMiddlewareConfig) func(http.Handler) http.Handler {
	// Propagators are set during Initialize(); otelhttp reads the global
	// via otel.GetTextMapPropagator(), so nothing to configure here.
	var opts []otelhttp.Option

	if config != nil && len(config.ExcludedPaths) > 0 {
		pathSet := make(map[string]bool)
		for _, path := range config.ExcludedPaths {
			pathSet[path] = true
		}
		opts = append(opts, otelhttp.WithFilter(func(r *http.Request) bool {
			// Return false to exclude from tracing
			return !pathSet[r.URL.Path]
		}))
	}

	if config != nil && config.SpanNameFormatter != nil {
		opts = append(opts, otelhttp.WithSpanNameFormatter(config.SpanNameFormatter))
	} else {
		opts = append(opts, otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			return "HTTP " + r.Method + " " + r.URL.Path
		}))
	}

	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName, opts...)
	}
}

// NewTracedHTTPClient creates an HTTP client that automatically propagates
// trace context to downstream services via W3C TraceContext headers.
// Pass nil to use http.DefaultTransport. The returned client is safe for
// concurrent use and should be reused for connection pooling.
func NewTracedHTTPClient(baseTransport http.RoundTripper) *http.Client {
	if baseTransport == nil {
		baseTransport = http.DefaultTransport
	}

	return &http.Client{
		Transport: otelhttp.NewTransport(baseTransport),
	}
}

// NewTracedHTTPClientWithTransport creates a traced HTTP client with a
// pooled transport tuned for service-to-service calls. Pass nil for the
// default pooling configuration.
func NewTracedHTTPClientWithTransport(transport *http.Transport) *http.Client {
	if transport == nil {
		transport = &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			DisableKeepAlives:   false,
			ForceAttemptHTTP2:   true,
		}
	}

	return &http.Client{
		Transport: otelhttp.NewTransport(transport),
	}
}
