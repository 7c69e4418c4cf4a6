package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTestPropagation installs the composite propagator and a recording
// tracer provider, mirroring what Initialize does in production.
func setupTestPropagation(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	otel.SetTracerProvider(tp)
	return recorder
}

func TestTracingMiddlewareBasicOperation(t *testing.T) {
	recorder := setupTestPropagation(t)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The request context carries the server span
		if !HasTraceContext(r.Context()) {
			t.Error("handler context has no trace context")
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	traced := TracingMiddleware("valuation-api")(handler)

	req := httptest.NewRequest("GET", "/api/valuations", nil)
	rec := httptest.NewRecorder()
	traced.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); body != "OK" {
		t.Errorf("body = %q, want OK", body)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if got := spans[0].Name(); got != "HTTP GET /api/valuations" {
		t.Errorf("span name = %q, want 'HTTP GET /api/valuations'", got)
	}
}

func TestTracingMiddlewareExcludedPaths(t *testing.T) {
	recorder := setupTestPropagation(t)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	config := &TracingMiddlewareConfig{
		ExcludedPaths: []string{"/health", "/metrics"},
	}
	traced := TracingMiddlewareWithConfig("valuation-api", config)(handler)

	// Excluded paths are served but produce no spans
	for _, path := range []string{"/health", "/metrics"} {
		rec := httptest.NewRecorder()
		traced.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, rec.Code)
		}
	}
	if got := len(recorder.Ended()); got != 0 {
		t.Fatalf("excluded paths produced %d spans, want 0", got)
	}

	// Other paths still trace
	rec := httptest.NewRecorder()
	traced.ServeHTTP(rec, httptest.NewRequest("GET", "/api/valuations", nil))
	if got := len(recorder.Ended()); got != 1 {
		t.Errorf("traced path produced %d spans, want 1", got)
	}
}

func TestTracingMiddlewareCustomSpanNames(t *testing.T) {
	recorder := setupTestPropagation(t)

	config := &TracingMiddlewareConfig{
		SpanNameFormatter: func(operation string, r *http.Request) string {
			return "valuation " + r.Method
		},
	}
	traced := TracingMiddlewareWithConfig("valuation-api", config)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	rec := httptest.NewRecorder()
	traced.ServeHTTP(rec, httptest.NewRequest("POST", "/api/valuations", nil))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if got := spans[0].Name(); got != "valuation POST" {
		t.Errorf("span name = %q, want 'valuation POST'", got)
	}
}

func TestTracedClientPropagatesContext(t *testing.T) {
	setupTestPropagation(t)

	// Downstream server captures the propagation headers it receives
	var receivedTraceparent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedTraceparent = r.Header.Get("traceparent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewTracedHTTPClient(nil)

	// Start a span so the client has something to propagate
	tracer := otel.Tracer("test-tracer")
	ctx, span := tracer.Start(context.Background(), "upstream-operation")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, "GET", server.URL, nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if receivedTraceparent == "" {
		t.Error("traceparent header not propagated to downstream service")
	}
}

func TestTracedClientDefaults(t *testing.T) {
	client := NewTracedHTTPClient(nil)
	if client.Transport == nil {
		t.Fatal("client has no transport")
	}

	pooled := NewTracedHTTPClientWithTransport(nil)
	if pooled.Transport == nil {
		t.Fatal("pooled client has no transport")
	}
}
