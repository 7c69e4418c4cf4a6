package telemetry

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/EfeObus/NextProperty-sub003/core"
)

// OTelProvider implements core.Telemetry with OpenTelemetry.
// Traces export through the configured exporter (OTLP gRPC in production,
// stdout in development); metrics record through cached instruments.
type OTelProvider struct {
	tracer        trace.Tracer
	meter         metric.Meter
	traceProvider *sdktrace.TracerProvider
	metrics       *MetricInstruments

	// kinds maps declared metric names to their instrument kind so
	// RecordMetric routes counters and histograms correctly.
	// Undeclared names record as histograms.
	kinds sync.Map // map[string]string
}

// NewOTelProvider creates an OpenTelemetry provider exporting OTLP over
// gRPC to the given endpoint.
func NewOTelProvider(serviceName string, endpoint string) (*OTelProvider, error) {
	return NewOTelProviderWithConfig(Config{
		ServiceName: serviceName,
		Endpoint:    endpoint,
		Provider:    ProviderOTLP,
	})
}

// NewOTelProviderWithConfig creates a provider from a full telemetry config.
// Provider selection: ProviderStdout pretty-prints spans for local runs,
// anything else exports OTLP gRPC. SamplingRate in (0,1) installs a
// parent-based ratio sampler; otherwise every span is sampled.
func NewOTelProviderWithConfig(config Config) (*OTelProvider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch config.Provider {
	case ProviderStdout:
		exporter, err = stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
	default:
		exporter, err = otlptracegrpc.New(context.Background(),
			otlptracegrpc.WithEndpoint(config.Endpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
	}

	sampler := sdktrace.AlwaysSample()
	if config.SamplingRate > 0 && config.SamplingRate < 1 {
		sampler = sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SamplingRate))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	// Set global providers; TraceContext plus Baggage so request-scoped
	// labels propagate across service boundaries
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &OTelProvider{
		tracer:        tp.Tracer("nextprop-telemetry"),
		meter:         otel.Meter("nextprop-telemetry"),
		traceProvider: tp,
		metrics:       NewMetricInstruments("nextprop-telemetry"),
	}, nil
}

// declareKind records the instrument kind for a metric name.
func (o *OTelProvider) declareKind(name, kind string) {
	o.kinds.Store(name, kind)
}

// StartSpan starts a new telemetry span
func (o *OTelProvider) StartSpan(ctx context.Context, name string) (context.Context, core.Span) {
	ctx, span := o.tracer.Start(ctx, name)
	return ctx, &otelSpan{span: span}
}

// RecordMetric records a metric through the cached instruments. Names
// declared as counters add to a counter; everything else records into a
// histogram, which also covers gauges.
func (o *OTelProvider) RecordMetric(name string, value float64, labels map[string]string) {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}

	ctx := context.Background()
	if kind, ok := o.kinds.Load(name); ok && kind.(string) == "counter" {
		_ = o.metrics.RecordCounter(ctx, name, int64(value), metric.WithAttributes(attrs...))
		return
	}
	_ = o.metrics.RecordHistogram(ctx, name, value, metric.WithAttributes(attrs...))
}

// Shutdown flushes pending spans and shuts down the provider
func (o *OTelProvider) Shutdown(ctx context.Context) error {
	if err := o.metrics.Shutdown(); err != nil {
		return err
	}
	return o.traceProvider.Shutdown(ctx)
}

// otelSpan wraps an OpenTelemetry span to implement core.Span
type otelSpan struct {
	span trace.Span
}

func (s *otelSpan) End() {
	s.span.End()
}

func (s *otelSpan) SetAttribute(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		s.span.SetAttributes(attribute.String(key, v))
	case int:
		s.span.SetAttributes(attribute.Int(key, v))
	case int64:
		s.span.SetAttributes(attribute.Int64(key, v))
	case float64:
		s.span.SetAttributes(attribute.Float64(key, v))
	case bool:
		s.span.SetAttributes(attribute.Bool(key, v))
	default:
		s.span.SetAttributes(attribute.String(key, fmt.Sprintf("%v", v)))
	}
}

func (s *otelSpan) RecordError(err error) {
	s.span.RecordError(err)
}
