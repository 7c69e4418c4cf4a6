package core

import (
	"context"
	"sync/atomic"
)

// MetricsRegistry is the bridge between core components and a metrics
// backend. The telemetry package registers itself here so that loggers,
// handlers, and middleware can emit metrics without importing telemetry.
type MetricsRegistry interface {
	// Counter increments a counter metric by 1 with optional label pairs.
	Counter(name string, labels ...string)

	// Gauge records a point-in-time value.
	Gauge(name string, value float64, labels ...string)

	// Histogram records a distribution sample.
	Histogram(name string, value float64, labels ...string)

	// EmitWithContext records a value with context-derived labels attached.
	EmitWithContext(ctx context.Context, name string, value float64, labels ...string)

	// GetBaggage extracts propagated labels from the context.
	GetBaggage(ctx context.Context) map[string]string
}

// registryHolder wraps the interface so atomic.Value sees a single concrete
// type even when the registry is nil or changes implementation.
type registryHolder struct {
	registry MetricsRegistry
}

var globalMetricsRegistry atomic.Value

// SetMetricsRegistry installs the process-wide metrics registry. Passing nil
// disconnects core components from metrics emission.
func SetMetricsRegistry(registry MetricsRegistry) {
	globalMetricsRegistry.Store(&registryHolder{registry: registry})
}

// GetGlobalMetricsRegistry returns the installed registry, or nil when
// telemetry is not initialized.
func GetGlobalMetricsRegistry() MetricsRegistry {
	holder, ok := globalMetricsRegistry.Load().(*registryHolder)
	if !ok || holder == nil {
		return nil
	}
	return holder.registry
}
