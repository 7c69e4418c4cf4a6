package resilience

import (
	"context"
	"sort"
	"sync"

	"github.com/EfeObus/NextProperty-sub003/core"
)

// CircuitBreakerRegistry manages one circuit breaker per downstream service.
// Breakers are created lazily on first use with the registry defaults, or
// explicitly via Configure when a service needs its own thresholds. All
// methods are safe for concurrent use.
type CircuitBreakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker

	defaults  core.CircuitBreakerConfig
	logger    core.Logger
	metrics   MetricsCollector
	listeners []StateChangeListener
}

// RegistryConfig holds the shared defaults applied to lazily created
// breakers.
type RegistryConfig struct {
	// Defaults supplies threshold, timeout, and half-open settings for
	// breakers the registry creates on demand.
	Defaults core.CircuitBreakerConfig

	Logger  core.Logger
	Metrics MetricsCollector
}

// NewCircuitBreakerRegistry creates an empty registry. A nil config uses
// production defaults for every breaker.
func NewCircuitBreakerRegistry(config *RegistryConfig) *CircuitBreakerRegistry {
	r := &CircuitBreakerRegistry{
		breakers: make(map[string]*CircuitBreaker),
	}
	if config != nil {
		r.defaults = config.Defaults
		r.logger = config.Logger
		r.metrics = config.Metrics
	}
	if r.logger == nil {
		r.logger = &core.NoOpLogger{}
	} else {
		r.logger = componentLogger(r.logger, "resilience/registry")
	}
	if r.metrics == nil {
		r.metrics = &noopMetrics{}
	}
	return r
}

// Get returns the breaker for the named service, creating it with the
// registry defaults on first use.
func (r *CircuitBreakerRegistry) Get(service string) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[service]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[service]; ok {
		return cb
	}

	config := ConfigFromCore(service, r.defaults)
	config.Logger = r.logger
	config.Metrics = r.metrics
	cb, err := NewCircuitBreaker(config)
	if err != nil {
		// Registry defaults come from validated application config, so this
		// path means the defaults were corrupted in memory. Fall back to the
		// package defaults rather than returning nil to every caller.
		r.logger.Error("Falling back to default circuit breaker config", map[string]interface{}{
			"operation": "registry_fallback",
			"service":   service,
			"error":     err.Error(),
		})
		fallback := DefaultConfig()
		fallback.Name = service
		fallback.Logger = r.logger
		fallback.Metrics = r.metrics
		cb, _ = NewCircuitBreaker(fallback)
	}
	r.attachListenersLocked(cb)
	r.breakers[service] = cb
	return cb
}

// Configure registers a breaker for the named service with explicit
// settings, replacing any existing breaker. The config's Name is set to the
// service name; Logger and Metrics fall back to the registry's when unset.
func (r *CircuitBreakerRegistry) Configure(service string, config *CircuitBreakerConfig) (*CircuitBreaker, error) {
	if config == nil {
		config = DefaultConfig()
	}
	config.Name = service
	if config.Logger == nil {
		config.Logger = r.logger
	}
	if config.Metrics == nil {
		config.Metrics = r.metrics
	}

	cb, err := NewCircuitBreaker(config)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.breakers[service]; exists {
		r.logger.Warn("Replacing existing circuit breaker", map[string]interface{}{
			"operation": "registry_replace",
			"service":   service,
		})
	}
	r.attachListenersLocked(cb)
	r.breakers[service] = cb
	return cb, nil
}

// Call runs fn through the named service's breaker, creating the breaker on
// first use.
func (r *CircuitBreakerRegistry) Call(ctx context.Context, service string, fn func() error) error {
	return r.Get(service).Execute(ctx, fn)
}

// OnStateChange registers a listener applied to every breaker in the
// registry, including ones created later.
func (r *CircuitBreakerRegistry) OnStateChange(listener StateChangeListener) {
	if listener == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, listener)
	for _, cb := range r.breakers {
		cb.OnStateChange(listener)
	}
	r.mu.Unlock()
}

func (r *CircuitBreakerRegistry) attachListenersLocked(cb *CircuitBreaker) {
	for _, listener := range r.listeners {
		cb.OnStateChange(listener)
	}
}

// Names returns the registered service names in sorted order.
func (r *CircuitBreakerRegistry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Snapshots returns the metrics snapshot of every registered breaker keyed
// by service name, for health and admin endpoints.
func (r *CircuitBreakerRegistry) Snapshots() map[string]map[string]interface{} {
	r.mu.RLock()
	breakers := make(map[string]*CircuitBreaker, len(r.breakers))
	for name, cb := range r.breakers {
		breakers[name] = cb
	}
	r.mu.RUnlock()

	snapshots := make(map[string]map[string]interface{}, len(breakers))
	for name, cb := range breakers {
		snapshots[name] = cb.GetMetrics()
	}
	return snapshots
}

// ResetAll returns every registered breaker to closed. Intended for
// operational tooling and tests.
func (r *CircuitBreakerRegistry) ResetAll() {
	r.mu.RLock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	r.mu.RUnlock()

	for _, cb := range breakers {
		cb.Reset()
	}
}
