package telemetry

import (
	"sync"
	"time"
)

const (
	// cardinalitySweepInterval is how often stale values are swept out.
	cardinalitySweepInterval = 5 * time.Minute

	// cardinalityStaleAfter is how long an unused value stays tracked.
	cardinalityStaleAfter = 10 * time.Minute
)

// CardinalityLimiter prevents unbounded metric cardinality. Each label has a
// configured limit on distinct values; once a metric reaches the limit, new
// values are replaced with "other" while already-tracked values pass through.
//
// Stale values are swept opportunistically during CheckAndLimit, so a value
// that stops appearing eventually frees its slot. No background goroutine.
type CardinalityLimiter struct {
	mu        sync.Mutex
	limits    map[string]int
	seen      map[string]map[string]time.Time // "metric.label" -> value -> last seen
	lastSweep time.Time
}

// NewCardinalityLimiter creates a limiter with per-label value limits.
// Labels without a configured limit pass through unchanged.
func NewCardinalityLimiter(limits map[string]int) *CardinalityLimiter {
	return &CardinalityLimiter{
		limits:    limits,
		seen:      make(map[string]map[string]time.Time),
		lastSweep: time.Now(),
	}
}

// CheckAndLimit returns the value to use for the given metric label. If the
// label's limit is reached and the value is new, "other" is returned.
func (c *CardinalityLimiter) CheckAndLimit(metric, label, value string) string {
	limit, hasLimit := c.limits[label]
	if !hasLimit || limit <= 0 {
		return value
	}
	key := metric + "." + label
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastSweep) >= cardinalitySweepInterval {
		c.sweepLocked(now)
	}

	values, ok := c.seen[key]
	if !ok {
		values = make(map[string]time.Time)
		c.seen[key] = values
	}
	if _, tracked := values[value]; tracked {
		values[value] = now
		return value
	}
	if len(values) >= limit {
		return "other"
	}
	values[value] = now
	return value
}

// CurrentCardinality returns the number of distinct tracked values across
// all metric labels.
func (c *CardinalityLimiter) CurrentCardinality() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, values := range c.seen {
		total += len(values)
	}
	return total
}

// MaxCardinality returns the sum of all configured limits.
func (c *CardinalityLimiter) MaxCardinality() int {
	total := 0
	for _, limit := range c.limits {
		total += limit
	}
	return total
}

// sweepLocked drops values not seen within cardinalityStaleAfter.
// Caller must hold c.mu.
func (c *CardinalityLimiter) sweepLocked(now time.Time) {
	cutoff := now.Add(-cardinalityStaleAfter)
	for key, values := range c.seen {
		for value, lastSeen := range values {
			if lastSeen.Before(cutoff) {
				delete(values, value)
			}
		}
		if len(values) == 0 {
			delete(c.seen, key)
		}
	}
	c.lastSweep = now
}

// Stop clears all tracking state. Called during telemetry shutdown.
func (c *CardinalityLimiter) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = make(map[string]map[string]time.Time)
}
