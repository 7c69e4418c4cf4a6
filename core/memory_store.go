package core

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory implementation of the Memory interface.
// Entries carry an optional TTL and the store enforces a maximum size by
// evicting the entry closest to expiry when full.
type MemoryStore struct {
	mu      sync.RWMutex
	store   map[string]memoryEntry
	maxSize int
	logger  Logger
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// NewMemoryStore creates a new in-memory store. A maxSize of 0 means
// unbounded.
func NewMemoryStore(maxSize int) *MemoryStore {
	return &MemoryStore{
		store:   make(map[string]memoryEntry),
		maxSize: maxSize,
		logger:  &NoOpLogger{},
	}
}

// SetLogger configures the logger for this memory store
func (m *MemoryStore) SetLogger(logger Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// Get retrieves a value from memory. Missing and expired keys both return
// an empty string with no error.
func (m *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.store[key]
	if !exists {
		m.logger.Debug("Cache miss", map[string]interface{}{
			"operation": "cache_get",
			"key":       key,
		})
		return "", nil
	}

	// Check if expired
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.logger.Debug("Cache entry expired", map[string]interface{}{
			"operation":  "cache_get",
			"key":        key,
			"expired_at": entry.expiresAt.Format(time.RFC3339),
		})
		return "", nil
	}

	return entry.value, nil
}

// Set stores a value in memory with optional TTL
func (m *MemoryStore) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.store[key]; !exists && m.maxSize > 0 && len(m.store) >= m.maxSize {
		m.evictLocked()
	}

	entry := memoryEntry{
		value: value,
	}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	m.store[key] = entry

	m.logger.Debug("Cache set", map[string]interface{}{
		"operation":  "cache_set",
		"key":        key,
		"value_size": len(value),
		"has_ttl":    ttl > 0,
	})
	return nil
}

// Delete removes a value from memory
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, existed := m.store[key]
	delete(m.store, key)

	m.logger.Debug("Cache delete", map[string]interface{}{
		"operation": "cache_delete",
		"key":       key,
		"existed":   existed,
	})
	return nil
}

// Exists checks if a key exists in memory
func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.store[key]
	if !exists {
		return false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		return false, nil
	}
	return true, nil
}

// Len returns the number of entries including any not yet swept expired ones.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

// evictLocked removes expired entries, and if none were expired, the entry
// closest to expiry. Unexpiring entries are only evicted when nothing else
// is available. Caller must hold the write lock.
func (m *MemoryStore) evictLocked() {
	now := time.Now()
	removed := false
	for key, entry := range m.store {
		if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
			delete(m.store, key)
			removed = true
		}
	}
	if removed {
		return
	}

	var victim string
	var victimExpiry time.Time
	for key, entry := range m.store {
		if entry.expiresAt.IsZero() {
			if victim == "" {
				victim = key
			}
			continue
		}
		if victimExpiry.IsZero() || entry.expiresAt.Before(victimExpiry) {
			victim = key
			victimExpiry = entry.expiresAt
		}
	}
	if victim != "" {
		delete(m.store, victim)
		m.logger.Debug("Cache evicted entry", map[string]interface{}{
			"operation": "cache_evict",
			"key":       victim,
		})
	}
}
