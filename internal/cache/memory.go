package cache

import (
	"context"
	"sync"
	"time"
)

// entry is a stored value with its expiry.
type entry struct {
	value     string
	expiresAt time.Time
}

// Memory is a thread-safe in-process Store with per-entry TTL. It is the
// fallback when no Redis URL is configured, and the store of choice in tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get returns the value for key, or ErrMiss. Expired entries are removed.
func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return "", ErrMiss
	}
	if m.now().After(e.expiresAt) {
		m.mu.Lock()
		// Re-check under write lock; another writer may have refreshed it.
		if cur, ok := m.entries[key]; ok && m.now().After(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return "", ErrMiss
	}
	return e.value, nil
}

// Set stores value under key. Last writer wins.
func (m *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{
		value:     value,
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

// Len reports the number of stored entries, including not-yet-evicted
// expired ones.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

var _ Store = (*Memory)(nil)
