package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	data map[string]memoryEntry
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:  ttl,
		now:  time.Now,
		data: make(map[string]memoryEntry),
	}
}

// Get returns the value stored under key unless it has expired.
func (m *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.data[key]
	if !ok {
		return "", false
	}
	if !entry.expires.IsZero() && !m.now().Before(entry.expires) {
		delete(m.data, key)
		return "", false
	}
	return entry.value, true
}

// Set stores value under key.
func (m *MemoryCache) Set(_ context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := memoryEntry{value: value}
	if m.ttl > 0 {
		entry.expires = m.now().Add(m.ttl)
	}
	m.data[key] = entry
	return nil
}

// Delete removes key.
func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
