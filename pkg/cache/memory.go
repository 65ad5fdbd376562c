package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process Client used when Redis is not configured or
// unreachable, and in tests.
type MemoryCache struct {
	mu    sync.RWMutex
	store map[string]cacheItem
	now   func() time.Time
}

type cacheItem struct {
	value      string
	expiration time.Time // zero means no expiry
}

// NewMemoryCache creates a new in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		store: make(map[string]cacheItem),
		now:   time.Now,
	}
}

func (m *MemoryCache) expired(item cacheItem) bool {
	return !item.expiration.IsZero() && !m.now().Before(item.expiration)
}

// Get retrieves a value from memory cache.
func (m *MemoryCache) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	item, exists := m.store[key]
	m.mu.RUnlock()

	if !exists {
		return "", ErrMiss
	}

	if m.expired(item) {
		m.mu.Lock()
		delete(m.store, key)
		m.mu.Unlock()
		return "", ErrMiss
	}

	return item.value, nil
}

// Set stores a value in memory cache. A zero expiration keeps the key until deleted.
func (m *MemoryCache) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	item := cacheItem{value: value}
	if expiration > 0 {
		item.expiration = m.now().Add(expiration)
	}

	m.mu.Lock()
	m.store[key] = item
	m.mu.Unlock()
	return nil
}

// Delete removes keys from memory cache.
func (m *MemoryCache) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	for _, key := range keys {
		delete(m.store, key)
	}
	m.mu.Unlock()
	return nil
}

// Exists counts the keys that are present and unexpired.
func (m *MemoryCache) Exists(ctx context.Context, keys ...string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := int64(0)
	for _, key := range keys {
		if item, exists := m.store[key]; exists && !m.expired(item) {
			count++
		}
	}
	return count, nil
}

// Ping always succeeds.
func (m *MemoryCache) Ping(ctx context.Context) error { return nil }

// Backend reports "memory".
func (m *MemoryCache) Backend() string { return BackendMemory }

// Close drops every entry.
func (m *MemoryCache) Close() error {
	m.mu.Lock()
	m.store = make(map[string]cacheItem)
	m.mu.Unlock()
	return nil
}
