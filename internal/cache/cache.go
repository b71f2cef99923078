// Package cache provides a small generic in-memory cache with per-entry TTL.
package cache

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time // zero means no expiry
}

func (e entry[V]) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Cache is safe for concurrent use.
type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	items   map[K]entry[V]
	stop    chan struct{}
	stopped sync.Once
}

// New creates a cache. A positive cleanupInterval starts a janitor goroutine
// that evicts expired entries; Close stops it.
func New[K comparable, V any](cleanupInterval time.Duration) *Cache[K, V] {
	c := &Cache[K, V]{
		items: make(map[K]entry[V]),
		stop:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go c.janitor(cleanupInterval)
	}
	return c
}

// Get returns the value for key if present and not expired.
func (c *Cache[K, V]) Get(_ context.Context, key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()

	if !ok || e.expired(time.Now()) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores value under key. ttl <= 0 keeps the entry until deleted.
func (c *Cache[K, V]) Set(_ context.Context, key K, value V, ttl time.Duration) {
	e := entry[V]{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}

	c.mu.Lock()
	c.items[key] = e
	c.mu.Unlock()
}

// Delete removes key.
func (c *Cache[K, V]) Delete(_ context.Context, key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included until evicted.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the janitor. The cache stays usable.
func (c *Cache[K, V]) Close() {
	c.stopped.Do(func() { close(c.stop) })
}

func (c *Cache[K, V]) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.mu.Lock()
			for k, e := range c.items {
				if e.expired(now) {
					delete(c.items, k)
				}
			}
			c.mu.Unlock()
		}
	}
}
