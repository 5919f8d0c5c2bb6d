package secrets

import (
	"sync"
	"time"
)

type cacheEntry struct {
	value      string
	expiration time.Time
}

// InMemoryCache is a TTL cache with an optional size limit. When full, the
// entry closest to expiry is evicted.
type InMemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// NewInMemoryCache creates a cache whose entries live for ttl. A maxSize of
// 0 means unlimited.
func NewInMemoryCache(ttl time.Duration, maxSize int) *InMemoryCache {
	return &InMemoryCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get returns the cached value for key if it has not expired.
func (c *InMemoryCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if c.now().After(e.expiration) {
		delete(c.entries, key)
		return "", false
	}
	return e.value, true
}

// Set stores value under key.
func (c *InMemoryCache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.evictLocked()
	}
	c.entries[key] = cacheEntry{value: value, expiration: c.now().Add(c.ttl)}
}

// Len returns the number of live entries.
func (c *InMemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for _, e := range c.entries {
		if !now.After(e.expiration) {
			n++
		}
	}
	return n
}

func (c *InMemoryCache) evictLocked() {
	var (
		oldestKey string
		oldest    time.Time
	)
	for k, e := range c.entries {
		if oldestKey == "" || e.expiration.Before(oldest) {
			oldestKey, oldest = k, e.expiration
		}
	}
	delete(c.entries, oldestKey)
}
