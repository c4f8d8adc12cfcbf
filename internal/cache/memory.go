package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// cacheEntry carries a per-key expiry; the LRU's own TTL is only an upper bound.
type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCache is an in-process Cache backed by a size-bounded expirable LRU.
// Use this for development/testing or single-instance deployments.
type MemoryCache struct {
	lru *expirable.LRU[string, cacheEntry]
	now func() time.Time
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache holds at most size entries, none of them longer than maxTTL.
func NewMemoryCache(size int, maxTTL time.Duration) *MemoryCache {
	if size <= 0 {
		size = 1024
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, cacheEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

// Get retrieves a value by key.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	entry, ok := c.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	if !c.now().Before(entry.expiresAt) {
		c.lru.Remove(key)
		return nil, ErrCacheMiss
	}

	result := make([]byte, len(entry.value))
	copy(result, entry.value)
	return result, nil
}

// Set stores a value with the given TTL.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	c.lru.Add(key, cacheEntry{value: valueCopy, expiresAt: c.now().Add(ttl)})
	return nil
}

// Delete removes a value by key.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.lru.Remove(key)
	return nil
}

// GetOrSet retrieves a value or computes and stores it if missing.
func (c *MemoryCache) GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error) {
	return getOrSet(ctx, c, "memory", key, ttl, fn)
}

// Clear removes all entries from the cache.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.lru.Purge()
	return nil
}
