package cache

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache defines the interface for caching operations.
// This abstraction allows swapping between memory cache (single instance)
// and Redis cache (several instances) without changing business logic.
type Cache interface {
	// Get retrieves a value by key. Returns ErrCacheMiss if not found.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value by key.
	Delete(ctx context.Context, key string) error

	// GetOrSet retrieves a value or computes and stores it if missing.
	GetOrSet(ctx context.Context, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error)

	// Clear removes all entries from the cache.
	Clear(ctx context.Context) error
}

// Common cache errors
type CacheError string

func (e CacheError) Error() string { return string(e) }

const (
	// ErrCacheMiss indicates the key was not found in cache.
	ErrCacheMiss CacheError = "cache miss"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lostfound_cache_hits_total",
		Help: "Cache lookups served from the cache",
	}, []string{"backend"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lostfound_cache_misses_total",
		Help: "Cache lookups that had to compute the value",
	}, []string{"backend"})
)

// getOrSet is the shared GetOrSet flow. Failing to store the computed value is not an error.
func getOrSet(ctx context.Context, c Cache, backend, key string, ttl time.Duration, fn func() ([]byte, error)) ([]byte, error) {
	if value, err := c.Get(ctx, key); err == nil {
		cacheHits.WithLabelValues(backend).Inc()
		return value, nil
	}
	cacheMisses.WithLabelValues(backend).Inc()

	value, err := fn()
	if err != nil {
		return nil, err
	}

	_ = c.Set(ctx, key, value, ttl)
	return value, nil
}
