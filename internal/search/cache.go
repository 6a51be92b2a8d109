package search

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"locations-server/internal/location"

	"github.com/golang/groupcache/lru"
)

// Cache stores search results by request key. Caches are advisory: a miss
// or an error falls through to the engine.
type Cache interface {
	Name() string
	Get(ctx context.Context, key string) ([]location.Place, bool, error)
	Set(ctx context.Context, key string, places []location.Place) error
	Clear(ctx context.Context) error
}

// CacheKey identifies a request after defaults are applied. The query is
// case folded since matching is case-insensitive.
func (r Request) CacheKey() string {
	n := r.MaxResults
	if n <= 0 {
		n = DefaultMaxResults(r.Query)
	}
	return fmt.Sprintf("%d:%d:%s", int(r.Strategy), n, location.Fold(r.Query))
}

type memoryEntry struct {
	places  []location.Place
	expires time.Time
}

// MemoryCache is a bounded in-process LRU with a per-entry TTL.
type MemoryCache struct {
	mu  sync.Mutex
	lru *lru.Cache
	ttl time.Duration
	now func() time.Time
}

func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		lru: lru.New(size),
		ttl: ttl,
		now: time.Now,
	}
}

func (c *MemoryCache) Name() string { return "memory" }

func (c *MemoryCache) Get(ctx context.Context, key string) ([]location.Place, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	entry := v.(memoryEntry)
	if c.ttl > 0 && c.now().After(entry.expires) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	return slices.Clone(entry.places), true, nil
}

func (c *MemoryCache) Set(ctx context.Context, key string, places []location.Place) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(key, memoryEntry{places: slices.Clone(places), expires: c.now().Add(c.ttl)})
	return nil
}

func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Clear()
	return nil
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
