package scenario

import (
	"context"
	"sync"
	"time"

	"github.com/liamcoop/dewater/dewater"
)

type cacheEntry struct {
	result   *dewater.Result
	cachedAt time.Time
}

// InMemoryResultCache is a simple in-memory implementation of ResultCache.
// Thread-safe for concurrent access.
type InMemoryResultCache struct {
	entries map[string]cacheEntry
	config  CacheConfig
	mu      sync.RWMutex
	now     func() time.Time
}

// NewInMemoryResultCache creates a new in-memory result cache
func NewInMemoryResultCache(config CacheConfig) *InMemoryResultCache {
	return &InMemoryResultCache{
		entries: make(map[string]cacheEntry),
		config:  config,
		now:     time.Now,
	}
}

// Get retrieves a cached result.
// Returns false if the key is unknown or expired.
func (c *InMemoryResultCache) Get(_ context.Context, key string) (*dewater.Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.config.TTL > 0 && c.now().Sub(e.cachedAt) > c.config.TTL {
		return nil, false
	}

	return copyResult(e.result), true
}

// Set stores a result, evicting the oldest entry when full
func (c *InMemoryResultCache) Set(_ context.Context, key string, res *dewater.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.config.MaxEntries > 0 && len(c.entries) >= c.config.MaxEntries {
		c.evictOldest()
	}

	c.entries[key] = cacheEntry{result: copyResult(res), cachedAt: c.now()}
}

// Invalidate drops one entry
func (c *InMemoryResultCache) Invalidate(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

// Len returns the number of stored entries, expired ones included
func (c *InMemoryResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// evictOldest must be called with the write lock held
func (c *InMemoryResultCache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.cachedAt.Before(oldest) {
			oldestKey, oldest = k, e.cachedAt
		}
	}
	delete(c.entries, oldestKey)
}

// copyResult copies the slices so external modifications do not leak in or out
func copyResult(res *dewater.Result) *dewater.Result {
	c := *res
	c.Cells = append([]dewater.GridCell(nil), res.Cells...)
	c.Warnings = make([]dewater.Warning, len(res.Warnings))
	copy(c.Warnings, res.Warnings)
	c.Summary.Flows = append([]float64(nil), res.Summary.Flows...)
	return &c
}
