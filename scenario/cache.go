package scenario

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/liamcoop/dewater/dewater"
)

// ResultCache stores computed grids keyed by request fingerprint.
// This allows swapping between in-memory, Redis, or other caching implementations.
type ResultCache interface {
	// Get returns a cached result, or false on a miss or expiry
	Get(ctx context.Context, key string) (*dewater.Result, bool)

	// Set stores a result
	Set(ctx context.Context, key string, res *dewater.Result)

	// Invalidate drops one entry
	Invalidate(ctx context.Context, key string)
}

// CacheConfig holds configuration for cache behavior
type CacheConfig struct {
	// TTL is the time-to-live for cached entries.
	// Set to 0 for no expiration.
	TTL time.Duration

	// MaxEntries bounds the in-memory cache; the oldest entry is evicted
	// first. 0 means unbounded.
	MaxEntries int
}

// DefaultCacheConfig returns sensible defaults for result caching
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:        10 * time.Minute,
		MaxEntries: 128,
	}
}

// Fingerprint returns a stable cache key for a request. Evaluation is a
// pure function of the request, so equal fingerprints mean equal results.
func Fingerprint(req dewater.Request) string {
	// json.Marshal of a struct is deterministic in field order
	b, err := json.Marshal(req)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// NoopCache never stores anything
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*dewater.Result, bool) { return nil, false }
func (NoopCache) Set(context.Context, string, *dewater.Result)        {}
func (NoopCache) Invalidate(context.Context, string)                  {}
