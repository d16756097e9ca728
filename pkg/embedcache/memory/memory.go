// Package memory provides an in-process embedcache.Store backed by a TTL map.
//
// It is the zero-infrastructure default: suitable for a single process where
// cache entries do not need to survive restarts or be shared across
// instances. For shared or durable caching use the redis or postgres
// backends.
package memory

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/0ui-labs/fieldmatch/pkg/embedcache"
)

// Ensure Store implements the embedcache.Store interface.
var _ embedcache.Store = (*Store)(nil)

// Store is an in-process TTL cache of embedding vectors. Operations never
// block and never fail; the context parameters are accepted only to satisfy
// the interface.
//
// Safe for concurrent use.
type Store struct {
	cache *gocache.Cache
}

// New returns a Store whose entries expire after defaultTTL when Set is
// called with ttl <= 0. Expired entries are swept every cleanupInterval;
// a cleanupInterval <= 0 disables the sweeper and leaves eviction fully lazy.
func New(defaultTTL, cleanupInterval time.Duration) *Store {
	return &Store{cache: gocache.New(defaultTTL, cleanupInterval)}
}

// Get implements embedcache.Store.
func (s *Store) Get(_ context.Context, key string) ([]float32, bool, error) {
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, false, nil
	}
	vec, ok := v.([]float32)
	if !ok {
		return nil, false, nil
	}
	// Hand out a copy so a caller mutating the result cannot corrupt the
	// cached entry.
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true, nil
}

// Set implements embedcache.Store. A ttl <= 0 applies the default TTL given
// at construction.
func (s *Store) Set(_ context.Context, key string, vec []float32, ttl time.Duration) error {
	cp := make([]float32, len(vec))
	copy(cp, vec)
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	s.cache.Set(key, cp, ttl)
	return nil
}

// Len returns the number of entries currently held, including entries that
// have expired but not yet been swept.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}

// Flush drops every entry.
func (s *Store) Flush() {
	s.cache.Flush()
}
