// Package embedcache defines the cache boundary in front of the embedding
// provider.
//
// Embedding the same field name twice within the cache TTL is pure waste: the
// provider is rate-limited, network-bound, and bills per token, while field
// names are short, highly repetitive strings. The similarity engine therefore
// consults a [Store] before every provider call and writes freshly embedded
// vectors back with a TTL.
//
// Keys are normalized lowercase strings (see the engine's normalizer) so that
// "Video Rating" and "video  rating" share one entry.
//
// All interfaces are public so external packages can supply alternative
// backends (in-process TTL map, Redis, Postgres/pgvector, …).
//
// Every implementation must be safe for concurrent use; concurrent writes to
// the same key may resolve as last-write-wins.
package embedcache

import (
	"context"
	"time"
)

// Store is a key-value cache of embedding vectors with per-entry expiry.
//
// The engine treats a Store strictly as an optimization: a Get error is
// equivalent to a miss and a Set error is ignored beyond logging, so an
// unavailable cache degrades to calling the provider every time rather than
// disabling semantic matching.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the cached vector for key. The second return value reports
	// whether the key was present and unexpired. An error indicates the
	// backend itself failed; callers should treat it as a miss.
	Get(ctx context.Context, key string) ([]float32, bool, error)

	// Set stores vec under key for at least ttl. Entries past their TTL must
	// stop being returned by Get; whether they are evicted eagerly or lazily
	// is up to the implementation. A ttl <= 0 lets the implementation apply
	// its own default.
	Set(ctx context.Context, key string, vec []float32, ttl time.Duration) error
}
