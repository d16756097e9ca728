// Package redis provides an embedcache.Store backed by a Redis server.
//
// Vectors are stored as raw little-endian float32 bytes under a configurable
// key prefix, with Redis's native key expiry providing the TTL. Use this
// backend when several engine instances should share one warm cache.
package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/0ui-labs/fieldmatch/pkg/embedcache"
)

// DefaultKeyPrefix namespaces cache entries so the engine can share a Redis
// database with other applications.
const DefaultKeyPrefix = "fieldmatch:embed:"

// Ensure Store implements the embedcache.Store interface.
var _ embedcache.Store = (*Store)(nil)

// Config holds Redis connection configuration.
type Config struct {
	// Addr is the host:port of the Redis server.
	Addr string

	// Password authenticates the connection. Empty means no auth.
	Password string

	// DB selects the logical Redis database.
	DB int

	// KeyPrefix is prepended to every cache key.
	// Empty means DefaultKeyPrefix.
	KeyPrefix string

	// DefaultTTL applies when Set is called with ttl <= 0.
	// Zero means 24 hours.
	DefaultTTL time.Duration
}

// Store is a Redis-backed embedding cache.
//
// Safe for concurrent use; the underlying go-redis client pools connections.
type Store struct {
	rdb        *redis.Client
	prefix     string
	defaultTTL time.Duration
}

// New connects to Redis and verifies the connection with a ping before
// returning the Store. The ping is bounded to five seconds regardless of ctx.
func New(ctx context.Context, cfg Config) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis embedcache: connect %s: %w", cfg.Addr, err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	defaultTTL := cfg.DefaultTTL
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}

	return &Store{rdb: rdb, prefix: prefix, defaultTTL: defaultTTL}, nil
}

// Get implements embedcache.Store.
func (s *Store) Get(ctx context.Context, key string) ([]float32, bool, error) {
	b, err := s.rdb.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis embedcache: get: %w", err)
	}

	vec, err := decodeVector(b)
	if err != nil {
		// A corrupt entry can only keep producing the same error; drop it so
		// the next lookup becomes a clean miss.
		s.rdb.Del(ctx, s.prefix+key)
		return nil, false, fmt.Errorf("redis embedcache: get %q: %w", key, err)
	}
	return vec, true, nil
}

// Set implements embedcache.Store. A ttl <= 0 applies the configured default.
func (s *Store) Set(ctx context.Context, key string, vec []float32, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if err := s.rdb.Set(ctx, s.prefix+key, encodeVector(vec), ttl).Err(); err != nil {
		return fmt.Errorf("redis embedcache: set: %w", err)
	}
	return nil
}

// Ping reports whether the Redis server is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close releases the underlying client's connection pool.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// encodeVector packs a vector as little-endian float32 bytes.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector is the inverse of encodeVector.
func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("payload of %d bytes is not a whole number of float32s", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
