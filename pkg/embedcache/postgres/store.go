package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/0ui-labs/fieldmatch/pkg/embedcache"
)

// Ensure Store implements the embedcache.Store interface.
var _ embedcache.Store = (*Store)(nil)

// Store is a PostgreSQL/pgvector-backed embedding cache.
//
// Expiry is lazy: an expired row is detected and deleted on the next Get for
// its key, and [Store.Sweep] removes expired rows in bulk for deployments
// that want scheduled cleanup.
//
// All operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store, establishes a connection pool to the PostgreSQL
// database at dsn, registers pgvector types on every connection, and runs
// [Migrate] to ensure the cache table exists.
//
// embeddingDimensions fixes the width of the vector column; inserts with a
// different width fail, which surfaces a provider/cache model mismatch
// immediately instead of corrupting the cache.
func New(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	if embeddingDimensions <= 0 {
		return nil, fmt.Errorf("postgres embedcache: embedding dimensions must be positive, got %d", embeddingDimensions)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres embedcache: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so the embedding column
	// can be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres embedcache: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres embedcache: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, err
	}

	return &Store{pool: pool}, nil
}

// Get implements embedcache.Store.
func (s *Store) Get(ctx context.Context, key string) ([]float32, bool, error) {
	const q = `SELECT embedding, expires_at FROM embedding_cache WHERE key = $1`

	var (
		vec     pgvector.Vector
		expires time.Time
	)
	err := s.pool.QueryRow(ctx, q, key).Scan(&vec, &expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("postgres embedcache: get: %w", err)
	}

	if !expires.After(time.Now()) {
		// Lazy eviction; a failure here just leaves the row for Sweep.
		_, _ = s.pool.Exec(ctx, `DELETE FROM embedding_cache WHERE key = $1 AND expires_at <= now()`, key)
		return nil, false, nil
	}
	return vec.Slice(), true, nil
}

// Set implements embedcache.Store. Writing an existing key replaces its
// vector and pushes out its expiry (last-write-wins under concurrency).
// A ttl <= 0 defaults to 24 hours.
func (s *Store) Set(ctx context.Context, key string, vec []float32, ttl time.Duration) error {
	const q = `
		INSERT INTO embedding_cache (key, embedding, expires_at, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (key) DO UPDATE SET
		    embedding  = EXCLUDED.embedding,
		    expires_at = EXCLUDED.expires_at,
		    updated_at = now()`

	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	_, err := s.pool.Exec(ctx, q, key, pgvector.NewVector(vec), time.Now().Add(ttl))
	if err != nil {
		return fmt.Errorf("postgres embedcache: set: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable. Used by readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres embedcache: ping: %w", err)
	}
	return nil
}

// Sweep deletes every expired row and returns the number removed. Intended
// for scheduled maintenance; correctness never depends on it because Get
// checks expiry itself.
func (s *Store) Sweep(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM embedding_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("postgres embedcache: sweep: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close releases all connections held by the underlying pool.
func (s *Store) Close() {
	s.pool.Close()
}
