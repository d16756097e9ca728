// Package postgres provides a PostgreSQL-backed embedcache.Store using the
// pgvector extension.
//
// Unlike the in-process and Redis backends this one survives restarts and can
// be shared by every service that embeds field names, which makes it the
// right choice when the embedding provider is metered. The pgvector column
// also keeps the door open for SQL-side similarity queries over the cached
// corpus.
//
// Usage:
//
//	store, err := postgres.New(ctx, dsn, 1536)
//	if err != nil { … }
//	defer store.Close()
//
//	vec, ok, err := store.Get(ctx, "video rating")
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ddlEmbeddingCache returns the cache DDL with the embedding dimension
// substituted. The vector dimension is baked into the column type at schema
// creation time.
func ddlEmbeddingCache(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS embedding_cache (
    key         TEXT         PRIMARY KEY,
    embedding   vector(%d)   NOT NULL,
    expires_at  TIMESTAMPTZ  NOT NULL,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_embedding_cache_expires_at
    ON embedding_cache (expires_at);
`, embeddingDimensions)
}

// Migrate creates or ensures the cache table and the pgvector extension
// exist. It is idempotent and safe to call on every application start.
//
// embeddingDimensions must match the output width of the embedding model in
// use (e.g., 1536 for OpenAI text-embedding-3-small, 768 for
// nomic-embed-text). Changing it after the first migration requires a manual
// schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	if _, err := pool.Exec(ctx, ddlEmbeddingCache(embeddingDimensions)); err != nil {
		return fmt.Errorf("postgres embedcache: migrate: %w", err)
	}
	return nil
}
