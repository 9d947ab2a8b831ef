// Package pgvector provides the PostgreSQL-backed implementation of
// [vector.Store] on top of the pgvector extension.
//
// All collections share one points table; the collection name is a column,
// and every collection carries the embedding dimension fixed at migration
// time. This matches deployments with a single embedding model. Search uses
// cosine distance (`<=>`) over an HNSW index and reports scores as cosine
// similarity so the contract's threshold semantics match the Qdrant adapter.
//
// Payload values round-trip through JSONB, so numbers come back as float64.
package pgvector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// DDL
// ─────────────────────────────────────────────────────────────────────────────

const ddlCollections = `
CREATE TABLE IF NOT EXISTS vector_collections (
    name        TEXT         PRIMARY KEY,
    dims        INTEGER      NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

// ddlPoints returns the points DDL with the embedding dimension substituted.
// The vector dimension is baked into the column type at schema creation time.
func ddlPoints(dims int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS vector_points (
    collection  TEXT         NOT NULL REFERENCES vector_collections (name) ON DELETE CASCADE,
    id          TEXT         NOT NULL,
    embedding   vector(%d),
    payload     JSONB        NOT NULL DEFAULT '{}',
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (collection, id)
);

CREATE INDEX IF NOT EXISTS idx_vector_points_embedding
    ON vector_points USING hnsw (embedding vector_cosine_ops);
`, dims)
}

// Migrate creates or ensures all required tables and extensions exist. It is
// idempotent and safe to call on every application start.
//
// dims must match the output dimension of the embedding model in use (e.g.,
// 1536 for OpenAI text-embedding-3-small, 768 for nomic-embed-text). Changing
// this value after the first migration requires a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, dims int) error {
	statements := []string{
		ddlCollections,
		ddlPoints(dims),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pgvector migrate: %w", err)
		}
	}
	return nil
}
