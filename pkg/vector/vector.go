// Package vector defines the similarity-search side of the dual-store engine:
// embedded points stored beside a small metadata payload, searched by cosine
// similarity with an optional score cutoff and payload filter.
//
// [Store] is the full contract; production adapters (Qdrant, Postgres with
// pgvector) implement it, tests use the mock subpackage. Point identifiers are
// strings, but backends may require structured identifiers, so entity-keyed
// points should derive their id via [PointID], which is stable across
// processes and makes repeated ingests of the same entity overwrite a single
// point.
//
// Every implementation must be safe for concurrent use.
package vector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// DefaultTopK is the result cap applied when a search does not specify one.
const DefaultTopK = 10

// ─────────────────────────────────────────────────────────────────────────────
// Point and match types
// ─────────────────────────────────────────────────────────────────────────────

// Point is one vector-indexed record: an embedding plus the payload stored
// beside it.
type Point struct {
	// ID identifies the point within its collection. Upserts replace the
	// point with the same ID. Use [PointID] for points keyed on a domain
	// entity; backends that require structured identifiers (Qdrant) accept
	// any UUID string.
	ID string

	// Vector is the embedding. Its dimension must match the collection's.
	Vector []float32

	// Payload is the metadata stored beside the vector and returned with
	// search matches. Entity-keyed points carry the reserved keys
	// [PayloadEntityLabel] and [PayloadEntityID].
	Payload map[string]any
}

// Reserved payload keys for points that mirror a graph entity. Adapters treat
// them as ordinary payload fields; the ingest and retrieval layers rely on
// them to join vector matches back to graph nodes.
const (
	PayloadEntityLabel = "entity_label"
	PayloadEntityID    = "entity_id"
)

// Match is one search hit, ordered by descending similarity.
type Match struct {
	// ID is the matched point's id.
	ID string

	// Score is the cosine similarity between the query vector and the
	// matched point, higher is more similar.
	Score float64

	// Payload is the metadata stored with the point.
	Payload map[string]any
}

// PointID derives a stable point identifier for the entity identified by
// (label, id). The result is a UUID string, deterministic across processes,
// so ingesting the same entity twice overwrites one point instead of
// accumulating duplicates.
func PointID(label, id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("graphseer://"+label+"/"+id)).String()
}

// ─────────────────────────────────────────────────────────────────────────────
// Search options
// ─────────────────────────────────────────────────────────────────────────────

// FieldMatch restricts a search to points whose payload field equals value.
type FieldMatch struct {
	Field string
	Value string
}

// searchOptions accumulates options for [Store.Search].
// Unexported — callers configure it via [SearchOpt] functional options.
type searchOptions struct {
	topK      int
	threshold float64
	matches   []FieldMatch
}

// SearchOpt is a functional option for [Store.Search].
type SearchOpt func(*searchOptions)

// WithTopK caps the number of matches returned. Values below one fall back
// to [DefaultTopK].
func WithTopK(k int) SearchOpt {
	return func(o *searchOptions) { o.topK = k }
}

// WithThreshold drops matches scoring below t. The zero threshold keeps
// every match.
func WithThreshold(t float64) SearchOpt {
	return func(o *searchOptions) { o.threshold = t }
}

// WithFieldMatch restricts the search to points whose payload field equals
// value. Multiple filters combine with AND.
func WithFieldMatch(field, value string) SearchOpt {
	return func(o *searchOptions) {
		o.matches = append(o.matches, FieldMatch{Field: field, Value: value})
	}
}

// SearchParams holds the resolved parameters from a slice of [SearchOpt].
type SearchParams struct {
	TopK      int
	Threshold float64
	Matches   []FieldMatch
}

// ApplySearchOpts applies a slice of [SearchOpt] functional options and
// returns the resolved parameters. This helper allows storage backends in
// other packages to read the option values without access to the unexported
// options type.
func ApplySearchOpts(opts []SearchOpt) SearchParams {
	o := &searchOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.topK < 1 {
		o.topK = DefaultTopK
	}
	return SearchParams{TopK: o.topK, Threshold: o.threshold, Matches: o.matches}
}

// ─────────────────────────────────────────────────────────────────────────────
// Store
// ─────────────────────────────────────────────────────────────────────────────

// Store is the vector-backend contract.
//
// Upserts keyed by point id must be idempotent: repeating an identical call
// leaves the store unchanged. Deleting a non-existent point is not an error.
// Implementations must be safe for concurrent use.
type Store interface {
	// CreateCollection creates a collection holding vectors of the given
	// dimension, compared by cosine similarity. Creating a collection that
	// already exists is an error; [EnsureCollection] is the idempotent form.
	CreateCollection(ctx context.Context, name string, dims int) error

	// CollectionExists reports whether the named collection exists.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// Upsert inserts or replaces the given points. The collection must
	// exist and every vector must match its dimension.
	Upsert(ctx context.Context, collection string, points []Point) error

	// Search returns the points most similar to vec, ordered by descending
	// score, capped and filtered per opts.
	// Returns an empty (non-nil) slice when nothing clears the threshold.
	Search(ctx context.Context, collection string, vec []float32, opts ...SearchOpt) ([]Match, error)

	// Delete removes the point with the given id. Deleting a point that
	// does not exist is not an error.
	Delete(ctx context.Context, collection, id string) error

	// Ping verifies connectivity to the backend.
	Ping(ctx context.Context) error
}

// EnsureCollection creates the named collection unless it already exists.
// It is the idempotent form of [Store.CreateCollection] used at startup and
// by the ingest coordinator before the first write to a collection.
func EnsureCollection(ctx context.Context, s Store, name string, dims int) error {
	ok, err := s.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("vector: ensure collection %q: %w", name, err)
	}
	if ok {
		return nil
	}
	if err := s.CreateCollection(ctx, name, dims); err != nil {
		return fmt.Errorf("vector: ensure collection %q: %w", name, err)
	}
	return nil
}
