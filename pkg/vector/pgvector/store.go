package pgvector

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvec "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/MrWong99/graphseer/pkg/errs"
	"github.com/MrWong99/graphseer/pkg/vector"
)

// Compile-time interface check.
var _ vector.Store = (*Store)(nil)

// Store implements [vector.Store] on PostgreSQL with the pgvector extension.
// It holds a single [pgxpool.Pool] and is safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
	dims int
}

// NewStore establishes a connection pool to the PostgreSQL database at dsn,
// registers pgvector types on every connection, and runs [Migrate] to ensure
// all required tables and extensions exist.
//
// dims fixes the embedding dimension for every collection served by this
// store. [Store.CreateCollection] rejects any other dimension.
func NewStore(ctx context.Context, dsn string, dims int) (*Store, error) {
	if dsn == "" {
		return nil, errs.New(errs.KindConfiguration, "pgvector store", "dsn must not be empty")
	}
	if dims < 1 {
		return nil, errs.Newf(errs.KindConfiguration, "pgvector store", "dimension %d is not positive", dims)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errs.Wrapf(errs.KindConfiguration, "pgvector store", err, "parse dsn")
	}

	// Register pgvector types on every new connection so that vector columns
	// can be scanned into and inserted from pgvec.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errs.Wrapf(errs.KindConfiguration, "pgvector store", err, "create pool")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errs.Wrapf(errs.KindConfiguration, "pgvector store", err, "ping")
	}

	if err := Migrate(ctx, pool, dims); err != nil {
		pool.Close()
		return nil, errs.Wrap(errs.KindConfiguration, "pgvector store", err)
	}

	return &Store{pool: pool, dims: dims}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping verifies connectivity to the database.
func (s *Store) Ping(ctx context.Context) error {
	return errs.Wrap(errs.KindQueryExecution, "pgvector store: ping", s.pool.Ping(ctx))
}

// CreateCollection implements [vector.Store]. Every collection in this
// adapter shares the dimension the store was migrated with; any other dims
// value is rejected.
func (s *Store) CreateCollection(ctx context.Context, name string, dims int) error {
	if dims != s.dims {
		return errs.Newf(errs.KindConfiguration, "pgvector store: create collection",
			"collection %q wants dimension %d but the schema is migrated for %d", name, dims, s.dims)
	}

	const q = `
		INSERT INTO vector_collections (name, dims)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING`

	tag, err := s.pool.Exec(ctx, q, name, dims)
	if err != nil {
		return errs.Wrapf(errs.KindVectorWrite, "pgvector store", err, "create collection %q", name)
	}
	if tag.RowsAffected() == 0 {
		return errs.Newf(errs.KindVectorWrite, "pgvector store", "create collection %q: already exists", name)
	}
	return nil
}

// CollectionExists implements [vector.Store].
func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM vector_collections WHERE name = $1)`

	var ok bool
	if err := s.pool.QueryRow(ctx, q, name).Scan(&ok); err != nil {
		return false, errs.Wrapf(errs.KindQueryExecution, "pgvector store", err, "collection exists %q", name)
	}
	return ok, nil
}

// DeleteCollection drops the named collection; its points go with it via
// ON DELETE CASCADE.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	const q = `DELETE FROM vector_collections WHERE name = $1`

	if _, err := s.pool.Exec(ctx, q, name); err != nil {
		return errs.Wrapf(errs.KindVectorWrite, "pgvector store", err, "delete collection %q", name)
	}
	return nil
}

// Upsert implements [vector.Store]. A point that already exists is completely
// replaced.
func (s *Store) Upsert(ctx context.Context, collection string, points []vector.Point) error {
	const q = `
		INSERT INTO vector_points (collection, id, embedding, payload, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (collection, id) DO UPDATE SET
		    embedding  = EXCLUDED.embedding,
		    payload    = EXCLUDED.payload,
		    updated_at = now()`

	for _, p := range points {
		if p.ID == "" {
			return errs.New(errs.KindInvalidInput, "pgvector store: upsert", "point id must not be empty")
		}
		payloadJSON, err := marshalPayload(p.Payload)
		if err != nil {
			return errs.Wrapf(errs.KindInvalidInput, "pgvector store", err, "marshal payload for point %q", p.ID)
		}
		_, err = s.pool.Exec(ctx, q, collection, p.ID, pgvec.NewVector(p.Vector), payloadJSON)
		if err != nil {
			return errs.Wrapf(errs.KindVectorWrite, "pgvector store", err, "upsert point %q into %q", p.ID, collection)
		}
	}
	return nil
}

// Search implements [vector.Store]. Scores are cosine similarities
// (1 - cosine distance), ordered descending.
func (s *Store) Search(ctx context.Context, collection string, vec []float32, opts ...vector.SearchOpt) ([]vector.Match, error) {
	params := vector.ApplySearchOpts(opts)
	queryVec := pgvec.NewVector(vec)

	args := []any{queryVec, collection} // $1 = query vector, $2 = collection
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{"collection = $2"}
	if params.Threshold > 0 {
		conditions = append(conditions, "1 - (embedding <=> $1) >= "+next(params.Threshold))
	}
	for _, m := range params.Matches {
		conditions = append(conditions, fmt.Sprintf("payload ->> %s = %s", next(m.Field), next(m.Value)))
	}

	q := fmt.Sprintf(`
		SELECT id, payload, 1 - (embedding <=> $1) AS score
		FROM   vector_points
		WHERE  %s
		ORDER  BY embedding <=> $1
		LIMIT  %s`, strings.Join(conditions, "\n  AND  "), next(params.TopK))

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, errs.Wrapf(errs.KindQueryExecution, "pgvector store", err, "search %q", collection)
	}

	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (vector.Match, error) {
		var (
			m           vector.Match
			payloadJSON []byte
		)
		if err := row.Scan(&m.ID, &payloadJSON, &m.Score); err != nil {
			return vector.Match{}, err
		}
		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &m.Payload); err != nil {
				return vector.Match{}, fmt.Errorf("unmarshal payload: %w", err)
			}
		}
		if m.Payload == nil {
			m.Payload = map[string]any{}
		}
		return m, nil
	})
	if err != nil {
		return nil, errs.Wrapf(errs.KindQueryExecution, "pgvector store", err, "scan search rows")
	}
	if matches == nil {
		matches = []vector.Match{}
	}
	return matches, nil
}

// Delete implements [vector.Store]. Deleting a point that does not exist is
// not an error.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	const q = `DELETE FROM vector_points WHERE collection = $1 AND id = $2`

	if _, err := s.pool.Exec(ctx, q, collection, id); err != nil {
		return errs.Wrapf(errs.KindVectorWrite, "pgvector store", err, "delete point from %q", collection)
	}
	return nil
}

// marshalPayload renders a payload as JSONB input. A nil payload becomes the
// empty object rather than SQL null.
func marshalPayload(payload map[string]any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(payload)
}
