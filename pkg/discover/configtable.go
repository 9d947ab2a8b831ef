package discover

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrWong99/graphseer/pkg/entity"
)

// Schema is the DDL for the legacy configuration table. Migrate executes it;
// it is safe to run repeatedly.
const Schema = `
CREATE TABLE IF NOT EXISTS graphseer_entity_configs (
	label      TEXT PRIMARY KEY,
	config     JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// DB is the subset of pgx behaviour this package needs. It is satisfied by
// *pgxpool.Pool and *pgx.Conn.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Compile-time assertion that ConfigTable serves tier-2 lookups.
var _ ConfigSource = (*ConfigTable)(nil)

// ConfigTable reads and writes entity configurations stored as JSON rows in
// Postgres. It backs the second precedence tier: hand-maintained
// configurations that predate descriptor-driven derivation.
type ConfigTable struct {
	db DB
}

// NewConfigTable returns a ConfigTable using db.
func NewConfigTable(db DB) *ConfigTable {
	return &ConfigTable{db: db}
}

// Migrate creates the configuration table if it does not exist.
func (t *ConfigTable) Migrate(ctx context.Context) error {
	if _, err := t.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("discover: migrate: %w", err)
	}
	return nil
}

// Lookup implements [ConfigSource]. A label with no stored row returns
// (nil, nil).
func (t *ConfigTable) Lookup(ctx context.Context, label string) (*entity.Config, error) {
	var raw []byte
	err := t.db.QueryRow(ctx,
		`SELECT config FROM graphseer_entity_configs WHERE label = $1`, label,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("discover: lookup config %s: %w", label, err)
	}

	var cfg entity.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("discover: decode config %s: %w", label, err)
	}
	return &cfg, nil
}

// Save stores cfg under its label, replacing any existing row. The
// configuration is validated before it is written.
func (t *ConfigTable) Save(ctx context.Context, cfg *entity.Config) error {
	if cfg == nil {
		return fmt.Errorf("discover: save: config must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("discover: save %s: %w", cfg.Label, err)
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("discover: encode config %s: %w", cfg.Label, err)
	}

	_, err = t.db.Exec(ctx, `
		INSERT INTO graphseer_entity_configs (label, config, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (label) DO UPDATE SET config = EXCLUDED.config, updated_at = now()`,
		cfg.Label, raw)
	if err != nil {
		return fmt.Errorf("discover: save config %s: %w", cfg.Label, err)
	}
	return nil
}

// Delete removes the stored configuration for label. Deleting an absent
// label is not an error.
func (t *ConfigTable) Delete(ctx context.Context, label string) error {
	_, err := t.db.Exec(ctx,
		`DELETE FROM graphseer_entity_configs WHERE label = $1`, label)
	if err != nil {
		return fmt.Errorf("discover: delete config %s: %w", label, err)
	}
	return nil
}

// Labels returns the labels with stored configurations, sorted.
func (t *ConfigTable) Labels(ctx context.Context) ([]string, error) {
	rows, err := t.db.Query(ctx,
		`SELECT label FROM graphseer_entity_configs ORDER BY label`)
	if err != nil {
		return nil, fmt.Errorf("discover: list configs: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("discover: list configs: %w", err)
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("discover: list configs: %w", err)
	}
	return labels, nil
}
