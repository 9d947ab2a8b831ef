package discover

import (
	"context"
	"fmt"
	"strings"

	"github.com/MrWong99/graphseer/pkg/entity"
)

// Compile-time assertion that PGIntrospector reads storage schemas.
var _ SchemaIntrospector = (*PGIntrospector)(nil)

// PGIntrospector reads table shape from the Postgres information schema and
// system catalogs.
type PGIntrospector struct {
	db DB
}

// NewPGIntrospector returns a PGIntrospector using db.
func NewPGIntrospector(db DB) *PGIntrospector {
	return &PGIntrospector{db: db}
}

// TableColumns implements [SchemaIntrospector]. Tables unknown to the
// current schema yield an empty slice.
func (p *PGIntrospector) TableColumns(ctx context.Context, table string) ([]Column, error) {
	if err := entity.CheckIdentifier("table", table); err != nil {
		return nil, err
	}

	rows, err := p.db.Query(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("discover: columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.DataType); err != nil {
			return nil, fmt.Errorf("discover: columns of %s: %w", table, err)
		}
		c.DataType = strings.ToLower(c.DataType)
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("discover: columns of %s: %w", table, err)
	}
	return cols, nil
}

// IndexedColumns implements [SchemaIntrospector]. Every column covered by
// any index counts, including primary keys.
func (p *PGIntrospector) IndexedColumns(ctx context.Context, table string) ([]string, error) {
	if err := entity.CheckIdentifier("table", table); err != nil {
		return nil, err
	}

	rows, err := p.db.Query(ctx, `
		SELECT DISTINCT a.attname
		FROM pg_class t
		JOIN pg_index i ON i.indrelid = t.oid
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(i.indkey)
		WHERE t.relname = $1
		ORDER BY a.attname`, table)
	if err != nil {
		return nil, fmt.Errorf("discover: indexes of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("discover: indexes of %s: %w", table, err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("discover: indexes of %s: %w", table, err)
	}
	return cols, nil
}
