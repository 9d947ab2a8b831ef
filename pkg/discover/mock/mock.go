// Package mock provides test doubles for the discover package's storage
// collaborators.
//
// Introspector stands in for a live schema introspector and Source for the
// legacy configuration lookup, so discovery derivation can be exercised
// without Postgres. All fields are safe to set before calling any method;
// mutating them during a concurrent call is the caller's responsibility.
//
// Example:
//
//	schema := &mock.Introspector{
//	    Columns: map[string][]discover.Column{
//	        "work_orders": {{Name: "id", DataType: "bigint"}},
//	    },
//	}
//	cols, err := schema.TableColumns(ctx, "work_orders")
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/graphseer/pkg/discover"
	"github.com/MrWong99/graphseer/pkg/entity"
)

// TableColumnsCall records a single invocation of TableColumns.
type TableColumnsCall struct {
	// Ctx is the context passed to TableColumns.
	Ctx context.Context
	// Table is the table name passed to TableColumns.
	Table string
}

// IndexedColumnsCall records a single invocation of IndexedColumns.
type IndexedColumnsCall struct {
	// Ctx is the context passed to IndexedColumns.
	Ctx context.Context
	// Table is the table name passed to IndexedColumns.
	Table string
}

// Introspector is a mock implementation of discover.SchemaIntrospector.
// Tables absent from the maps yield empty results and nil errors, matching
// the behaviour of the Postgres introspector on unknown tables.
type Introspector struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Columns maps table names to the columns TableColumns returns.
	Columns map[string][]discover.Column

	// ColumnsErr, if non-nil, is returned as the error from TableColumns.
	ColumnsErr error

	// Indexed maps table names to the column names IndexedColumns returns.
	Indexed map[string][]string

	// IndexedErr, if non-nil, is returned as the error from IndexedColumns.
	IndexedErr error

	// --- Call records (read after test) ---

	// TableColumnsCalls records every invocation of TableColumns in order.
	TableColumnsCalls []TableColumnsCall

	// IndexedColumnsCalls records every invocation of IndexedColumns in order.
	IndexedColumnsCalls []IndexedColumnsCall
}

// TableColumns records the call and returns Columns[table], ColumnsErr.
func (i *Introspector) TableColumns(ctx context.Context, table string) ([]discover.Column, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.TableColumnsCalls = append(i.TableColumnsCalls, TableColumnsCall{Ctx: ctx, Table: table})
	if i.ColumnsErr != nil {
		return nil, i.ColumnsErr
	}
	return i.Columns[table], nil
}

// IndexedColumns records the call and returns Indexed[table], IndexedErr.
func (i *Introspector) IndexedColumns(ctx context.Context, table string) ([]string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.IndexedColumnsCalls = append(i.IndexedColumnsCalls, IndexedColumnsCall{Ctx: ctx, Table: table})
	if i.IndexedErr != nil {
		return nil, i.IndexedErr
	}
	return i.Indexed[table], nil
}

// Reset clears all recorded calls. Thread-safe.
func (i *Introspector) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.TableColumnsCalls = nil
	i.IndexedColumnsCalls = nil
}

// LookupCall records a single invocation of Lookup.
type LookupCall struct {
	// Ctx is the context passed to Lookup.
	Ctx context.Context
	// Label is the label passed to Lookup.
	Label string
}

// Source is a mock implementation of discover.ConfigSource. Labels absent
// from Stored yield (nil, nil), the not-found convention of the real
// configuration table.
type Source struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Stored maps labels to the configurations Lookup returns.
	Stored map[string]*entity.Config

	// LookupErr, if non-nil, is returned as the error from Lookup.
	LookupErr error

	// --- Call records (read after test) ---

	// LookupCalls records every invocation of Lookup in order.
	LookupCalls []LookupCall
}

// Lookup records the call and returns Stored[label], LookupErr.
func (s *Source) Lookup(ctx context.Context, label string) (*entity.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LookupCalls = append(s.LookupCalls, LookupCall{Ctx: ctx, Label: label})
	if s.LookupErr != nil {
		return nil, s.LookupErr
	}
	return s.Stored[label], nil
}

// Reset clears all recorded calls. Thread-safe.
func (s *Source) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LookupCalls = nil
}

// Ensure the doubles implement their contracts at compile time.
var (
	_ discover.SchemaIntrospector = (*Introspector)(nil)
	_ discover.ConfigSource       = (*Source)(nil)
)
