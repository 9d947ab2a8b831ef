// Package execute runs validated queries against the graph store with
// resource guards: deadlines, row caps, read-only enforcement and result
// shaping.
//
// The read-only check here is deliberately redundant with query
// validation. A query carrying a write keyword is rejected before it
// reaches the store even if the caller never ran the validator, and the
// store session itself is read-only unless writes were allowed.
package execute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/MrWong99/graphseer/pkg/entity"
	"github.com/MrWong99/graphseer/pkg/errs"
	"github.com/MrWong99/graphseer/pkg/graph"
)

const (
	// DefaultTimeout bounds a single store call.
	DefaultTimeout = 30 * time.Second

	// MaxTimeout is the longest deadline a caller may request.
	MaxTimeout = 120 * time.Second

	// DefaultLimit is the row cap injected into uncapped queries.
	DefaultLimit = 100

	// MaxLimit is the largest row cap any query may carry.
	MaxLimit = 1000
)

// Format selects the shape of returned result data.
type Format string

const (
	FormatTable Format = "table"
	FormatGraph Format = "graph"
	FormatJSON  Format = "json"
)

// IsValid reports whether f is a recognised result format.
func (f Format) IsValid() bool {
	switch f {
	case FormatTable, FormatGraph, FormatJSON:
		return true
	}
	return false
}

// Stats describes one execution. RowsScanned and DatabaseHits are present
// only when the backend reports them.
type Stats struct {
	ExecutionMS  int64 `json:"execution_ms"`
	RowsReturned int   `json:"rows_returned"`
	RowsScanned  int64 `json:"rows_scanned,omitempty"`
	DatabaseHits int64 `json:"database_hits,omitempty"`
}

// Meta records how a result was produced.
type Meta struct {
	Format   Format `json:"format"`
	ReadOnly bool   `json:"read_only"`
}

// ExecutionResult is the shaped outcome of one query run.
type ExecutionResult struct {
	Success  bool     `json:"success"`
	Data     any      `json:"data"`
	Stats    *Stats   `json:"stats,omitempty"`
	Metadata Meta     `json:"metadata"`
	Errors   []string `json:"errors,omitempty"`
}

// GraphNode is one deduplicated node in a graph-shaped result.
type GraphNode struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties"`
}

// GraphEdge is one deduplicated relationship in a graph-shaped result.
type GraphEdge struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	FromID     string         `json:"from_id"`
	ToID       string         `json:"to_id"`
	Properties map[string]any `json:"properties"`
}

// GraphShape is the node/edge view of a result.
type GraphShape struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Pagination describes the window a paginated call returned.
type Pagination struct {
	Page     int   `json:"page"`
	PerPage  int   `json:"per_page"`
	Total    int64 `json:"total"`
	LastPage int   `json:"last_page"`
	HasMore  bool  `json:"has_more"`
}

// PaginatedResult is one page of a result set plus its window metadata.
type PaginatedResult struct {
	Data       any        `json:"data"`
	Pagination Pagination `json:"pagination"`
	Stats      *Stats     `json:"stats,omitempty"`
}

type settings struct {
	timeout      time.Duration
	limit        int
	readOnly     bool
	format       Format
	includeStats bool
}

// Option adjusts execution behaviour, either at construction for all
// calls or per call.
type Option func(*settings)

// WithTimeout bounds a single store call. Values above the maximum are
// clamped to it; zero and below are ignored.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d <= 0 {
			return
		}
		if d > MaxTimeout {
			d = MaxTimeout
		}
		s.timeout = d
	}
}

// WithLimit sets the row cap injected into uncapped queries. Values above
// the maximum are clamped to it; values below one are ignored.
func WithLimit(n int) Option {
	return func(s *settings) {
		if n < 1 {
			return
		}
		if n > MaxLimit {
			n = MaxLimit
		}
		s.limit = n
	}
}

// WithAllowWrite lifts the read-only guard and runs queries in a write
// session. Off by default.
func WithAllowWrite(allow bool) Option {
	return func(s *settings) { s.readOnly = !allow }
}

// WithFormat selects the result shape. Unknown formats are rejected when
// the query runs.
func WithFormat(f Format) Option {
	return func(s *settings) { s.format = f }
}

// WithStats toggles the statistics block on results. On by default.
func WithStats(include bool) Option {
	return func(s *settings) { s.includeStats = include }
}

// Executor runs queries against a graph store.
type Executor struct {
	store    graph.Querier
	defaults settings
}

// New builds an Executor around the given store. Options set the defaults
// for every call.
func New(store graph.Querier, opts ...Option) *Executor {
	e := &Executor{
		store: store,
		defaults: settings{
			timeout:      DefaultTimeout,
			limit:        DefaultLimit,
			readOnly:     true,
			format:       FormatTable,
			includeStats: true,
		},
	}
	for _, opt := range opts {
		opt(&e.defaults)
	}
	return e
}

func (e *Executor) resolve(opts []Option) settings {
	cfg := e.defaults
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Execute runs query with params and returns the shaped result. Uncapped
// queries get a row cap injected; parameters are always passed
// structurally to the store, never interpolated.
func (e *Executor) Execute(ctx context.Context, query string, params map[string]any, opts ...Option) (*ExecutionResult, error) {
	const op = "execute_query"
	cfg := e.resolve(opts)
	if err := guard(op, query, cfg, true); err != nil {
		return nil, err
	}

	capped := ensureRowCap(query, cfg.limit, MaxLimit)
	start := time.Now()
	res, err := e.run(ctx, op, capped, params, cfg)
	if err != nil {
		return nil, err
	}

	out := &ExecutionResult{
		Success:  true,
		Data:     shapeData(res, cfg.format),
		Metadata: Meta{Format: cfg.format, ReadOnly: cfg.readOnly},
	}
	if cfg.includeStats {
		out.Stats = buildStats(start, len(res.Rows), res.Stats)
	}
	return out, nil
}

// ExecuteCount rewrites the query's final projection into a row count and
// returns the total.
func (e *Executor) ExecuteCount(ctx context.Context, query string, params map[string]any, opts ...Option) (int64, error) {
	const op = "execute_count"
	cfg := e.resolve(opts)
	if err := guard(op, query, cfg, false); err != nil {
		return 0, err
	}

	counted, err := countRewrite(op, query)
	if err != nil {
		return 0, err
	}
	res, err := e.run(ctx, op, counted, params, cfg)
	if err != nil {
		return 0, err
	}
	if len(res.Rows) == 0 || len(res.Rows[0]) == 0 {
		return 0, nil
	}
	total, err := cast.ToInt64E(res.Rows[0][0])
	if err != nil {
		return 0, errs.Wrapf(errs.KindQueryExecution, op, err, "count query returned %T", res.Rows[0][0])
	}
	return total, nil
}

// ExecutePaginated runs query with an injected skip/limit window plus an
// auxiliary count query for the total. Any paging clauses already on the
// query are replaced by the requested window.
func (e *Executor) ExecutePaginated(ctx context.Context, query string, page, perPage int, params map[string]any, opts ...Option) (*PaginatedResult, error) {
	const op = "execute_paginated"
	cfg := e.resolve(opts)
	if page < 1 {
		return nil, errs.Newf(errs.KindInvalidInput, op, "page %d is out of range", page)
	}
	if perPage < 1 {
		return nil, errs.Newf(errs.KindInvalidInput, op, "per_page %d is out of range", perPage)
	}
	if perPage > MaxLimit {
		perPage = MaxLimit
	}
	if err := guard(op, query, cfg, true); err != nil {
		return nil, err
	}

	base := stripPaging(query)
	paged := fmt.Sprintf("%s SKIP %d LIMIT %d", base, (page-1)*perPage, perPage)
	start := time.Now()
	res, err := e.run(ctx, op, paged, params, cfg)
	if err != nil {
		return nil, err
	}
	var stats *Stats
	if cfg.includeStats {
		stats = buildStats(start, len(res.Rows), res.Stats)
	}

	total, err := e.ExecuteCount(ctx, base, params, opts...)
	if err != nil {
		return nil, err
	}
	lastPage := int((total + int64(perPage) - 1) / int64(perPage))
	if lastPage < 1 {
		lastPage = 1
	}

	return &PaginatedResult{
		Data: shapeData(res, cfg.format),
		Pagination: Pagination{
			Page:     page,
			PerPage:  perPage,
			Total:    total,
			LastPage: lastPage,
			HasMore:  page < lastPage,
		},
		Stats: stats,
	}, nil
}

// Explain returns the store's execution plan for query without running
// it. Write queries may be explained; nothing is executed.
func (e *Executor) Explain(ctx context.Context, query string, params map[string]any) (*graph.PlanNode, error) {
	const op = "explain_query"
	if strings.TrimSpace(query) == "" {
		return nil, errs.New(errs.KindInvalidInput, op, "blank query")
	}
	res, err := e.run(ctx, op, "EXPLAIN "+strings.TrimSpace(query), params, e.defaults)
	if err != nil {
		return nil, err
	}
	if res.Plan == nil {
		return nil, errs.New(errs.KindQueryExecution, op, "store returned no execution plan")
	}
	return res.Plan, nil
}

// Test reports whether the store can plan the query at all.
func (e *Executor) Test(ctx context.Context, query string) bool {
	if strings.TrimSpace(query) == "" {
		return false
	}
	if _, err := e.Explain(ctx, query, nil); err != nil {
		slog.DebugContext(ctx, "query test failed", "error", err)
		return false
	}
	return true
}

// guard applies the checks shared by every execution path.
func guard(op, query string, cfg settings, checkFormat bool) error {
	if strings.TrimSpace(query) == "" {
		return errs.New(errs.KindInvalidInput, op, "blank query")
	}
	if checkFormat && !cfg.format.IsValid() {
		return errs.Newf(errs.KindInvalidInput, op, "unknown format %q", cfg.format)
	}
	if cfg.readOnly {
		if kw, found := entity.FindWriteKeyword(query); found {
			return errs.Newf(errs.KindReadOnlyViolation, op, "query contains write operation %q", kw)
		}
	}
	return nil
}

// run issues the store call under the configured deadline, mapping
// deadline expiry to the query-timeout kind. Caller cancellation passes
// through untouched.
func (e *Executor) run(ctx context.Context, op, query string, params map[string]any, cfg settings) (*graph.Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	var runOpts []graph.RunOpt
	if !cfg.readOnly {
		runOpts = append(runOpts, graph.AllowWrite())
	}
	res, err := e.store.Run(runCtx, query, params, runOpts...)
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && !errors.Is(ctx.Err(), context.Canceled) {
			return nil, errs.Wrapf(errs.KindQueryTimeout, op, err, "query exceeded %s", cfg.timeout)
		}
		return nil, err
	}
	if res == nil {
		return nil, errs.New(errs.KindQueryExecution, op, "store returned no result")
	}
	return res, nil
}

func buildStats(start time.Time, rows int, backend *graph.ResultStats) *Stats {
	s := &Stats{
		ExecutionMS:  time.Since(start).Milliseconds(),
		RowsReturned: rows,
	}
	if backend != nil {
		s.RowsScanned = backend.RowsScanned
		s.DatabaseHits = backend.DatabaseHits
	}
	return s
}
