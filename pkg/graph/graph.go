// Package graph defines the graph side of the dual-store engine: typed nodes
// and relationships addressed by entity label and id, plus the schema and
// read-query surface the retrieval pipeline is built on.
//
// Three capability interfaces are provided:
//
//   - [Store]: idempotent node/edge writes with snapshot and restore support,
//     used by the ingest coordinator's compensation protocol.
//   - [Explorer]: schema introspection and example-row sampling, used to
//     assemble retrieval context.
//   - [Querier]: parameterised read-query execution for generated queries.
//
// [Graph] combines all three; production adapters (Neo4j) implement it, while
// consumers depend only on the capability they need.
//
// Every implementation must be safe for concurrent use.
package graph

import (
	"context"
)

// ─────────────────────────────────────────────────────────────────────────────
// Node and edge types
// ─────────────────────────────────────────────────────────────────────────────

// Node is a labelled graph node addressed by its entity id.
type Node struct {
	// Label is the node's entity label (e.g. "Person"). Must be a valid
	// identifier.
	Label string

	// ID is the node's stable identity within its label. Upserts merge on
	// (Label, ID).
	ID string

	// Props holds the node's properties. The id key is carried separately in
	// ID and must not be duplicated here.
	Props map[string]any
}

// Edge is a directed, typed edge from a known source node to a target
// addressed by label and id.
type Edge struct {
	// Type is the relationship type (e.g. "MEMBER_OF"). Must be a valid
	// identifier.
	Type string

	// TargetLabel is the entity label of the destination node.
	TargetLabel string

	// TargetID is the destination node's id. If the target does not exist it
	// is created as a stub carrying only its id.
	TargetID string

	// Props holds optional relationship properties.
	Props map[string]any
}

// InEdge is an edge arriving at a known node from a source addressed by label
// and id. It appears only in [Snapshot], where both directions are captured
// so a restore can rebuild the full neighbourhood of a deleted node.
type InEdge struct {
	Type        string
	SourceLabel string
	SourceID    string
	Props       map[string]any
}

// Snapshot captures a node together with every edge touching it. It is the
// unit of compensation: taken before a destructive write, replayed by
// [Store.RestoreNode] when a later step fails.
type Snapshot struct {
	Node     Node
	Outgoing []Edge
	Incoming []InEdge
}

// ─────────────────────────────────────────────────────────────────────────────
// Schema types
// ─────────────────────────────────────────────────────────────────────────────

// Property describes one property observed on a label, with the value types
// seen in the data (a property may carry mixed types across nodes).
type Property struct {
	Name  string   `json:"name"`
	Types []string `json:"types,omitempty"`
}

// RelPattern is one observed relationship shape: edges of Type connecting
// From-labelled nodes to To-labelled nodes.
type RelPattern struct {
	Type string `json:"type"`
	From string `json:"from"`
	To   string `json:"to"`
}

// Schema is the normalized shape of the stored graph, independent of which
// backend produced it. It is rendered into query-generation prompts verbatim.
type Schema struct {
	// Labels lists every node label present in the graph.
	Labels []string `json:"labels"`

	// Relationships lists every observed relationship pattern.
	Relationships []RelPattern `json:"relationships"`

	// Properties maps each label to the properties observed on it.
	Properties map[string][]Property `json:"properties"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Query result types
// ─────────────────────────────────────────────────────────────────────────────

// NodeValue is a graph node appearing in a query result row, normalized so
// that downstream formatting never depends on a driver type.
type NodeValue struct {
	// ID is the backend's element id for the node.
	ID string `json:"id"`

	// Labels are the node's labels.
	Labels []string `json:"labels"`

	// Props are the node's properties.
	Props map[string]any `json:"properties"`
}

// RelValue is a relationship appearing in a query result row.
type RelValue struct {
	// ID is the backend's element id for the relationship.
	ID string `json:"id"`

	// Type is the relationship type.
	Type string `json:"type"`

	// StartID and EndID reference the element ids of the connected nodes.
	StartID string `json:"start_id"`
	EndID   string `json:"end_id"`

	// Props are the relationship's properties.
	Props map[string]any `json:"properties"`
}

// PathValue is a traversal path appearing in a query result row.
type PathValue struct {
	Nodes []NodeValue `json:"nodes"`
	Rels  []RelValue  `json:"relationships"`
}

// PlanNode is one operator in a query execution plan, as reported by an
// EXPLAIN or PROFILE run. DBHits and Records are populated only when the
// run was profiled.
type PlanNode struct {
	Operator    string         `json:"operator"`
	Identifiers []string       `json:"identifiers,omitempty"`
	Arguments   map[string]any `json:"arguments,omitempty"`
	DBHits      int64          `json:"db_hits,omitempty"`
	Records     int64          `json:"records,omitempty"`
	Children    []PlanNode     `json:"children,omitempty"`
}

// ResultStats are backend-reported execution statistics. Backends that
// cannot observe them leave the pointer nil.
type ResultStats struct {
	RowsScanned  int64 `json:"rows_scanned,omitempty"`
	DatabaseHits int64 `json:"database_hits,omitempty"`
}

// Result is a tabular query result. Rows are ordered as returned by the
// backend; each row has exactly len(Columns) values.
//
// Cell values are plain Go values (string, int64, float64, bool, time.Time,
// slices, maps) or the normalized graph types [NodeValue], [RelValue] and
// [PathValue]. Adapters must never leak driver-native records.
type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`

	// Plan is set when the query was run under EXPLAIN or PROFILE.
	Plan *PlanNode `json:"plan,omitempty"`

	// Stats carries backend statistics when the backend reports them.
	Stats *ResultStats `json:"stats,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Run options
// ─────────────────────────────────────────────────────────────────────────────

// runOptions accumulates options for [Querier.Run].
// Unexported — callers configure it via [RunOpt] functional options.
type runOptions struct {
	write bool
}

// RunOpt is a functional option for [Querier.Run].
type RunOpt func(*runOptions)

// AllowWrite lifts the read-only session restriction for a single Run call.
// Without it every query executes in a read-only session regardless of its
// text, so a write clause that slipped past validation still fails at the
// store.
func AllowWrite() RunOpt {
	return func(o *runOptions) { o.write = true }
}

// RunParams holds the resolved parameters from a slice of [RunOpt].
type RunParams struct {
	Write bool
}

// ApplyRunOpts applies a slice of [RunOpt] functional options and returns the
// resolved parameters. This helper allows storage backends in other packages
// to read the option values without access to the unexported options type.
func ApplyRunOpts(opts []RunOpt) RunParams {
	o := &runOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return RunParams{Write: o.write}
}

// ─────────────────────────────────────────────────────────────────────────────
// Interfaces
// ─────────────────────────────────────────────────────────────────────────────

// Store is the write surface of the graph backend.
//
// Writes keyed by (label, id) must behave as upserts: repeating an identical
// call leaves the graph unchanged. Deletions of non-existent nodes are not
// errors. Implementations must be safe for concurrent use.
type Store interface {
	// UpsertNode merges the node by (Label, ID), replaces its properties, and
	// reconciles its outgoing edges: existing outgoing edges whose type is in
	// edgeTypes are removed, then every edge in edges is created. Passing a
	// type in edgeTypes with no matching entry in edges clears that edge type.
	// Edge targets missing from the graph are created as id-only stubs.
	//
	// The whole operation is atomic: on error the graph is unchanged.
	UpsertNode(ctx context.Context, node Node, edgeTypes []string, edges []Edge) error

	// GetNode captures the node identified by (label, id) together with all
	// edges touching it. Returns (nil, nil) when the node does not exist.
	GetNode(ctx context.Context, label, id string) (*Snapshot, error)

	// DeleteNode removes the node identified by (label, id) and every edge
	// touching it. Deleting a non-existent node is not an error.
	DeleteNode(ctx context.Context, label, id string) error

	// RestoreNode recreates a previously captured snapshot: the node, its
	// outgoing edges and its incoming edges. Edge endpoints missing from the
	// graph are recreated as id-only stubs.
	RestoreNode(ctx context.Context, snap Snapshot) error

	// Ping verifies connectivity to the backend.
	Ping(ctx context.Context) error
}

// Explorer is the introspection surface used to assemble retrieval context.
type Explorer interface {
	// Schema returns the normalized shape of the stored graph. Implementations
	// may serve cached results; callers must treat the value as read-only.
	Schema(ctx context.Context) (*Schema, error)

	// ExampleNodes samples up to limit nodes of the given label and returns
	// their properties. label must be a valid identifier; implementations
	// must reject anything else before touching the backend.
	// Returns an empty (non-nil) slice when the label has no nodes.
	ExampleNodes(ctx context.Context, label string, limit int) ([]map[string]any, error)
}

// Querier executes parameterised read queries produced by the query
// generator.
type Querier interface {
	// Run executes query with the given parameters and returns the result
	// table. The session is read-only unless [AllowWrite] is passed.
	// Cancellation and deadlines are honoured via ctx.
	Run(ctx context.Context, query string, params map[string]any, opts ...RunOpt) (*Result, error)
}

// Graph combines the full graph-backend capability set.
type Graph interface {
	Store
	Explorer
	Querier
}
