// Package mock provides a test double for the graph interfaces.
//
// Use Graph to return pre-canned snapshots, schemas and query results without
// a live server, and to verify which store operations a pipeline performed.
//
// Example:
//
//	g := &mock.Graph{
//	    GetNodeResult: &graph.Snapshot{Node: graph.Node{Label: "Person", ID: "p1"}},
//	}
//	snap, _ := g.GetNode(ctx, "Person", "p1")
//	if g.CallCount("GetNode") != 1 { ... }
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/graphseer/pkg/graph"
)

// Call records a single method invocation on [Graph].
type Call struct {
	// Method is the invoked method's name, e.g. "UpsertNode".
	Method string
	// Args holds the non-context arguments in declaration order.
	Args []any
}

// Graph is a mock implementation of [graph.Graph].
type Graph struct {
	mu    sync.Mutex
	calls []Call

	// ──── UpsertNode ───────────────────────────────────────────────────────
	UpsertNodeErr error

	// ──── GetNode ──────────────────────────────────────────────────────────
	GetNodeResult *graph.Snapshot
	GetNodeErr    error

	// ──── DeleteNode ───────────────────────────────────────────────────────
	DeleteNodeErr error

	// ──── RestoreNode ──────────────────────────────────────────────────────
	RestoreNodeErr error

	// ──── Ping ─────────────────────────────────────────────────────────────
	PingErr error

	// ──── Schema ───────────────────────────────────────────────────────────
	SchemaResult *graph.Schema
	SchemaErr    error

	// ──── ExampleNodes ─────────────────────────────────────────────────────
	ExampleNodesResult []map[string]any
	ExampleNodesErr    error

	// ──── Run ──────────────────────────────────────────────────────────────
	RunResult *graph.Result
	RunErr    error
}

// Calls returns a copy of all recorded method invocations.
func (g *Graph) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Call, len(g.calls))
	copy(out, g.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (g *Graph) CallCount(method string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls without altering response configuration.
func (g *Graph) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = nil
}

// UpsertNode implements [graph.Store].
func (g *Graph) UpsertNode(_ context.Context, node graph.Node, edgeTypes []string, edges []graph.Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, Call{Method: "UpsertNode", Args: []any{node, edgeTypes, edges}})
	return g.UpsertNodeErr
}

// GetNode implements [graph.Store].
func (g *Graph) GetNode(_ context.Context, label, id string) (*graph.Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, Call{Method: "GetNode", Args: []any{label, id}})
	return g.GetNodeResult, g.GetNodeErr
}

// DeleteNode implements [graph.Store].
func (g *Graph) DeleteNode(_ context.Context, label, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, Call{Method: "DeleteNode", Args: []any{label, id}})
	return g.DeleteNodeErr
}

// RestoreNode implements [graph.Store].
func (g *Graph) RestoreNode(_ context.Context, snap graph.Snapshot) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, Call{Method: "RestoreNode", Args: []any{snap}})
	return g.RestoreNodeErr
}

// Ping implements [graph.Store].
func (g *Graph) Ping(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, Call{Method: "Ping", Args: nil})
	return g.PingErr
}

// Schema implements [graph.Explorer].
func (g *Graph) Schema(_ context.Context) (*graph.Schema, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, Call{Method: "Schema", Args: nil})
	return g.SchemaResult, g.SchemaErr
}

// ExampleNodes implements [graph.Explorer].
func (g *Graph) ExampleNodes(_ context.Context, label string, limit int) ([]map[string]any, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, Call{Method: "ExampleNodes", Args: []any{label, limit}})
	if g.ExampleNodesResult == nil {
		return []map[string]any{}, g.ExampleNodesErr
	}
	out := make([]map[string]any, len(g.ExampleNodesResult))
	copy(out, g.ExampleNodesResult)
	return out, g.ExampleNodesErr
}

// Run implements [graph.Querier].
func (g *Graph) Run(_ context.Context, query string, params map[string]any, opts ...graph.RunOpt) (*graph.Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, Call{Method: "Run", Args: []any{query, params, graph.ApplyRunOpts(opts)}})
	return g.RunResult, g.RunErr
}

// Ensure Graph implements graph.Graph at compile time.
var _ graph.Graph = (*Graph)(nil)
