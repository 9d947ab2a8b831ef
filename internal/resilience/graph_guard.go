package resilience

import (
	"context"

	"github.com/MrWong99/graphseer/pkg/graph"
)

// GraphGuard wraps a [graph.Graph] with a circuit breaker and bounded
// retries. All operations share one breaker because they share the
// backend: a store that cannot answer reads cannot take writes either.
//
// Transient failures (see [github.com/MrWong99/graphseer/pkg/errs.Retryable])
// are retried per the policy; invalid input and configuration errors
// surface immediately. While the breaker is open every call fails fast
// with KindCircuitOpen without touching the wrapped store.
type GraphGuard struct {
	inner   graph.Graph
	breaker *Breaker
	policy  RetryPolicy
}

var _ graph.Graph = (*GraphGuard)(nil)

// NewGraphGuard wraps inner with the given breaker settings and retry
// policy. Most callers want [StorePolicy].
func NewGraphGuard(inner graph.Graph, cfg BreakerConfig, policy RetryPolicy) *GraphGuard {
	return &GraphGuard{inner: inner, breaker: NewBreaker(cfg), policy: policy}
}

// Breaker exposes the guard's breaker so health checks can report its state.
func (g *GraphGuard) Breaker() *Breaker { return g.breaker }

func (g *GraphGuard) UpsertNode(ctx context.Context, node graph.Node, edgeTypes []string, edges []graph.Edge) error {
	return guardedErr(ctx, g.breaker, g.policy, func() error {
		return g.inner.UpsertNode(ctx, node, edgeTypes, edges)
	})
}

func (g *GraphGuard) GetNode(ctx context.Context, label, id string) (*graph.Snapshot, error) {
	return guarded(ctx, g.breaker, g.policy, func() (*graph.Snapshot, error) {
		return g.inner.GetNode(ctx, label, id)
	})
}

func (g *GraphGuard) DeleteNode(ctx context.Context, label, id string) error {
	return guardedErr(ctx, g.breaker, g.policy, func() error {
		return g.inner.DeleteNode(ctx, label, id)
	})
}

func (g *GraphGuard) RestoreNode(ctx context.Context, snap graph.Snapshot) error {
	return guardedErr(ctx, g.breaker, g.policy, func() error {
		return g.inner.RestoreNode(ctx, snap)
	})
}

func (g *GraphGuard) Ping(ctx context.Context) error {
	return guardedErr(ctx, g.breaker, g.policy, func() error {
		return g.inner.Ping(ctx)
	})
}

func (g *GraphGuard) Schema(ctx context.Context) (*graph.Schema, error) {
	return guarded(ctx, g.breaker, g.policy, func() (*graph.Schema, error) {
		return g.inner.Schema(ctx)
	})
}

func (g *GraphGuard) ExampleNodes(ctx context.Context, label string, limit int) ([]map[string]any, error) {
	return guarded(ctx, g.breaker, g.policy, func() ([]map[string]any, error) {
		return g.inner.ExampleNodes(ctx, label, limit)
	})
}

func (g *GraphGuard) Run(ctx context.Context, query string, params map[string]any, opts ...graph.RunOpt) (*graph.Result, error) {
	return guarded(ctx, g.breaker, g.policy, func() (*graph.Result, error) {
		return g.inner.Run(ctx, query, params, opts...)
	})
}
