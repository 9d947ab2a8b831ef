package resilience

import (
	"context"

	"github.com/MrWong99/graphseer/pkg/vector"
)

// VectorGuard wraps a [vector.Store] the same way [GraphGuard] wraps a
// graph store: one shared breaker per backend plus bounded retries for
// transient failures.
type VectorGuard struct {
	inner   vector.Store
	breaker *Breaker
	policy  RetryPolicy
}

var _ vector.Store = (*VectorGuard)(nil)

// NewVectorGuard wraps inner with the given breaker settings and retry
// policy. Most callers want [StorePolicy].
func NewVectorGuard(inner vector.Store, cfg BreakerConfig, policy RetryPolicy) *VectorGuard {
	return &VectorGuard{inner: inner, breaker: NewBreaker(cfg), policy: policy}
}

// Breaker exposes the guard's breaker so health checks can report its state.
func (v *VectorGuard) Breaker() *Breaker { return v.breaker }

func (v *VectorGuard) CreateCollection(ctx context.Context, name string, dims int) error {
	return guardedErr(ctx, v.breaker, v.policy, func() error {
		return v.inner.CreateCollection(ctx, name, dims)
	})
}

func (v *VectorGuard) CollectionExists(ctx context.Context, name string) (bool, error) {
	return guarded(ctx, v.breaker, v.policy, func() (bool, error) {
		return v.inner.CollectionExists(ctx, name)
	})
}

func (v *VectorGuard) Upsert(ctx context.Context, collection string, points []vector.Point) error {
	return guardedErr(ctx, v.breaker, v.policy, func() error {
		return v.inner.Upsert(ctx, collection, points)
	})
}

func (v *VectorGuard) Search(ctx context.Context, collection string, vec []float32, opts ...vector.SearchOpt) ([]vector.Match, error) {
	return guarded(ctx, v.breaker, v.policy, func() ([]vector.Match, error) {
		return v.inner.Search(ctx, collection, vec, opts...)
	})
}

func (v *VectorGuard) Delete(ctx context.Context, collection, id string) error {
	return guardedErr(ctx, v.breaker, v.policy, func() error {
		return v.inner.Delete(ctx, collection, id)
	})
}

func (v *VectorGuard) Ping(ctx context.Context) error {
	return guardedErr(ctx, v.breaker, v.policy, func() error {
		return v.inner.Ping(ctx)
	})
}
