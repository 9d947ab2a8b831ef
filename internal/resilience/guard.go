package resilience

import "context"

// guardedErr runs op through the breaker inside a retry loop. The breaker
// sits inside so that every attempt counts toward its failure threshold
// and an open breaker fails the remaining attempts fast.
func guardedErr(ctx context.Context, b *Breaker, policy RetryPolicy, op func() error) error {
	return Retry(ctx, policy, func() error {
		return b.Do(ctx, op)
	})
}

// guarded is guardedErr for operations that produce a value.
func guarded[T any](ctx context.Context, b *Breaker, policy RetryPolicy, op func() (T, error)) (T, error) {
	return RetryValue(ctx, policy, func() (T, error) {
		var v T
		err := b.Do(ctx, func() error {
			var opErr error
			v, opErr = op()
			return opErr
		})
		return v, err
	})
}
