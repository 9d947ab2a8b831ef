package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/MrWong99/graphseer/internal/observe"
	"github.com/MrWong99/graphseer/pkg/errs"
)

// RetryPolicy bounds the retry loop for one class of operation.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries including the first. Values
	// below 1 are treated as 1.
	MaxAttempts int

	// InitialInterval seeds the exponential backoff schedule. Zero keeps the
	// backoff library default.
	InitialInterval time.Duration

	// MaxInterval caps the wait between attempts. Zero keeps the backoff
	// library default.
	MaxInterval time.Duration
}

// StorePolicy returns the default policy for graph and vector store calls.
func StorePolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// NetworkPolicy returns the default policy for remote provider calls, which
// tolerate more attempts because rate limits and transient 5xx responses are
// routine there.
func NetworkPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// Retry runs op until it succeeds, a non-retryable error surfaces, the
// attempt budget is exhausted, or ctx is done. Waits between attempts follow
// exponential backoff with jitter. Whether an error is worth another attempt
// is decided by [errs.Retryable]; everything else, including query timeouts
// and open breakers, fails on the spot.
func Retry(ctx context.Context, policy RetryPolicy, op func() error) error {
	_, err := RetryValue(ctx, policy, func() (struct{}, error) {
		return struct{}{}, op()
	})
	return err
}

// RetryValue is [Retry] for operations that produce a value. The value of
// the last attempt is returned alongside its error.
func RetryValue[T any](ctx context.Context, policy RetryPolicy, op func() (T, error)) (T, error) {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	bo := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		bo.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		bo.MaxInterval = policy.MaxInterval
	}
	bo.MaxElapsedTime = 0 // the attempt budget bounds the loop, not wall time

	attempt := 0
	schedule := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(policy.MaxAttempts-1)), ctx)
	return backoff.RetryNotifyWithData(
		func() (T, error) {
			attempt++
			v, err := op()
			if err != nil && !errs.Retryable(err) {
				return v, backoff.Permanent(err)
			}
			return v, err
		},
		schedule,
		func(err error, wait time.Duration) {
			observe.Logger(ctx).Debug("retrying after transient failure",
				"attempt", attempt, "wait", wait, "error", err)
		},
	)
}
