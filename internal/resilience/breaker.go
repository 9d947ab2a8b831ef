// Package resilience wraps outbound store and provider calls with circuit
// breaking and bounded retries.
//
// The two guards compose with the retry loop on the outside:
//
//	err := resilience.Retry(ctx, resilience.StorePolicy(), func() error {
//		return breaker.Do(ctx, func() error { return graph.UpsertNode(ctx, node) })
//	})
//
// A breaker that opens mid-loop fails fast with a [errs.KindCircuitOpen]
// error, which is not retryable, so the loop stops immediately instead of
// hammering a dependency that is already known to be down.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/MrWong99/graphseer/internal/observe"
	"github.com/MrWong99/graphseer/pkg/errs"
)

const (
	defaultFailureThreshold = 5
	defaultRecoveryTimeout  = 30 * time.Second
)

// BreakerConfig tunes the circuit breaker guarding one dependency.
type BreakerConfig struct {
	// Name identifies the dependency in logs, metrics, and errors
	// ("neo4j", "qdrant", "openai").
	Name string

	// FailureThreshold is the number of consecutive failures that trips the
	// breaker open. Defaults to 5.
	FailureThreshold uint32

	// RecoveryTimeout is how long the breaker stays open before letting a
	// single probe call through. Defaults to 30s.
	RecoveryTimeout time.Duration
}

// Breaker guards calls to a single dependency. While the breaker is open,
// Do fails immediately with a [errs.KindCircuitOpen] error instead of
// touching the dependency. After RecoveryTimeout one probe call is allowed;
// its outcome decides between closing again and another open period.
//
// A Breaker is safe for concurrent use.
type Breaker struct {
	name string
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker returns a closed breaker for the named dependency.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = defaultFailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = defaultRecoveryTimeout
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1, // one probe while half-open
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			// Caller cancellation is not a dependency failure and must not
			// push the breaker toward open.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			level := slog.LevelInfo
			if to == gobreaker.StateOpen {
				level = slog.LevelWarn
			}
			slog.Default().Log(context.Background(), level, "circuit breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
			observe.DefaultMetrics().RecordBreakerTransition(context.Background(),
				name, from.String(), to.String())
		},
	})
	return &Breaker{name: cfg.Name, cb: cb}
}

// Do runs op through the breaker. When the breaker is open, or the half-open
// probe slot is taken, op is not called and a [errs.KindCircuitOpen] error is
// returned. Otherwise op's error is returned unchanged so the caller's own
// classification survives.
func (b *Breaker) Do(ctx context.Context, op func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.cb.Execute(func() (any, error) {
		return nil, op()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errs.Wrapf(errs.KindCircuitOpen, b.name+" breaker", err,
			"%s unavailable, failing fast", b.name)
	}
	return err
}

// Name returns the dependency name the breaker guards.
func (b *Breaker) Name() string { return b.name }

// State returns the breaker's current state as "closed", "half-open", or
// "open". Health reporting includes it per dependency.
func (b *Breaker) State() string { return b.cb.State().String() }
