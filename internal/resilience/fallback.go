package resilience

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/graphseer/internal/observe"
	"github.com/MrWong99/graphseer/pkg/errs"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] fails or has
// an open circuit breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures the per-entry circuit breaker created for each
// provider in a [FallbackGroup]. The Name field is overwritten per entry.
type FallbackConfig struct {
	Breaker BreakerConfig
}

// fallbackEntry pairs a provider value with its dedicated circuit breaker.
type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *Breaker
}

// FallbackGroup wraps a primary and zero or more fallback instances of the
// same provider type. When the primary fails (or its circuit breaker is
// open), the next healthy fallback is tried in registration order.
//
// Registration must finish before the first Execute; after that a
// FallbackGroup is safe for concurrent use.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a [FallbackGroup] with primary as the first entry.
// Additional fallbacks are registered via [FallbackGroup.AddFallback].
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	bCfg := cfg.Breaker
	bCfg.Name = primaryName
	return &FallbackGroup[T]{
		entries: []fallbackEntry[T]{
			{
				name:    primaryName,
				value:   primary,
				breaker: NewBreaker(bCfg),
			},
		},
		cfg: cfg,
	}
}

// AddFallback appends a fallback provider. Fallbacks are tried in the order
// they are added, after the primary.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	bCfg := fg.cfg.Breaker
	bCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   fallback,
		breaker: NewBreaker(bCfg),
	})
}

// Execute tries fn against each entry in order until one succeeds.
// Open-breaker entries are skipped. Returns [ErrAllFailed] wrapped with the
// last error if every entry fails; a canceled ctx aborts the walk with the
// context's error instead, because cancellation says nothing about provider
// health.
func (fg *FallbackGroup[T]) Execute(ctx context.Context, fn func(T) error) error {
	var lastErr error
	for i := range fg.entries {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		entry := &fg.entries[i]
		err := entry.breaker.Do(ctx, func() error {
			return fn(entry.value)
		})
		if err == nil {
			return nil
		}
		lastErr = err
		if errs.IsKind(err, errs.KindCircuitOpen) {
			observe.Logger(ctx).Debug("skipping provider, circuit open", "provider", entry.name)
		} else {
			observe.Logger(ctx).Warn("provider failed, trying next",
				"provider", entry.name, "error", err)
		}
	}
	return fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// ExecuteWithResult tries fn against each entry in the group until one
// succeeds, returning both the result value and error. This is a
// package-level function because Go does not support method-level type
// parameters.
func ExecuteWithResult[T any, R any](ctx context.Context, fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range fg.entries {
		if cerr := ctx.Err(); cerr != nil {
			return zero, cerr
		}
		entry := &fg.entries[i]
		var result R
		err := entry.breaker.Do(ctx, func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errs.IsKind(err, errs.KindCircuitOpen) {
			observe.Logger(ctx).Debug("skipping provider, circuit open", "provider", entry.name)
		} else {
			observe.Logger(ctx).Warn("provider failed, trying next",
				"provider", entry.name, "error", err)
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
