package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrWong99/graphseer/pkg/provider/embeddings"
	"github.com/MrWong99/graphseer/pkg/provider/llm"
)

// Pinger is the connectivity probe both store contracts expose.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping returns a checker that verifies connectivity to a store backend.
// Used for the graph store ("graph") and the vector store ("vector").
func Ping(name string, p Pinger) Checker {
	return Checker{
		Name:  name,
		Check: p.Ping,
	}
}

// Embedder returns a checker that runs a one-word embedding through the
// provider and verifies the vector has the advertised dimensionality.
// Each check is a billable API call; wrap in [Cached] before registering.
func Embedder(e embeddings.Provider) Checker {
	return Checker{
		Name: "embedder",
		Check: func(ctx context.Context) error {
			vec, err := e.Embed(ctx, "ready")
			if err != nil {
				return err
			}
			if want := e.Dimensions(); len(vec) != want {
				return fmt.Errorf("embedding has %d dimensions, model %s advertises %d", len(vec), e.ModelID(), want)
			}
			return nil
		},
	}
}

// LLM returns a checker that requests a minimal completion from the
// provider. Each check is a billable API call; wrap in [Cached] before
// registering.
func LLM(p llm.Provider) Checker {
	return Checker{
		Name: "llm",
		Check: func(ctx context.Context) error {
			_, err := p.Complete(ctx, llm.CompletionRequest{
				Messages:  []llm.Message{llm.User("Reply with the single word: ready")},
				MaxTokens: 8,
			})
			return err
		},
	}
}

// BreakerState is the subset of a circuit breaker the health surface reads.
type BreakerState interface {
	Name() string
	State() string
}

// Breaker returns a checker that fails while the given circuit breaker is
// open. It never touches the network, so an outage reported by the breaker
// turns the pod unready without adding probe load to the failing backend.
func Breaker(b BreakerState) Checker {
	return Checker{
		Name: "breaker_" + b.Name(),
		Check: func(context.Context) error {
			if s := b.State(); s == "open" {
				return fmt.Errorf("circuit breaker %s is open", b.Name())
			}
			return nil
		},
	}
}

// Cached wraps a checker so its result is reused for ttl before the
// dependency is probed again. Readiness endpoints are polled every few
// seconds; without the cache every poll would hit the provider APIs.
func Cached(c Checker, ttl time.Duration) Checker {
	var (
		mu      sync.Mutex
		last    error
		checked time.Time
	)
	return Checker{
		Name: c.Name,
		Check: func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			if !checked.IsZero() && time.Since(checked) < ttl {
				return last
			}
			last = c.Check(ctx)
			checked = time.Now()
			return last
		},
	}
}
