package resilience

import (
	"context"

	"github.com/MrWong99/graphseer/pkg/errs"
	"github.com/MrWong99/graphseer/pkg/provider/embeddings"
)

// EmbedFallback implements [embeddings.Provider] with automatic failover
// across multiple embedding backends. Each backend has its own circuit
// breaker.
//
// Unlike LLM failover, embedding failover is only sound within a single
// vector space: vectors written by one model cannot be searched against
// vectors written by another. AddFallback therefore rejects providers whose
// dimensionality differs from the primary's, and deployments should pair
// fallbacks that share a model family (the same model served by two hosts,
// for example).
type EmbedFallback struct {
	group *FallbackGroup[embeddings.Provider]
	dims  int
}

// Compile-time interface assertion.
var _ embeddings.Provider = (*EmbedFallback)(nil)

// NewEmbedFallback creates an [EmbedFallback] with primary as the preferred
// backend. The primary's dimensionality becomes the group's.
func NewEmbedFallback(primary embeddings.Provider, primaryName string, cfg FallbackConfig) *EmbedFallback {
	return &EmbedFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
		dims:  primary.Dimensions(),
	}
}

// AddFallback registers an additional embedding provider. A provider whose
// vector dimensionality differs from the primary's is rejected, because its
// vectors would corrupt every similarity search in the collection.
func (f *EmbedFallback) AddFallback(name string, provider embeddings.Provider) error {
	if got := provider.Dimensions(); got != f.dims {
		return errs.Newf(errs.KindConfiguration, "embed fallback",
			"provider %s produces %d-dimensional vectors, group needs %d", name, got, f.dims)
	}
	f.group.AddFallback(name, provider)
	return nil
}

// Embed computes the embedding through the first healthy provider.
func (f *EmbedFallback) Embed(ctx context.Context, text string) ([]float32, error) {
	return ExecuteWithResult(ctx, f.group, func(p embeddings.Provider) ([]float32, error) {
		return p.Embed(ctx, text)
	})
}

// EmbedBatch computes the batch through the first healthy provider. The
// whole batch goes to one provider; it is never split across entries.
func (f *EmbedFallback) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return ExecuteWithResult(ctx, f.group, func(p embeddings.Provider) ([][]float32, error) {
		return p.EmbedBatch(ctx, texts)
	})
}

// Dimensions returns the shared dimensionality of every entry in the group.
func (f *EmbedFallback) Dimensions() int { return f.dims }

// ModelID returns the primary's model identifier.
func (f *EmbedFallback) ModelID() string {
	return f.group.entries[0].value.ModelID()
}
