package engine

import (
	"context"
	"time"

	"github.com/MrWong99/graphseer/internal/observe"
	"github.com/MrWong99/graphseer/pkg/retrieve"
)

// RetrieveContext assembles the retrieval context for question. Collaborator
// failures never fail the call; they are absorbed into the bundle's Errors
// and the remaining sections carry what could be gathered.
func (e *Engine) RetrieveContext(ctx context.Context, question string, opts ...retrieve.Option) (*retrieve.Bundle, error) {
	start := time.Now()
	bundle, err := e.retriever.Retrieve(ctx, question, opts...)
	observe.ObserveSince(ctx, e.metrics.RetrieveDuration, start, observe.Attr("status", status(err)))
	return bundle, err
}

// SearchSimilar returns past question/query pairs similar to question,
// highest score first.
func (e *Engine) SearchSimilar(ctx context.Context, question string, opts ...retrieve.Option) ([]retrieve.SimilarRecord, error) {
	return e.retriever.SearchSimilar(ctx, question, opts...)
}

// Schema returns the stored graph's schema as sorted identifier sets.
func (e *Engine) Schema(ctx context.Context) (*retrieve.SchemaSummary, error) {
	return e.retriever.Schema(ctx)
}

// ExampleEntities returns up to perLabel sample rows for each label.
func (e *Engine) ExampleEntities(ctx context.Context, labels []string, perLabel int) (map[string][]map[string]any, error) {
	return e.retriever.ExampleEntities(ctx, labels, perLabel)
}

// EntityMetadata reports which configured entities and scopes the question
// mentions.
func (e *Engine) EntityMetadata(ctx context.Context, question string) (*retrieve.Metadata, error) {
	return e.retriever.EntityMetadata(ctx, question)
}
