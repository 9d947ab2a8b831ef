// Package embeddings defines the Provider interface for text-embedding
// backends.
//
// The engine embeds two kinds of text: at ingest time, the concatenated
// embed fields of a domain entity; at retrieval time, the user's question.
// Similarity search only works when both come from the same model space, so
// one Provider instance serves a whole deployment and its dimension fixes
// the dimension of every vector collection.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// All embedding vectors returned by a single Provider instance share the
// same dimensionality (returned by Dimensions). Callers must not mix vectors
// from different Provider instances in the same similarity computation
// unless they have verified that both use the same model and space.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Embed computes the embedding vector for a single text string. Returns
	// a float32 slice of length Dimensions() or an error if the request
	// fails or ctx is cancelled.
	//
	// Text is passed through verbatim; any model-specific formatting (such
	// as a "query: " prefix for retrieval tasks) is the caller's
	// responsibility.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes embedding vectors for a slice of texts in a
	// single provider call. Batch ingest groups the embed inputs of many
	// entities into one such call. The returned slice has the same length
	// as texts and the i-th element corresponds to texts[i].
	//
	// Returns an error if any single embedding fails or if ctx is
	// cancelled. Partial results are not returned — on error the entire
	// slice is nil.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed length of every embedding vector
	// produced by this provider. Vector collections must be created with
	// this dimension.
	Dimensions() int

	// ModelID returns the provider-specific model identifier used for
	// embeddings (e.g., "text-embedding-3-small", "nomic-embed-text").
	// Useful for logging and for pinning a deployment to one model.
	ModelID() string
}
