package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/graphseer/pkg/errs"
	embmock "github.com/MrWong99/graphseer/pkg/provider/embeddings/mock"
)

func TestEmbedFallback_Embed_PrimarySuccess(t *testing.T) {
	primary := &embmock.Provider{
		EmbedResult:     []float32{0.1, 0.2, 0.3},
		DimensionsValue: 3,
		ModelIDValue:    "text-embedding-3-small",
	}
	secondary := &embmock.Provider{
		EmbedResult:     []float32{0.9, 0.9, 0.9},
		DimensionsValue: 3,
	}

	fb := NewEmbedFallback(primary, "openai", FallbackConfig{
		Breaker: BreakerConfig{FailureThreshold: 3},
	})
	if err := fb.AddFallback("ollama", secondary); err != nil {
		t.Fatalf("AddFallback: %v", err)
	}

	got, err := fb.Embed(context.Background(), "how many volunteers are there")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] != 0.1 {
		t.Fatalf("vector = %v, want the primary's", got)
	}
	if len(secondary.EmbedCalls) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.EmbedCalls))
	}
}

func TestEmbedFallback_Embed_Failover(t *testing.T) {
	primary := &embmock.Provider{
		EmbedErr:        errors.New("rate limited"),
		DimensionsValue: 3,
	}
	secondary := &embmock.Provider{
		EmbedResult:     []float32{0.5, 0.5, 0.5},
		DimensionsValue: 3,
	}

	fb := NewEmbedFallback(primary, "openai", FallbackConfig{
		Breaker: BreakerConfig{FailureThreshold: 3},
	})
	if err := fb.AddFallback("ollama", secondary); err != nil {
		t.Fatalf("AddFallback: %v", err)
	}

	got, err := fb.Embed(context.Background(), "question")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] != 0.5 {
		t.Fatalf("vector = %v, want the secondary's", got)
	}
}

func TestEmbedFallback_EmbedBatch_Failover(t *testing.T) {
	primary := &embmock.Provider{
		EmbedBatchErr:   errors.New("down"),
		DimensionsValue: 2,
	}
	secondary := &embmock.Provider{
		EmbedBatchResult: [][]float32{{1, 2}, {3, 4}},
		DimensionsValue:  2,
	}

	fb := NewEmbedFallback(primary, "openai", FallbackConfig{
		Breaker: BreakerConfig{FailureThreshold: 3},
	})
	if err := fb.AddFallback("ollama", secondary); err != nil {
		t.Fatalf("AddFallback: %v", err)
	}

	got, err := fb.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[1][1] != 4 {
		t.Fatalf("batch = %v, want the secondary's", got)
	}
}

func TestEmbedFallback_RejectsDimensionMismatch(t *testing.T) {
	primary := &embmock.Provider{DimensionsValue: 1536}
	wrong := &embmock.Provider{DimensionsValue: 768}

	fb := NewEmbedFallback(primary, "openai", FallbackConfig{})
	err := fb.AddFallback("ollama", wrong)
	if err == nil {
		t.Fatal("expected dimension mismatch to be rejected")
	}
	if got := errs.KindOf(err); got != errs.KindConfiguration {
		t.Fatalf("kind = %v, want KindConfiguration", got)
	}
}

func TestEmbedFallback_DimensionsAndModelID(t *testing.T) {
	primary := &embmock.Provider{
		DimensionsValue: 1536,
		ModelIDValue:    "text-embedding-3-small",
	}

	fb := NewEmbedFallback(primary, "openai", FallbackConfig{})
	if got := fb.Dimensions(); got != 1536 {
		t.Fatalf("Dimensions() = %d, want 1536", got)
	}
	if got := fb.ModelID(); got != "text-embedding-3-small" {
		t.Fatalf("ModelID() = %q, want text-embedding-3-small", got)
	}
}
