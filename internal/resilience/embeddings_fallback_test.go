package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	embmock "github.com/0ui-labs/fieldmatch/pkg/provider/embeddings/mock"
)

func TestEmbeddingsFallback_EmbedBatch_PrimarySuccess(t *testing.T) {
	primary := &embmock.Provider{
		EmbedBatchResult: [][]float32{{1, 0}, {0, 1}},
	}
	secondary := &embmock.Provider{
		EmbedBatchResult: [][]float32{{9, 9}, {9, 9}},
	}

	fb := NewEmbeddingsFallback(primary, "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("ollama", secondary)

	vecs, err := fb.EmbedBatch(context.Background(), []string{"video rating", "overall score"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 2 || vecs[0][0] != 1 {
		t.Fatalf("vecs = %v, want primary's vectors", vecs)
	}
	if len(primary.EmbedBatchCalls) != 1 {
		t.Fatalf("primary called %d times, want 1", len(primary.EmbedBatchCalls))
	}
	if len(secondary.EmbedBatchCalls) != 0 {
		t.Fatalf("secondary called %d times, want 0", len(secondary.EmbedBatchCalls))
	}
}

func TestEmbeddingsFallback_EmbedBatch_Failover(t *testing.T) {
	primary := &embmock.Provider{
		EmbedBatchErr: errors.New("primary down"),
	}
	secondary := &embmock.Provider{
		EmbedBatchResult: [][]float32{{0.5, 0.5}},
	}

	fb := NewEmbeddingsFallback(primary, "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("ollama", secondary)

	vecs, err := fb.EmbedBatch(context.Background(), []string{"video rating"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vecs) != 1 || vecs[0][0] != 0.5 {
		t.Fatalf("vecs = %v, want secondary's vectors", vecs)
	}
	if len(secondary.EmbedBatchCalls) != 1 {
		t.Fatalf("secondary called %d times, want 1", len(secondary.EmbedBatchCalls))
	}
}

func TestEmbeddingsFallback_EmbedBatch_AllFail(t *testing.T) {
	primary := &embmock.Provider{EmbedBatchErr: errors.New("primary down")}
	secondary := &embmock.Provider{EmbedBatchErr: errors.New("secondary down")}

	fb := NewEmbeddingsFallback(primary, "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("ollama", secondary)

	_, err := fb.EmbedBatch(context.Background(), []string{"video rating"})
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestEmbeddingsFallback_Embed_Failover(t *testing.T) {
	primary := &embmock.Provider{EmbedErr: errors.New("primary down")}
	secondary := &embmock.Provider{EmbedResult: []float32{0.25}}

	fb := NewEmbeddingsFallback(primary, "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("ollama", secondary)

	vec, err := fb.Embed(context.Background(), "video rating")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 1 || vec[0] != 0.25 {
		t.Fatalf("vec = %v, want secondary's vector", vec)
	}
}

// TestEmbeddingsFallback_OpenBreakerSkipsPrimary verifies that after enough
// consecutive failures the primary is not even attempted, so a dead endpoint
// costs nothing per lookup.
func TestEmbeddingsFallback_OpenBreakerSkipsPrimary(t *testing.T) {
	primary := &embmock.Provider{EmbedBatchErr: errors.New("primary down")}
	secondary := &embmock.Provider{EmbedBatchResult: [][]float32{{1}}}

	fb := NewEmbeddingsFallback(primary, "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{
			MaxFailures:  2,
			ResetTimeout: time.Hour,
		},
	})
	fb.AddFallback("ollama", secondary)

	// Two failing calls open the primary's breaker.
	for i := 0; i < 2; i++ {
		if _, err := fb.EmbedBatch(context.Background(), []string{"x"}); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
	}
	attemptsBefore := len(primary.EmbedBatchCalls)

	if _, err := fb.EmbedBatch(context.Background(), []string{"x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := len(primary.EmbedBatchCalls); got != attemptsBefore {
		t.Errorf("primary attempted %d times after breaker opened, want %d", got, attemptsBefore)
	}
}

func TestEmbeddingsFallback_StaticMetadataFromPrimary(t *testing.T) {
	primary := &embmock.Provider{DimensionsValue: 1536, ModelIDValue: "text-embedding-3-small"}
	secondary := &embmock.Provider{DimensionsValue: 768, ModelIDValue: "nomic-embed-text"}

	fb := NewEmbeddingsFallback(primary, "openai", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 3},
	})
	fb.AddFallback("ollama", secondary)

	if got := fb.Dimensions(); got != 1536 {
		t.Errorf("Dimensions = %d, want the primary's 1536", got)
	}
	if got := fb.ModelID(); got != "text-embedding-3-small" {
		t.Errorf("ModelID = %q, want the primary's", got)
	}
}
