package similarity

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// semanticMatches scores candidates against the normalized query by embedding
// cosine similarity. The whole pass runs under the engine's semantic budget;
// on any provider failure or timeout the pass contributes nothing and the
// condition is logged at warning level. It never surfaces an error to the
// caller — semantic matching is strictly best-effort.
func (e *Engine) semanticMatches(ctx context.Context, query string, candidates []FieldDescriptor) []SimilarityResult {
	ctx, cancel := context.WithTimeout(ctx, e.semanticBudget)
	defer cancel()

	// Deduplicate texts within the invocation: the query and every distinct
	// candidate name are embedded at most once.
	names := make([]string, 0, len(candidates))
	seen := map[string]struct{}{query: {}}
	texts := []string{query}
	for _, c := range candidates {
		name := Normalize(c.Name)
		names = append(names, name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		texts = append(texts, name)
	}

	vectors, err := e.embedAll(ctx, texts)
	if err != nil {
		e.log.Warn("semantic matching unavailable for this invocation",
			"provider", e.provider.ModelID(), "err", err)
		return nil
	}

	queryVec, ok := vectors[query]
	if !ok {
		return nil
	}

	var results []SimilarityResult
	for i, c := range candidates {
		vec, ok := vectors[names[i]]
		if !ok {
			continue
		}
		sim := CosineSimilarity(queryVec, vec)
		if sim < e.semanticThreshold {
			continue
		}
		results = append(results, SimilarityResult{
			Field:       c,
			Score:       e.semanticScore(sim),
			Kind:        MatchSemantic,
			Explanation: fmt.Sprintf("similar concept (~%.0f%% similarity)", sim*100),
		})
	}
	return results
}

// embedAll resolves an embedding vector for every text, reading the cache
// first and batching all misses into a single provider call. Cache failures
// degrade to misses; writing freshly embedded vectors back is best-effort.
// A provider failure fails the whole lookup — partial semantic results from
// an unhealthy provider are worse than none.
func (e *Engine) embedAll(ctx context.Context, texts []string) (map[string][]float32, error) {
	vectors := make(map[string][]float32, len(texts))
	var misses []string

	if e.cache == nil {
		misses = texts
	} else {
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.embedConcurrency)

		for _, text := range texts {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				vec, ok, err := e.cache.Get(gctx, text)
				if err != nil {
					// Treat an unreachable cache as a miss, not a failure.
					e.log.Warn("embedding cache read failed", "key", text, "err", err)
					ok = false
				}
				mu.Lock()
				defer mu.Unlock()
				if ok {
					vectors[text] = vec
				} else {
					misses = append(misses, text)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("similarity: cache lookup: %w", err)
		}
	}

	if len(misses) == 0 {
		return vectors, nil
	}

	// Goroutine completion order is nondeterministic; sort so the provider
	// sees a stable batch for identical inputs.
	sort.Strings(misses)

	embedded, err := e.provider.EmbedBatch(ctx, misses)
	if err != nil {
		return nil, fmt.Errorf("similarity: embed batch of %d: %w", len(misses), err)
	}
	if len(embedded) != len(misses) {
		return nil, fmt.Errorf("similarity: provider returned %d vectors for %d texts", len(embedded), len(misses))
	}

	for i, text := range misses {
		vectors[text] = embedded[i]
		if e.cache == nil {
			continue
		}
		if err := e.cache.Set(ctx, text, embedded[i], e.cacheTTL); err != nil {
			e.log.Warn("embedding cache write failed", "key", text, "err", err)
		}
	}
	return vectors, nil
}

// semanticScore maps a cosine similarity from [threshold, 1.0] linearly into
// the semantic score band, strictly below the edit-distance band.
func (e *Engine) semanticScore(sim float64) float64 {
	span := 1.0 - e.semanticThreshold
	if span <= 0 {
		return semanticBandHigh
	}
	return semanticBandLow + (sim-e.semanticThreshold)/span*(semanticBandHigh-semanticBandLow)
}

// CosineSimilarity computes the cosine of the angle between two vectors,
// clipped into [0.0, 1.0]. Floating-point rounding can push the raw value of
// near-parallel unit vectors fractionally outside the valid range; the clip
// guarantees downstream score arithmetic stays in band. Mismatched or
// zero-length vectors yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
