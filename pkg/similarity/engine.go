// Package similarity implements the field-name similarity detection engine:
// given a proposed field name and a set of already-registered field
// definitions, it decides which existing fields the proposal duplicates, is a
// likely typo of, or is semantically equivalent to.
//
// Three comparison strategies run as a pipeline:
//
//  1. Exact matching: case-insensitive equality after normalization. An exact
//     hit makes the expensive semantic strategy pointless, so it is skipped
//     entirely, and the matched candidates are never re-scored by the weaker
//     strategies.
//  2. Edit-distance matching: bounded Levenshtein distance, including a
//     best-pairwise-token comparison so a typo of one word inside a
//     multi-word name is still caught.
//  3. Semantic matching (optional): embedding cosine similarity via an
//     external provider fronted by a cache. Strictly best-effort — provider
//     failure degrades the invocation to edit-distance-only behaviour and is
//     never surfaced as an error.
//
// Each strategy maps its raw signal onto a reserved score band (exact 1.0,
// edit distance [0.80, 0.99], semantic [0.60, 0.79]). The bands never
// overlap, so sorting the merged results by score alone yields the intended
// precedence ordering.
//
// The engine holds no state between invocations beyond the injected cache and
// provider collaborators; an invocation is a pure function of its inputs and
// the availability of those collaborators.
package similarity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/0ui-labs/fieldmatch/pkg/embedcache"
	"github.com/0ui-labs/fieldmatch/pkg/provider/embeddings"
)

// Score-band bounds. Band disjointness is the invariant the ranker relies on;
// the linear mapping inside each band is a tunable detail.
const (
	// ScoreExact is the score of every exact match.
	ScoreExact = 1.0

	editBandLow  = 0.80
	editBandHigh = 0.99

	semanticBandLow  = 0.60
	semanticBandHigh = 0.79

	// MinScore is the global floor applied before results are returned, so
	// low-confidence semantic near-misses never reach the caller.
	MinScore = 0.60
)

// Tuning defaults. All overridable via options.
const (
	defaultEditDistanceMax   = 3
	defaultSemanticThreshold = 0.75
	defaultSemanticBudget    = 500 * time.Millisecond
	defaultEmbedConcurrency  = 4
	defaultCacheTTL          = 24 * time.Hour
)

// Option is a functional option for configuring an [Engine].
type Option func(*Engine)

// WithProvider injects the embedding provider used for semantic matching.
// Without one, semantic matching is silently unavailable and the engine
// behaves as if includeSemantic were always false.
func WithProvider(p embeddings.Provider) Option {
	return func(e *Engine) {
		e.provider = p
	}
}

// WithCache injects the embedding cache consulted before the provider.
// Without one, every semantic invocation calls the provider directly.
func WithCache(c embedcache.Store) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithLogger sets the logger for degradation warnings. Defaults to
// [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithEditDistanceMax sets the inclusive edit-distance gate. Candidates
// further away produce no edit-distance result. Default: 3.
func WithEditDistanceMax(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.editDistanceMax = n
		}
	}
}

// WithSemanticThreshold sets the minimum cosine similarity for a semantic
// match. Must be in (0, 1); out-of-range values are ignored. Default: 0.75.
func WithSemanticThreshold(t float64) Option {
	return func(e *Engine) {
		if t > 0 && t < 1 {
			e.semanticThreshold = t
		}
	}
}

// WithSemanticBudget sets the total time budget for one invocation's semantic
// pass, covering cache reads and provider calls. On timeout the strategy is
// dropped and the invocation still returns edit-distance results.
// Default: 500ms.
func WithSemanticBudget(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.semanticBudget = d
		}
	}
}

// WithMinScore raises the global score floor above [MinScore]. Results below
// the floor are dropped after ranking. Values outside (0, 1] are ignored.
func WithMinScore(s float64) Option {
	return func(e *Engine) {
		if s > 0 && s <= 1 {
			e.minScore = s
		}
	}
}

// WithEmbedConcurrency caps parallel cache lookups within one invocation.
// Default: 4.
func WithEmbedConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.embedConcurrency = n
		}
	}
}

// WithCacheTTL sets the time-to-live for embedding vectors written to the
// cache. Default: 24h.
func WithCacheTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.cacheTTL = d
		}
	}
}

// Engine performs duplicate detection for proposed field names. Construct
// with [New]; all methods are safe for concurrent use because the Engine is
// read-only after construction (the injected cache and provider must provide
// their own concurrency safety).
type Engine struct {
	provider embeddings.Provider
	cache    embedcache.Store
	log      *slog.Logger

	editDistanceMax   int
	semanticThreshold float64
	semanticBudget    time.Duration
	embedConcurrency  int
	cacheTTL          time.Duration
	minScore          float64
}

// New returns an Engine configured with the supplied options.
func New(opts ...Option) *Engine {
	e := &Engine{
		log:               slog.Default(),
		editDistanceMax:   defaultEditDistanceMax,
		semanticThreshold: defaultSemanticThreshold,
		semanticBudget:    defaultSemanticBudget,
		embedConcurrency:  defaultEmbedConcurrency,
		cacheTTL:          defaultCacheTTL,
		minScore:          MinScore,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// FindSimilar compares query against every candidate and returns matches
// ranked descending by score.
//
// A query that is empty after normalization yields an empty result list, not
// an error, as does an empty candidate set. A candidate without an ID is a
// caller bug and fails the invocation immediately.
//
// includeSemantic requests the embedding-based strategy; it is honored only
// when a provider was injected and no exact match exists. External failures
// of the provider or cache never fail the invocation — the result degrades to
// what the cheaper strategies produced.
func (e *Engine) FindSimilar(ctx context.Context, query string, candidates []FieldDescriptor, includeSemantic bool) ([]SimilarityResult, error) {
	q := Normalize(query)
	if q == "" {
		return nil, nil
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	for i, c := range candidates {
		if strings.TrimSpace(c.ID) == "" {
			return nil, fmt.Errorf("similarity: candidate %d (%q) has no ID", i, c.Name)
		}
	}

	exact := exactMatches(q, candidates)
	if len(exact) > 0 {
		// An exact duplicate exists: skip the semantic strategy outright and
		// score only the remaining candidates by edit distance. Re-scoring an
		// exact hit with weaker signals would only produce confusing
		// near-tie entries below it.
		rest := withoutMatched(candidates, exact)
		return rank(append(exact, e.editMatches(q, rest)...), e.minScore), nil
	}

	results := e.editMatches(q, candidates)

	if includeSemantic && e.provider == nil {
		e.log.Debug("semantic matching requested but no embedding provider is configured")
	}
	if includeSemantic && e.provider != nil {
		// Spelling-level hits outrank any possible semantic score, so only
		// the candidates the edit pass rejected are worth embedding.
		rest := withoutMatched(candidates, results)
		if len(rest) > 0 {
			results = append(results, e.semanticMatches(ctx, q, rest)...)
		}
	}

	return rank(results, e.minScore), nil
}

// withoutMatched returns the candidates that do not appear in results,
// preserving order.
func withoutMatched(candidates []FieldDescriptor, results []SimilarityResult) []FieldDescriptor {
	if len(results) == 0 {
		return candidates
	}
	matched := make(map[string]struct{}, len(results))
	for _, r := range results {
		matched[r.Field.ID] = struct{}{}
	}
	rest := make([]FieldDescriptor, 0, len(candidates)-len(results))
	for _, c := range candidates {
		if _, ok := matched[c.ID]; !ok {
			rest = append(rest, c)
		}
	}
	return rest
}
