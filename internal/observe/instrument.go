package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/0ui-labs/fieldmatch/pkg/embedcache"
	"github.com/0ui-labs/fieldmatch/pkg/provider/embeddings"
)

// InstrumentedProvider wraps an [embeddings.Provider] and records request
// counts, errors, and call latency for every embedding operation. The wrapped
// provider's behaviour is otherwise unchanged, so it can be dropped in
// anywhere a plain provider is expected (including as an entry in a fallback
// chain).
type InstrumentedProvider struct {
	inner   embeddings.Provider
	name    string
	metrics *Metrics
}

var _ embeddings.Provider = (*InstrumentedProvider)(nil)

// NewInstrumentedProvider wraps p with metric recording. name identifies the
// backend in metric attributes (e.g. "openai", "ollama"). A nil m falls back
// to [DefaultMetrics].
func NewInstrumentedProvider(name string, p embeddings.Provider, m *Metrics) *InstrumentedProvider {
	if m == nil {
		m = DefaultMetrics()
	}
	return &InstrumentedProvider{inner: p, name: name, metrics: m}
}

// Embed delegates to the wrapped provider and records latency and outcome.
func (ip *InstrumentedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := ip.inner.Embed(ctx, text)
	ip.record(ctx, "embed", time.Since(start), err)
	return vec, err
}

// EmbedBatch delegates to the wrapped provider and records latency and
// outcome. A batch counts as one request regardless of its size.
func (ip *InstrumentedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := ip.inner.EmbedBatch(ctx, texts)
	ip.record(ctx, "embed_batch", time.Since(start), err)
	return vecs, err
}

// Dimensions reports the wrapped provider's vector width.
func (ip *InstrumentedProvider) Dimensions() int { return ip.inner.Dimensions() }

// ModelID reports the wrapped provider's model identifier.
func (ip *InstrumentedProvider) ModelID() string { return ip.inner.ModelID() }

func (ip *InstrumentedProvider) record(ctx context.Context, op string, elapsed time.Duration, err error) {
	ip.metrics.RecordProviderRequest(ctx, ip.name, op, statusFromErr(err))
	if err != nil {
		ip.metrics.RecordProviderError(ctx, ip.name, op)
	}
	ip.metrics.EmbedDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(
			attribute.String("provider", ip.name),
			attribute.String("op", op),
		),
	)
}

// InstrumentedStore wraps an [embedcache.Store] and records hit/miss/error
// counts and operation latency. Like the store it wraps, it never changes
// cache semantics; an error still surfaces to the caller unchanged.
type InstrumentedStore struct {
	inner   embedcache.Store
	metrics *Metrics
}

var _ embedcache.Store = (*InstrumentedStore)(nil)

// NewInstrumentedStore wraps s with metric recording. A nil m falls back to
// [DefaultMetrics].
func NewInstrumentedStore(s embedcache.Store, m *Metrics) *InstrumentedStore {
	if m == nil {
		m = DefaultMetrics()
	}
	return &InstrumentedStore{inner: s, metrics: m}
}

// Get delegates to the wrapped store and records the lookup outcome.
func (is *InstrumentedStore) Get(ctx context.Context, key string) ([]float32, bool, error) {
	start := time.Now()
	vec, ok, err := is.inner.Get(ctx, key)

	status := "miss"
	switch {
	case err != nil:
		status = "error"
	case ok:
		status = "hit"
	}
	is.metrics.RecordCacheLookup(ctx, status)
	is.metrics.CacheDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("op", "get")),
	)
	return vec, ok, err
}

// Set delegates to the wrapped store and records the write outcome.
func (is *InstrumentedStore) Set(ctx context.Context, key string, vec []float32, ttl time.Duration) error {
	start := time.Now()
	err := is.inner.Set(ctx, key, vec, ttl)

	is.metrics.RecordCacheWrite(ctx, statusFromErr(err))
	is.metrics.CacheDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("op", "set")),
	)
	return err
}

func statusFromErr(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
