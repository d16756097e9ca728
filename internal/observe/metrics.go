// Package observe provides application-wide observability primitives for
// fieldmatch: OpenTelemetry metrics, distributed tracing, structured logging,
// and instrumentation wrappers that tie them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all fieldmatch metrics.
const meterName = "github.com/0ui-labs/fieldmatch"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// MatchDuration tracks the latency of one full similarity lookup
	// (all strategies, ranking included). Use with attribute:
	//   attribute.Bool("semantic", ...)
	MatchDuration metric.Float64Histogram

	// EmbedDuration tracks embedding provider call latency. Use with
	// attributes:
	//   attribute.String("provider", ...), attribute.String("op", "embed"|"embed_batch")
	EmbedDuration metric.Float64Histogram

	// CacheDuration tracks embedding cache operation latency. Use with
	// attribute:
	//   attribute.String("op", "get"|"set")
	CacheDuration metric.Float64Histogram

	// --- Counters ---

	// MatchRequests counts similarity lookups. Use with attributes:
	//   attribute.Bool("semantic", ...), attribute.String("status", "ok"|"error")
	MatchRequests metric.Int64Counter

	// MatchResults counts returned matches by strategy. Use with attribute:
	//   attribute.String("kind", "exact"|"edit_distance"|"semantic")
	MatchResults metric.Int64Counter

	// ProviderRequests counts embedding provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("op", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// CacheLookups counts cache reads. Use with attribute:
	//   attribute.String("status", "hit"|"miss"|"error")
	CacheLookups metric.Int64Counter

	// CacheWrites counts cache writes. Use with attribute:
	//   attribute.String("status", "ok"|"error")
	CacheWrites metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts embedding provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("op", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// CatalogFields tracks the number of field definitions currently loaded
	// from the catalog. Adjusted by the delta on every (re)load.
	CatalogFields metric.Int64UpDownCounter

	// CircuitState reports the circuit breaker state per embedding backend
	// (0 closed, 1 open, 2 half-open). Use with attribute:
	//   attribute.String("breaker", ...)
	CircuitState metric.Int64Gauge

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time on the ops
	// endpoint. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// lookup latencies: string strategies finish in microseconds, a semantic pass
// is bounded by a sub-second budget.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.MatchDuration, err = m.Float64Histogram("fieldmatch.match.duration",
		metric.WithDescription("Latency of one full similarity lookup."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EmbedDuration, err = m.Float64Histogram("fieldmatch.embed.duration",
		metric.WithDescription("Latency of embedding provider calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CacheDuration, err = m.Float64Histogram("fieldmatch.cache.duration",
		metric.WithDescription("Latency of embedding cache operations."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.MatchRequests, err = m.Int64Counter("fieldmatch.match.requests",
		metric.WithDescription("Total similarity lookups by semantic flag and status."),
	); err != nil {
		return nil, err
	}
	if met.MatchResults, err = m.Int64Counter("fieldmatch.match.results",
		metric.WithDescription("Total returned matches by strategy kind."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("fieldmatch.provider.requests",
		metric.WithDescription("Total embedding provider API requests by provider, op, and status."),
	); err != nil {
		return nil, err
	}
	if met.CacheLookups, err = m.Int64Counter("fieldmatch.cache.lookups",
		metric.WithDescription("Total embedding cache reads by status."),
	); err != nil {
		return nil, err
	}
	if met.CacheWrites, err = m.Int64Counter("fieldmatch.cache.writes",
		metric.WithDescription("Total embedding cache writes by status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("fieldmatch.provider.errors",
		metric.WithDescription("Total embedding provider errors by provider and op."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.CatalogFields, err = m.Int64UpDownCounter("fieldmatch.catalog.fields",
		metric.WithDescription("Number of field definitions currently loaded."),
	); err != nil {
		return nil, err
	}
	if met.CircuitState, err = m.Int64Gauge("fieldmatch.circuit.state",
		metric.WithDescription("Circuit breaker state per backend (0 closed, 1 open, 2 half-open)."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("fieldmatch.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordMatchRequest records one similarity lookup with its duration.
func (m *Metrics) RecordMatchRequest(ctx context.Context, semantic bool, status string, seconds float64) {
	attrs := metric.WithAttributes(
		attribute.Bool("semantic", semantic),
		attribute.String("status", status),
	)
	m.MatchRequests.Add(ctx, 1, attrs)
	m.MatchDuration.Record(ctx, seconds, metric.WithAttributes(attribute.Bool("semantic", semantic)))
}

// RecordMatchResult records one returned match of the given strategy kind.
func (m *Metrics) RecordMatchResult(ctx context.Context, kind string) {
	m.MatchResults.Add(ctx, 1,
		metric.WithAttributes(attribute.String("kind", kind)),
	)
}

// RecordProviderRequest records a provider call with the standard attribute
// set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, op, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("op", op),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, op string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("op", op),
		),
	)
}

// RecordCacheLookup records a cache read outcome ("hit", "miss", or "error").
func (m *Metrics) RecordCacheLookup(ctx context.Context, status string) {
	m.CacheLookups.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordCacheWrite records a cache write outcome ("ok" or "error").
func (m *Metrics) RecordCacheWrite(ctx context.Context, status string) {
	m.CacheWrites.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordCircuitState records the current state of a named circuit breaker.
func (m *Metrics) RecordCircuitState(ctx context.Context, breaker string, state int64) {
	m.CircuitState.Record(ctx, state,
		metric.WithAttributes(attribute.String("breaker", breaker)),
	)
}
