// Package observe provides application-wide observability primitives for
// graphseer: OpenTelemetry metrics, distributed tracing, structured logging
// with secret redaction, and HTTP middleware that ties them together.
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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all graphseer metrics.
const meterName = "github.com/MrWong99/graphseer"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// IngestDuration tracks entity ingestion latency (embed + both writes).
	IngestDuration metric.Float64Histogram

	// RetrieveDuration tracks context retrieval latency.
	RetrieveDuration metric.Float64Histogram

	// GenerateDuration tracks query generation latency, retries included.
	GenerateDuration metric.Float64Histogram

	// ExecuteDuration tracks graph query execution latency.
	ExecuteDuration metric.Float64Histogram

	// RespondDuration tracks response narration latency.
	RespondDuration metric.Float64Histogram

	// AnswerDuration tracks end-to-end question answering latency.
	AnswerDuration metric.Float64Histogram

	// --- Counters ---

	// StoreRequests counts graph and vector store calls. Use with attributes:
	//   attribute.String("store", ...), attribute.String("op", ...), attribute.String("status", ...)
	StoreRequests metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// QueriesGenerated counts produced query artifacts. Use with attributes:
	//   attribute.String("source", "template"|"llm"), attribute.String("status", ...)
	QueriesGenerated metric.Int64Counter

	// QueriesRejected counts queries refused by validation. Use with attribute:
	//   attribute.String("reason", "validation"|"unsafe"|"injection")
	QueriesRejected metric.Int64Counter

	// IngestOutcomes counts write-path results. Use with attributes:
	//   attribute.String("op", "ingest"|"sync"|"remove"), attribute.String("status", ...)
	IngestOutcomes metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Use with attributes:
	//   attribute.String("breaker", ...), attribute.String("from", ...), attribute.String("to", ...)
	BreakerTransitions metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// DiscoveryCacheEntries tracks the number of cached entity configurations.
	DiscoveryCacheEntries metric.Int64UpDownCounter

	// InflightAnswers tracks the number of Answer pipelines currently running.
	InflightAnswers metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) covering
// sub-second store calls through multi-second LLM rounds and long-running
// graph queries.
var latencyBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.IngestDuration, err = m.Float64Histogram("graphseer.ingest.duration",
		metric.WithDescription("Latency of entity ingestion."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RetrieveDuration, err = m.Float64Histogram("graphseer.retrieve.duration",
		metric.WithDescription("Latency of context retrieval."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.GenerateDuration, err = m.Float64Histogram("graphseer.generate.duration",
		metric.WithDescription("Latency of query generation including retries."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExecuteDuration, err = m.Float64Histogram("graphseer.execute.duration",
		metric.WithDescription("Latency of graph query execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RespondDuration, err = m.Float64Histogram("graphseer.respond.duration",
		metric.WithDescription("Latency of response narration."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AnswerDuration, err = m.Float64Histogram("graphseer.answer.duration",
		metric.WithDescription("End-to-end question answering latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.StoreRequests, err = m.Int64Counter("graphseer.store.requests",
		metric.WithDescription("Total graph and vector store calls by store, op, and status."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("graphseer.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.QueriesGenerated, err = m.Int64Counter("graphseer.queries.generated",
		metric.WithDescription("Total query artifacts produced by source and status."),
	); err != nil {
		return nil, err
	}
	if met.QueriesRejected, err = m.Int64Counter("graphseer.queries.rejected",
		metric.WithDescription("Total queries refused by validation, by reason."),
	); err != nil {
		return nil, err
	}
	if met.IngestOutcomes, err = m.Int64Counter("graphseer.ingest.outcomes",
		metric.WithDescription("Total write-path results by op and status."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("graphseer.breaker.transitions",
		metric.WithDescription("Total circuit breaker state changes."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("graphseer.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.DiscoveryCacheEntries, err = m.Int64UpDownCounter("graphseer.discovery.cache.entries",
		metric.WithDescription("Number of cached entity configurations."),
	); err != nil {
		return nil, err
	}
	if met.InflightAnswers, err = m.Int64UpDownCounter("graphseer.answers.inflight",
		metric.WithDescription("Number of Answer pipelines currently running."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("graphseer.http.request.duration",
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

// ObserveSince records the seconds elapsed since start on h with the given
// attributes. A nil histogram is ignored, so callers need no metrics guard.
func ObserveSince(ctx context.Context, h metric.Float64Histogram, start time.Time, attrs ...attribute.KeyValue) {
	if h == nil {
		return
	}
	h.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
}

// RecordStoreRequest is a convenience method that records a store request
// counter increment with the standard attribute set.
func (m *Metrics) RecordStoreRequest(ctx context.Context, store, op, status string) {
	m.StoreRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("store", store),
			attribute.String("op", op),
			attribute.String("status", status),
		),
	)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordQueryGenerated is a convenience method that records a generated query
// counter increment.
func (m *Metrics) RecordQueryGenerated(ctx context.Context, source, status string) {
	m.QueriesGenerated.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("status", status),
		),
	)
}

// RecordQueryRejected is a convenience method that records a rejected query
// counter increment.
func (m *Metrics) RecordQueryRejected(ctx context.Context, reason string) {
	m.QueriesRejected.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordIngestOutcome is a convenience method that records a write-path
// outcome counter increment.
func (m *Metrics) RecordIngestOutcome(ctx context.Context, op, status string) {
	m.IngestOutcomes.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("status", status),
		),
	)
}

// RecordBreakerTransition is a convenience method that records a circuit
// breaker state change counter increment.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, breaker, from, to string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("breaker", breaker),
			attribute.String("from", from),
			attribute.String("to", to),
		),
	)
}
