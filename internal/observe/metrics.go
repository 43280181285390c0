// Package observe provides application-wide observability primitives for the
// calling bot: OpenTelemetry metrics, distributed tracing, structured
// logging, and HTTP middleware that ties them together.
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

// meterName is the instrumentation scope name used for all calling bot metrics.
const meterName = "github.com/cuboid-ai/callingbot"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// BrainDuration tracks reasoning backend round-trip latency.
	BrainDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// SignalingDuration tracks signaling action latency (answer, reject,
	// hangup). Use with attribute: attribute.String("action", ...)
	SignalingDuration metric.Float64Histogram

	// --- Counters ---

	// Notifications counts processed signaling notifications. Use with
	// attributes: attribute.String("change_type", ...), attribute.String("outcome", ...)
	Notifications metric.Int64Counter

	// Utterances counts brain-answered utterances per call.
	Utterances metric.Int64Counter

	// BargeIns counts cancelled in-flight syntheses superseded by newer speech.
	BargeIns metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts external dependency errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveCalls tracks the number of currently answered calls.
	ActiveCalls metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.BrainDuration, err = m.Float64Histogram("callingbot.brain.duration",
		metric.WithDescription("Latency of reasoning backend round trips."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("callingbot.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SignalingDuration, err = m.Float64Histogram("callingbot.signaling.duration",
		metric.WithDescription("Latency of signaling actions by action."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Notifications, err = m.Int64Counter("callingbot.notifications",
		metric.WithDescription("Total signaling notifications by change type and outcome."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("callingbot.utterances",
		metric.WithDescription("Total utterances answered by the reasoning backend per call."),
	); err != nil {
		return nil, err
	}
	if met.BargeIns, err = m.Int64Counter("callingbot.barge_ins",
		metric.WithDescription("Total in-flight syntheses cancelled by newer speech."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("callingbot.provider.errors",
		metric.WithDescription("Total external dependency errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveCalls, err = m.Int64UpDownCounter("callingbot.active_calls",
		metric.WithDescription("Number of currently answered calls."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("callingbot.http.request.duration",
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

// RecordNotification records a processed signaling notification with the
// standard attribute set.
func (m *Metrics) RecordNotification(ctx context.Context, changeType, outcome string) {
	m.Notifications.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("change_type", changeType),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordUtterance records one answered utterance for the given call.
func (m *Metrics) RecordUtterance(ctx context.Context, callID string) {
	m.Utterances.Add(ctx, 1,
		metric.WithAttributes(attribute.String("call_id", callID)),
	)
}

// RecordBargeIn records one cancelled synthesis for the given call.
func (m *Metrics) RecordBargeIn(ctx context.Context, callID string) {
	m.BargeIns.Add(ctx, 1,
		metric.WithAttributes(attribute.String("call_id", callID)),
	)
}

// RecordProviderError records an external dependency error with the standard
// attribute set.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
