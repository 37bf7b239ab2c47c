// Package observe provides application-wide observability primitives for
// the reactor: OpenTelemetry metrics, distributed tracing, structured
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

// meterName is the instrumentation scope name used for all reactor metrics.
const meterName = "github.com/MrWong99/reactorcore"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// TickDuration tracks how long a single TickStep call takes to return.
	TickDuration metric.Float64Histogram

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// PlannerDuration tracks planner round-trip latency, from Dispatch to
	// the PlannerProposalEvent landing on the event channel.
	PlannerDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// InterruptionLatency tracks the time from a cancelling input event to
	// the StopAudioEffect the same tick produced.
	InterruptionLatency metric.Float64Histogram

	// SilenceDuration tracks how long the reactor went between consecutive
	// spoken outputs.
	SilenceDuration metric.Float64Histogram

	// --- Counters ---

	// TicksProcessed counts every TickStep call, labelled by whether it
	// carried any events.
	TicksProcessed metric.Int64Counter

	// GateDecisions counts crystallization gate outcomes. Use with
	// attribute.String("decision", ...) — "accept" or "reject".
	GateDecisions metric.Int64Counter

	// IntentLifecycleEvents counts intent-manager transitions. Use with
	// attribute.String("kind", ...) — e.g. "suspended", "resumed", "decayed".
	IntentLifecycleEvents metric.Int64Counter

	// MemoryPromotions counts hypotheses promoted to long-term memory. Use
	// with attribute.String("status", ...) — "committed" or "hard_commit".
	MemoryPromotions metric.Int64Counter

	// EventsDropped counts events discarded because the MPSC buffer was
	// full when a sensor tried to send. Use with
	// attribute.String("source", ...).
	EventsDropped metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveOutputs tracks the number of currently spawned audio outputs —
	// always 0 or 1 under the single-in-flight-output contract, but kept
	// as an UpDownCounter so a future multi-output mode doesn't need a new
	// instrument.
	ActiveOutputs metric.Int64UpDownCounter

	// ActiveLongHorizonIntents tracks the number of intents the long-horizon
	// intent manager currently considers active or suspended.
	ActiveLongHorizonIntents metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for sub-tick reactor latencies.
var latencyBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5,
}

// silenceBuckets defines histogram bucket boundaries (in seconds) for the
// much longer silence-duration distribution.
var silenceBuckets = []float64{
	1, 5, 15, 30, 60, 120, 300, 600,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TickDuration, err = m.Float64Histogram("reactor.tick.duration",
		metric.WithDescription("Wall-clock time a single TickStep call takes."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.STTDuration, err = m.Float64Histogram("reactor.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PlannerDuration, err = m.Float64Histogram("reactor.planner.duration",
		metric.WithDescription("Round-trip latency of a planner dispatch."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TTSDuration, err = m.Float64Histogram("reactor.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.InterruptionLatency, err = m.Float64Histogram("reactor.interruption.latency",
		metric.WithDescription("Time from a cancelling input to the resulting StopAudioEffect."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SilenceDuration, err = m.Float64Histogram("reactor.silence.duration",
		metric.WithDescription("Time elapsed between consecutive spoken outputs."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(silenceBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.TicksProcessed, err = m.Int64Counter("reactor.ticks.processed",
		metric.WithDescription("Total TickStep calls, labelled by whether any events were carried."),
	); err != nil {
		return nil, err
	}
	if met.GateDecisions, err = m.Int64Counter("reactor.gate.decisions",
		metric.WithDescription("Total crystallization gate decisions by outcome."),
	); err != nil {
		return nil, err
	}
	if met.IntentLifecycleEvents, err = m.Int64Counter("reactor.intent.lifecycle_events",
		metric.WithDescription("Total long-horizon intent lifecycle transitions by kind."),
	); err != nil {
		return nil, err
	}
	if met.MemoryPromotions, err = m.Int64Counter("reactor.memory.promotions",
		metric.WithDescription("Total hypotheses promoted to long-term memory by status."),
	); err != nil {
		return nil, err
	}
	if met.EventsDropped, err = m.Int64Counter("reactor.events.dropped",
		metric.WithDescription("Total events dropped because the event buffer was full, by source."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("reactor.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveOutputs, err = m.Int64UpDownCounter("reactor.active_outputs",
		metric.WithDescription("Number of currently spawned audio outputs."),
	); err != nil {
		return nil, err
	}
	if met.ActiveLongHorizonIntents, err = m.Int64UpDownCounter("reactor.active_long_horizon_intents",
		metric.WithDescription("Number of long-horizon intents currently active or suspended."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("reactor.http.request.duration",
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

// RecordTick is a convenience method that records one TickStep call's
// duration and whether it carried any events.
func (m *Metrics) RecordTick(ctx context.Context, seconds float64, hadEvents bool) {
	status := "idle"
	if hadEvents {
		status = "active"
	}
	m.TickDuration.Record(ctx, seconds)
	m.TicksProcessed.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordGateDecision is a convenience method that records a crystallization
// gate outcome.
func (m *Metrics) RecordGateDecision(ctx context.Context, accepted bool) {
	decision := "reject"
	if accepted {
		decision = "accept"
	}
	m.GateDecisions.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", decision)))
}

// RecordIntentLifecycleEvent is a convenience method that records a
// long-horizon intent transition.
func (m *Metrics) RecordIntentLifecycleEvent(ctx context.Context, kind string) {
	m.IntentLifecycleEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordMemoryPromotion is a convenience method that records a hypothesis
// promotion to long-term memory.
func (m *Metrics) RecordMemoryPromotion(ctx context.Context, status string) {
	m.MemoryPromotions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordEventDropped is a convenience method that records an event dropped
// due to a full event buffer.
func (m *Metrics) RecordEventDropped(ctx context.Context, source string) {
	m.EventsDropped.Add(ctx, 1, metric.WithAttributes(attribute.String("source", source)))
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
