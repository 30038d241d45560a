// Package observe provides observability primitives for the voice pipeline:
// OpenTelemetry metrics with a Prometheus exporter bridge, plus the tracer
// provider setup.
//
// A package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with a custom
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for all pipeline metrics.
const meterName = "github.com/SulavKhadka/voiceloop"

// Metrics holds all OpenTelemetry metric instruments for the pipeline.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// ScoreDuration tracks per-frame activity scoring latency.
	ScoreDuration metric.Float64Histogram

	// TranscribeDuration tracks per-frame transcriber feed latency.
	TranscribeDuration metric.Float64Histogram

	// DispatchDuration tracks agent round-trip latency per turn.
	DispatchDuration metric.Float64Histogram

	// SynthesisDuration tracks reply synthesis-to-last-chunk latency.
	SynthesisDuration metric.Float64Histogram

	// --- Counters ---

	// DroppedFrames counts capture frames evicted by the overflow policy.
	DroppedFrames metric.Int64Counter

	// Utterances counts finalized utterances. Use with attribute:
	//   attribute.String("reason", "silence"|"flush")
	Utterances metric.Int64Counter

	// BargeIns counts playback sessions cut off by the user speaking.
	BargeIns metric.Int64Counter

	// DispatchErrors counts turns that failed after the retry.
	DispatchErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live playback sessions (0 or 1 in
	// the single-device pipeline, kept as a counter for multi-stream setups).
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ScoreDuration, err = m.Float64Histogram("voiceloop.score.duration",
		metric.WithDescription("Latency of per-frame activity scoring."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscribeDuration, err = m.Float64Histogram("voiceloop.transcribe.duration",
		metric.WithDescription("Latency of feeding one frame to the transcriber."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.DispatchDuration, err = m.Float64Histogram("voiceloop.dispatch.duration",
		metric.WithDescription("Agent round-trip latency per dispatched turn."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("voiceloop.synthesis.duration",
		metric.WithDescription("Latency from synthesis request to final chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.DroppedFrames, err = m.Int64Counter("voiceloop.capture.dropped_frames",
		metric.WithDescription("Capture frames evicted because the buffer was full."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("voiceloop.utterances",
		metric.WithDescription("Finalized utterances by finalization reason."),
	); err != nil {
		return nil, err
	}
	if met.BargeIns, err = m.Int64Counter("voiceloop.barge_ins",
		metric.WithDescription("Playback sessions stopped because the user started speaking."),
	); err != nil {
		return nil, err
	}
	if met.DispatchErrors, err = m.Int64Counter("voiceloop.dispatch.errors",
		metric.WithDescription("Turns that failed delivery after the retry."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("voiceloop.active_sessions",
		metric.WithDescription("Number of live playback sessions."),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
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

// RecordUtterance records one finalized utterance with its finalization
// reason ("silence" or "flush").
func (m *Metrics) RecordUtterance(ctx context.Context, reason string) {
	m.Utterances.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}
