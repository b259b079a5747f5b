// Package observe holds the OpenTelemetry metric instruments used by the
// detector.
//
// Instruments are created from a [metric.MeterProvider]. [InitProvider]
// installs an SDK provider backed by a Prometheus exporter; tests should build
// their own provider with a ManualReader and call [NewMetrics].
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope for all pitchfinder metrics.
const meterName = "github.com/0xlemi/pitchfinder"

// Frame outcomes recorded by [Metrics.RecordFrame].
const (
	OutcomeCandidate = "candidate"
	OutcomeSilence   = "silence"
	OutcomeMalformed = "malformed"
	OutcomeRejected  = "rejected"
)

// Metrics holds the detector's instruments. All fields are safe for
// concurrent use.
type Metrics struct {
	// Frames counts processed frames by outcome.
	Frames metric.Int64Counter

	// StableReadings counts promotions to a stable reading.
	StableReadings metric.Int64Counter

	// NoteChanges counts updates of the displayed note.
	NoteChanges metric.Int64Counter

	// ActiveStreams tracks open audio streams.
	ActiveStreams metric.Int64UpDownCounter

	// StreamErrors counts terminal audio errors by kind.
	StreamErrors metric.Int64Counter

	// EstimateDuration tracks per-frame gate+window+estimate time.
	EstimateDuration metric.Float64Histogram
}

// estimateBuckets are bucket boundaries in seconds; one 60 Hz tick is ~16.7ms.
var estimateBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.0167, 0.05,
}

// NewMetrics creates all instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Frames, err = m.Int64Counter("pitchfinder.frames",
		metric.WithDescription("Audio frames run through the detector, by outcome."),
		metric.WithUnit("{frame}"),
	); err != nil {
		return nil, err
	}
	if met.StableReadings, err = m.Int64Counter("pitchfinder.stable_readings",
		metric.WithDescription("Ticks on which the stability filter promoted a reading."),
		metric.WithUnit("{reading}"),
	); err != nil {
		return nil, err
	}
	if met.NoteChanges, err = m.Int64Counter("pitchfinder.note_changes",
		metric.WithDescription("Updates of the displayed note."),
		metric.WithUnit("{change}"),
	); err != nil {
		return nil, err
	}
	if met.ActiveStreams, err = m.Int64UpDownCounter("pitchfinder.active_streams",
		metric.WithDescription("Open audio streams."),
		metric.WithUnit("{stream}"),
	); err != nil {
		return nil, err
	}
	if met.StreamErrors, err = m.Int64Counter("pitchfinder.stream_errors",
		metric.WithDescription("Terminal audio errors, by kind."),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}
	if met.EstimateDuration, err = m.Float64Histogram("pitchfinder.estimate.duration",
		metric.WithDescription("Time spent gating, windowing and estimating one frame."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(estimateBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Noop returns instruments that record nothing.
func Noop() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		// the noop provider never fails
		panic(err)
	}
	return m
}

// RecordFrame counts one frame with the given outcome.
func (m *Metrics) RecordFrame(ctx context.Context, outcome string) {
	m.Frames.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordStreamError counts a terminal audio error of the given kind.
func (m *Metrics) RecordStreamError(ctx context.Context, kind string) {
	m.StreamErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
