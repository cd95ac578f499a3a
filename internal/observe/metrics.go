// Package observe holds the OpenTelemetry instruments recorded during a
// render and the end-of-run performance report built from them.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/ivlev/reelmaker"

// Stage names used with StageDuration.
const (
	StageEncode    = "encode"
	StageNarration = "narration"
	StageSynthesis = "synthesize"
	StageStretch   = "stretch"
	StageAssemble  = "assemble"
	StageNormalize = "normalize"
	StageValidate  = "validate"
	StageMux       = "mux"
)

// Metrics holds the instruments. All fields are safe for concurrent use.
type Metrics struct {
	// FramesEncoded counts frames written to the encoder.
	FramesEncoded metric.Int64Counter

	// StageDuration tracks wall time per pipeline stage.
	//   attribute.String("stage", ...)
	StageDuration metric.Float64Histogram

	// SynthesisDuration tracks per-scene TTS latency.
	//   attribute.String("backend", ...)
	SynthesisDuration metric.Float64Histogram

	// StretchFallbacks counts segments that kept their raw timing because
	// the stretch step failed.
	StretchFallbacks metric.Int64Counter

	// Segments counts narration segments placed on the track.
	Segments metric.Int64Counter
}

var durationBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates the instruments on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.FramesEncoded, err = m.Int64Counter("reelmaker.frames.encoded",
		metric.WithDescription("Frames streamed to the video encoder."),
	); err != nil {
		return nil, err
	}
	if met.StageDuration, err = m.Float64Histogram("reelmaker.stage.duration",
		metric.WithDescription("Wall time of each render stage."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("reelmaker.tts.duration",
		metric.WithDescription("Latency of text-to-speech synthesis per scene."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StretchFallbacks, err = m.Int64Counter("reelmaker.stretch.fallbacks",
		metric.WithDescription("Segments that fell back to raw timing after a stretch failure."),
	); err != nil {
		return nil, err
	}
	if met.Segments, err = m.Int64Counter("reelmaker.narration.segments",
		metric.WithDescription("Narration segments placed on the track."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Discard returns instruments backed by a no-op provider.
func Discard() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		// The no-op provider never fails.
		panic(err)
	}
	return m
}

// RecordStage records the time elapsed since start under the stage name.
func (m *Metrics) RecordStage(ctx context.Context, stage string, start time.Time) {
	m.StageDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordSynthesis records one TTS call.
func (m *Metrics) RecordSynthesis(ctx context.Context, backend string, d time.Duration) {
	m.SynthesisDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("backend", backend)))
}
