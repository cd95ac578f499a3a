package observe

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Reporter reads back the instruments of one render for the -stats report.
type Reporter struct {
	reader   *sdkmetric.ManualReader
	provider *sdkmetric.MeterProvider
}

// NewReporter creates instruments backed by an in-process manual reader.
func NewReporter() (*Metrics, *Reporter, error) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := NewMetrics(mp)
	if err != nil {
		return nil, nil, err
	}
	return m, &Reporter{reader: reader, provider: mp}, nil
}

// Latency aggregates one histogram series.
type Latency struct {
	Count uint64
	Sum   float64
}

// Summary is the collected state of all instruments.
type Summary struct {
	Frames           int64
	Segments         int64
	StretchFallbacks int64
	Stages           map[string]float64 // seconds
	Synthesis        map[string]Latency // by backend
}

func (r *Reporter) Collect(ctx context.Context) (Summary, error) {
	var rm metricdata.ResourceMetrics
	if err := r.reader.Collect(ctx, &rm); err != nil {
		return Summary{}, fmt.Errorf("collect metrics: %w", err)
	}

	s := Summary{Stages: map[string]float64{}, Synthesis: map[string]Latency{}}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch m.Name {
			case "reelmaker.frames.encoded":
				s.Frames = sumInt(m.Data)
			case "reelmaker.narration.segments":
				s.Segments = sumInt(m.Data)
			case "reelmaker.stretch.fallbacks":
				s.StretchFallbacks = sumInt(m.Data)
			case "reelmaker.stage.duration":
				for key, l := range histogramBy(m.Data, "stage") {
					s.Stages[key] = l.Sum
				}
			case "reelmaker.tts.duration":
				s.Synthesis = histogramBy(m.Data, "backend")
			}
		}
	}
	return s, nil
}

func sumInt(data metricdata.Aggregation) int64 {
	sum, ok := data.(metricdata.Sum[int64])
	if !ok {
		return 0
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func histogramBy(data metricdata.Aggregation, key string) map[string]Latency {
	out := map[string]Latency{}
	hist, ok := data.(metricdata.Histogram[float64])
	if !ok {
		return out
	}
	for _, dp := range hist.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key(key))
		l := out[v.AsString()]
		l.Count += dp.Count
		l.Sum += dp.Sum
		out[v.AsString()] = l
	}
	return out
}

func (r *Reporter) Shutdown(ctx context.Context) error {
	return r.provider.Shutdown(ctx)
}

// WriteReport prints the performance report.
func (s Summary) WriteReport(w io.Writer, build string, total time.Duration) {
	fmt.Fprintf(w, "--- [PERFORMANCE REPORT] ---\n")
	fmt.Fprintf(w, "Build: %s\n", build)
	fmt.Fprintf(w, "Total Time: %.2fs\n", total.Seconds())

	stages := make([]string, 0, len(s.Stages))
	for name := range s.Stages {
		stages = append(stages, name)
	}
	sort.Strings(stages)
	for _, name := range stages {
		fmt.Fprintf(w, "Stage %-12s %.2fs\n", name+":", s.Stages[name])
	}

	fmt.Fprintf(w, "Frames: %d\n", s.Frames)
	fmt.Fprintf(w, "Effective FPS: %.2f\n", s.EffectiveFPS())

	backends := make([]string, 0, len(s.Synthesis))
	for name := range s.Synthesis {
		backends = append(backends, name)
	}
	sort.Strings(backends)
	for _, name := range backends {
		l := s.Synthesis[name]
		fmt.Fprintf(w, "TTS %s: %d calls, %.2fs\n", name, l.Count, l.Sum)
	}
	if s.Segments > 0 {
		fmt.Fprintf(w, "Narration segments: %d (stretch fallbacks: %d)\n", s.Segments, s.StretchFallbacks)
	}
	fmt.Fprintf(w, "----------------------------\n")
}

// EffectiveFPS is frames per second of encode wall time.
func (s Summary) EffectiveFPS() float64 {
	enc := s.Stages[StageEncode]
	if enc <= 0 {
		return 0
	}
	return float64(s.Frames) / enc
}

// AppendBenchmarkLog appends one line per render to path.
func AppendBenchmarkLog(path, build, input string, s Summary, total time.Duration) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = fmt.Fprintf(f, "[%s] Build: %s | Input: %s | Frames: %d | Total: %.2fs | Encode: %.2fs | Narration: %.2fs | FPS: %.2f\n",
		time.Now().Format("2006-01-02 15:04:05"),
		build, input, s.Frames, total.Seconds(),
		s.Stages[StageEncode], s.Stages[StageNarration], s.EffectiveFPS(),
	)
	return err
}
