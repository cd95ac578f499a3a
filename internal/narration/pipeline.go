// Package narration synthesizes one speech segment per scene, stretches
// each to fit its scene window, and assembles them into a single track
// aligned to the timeline.
package narration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ivlev/reelmaker/internal/audio"
	"github.com/ivlev/reelmaker/internal/config"
	"github.com/ivlev/reelmaker/internal/logging"
	"github.com/ivlev/reelmaker/internal/observe"
	"github.com/ivlev/reelmaker/internal/system"
	"github.com/ivlev/reelmaker/internal/timeline"
	"github.com/ivlev/reelmaker/internal/tts"
)

// Segment describes one scene's placed speech.
type Segment struct {
	SceneID  int
	Target   float64 // seconds the speech was stretched toward
	Raw      float64 // natural length from the provider
	Final    float64 // placed length
	Offset   int     // absolute sample offset
	Fallback bool    // stretch failed; raw timing kept
}

type Result struct {
	Path     string
	Backend  string
	Samples  int
	Segments []Segment
}

func (r *Result) Duration(rate int) float64 {
	return float64(r.Samples) / float64(rate)
}

type Pipeline struct {
	Config     config.Narration
	Registry   *tts.Registry
	Stretcher  Stretcher
	Normalizer Normalizer
	Metrics    *observe.Metrics
	Logger     *slog.Logger
}

// New wires the ffmpeg-backed stretch and loudness steps.
func New(cfg config.Config, reg *tts.Registry, metrics *observe.Metrics, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		Config:     cfg.Narration,
		Registry:   reg,
		Stretcher:  &FFmpegStretcher{FFmpeg: cfg.FFmpegPath, SampleRate: cfg.Narration.SampleRate},
		Normalizer: &FFmpegNormalizer{FFmpeg: cfg.FFmpegPath, Loudnorm: cfg.Narration.Loudnorm, SampleRate: cfg.Narration.SampleRate},
		Metrics:    metrics,
		Logger:     logging.WithComponent(logger, "narration"),
	}
}

func fail(stage string, sceneID int, err error) error {
	return &NarrationPipelineError{Stage: stage, SceneID: sceneID, Err: err}
}

// Run produces the narration WAV at out. The track is exactly
// round(Duration × SampleRate) samples long. Intermediate files live in a
// private workspace that is removed on return.
func (p *Pipeline) Run(ctx context.Context, tl *timeline.Timeline, out string) (*Result, error) {
	start := time.Now()

	backend, provider, err := p.Registry.Select(ctx, p.Config.Backend)
	if err != nil {
		return nil, fail(StageSelect, 0, err)
	}
	p.Logger.Info("tts backend selected", "backend", backend.Name, "quality", backend.Quality, "seeded", backend.Seeded)

	dir, err := os.MkdirTemp("", "reel_tts_")
	if err != nil {
		return nil, fail(StageWorkspace, 0, err)
	}
	defer os.RemoveAll(dir)

	rate := p.Config.SampleRate
	res := &Result{Path: out, Backend: backend.Name, Samples: audio.SampleCount(tl.Duration, rate)}
	var placements []audio.Placement

	for _, scene := range tl.Scenes {
		if err := ctx.Err(); err != nil {
			return nil, fail(StageSynthesize, scene.ID, err)
		}
		if strings.TrimSpace(scene.Text) == "" {
			p.Logger.Debug("scene has no narration text", "scene_id", scene.ID)
			continue
		}
		seg, samples, err := p.scene(ctx, dir, backend.Name, provider, scene)
		if err != nil {
			return nil, err
		}
		res.Segments = append(res.Segments, seg)
		placements = append(placements, audio.Placement{Offset: seg.Offset, Samples: samples})
	}

	final, err := p.mixdown(ctx, dir, placements, res.Samples)
	if err != nil {
		return nil, err
	}

	provisional := system.ProvisionalPath(out)
	if err := audio.WriteFile(provisional, final); err != nil {
		system.Discard(provisional)
		return nil, fail(StageWrite, 0, err)
	}
	if err := system.Commit(provisional, out); err != nil {
		return nil, fail(StageWrite, 0, err)
	}

	p.Metrics.Segments.Add(ctx, int64(len(res.Segments)))
	p.Metrics.RecordStage(ctx, observe.StageNarration, start)
	p.Logger.Info("narration written", "output", out, "segments", len(res.Segments),
		"duration", fmt.Sprintf("%.1fs", res.Duration(rate)), "elapsed", time.Since(start).Round(time.Millisecond))
	return res, nil
}

// scene synthesizes and stretches one scene and returns its placement.
func (p *Pipeline) scene(ctx context.Context, dir, backend string, provider tts.Provider, scene timeline.Scene) (Segment, []int16, error) {
	log := logging.WithScene(p.Logger, scene.ID)
	rate := p.Config.SampleRate
	seg := Segment{
		SceneID: scene.ID,
		Target:  p.Config.TargetDuration(scene.End - scene.Start),
		Offset:  audio.SampleCount(scene.Start+p.Config.LeadIn, rate),
	}

	synthStart := time.Now()
	raw, err := provider.Synthesize(ctx, tts.Request{Text: scene.Text, Seed: p.Config.Seed})
	p.Metrics.RecordSynthesis(ctx, backend, time.Since(synthStart))
	p.Metrics.RecordStage(ctx, observe.StageSynthesis, synthStart)
	if err != nil {
		return seg, nil, fail(StageSynthesize, scene.ID, &SynthesisFailedError{SceneID: scene.ID, Backend: backend, Err: err})
	}
	seg.Raw = raw.Duration()

	rawPath := filepath.Join(dir, fmt.Sprintf("raw_%d.wav", scene.ID))
	if err := audio.WriteFile(rawPath, raw); err != nil {
		return seg, nil, fail(StageSynthesize, scene.ID, err)
	}

	stretchStart := time.Now()
	stretchedPath := filepath.Join(dir, fmt.Sprintf("stretched_%d.wav", scene.ID))
	stretched, err := p.stretch(ctx, scene.ID, rawPath, stretchedPath, seg.Raw, seg.Target)
	switch {
	case ctx.Err() != nil:
		return seg, nil, fail(StageStretch, scene.ID, ctx.Err())
	case err != nil:
		var sf *StretchFailedError
		if !errors.As(err, &sf) {
			sf = &StretchFailedError{SceneID: scene.ID, ExitCode: -1, Stderr: err.Error()}
		}
		log.Warn("stretch failed, keeping natural timing", "error", sf)
		p.Metrics.StretchFallbacks.Add(ctx, 1)
		seg.Fallback = true
		stretched = audio.Resample(raw, rate)
	}
	p.Metrics.RecordStage(ctx, observe.StageStretch, stretchStart)

	seg.Final = stretched.Duration()
	log.Info("segment ready", "target", fmt.Sprintf("%.1fs", seg.Target),
		"raw", fmt.Sprintf("%.1fs", seg.Raw), "final", fmt.Sprintf("%.1fs", seg.Final))
	return seg, stretched.Samples, nil
}

func (p *Pipeline) stretch(ctx context.Context, sceneID int, in, out string, actual, target float64) (audio.Waveform, error) {
	if err := p.Stretcher.Stretch(ctx, sceneID, in, out, actual, target); err != nil {
		return audio.Waveform{}, err
	}
	w, err := audio.ReadFile(out)
	if err != nil {
		return audio.Waveform{}, err
	}
	return audio.Resample(w, p.Config.SampleRate), nil
}

// mixdown assembles the placements into n samples and runs the loudness
// pass once over the whole track. The normalizer reads a 32-bit float
// intermediate so the 1/len(placements) mix gain is not quantized to 16 bits
// before loudnorm restores the level. The result is re-fit to n samples,
// since the filter may pad or trim the tail.
func (p *Pipeline) mixdown(ctx context.Context, dir string, placements []audio.Placement, n int) (audio.Waveform, error) {
	rate := p.Config.SampleRate
	start := time.Now()
	if p.Config.Loudnorm == "" || p.Normalizer == nil {
		w := audio.Waveform{SampleRate: rate, Samples: audio.Assemble(placements, n)}
		p.Metrics.RecordStage(ctx, observe.StageAssemble, start)
		return w, nil
	}

	assembled := filepath.Join(dir, "assembled.wav")
	if err := audio.WriteFloatFile(assembled, rate, audio.AssembleFloat(placements, n)); err != nil {
		return audio.Waveform{}, fail(StageAssemble, 0, err)
	}
	p.Metrics.RecordStage(ctx, observe.StageAssemble, start)

	start = time.Now()
	normalized := filepath.Join(dir, "normalized.wav")
	if err := p.Normalizer.Normalize(ctx, assembled, normalized); err != nil {
		return audio.Waveform{}, fail(StageNormalize, 0, err)
	}
	w, err := audio.ReadFile(normalized)
	if err != nil {
		return audio.Waveform{}, fail(StageNormalize, 0, err)
	}
	w = audio.Resample(w, rate)
	w.Samples = audio.Fit(w.Samples, n)
	p.Metrics.RecordStage(ctx, observe.StageNormalize, start)
	return w, nil
}
