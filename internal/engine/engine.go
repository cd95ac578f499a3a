// Package engine runs one render: the video pass and the narration pass in
// parallel, then output validation and the final mux.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/reelmaker/internal/logging"
	"github.com/ivlev/reelmaker/internal/narration"
	"github.com/ivlev/reelmaker/internal/observe"
	"github.com/ivlev/reelmaker/internal/timeline"
	"github.com/ivlev/reelmaker/internal/video"
)

type Encoder interface {
	Encode(ctx context.Context, tl *timeline.Timeline, frames video.FrameSource, out string, obs video.Observer) error
}

type Narrator interface {
	Run(ctx context.Context, tl *timeline.Timeline, out string) (*narration.Result, error)
}

type Muxer interface {
	Mux(ctx context.Context, videoPath, audioPath, out string) error
}

// Outputs are the files one render produces.
type Outputs struct {
	Video     string // silent video
	Narration string
	Final     string // video with narration
}

// OutputsFor derives the narration and final paths from the video path:
// out/reel.mp4 gives out/narration.wav and out/reel_final.mp4.
func OutputsFor(videoPath string) Outputs {
	dir := filepath.Dir(videoPath)
	ext := filepath.Ext(videoPath)
	base := strings.TrimSuffix(filepath.Base(videoPath), ext)
	return Outputs{
		Video:     videoPath,
		Narration: filepath.Join(dir, "narration.wav"),
		Final:     filepath.Join(dir, base+"_final"+ext),
	}
}

type Project struct {
	Timeline *timeline.Timeline
	Frames   video.FrameSource
	Encoder  Encoder
	Narrator Narrator // nil renders a silent video only
	Muxer    Muxer
	Prober   video.Prober
	Expect   video.Expectation
	Outputs  Outputs

	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// Result summarizes a finished render.
type Result struct {
	Outputs    Outputs
	Validation video.ValidationResult
	Narration  *narration.Result
	Elapsed    time.Duration
}

// progressLogger reports encoding progress once per second of video.
func progressLogger(logger *slog.Logger, fps int) video.Observer {
	return video.ObserverFunc(func(done, total int) {
		logger.Info("rendering",
			"second", done/fps,
			"frame", done,
			"total", total,
			"percent", fmt.Sprintf("%.0f%%", 100*float64(done)/float64(total)))
	})
}

// Run encodes and narrates concurrently. The first failure cancels the
// other pass. Validation problems are logged, not fatal.
func (p *Project) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	log := logging.WithComponent(p.Logger, "engine")
	res := &Result{Outputs: p.Outputs}

	log.Info("render started",
		"scenes", len(p.Timeline.Scenes),
		"duration", p.Timeline.Duration,
		"frames", p.Timeline.TotalFrames(),
		"narration", p.Narrator != nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := p.Encoder.Encode(gctx, p.Timeline, p.Frames, p.Outputs.Video, progressLogger(log, p.Timeline.FPS)); err != nil {
			return fmt.Errorf("video: %w", err)
		}
		return nil
	})
	if p.Narrator != nil {
		g.Go(func() error {
			nr, err := p.Narrator.Run(gctx, p.Timeline, p.Outputs.Narration)
			if err != nil {
				return fmt.Errorf("narration: %w", err)
			}
			res.Narration = nr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if p.Prober != nil {
		vStart := time.Now()
		res.Validation = video.Validate(ctx, p.Prober, p.Outputs.Video, p.Expect)
		p.Metrics.RecordStage(ctx, observe.StageValidate, vStart)
		if res.Validation.Valid {
			log.Info("video validated", "output", p.Outputs.Video)
		} else {
			log.Warn("video does not match expectations", "mismatches", res.Validation.Mismatches)
		}
	}

	if p.Narrator != nil {
		muxStart := time.Now()
		if err := p.Muxer.Mux(ctx, p.Outputs.Video, p.Outputs.Narration, p.Outputs.Final); err != nil {
			return nil, fmt.Errorf("mux: %w", err)
		}
		p.Metrics.RecordStage(ctx, observe.StageMux, muxStart)
	}

	res.Elapsed = time.Since(start)
	log.Info("render finished", "elapsed", res.Elapsed.Round(time.Millisecond))
	return res, nil
}
