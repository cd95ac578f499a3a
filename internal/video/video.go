package video

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"time"

	"github.com/ivlev/reelmaker/internal/config"
	"github.com/ivlev/reelmaker/internal/observe"
	"github.com/ivlev/reelmaker/internal/system"
	"github.com/ivlev/reelmaker/internal/timeline"
)

// FrameSource produces the frame for a time coordinate. Frames are handed
// back with Release once written.
type FrameSource interface {
	Frame(t float64) *image.RGBA
	Release(img *image.RGBA)
}

// Observer is told about encoding progress once per second of video.
type Observer interface {
	FrameProgress(done, total int)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(done, total int)

func (f ObserverFunc) FrameProgress(done, total int) { f(done, total) }

type FFmpegEncoder struct {
	FFmpeg  string
	Codec   string
	Quality int
	Bitrate int
	Preset  string
	Width   int
	Height  int

	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// NewEncoder builds an encoder from the render config. codec overrides the
// configured encoder name when non-empty.
func NewEncoder(cfg config.Config, codec string, metrics *observe.Metrics, logger *slog.Logger) *FFmpegEncoder {
	if codec == "" {
		codec = cfg.Encoder.Codec
	}
	return &FFmpegEncoder{
		FFmpeg:  cfg.FFmpegPath,
		Codec:   codec,
		Quality: cfg.Encoder.Quality,
		Bitrate: cfg.Encoder.Bitrate,
		Preset:  cfg.Encoder.Preset,
		Width:   cfg.Width,
		Height:  cfg.Height,
		Metrics: metrics,
		Logger:  logger,
	}
}

func (e *FFmpegEncoder) buildFFmpegArgs(fps int, videoPath string) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-vcodec", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", e.Width, e.Height),
		"-r", strconv.Itoa(fps),
		"-i", "-",
		"-c:v", e.Codec,
	}
	args = append(args, system.QualityArgs(e.Codec, e.Quality, e.Bitrate, e.Preset)...)
	args = append(args,
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-an",
		videoPath,
	)
	return args
}

// Encode streams every frame of tl, in order, to an ffmpeg process writing
// out. The file is produced under a provisional name and renamed on success.
func (e *FFmpegEncoder) Encode(ctx context.Context, tl *timeline.Timeline, frames FrameSource, out string, obs Observer) error {
	start := time.Now()
	total := tl.TotalFrames()
	provisional := system.ProvisionalPath(out)

	cmd := exec.CommandContext(ctx, e.FFmpeg, e.buildFFmpegArgs(tl.FPS, provisional)...)
	stderr := system.NewTailWriter(system.MaxStderrBytes)
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return &EncodingFailedError{ExitCode: -1, Err: fmt.Errorf("start %s: %w", e.FFmpeg, err)}
	}

	e.Logger.Info("encoding started", "frames", total, "fps", tl.FPS, "codec", e.Codec, "output", out)

	written, writeErr := e.writeFrames(ctx, tl, frames, stdin, total, obs)
	stdin.Close()
	waitErr := cmd.Wait()

	if err := ctx.Err(); err != nil {
		system.Discard(provisional)
		return fmt.Errorf("encoding interrupted after %d/%d frames: %w", written, total, err)
	}
	if waitErr != nil || writeErr != nil {
		system.Discard(provisional)
		cause := writeErr
		if waitErr != nil {
			cause = waitErr
		}
		return &EncodingFailedError{
			ExitCode: system.ExitCode(waitErr),
			Stderr:   stderr.String(),
			Err:      fmt.Errorf("after %d/%d frames: %w", written, total, cause),
		}
	}

	if err := system.Commit(provisional, out); err != nil {
		return err
	}
	e.Metrics.RecordStage(ctx, observe.StageEncode, start)
	e.Logger.Info("encoding finished", "frames", written, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// writeFrames emits frames 0..total-1. It stops at the first write error,
// which usually means the encoder exited early, or on cancellation.
func (e *FFmpegEncoder) writeFrames(ctx context.Context, tl *timeline.Timeline, frames FrameSource, w io.Writer, total int, obs Observer) (int, error) {
	buf := make([]byte, e.Width*e.Height*3)
	notifyEvery := tl.FPS

	for k := 0; k < total; k++ {
		if err := ctx.Err(); err != nil {
			return k, err
		}

		img := frames.Frame(tl.FrameTime(k))
		if err := packRGB24(buf, img, e.Width, e.Height); err != nil {
			frames.Release(img)
			return k, err
		}
		frames.Release(img)

		if _, err := w.Write(buf); err != nil {
			return k, fmt.Errorf("write frame %d: %w", k, err)
		}
		e.Metrics.FramesEncoded.Add(ctx, 1)

		done := k + 1
		if obs != nil && (done%notifyEvery == 0 || done == total) {
			obs.FrameProgress(done, total)
		}
	}
	return total, nil
}

// packRGB24 drops the alpha channel into dst.
func packRGB24(dst []byte, img *image.RGBA, w, h int) error {
	b := img.Bounds()
	if b.Dx() != w || b.Dy() != h {
		return fmt.Errorf("frame is %dx%d, encoder expects %dx%d", b.Dx(), b.Dy(), w, h)
	}
	i := 0
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < len(row); x += 4 {
			dst[i] = row[x]
			dst[i+1] = row[x+1]
			dst[i+2] = row[x+2]
			i += 3
		}
	}
	return nil
}
