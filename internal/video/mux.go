package video

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/ivlev/reelmaker/internal/config"
	"github.com/ivlev/reelmaker/internal/system"
)

// muxStderrLimit bounds the diagnostic text carried by MuxFailedError.
const muxStderrLimit = 500

// Muxer combines the silent video with the narration track.
type Muxer struct {
	FFmpeg       string
	AudioBitrate string
	SampleRate   int
	Logger       *slog.Logger
}

func NewMuxer(cfg config.Config, logger *slog.Logger) *Muxer {
	return &Muxer{
		FFmpeg:       cfg.FFmpegPath,
		AudioBitrate: cfg.Narration.AudioBitrate,
		SampleRate:   cfg.Narration.SampleRate,
		Logger:       logger,
	}
}

func (m *Muxer) args(videoPath, audioPath, out string) []string {
	return []string{
		"-y",
		"-i", videoPath,
		"-i", audioPath,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", m.AudioBitrate,
		"-ar", strconv.Itoa(m.SampleRate),
		"-shortest",
		"-movflags", "+faststart",
		out,
	}
}

// Mux copies the video stream, encodes the audio to AAC and writes out.
func (m *Muxer) Mux(ctx context.Context, videoPath, audioPath, out string) error {
	provisional := system.ProvisionalPath(out)

	res := system.Run(ctx, m.FFmpeg, m.args(videoPath, audioPath, provisional)...)
	if err := ctx.Err(); err != nil {
		system.Discard(provisional)
		return fmt.Errorf("mux interrupted: %w", err)
	}
	if !res.IsSuccess() {
		system.Discard(provisional)
		return &MuxFailedError{ExitCode: res.ExitCode, Stderr: system.Truncate(res.StderrTail, muxStderrLimit)}
	}
	if err := system.Commit(provisional, out); err != nil {
		return err
	}
	m.Logger.Info("muxed", "output", out, "elapsed", res.Duration.Round(time.Millisecond))
	return nil
}
