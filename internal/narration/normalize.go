package narration

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ivlev/reelmaker/internal/system"
)

// Normalizer applies loudness normalization to a finished track.
type Normalizer interface {
	Normalize(ctx context.Context, in, out string) error
}

// FFmpegNormalizer runs a single loudnorm pass.
type FFmpegNormalizer struct {
	FFmpeg     string
	Loudnorm   string // filter options, e.g. I=-16:TP=-1.5:LRA=11
	SampleRate int
}

// loudnormFilter names the filter for bare options. A value that already
// starts with "loudnorm" is used as is.
func loudnormFilter(opts string) string {
	opts = strings.TrimSpace(opts)
	if strings.HasPrefix(opts, "loudnorm") {
		return opts
	}
	return "loudnorm=" + opts
}

func (n *FFmpegNormalizer) args(in, out string) []string {
	return []string{
		"-y", "-i", in,
		"-filter:a", loudnormFilter(n.Loudnorm),
		"-ar", strconv.Itoa(n.SampleRate),
		"-ac", "1",
		"-c:a", "pcm_s16le",
		out,
	}
}

func (n *FFmpegNormalizer) Normalize(ctx context.Context, in, out string) error {
	res := system.Run(ctx, n.FFmpeg, n.args(in, out)...)
	if err := ctx.Err(); err != nil {
		return err
	}
	if !res.IsSuccess() {
		return fmt.Errorf("ffmpeg exited %d: %s", res.ExitCode, system.Truncate(res.StderrTail, stretchStderrLimit))
	}
	return nil
}
