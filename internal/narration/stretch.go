package narration

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ivlev/reelmaker/internal/system"
)

// atempo accepts factors in [0.5, 2.0]; larger changes are chained.
const (
	maxTempo = 2.0
	minTempo = 0.5

	stretchStderrLimit = 500
)

// StretchStages splits actual/target into tempo factors each within
// [0.5, 2.0] whose product is the ratio. It returns nil when either
// duration is not positive, meaning "copy unchanged".
func StretchStages(actual, target float64) []float64 {
	if actual <= 0 || target <= 0 {
		return nil
	}
	r := actual / target
	var stages []float64
	for r > maxTempo {
		stages = append(stages, maxTempo)
		r /= maxTempo
	}
	for r < minTempo {
		stages = append(stages, minTempo)
		r *= 2
	}
	return append(stages, r)
}

// tempoFilter renders the stages as an ffmpeg filter chain resampled to rate.
func tempoFilter(stages []float64, rate int) string {
	parts := make([]string, 0, len(stages)+1)
	for _, s := range stages {
		parts = append(parts, "atempo="+strconv.FormatFloat(s, 'f', -1, 64))
	}
	parts = append(parts, "aresample="+strconv.Itoa(rate))
	return strings.Join(parts, ",")
}

// Stretcher changes a segment's duration without altering pitch.
type Stretcher interface {
	Stretch(ctx context.Context, sceneID int, in, out string, actual, target float64) error
}

// FFmpegStretcher runs the atempo chain through ffmpeg and writes mono s16
// at SampleRate.
type FFmpegStretcher struct {
	FFmpeg     string
	SampleRate int
}

func (s *FFmpegStretcher) args(stages []float64, in, out string) []string {
	return []string{
		"-y", "-i", in,
		"-filter:a", tempoFilter(stages, s.SampleRate),
		"-ac", "1",
		"-c:a", "pcm_s16le",
		out,
	}
}

func (s *FFmpegStretcher) Stretch(ctx context.Context, sceneID int, in, out string, actual, target float64) error {
	stages := StretchStages(actual, target)
	if stages == nil {
		return copyFile(in, out)
	}
	res := system.Run(ctx, s.FFmpeg, s.args(stages, in, out)...)
	if err := ctx.Err(); err != nil {
		return err
	}
	if !res.IsSuccess() {
		return &StretchFailedError{
			SceneID:  sceneID,
			ExitCode: res.ExitCode,
			Stderr:   system.Truncate(res.StderrTail, stretchStderrLimit),
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close()
}
