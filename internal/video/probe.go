package video

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/ivlev/reelmaker/internal/config"
	"github.com/ivlev/reelmaker/internal/system"
	"github.com/ivlev/reelmaker/internal/timeline"
)

// Prober returns stream metadata for a media file.
type Prober interface {
	Probe(ctx context.Context, path string) (*ProbeResult, error)
}

type FFprobe struct{ Path string }

type ProbeResult struct {
	Format  FormatInfo   `json:"format"`
	Streams []StreamInfo `json:"streams"`
}

type FormatInfo struct {
	Filename string `json:"filename"`
	Duration string `json:"duration"`
	Size     string `json:"size"`
	Bitrate  string `json:"bit_rate"`
}

type StreamInfo struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	PixFmt     string `json:"pix_fmt"`
	RFrameRate string `json:"r_frame_rate"`
	NbFrames   string `json:"nb_frames"`
	Duration   string `json:"duration"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

func NewFFprobe(path string) *FFprobe { return &FFprobe{Path: path} }

func (f *FFprobe) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, f.Path, "-v", "error", "-print_format", "json", "-show_format", "-show_streams", path)
	stderr := system.NewTailWriter(1024)
	cmd.Stderr = stderr
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w: %s", err, stderr.String())
	}
	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return &result, nil
}

// VideoStream returns the first video stream.
func (r *ProbeResult) VideoStream() (StreamInfo, bool) {
	for _, s := range r.Streams {
		if s.CodecType == "video" {
			return s, true
		}
	}
	return StreamInfo{}, false
}

// AudioStream returns the first audio stream.
func (r *ProbeResult) AudioStream() (StreamInfo, bool) {
	for _, s := range r.Streams {
		if s.CodecType == "audio" {
			return s, true
		}
	}
	return StreamInfo{}, false
}

func (r *ProbeResult) DurationSeconds() float64 {
	d, _ := strconv.ParseFloat(r.Format.Duration, 64)
	return d
}

// Expectation is what a rendered video must look like.
type Expectation struct {
	Codec  string
	Width  int
	Height int
	FPS    int
	Frames int
	PixFmt string
}

func ExpectationFor(tl *timeline.Timeline, cfg config.Config) Expectation {
	return Expectation{
		Codec:  "h264",
		Width:  cfg.Width,
		Height: cfg.Height,
		FPS:    tl.FPS,
		Frames: tl.TotalFrames(),
		PixFmt: "yuv420p",
	}
}

type ValidationResult struct {
	Valid      bool
	Info       *StreamInfo
	Mismatches []string
}

// Validate probes path and compares the video stream to exp. It never
// returns an error: probe failures come back as an invalid result.
func Validate(ctx context.Context, prober Prober, path string, exp Expectation) ValidationResult {
	res, err := prober.Probe(ctx, path)
	if err != nil {
		return ValidationResult{Mismatches: []string{"probe: " + err.Error()}}
	}
	stream, ok := res.VideoStream()
	if !ok {
		return ValidationResult{Mismatches: []string{"no video stream"}}
	}

	var mm []string
	check := func(field string, got, want any) {
		if got != want {
			mm = append(mm, fmt.Sprintf("%s: got %v, want %v", field, got, want))
		}
	}
	check("codec", stream.CodecName, exp.Codec)
	check("width", stream.Width, exp.Width)
	check("height", stream.Height, exp.Height)
	check("r_frame_rate", stream.RFrameRate, fmt.Sprintf("%d/1", exp.FPS))
	check("pix_fmt", stream.PixFmt, exp.PixFmt)
	check("nb_frames", stream.NbFrames, strconv.Itoa(exp.Frames))

	return ValidationResult{Valid: len(mm) == 0, Info: &stream, Mismatches: mm}
}
