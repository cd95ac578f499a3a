package engine

import (
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ivlev/reelmaker/internal/logging"
	"github.com/ivlev/reelmaker/internal/narration"
	"github.com/ivlev/reelmaker/internal/observe"
	"github.com/ivlev/reelmaker/internal/timeline"
	"github.com/ivlev/reelmaker/internal/video"
)

func TestOutputsFor(t *testing.T) {
	got := OutputsFor(filepath.Join("out", "reel.mp4"))
	want := Outputs{
		Video:     filepath.Join("out", "reel.mp4"),
		Narration: filepath.Join("out", "narration.wav"),
		Final:     filepath.Join("out", "reel_final.mp4"),
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

type nopFrames struct{}

func (nopFrames) Frame(float64) *image.RGBA { return image.NewRGBA(image.Rect(0, 0, 1, 1)) }
func (nopFrames) Release(*image.RGBA)      {}

// fileEncoder writes a marker file, or blocks until cancelled when block is set.
type fileEncoder struct {
	block     bool
	cancelled bool
}

func (e *fileEncoder) Encode(ctx context.Context, tl *timeline.Timeline, _ video.FrameSource, out string, obs video.Observer) error {
	if e.block {
		<-ctx.Done()
		e.cancelled = true
		return ctx.Err()
	}
	obs.FrameProgress(tl.TotalFrames(), tl.TotalFrames())
	return os.WriteFile(out, []byte("video"), 0644)
}

type fakeNarrator struct{ err error }

func (n fakeNarrator) Run(_ context.Context, _ *timeline.Timeline, out string) (*narration.Result, error) {
	if n.err != nil {
		return nil, n.err
	}
	if err := os.WriteFile(out, []byte("audio"), 0644); err != nil {
		return nil, err
	}
	return &narration.Result{Path: out, Backend: "fake"}, nil
}

type recordingMuxer struct{ calls [][3]string }

func (m *recordingMuxer) Mux(_ context.Context, v, a, out string) error {
	for _, p := range []string{v, a} {
		if _, err := os.Stat(p); err != nil {
			return err
		}
	}
	m.calls = append(m.calls, [3]string{v, a, out})
	return os.WriteFile(out, []byte("final"), 0644)
}

type staticProber struct{ res *video.ProbeResult }

func (p staticProber) Probe(context.Context, string) (*video.ProbeResult, error) { return p.res, nil }

func project(t *testing.T, enc Encoder, nar Narrator, mux Muxer) *Project {
	t.Helper()
	tl, err := timeline.New([]timeline.Scene{{ID: 1, Start: 0, End: 2, Text: "hi"}}, nil, 2, 10)
	if err != nil {
		t.Fatal(err)
	}
	p := &Project{
		Timeline: tl,
		Frames:   nopFrames{},
		Encoder:  enc,
		Muxer:    mux,
		Outputs:  OutputsFor(filepath.Join(t.TempDir(), "reel.mp4")),
		Metrics:  observe.Discard(),
		Logger:   logging.Discard(),
	}
	if nar != nil {
		p.Narrator = nar
	}
	return p
}

func TestRunMuxesBothPasses(t *testing.T) {
	mux := &recordingMuxer{}
	p := project(t, &fileEncoder{}, fakeNarrator{}, mux)
	p.Prober = staticProber{&video.ProbeResult{Streams: []video.StreamInfo{{CodecType: "video", CodecName: "h264"}}}}
	p.Expect = video.Expectation{Codec: "h264"}

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(mux.calls) != 1 || mux.calls[0][2] != p.Outputs.Final {
		t.Errorf("mux calls = %v", mux.calls)
	}
	if res.Narration == nil || res.Narration.Backend != "fake" {
		t.Errorf("narration result = %+v", res.Narration)
	}
	if res.Validation.Valid {
		t.Error("incomplete stream metadata should not validate")
	}
	if _, err := os.Stat(p.Outputs.Final); err != nil {
		t.Errorf("final output missing: %v", err)
	}
}

func TestRunSilent(t *testing.T) {
	mux := &recordingMuxer{}
	p := project(t, &fileEncoder{}, nil, mux)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(mux.calls) != 0 {
		t.Error("silent render must not mux")
	}
}

func TestRunNarrationFailureCancelsVideo(t *testing.T) {
	enc := &fileEncoder{block: true}
	boom := &narration.NarrationPipelineError{Stage: narration.StageSynthesize, SceneID: 1, Err: errors.New("model crashed")}
	mux := &recordingMuxer{}
	p := project(t, enc, fakeNarrator{err: boom}, mux)

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background())
		done <- err
	}()

	select {
	case err := <-done:
		var pe *narration.NarrationPipelineError
		if !errors.As(err, &pe) || pe.SceneID != 1 {
			t.Errorf("got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("video pass was not cancelled")
	}
	if !enc.cancelled {
		t.Error("encoder should observe cancellation")
	}
	if len(mux.calls) != 0 {
		t.Error("no mux after a failed pass")
	}
}
