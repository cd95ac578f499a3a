package video

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ivlev/reelmaker/internal/config"
	"github.com/ivlev/reelmaker/internal/logging"
)

const probeJSON = `{
  "streams": [
    {"codec_type": "video", "codec_name": "h264", "width": 1080, "height": 1920,
     "pix_fmt": "yuv420p", "r_frame_rate": "30/1", "nb_frames": "1710", "duration": "57.000000"}
  ],
  "format": {"filename": "reel.mp4", "duration": "57.000000", "size": "1234", "bit_rate": "900000"}
}`

func TestFFprobeParses(t *testing.T) {
	ffprobe := fakeTool(t, "cat <<'EOF'\n"+probeJSON+"\nEOF")

	res, err := NewFFprobe(ffprobe).Probe(context.Background(), "reel.mp4")
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	v, ok := res.VideoStream()
	if !ok || v.Width != 1080 || v.NbFrames != "1710" {
		t.Errorf("video stream = %+v", v)
	}
	if _, ok := res.AudioStream(); ok {
		t.Error("unexpected audio stream")
	}
	if d := res.DurationSeconds(); d != 57 {
		t.Errorf("duration = %g", d)
	}
}

type fakeProber struct {
	res *ProbeResult
	err error
}

func (f fakeProber) Probe(context.Context, string) (*ProbeResult, error) {
	return f.res, f.err
}

func TestValidate(t *testing.T) {
	exp := Expectation{Codec: "h264", Width: 1080, Height: 1920, FPS: 30, Frames: 1710, PixFmt: "yuv420p"}
	good := StreamInfo{CodecType: "video", CodecName: "h264", Width: 1080, Height: 1920, PixFmt: "yuv420p", RFrameRate: "30/1", NbFrames: "1710"}

	res := Validate(context.Background(), fakeProber{res: &ProbeResult{Streams: []StreamInfo{good}}}, "x.mp4", exp)
	if !res.Valid || len(res.Mismatches) != 0 || res.Info == nil {
		t.Errorf("expected valid, got %+v", res)
	}

	bad := good
	bad.NbFrames = "1709"
	bad.PixFmt = "yuv444p"
	res = Validate(context.Background(), fakeProber{res: &ProbeResult{Streams: []StreamInfo{bad}}}, "x.mp4", exp)
	if res.Valid || len(res.Mismatches) != 2 {
		t.Errorf("expected 2 mismatches, got %+v", res)
	}

	res = Validate(context.Background(), fakeProber{err: errors.New("no such file")}, "x.mp4", exp)
	if res.Valid || !strings.Contains(res.Mismatches[0], "no such file") {
		t.Errorf("probe failure should be an invalid result, got %+v", res)
	}
}

func testMuxer(ffmpeg string) *Muxer {
	cfg := config.Default()
	cfg.FFmpegPath = ffmpeg
	return NewMuxer(cfg, logging.Discard())
}

func TestMux(t *testing.T) {
	ffmpeg := fakeTool(t, `for last; do :; done
echo "$@" > "$last"`)
	out := filepath.Join(t.TempDir(), "reel_final.mp4")

	if err := testMuxer(ffmpeg).Mux(context.Background(), "reel.mp4", "narration.wav", out); err != nil {
		t.Fatalf("Mux failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"-c:v copy", "-c:a aac", "-b:a 192k", "-ar 44100", "-shortest", "+faststart"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("mux args missing %q: %s", want, data)
		}
	}
}

func TestMuxFailure(t *testing.T) {
	ffmpeg := fakeTool(t, `printf '%0600d' 0 >&2; exit 1`)
	out := filepath.Join(t.TempDir(), "reel_final.mp4")

	err := testMuxer(ffmpeg).Mux(context.Background(), "reel.mp4", "narration.wav", out)
	var muxErr *MuxFailedError
	if !errors.As(err, &muxErr) {
		t.Fatalf("expected MuxFailedError, got %v", err)
	}
	if muxErr.ExitCode != 1 || len(muxErr.Stderr) != 500 {
		t.Errorf("exit %d, stderr %d bytes", muxErr.ExitCode, len(muxErr.Stderr))
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("no final output should exist")
	}
}
