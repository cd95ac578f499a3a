package timeline

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func erosionScenes() []Scene {
	return []Scene{
		{ID: 1, Start: 0, End: 5, Label: "COLD OPEN"},
		{ID: 2, Start: 5, End: 12, Label: "PROMISE LOCK"},
		{ID: 3, Start: 12, End: 25, Label: "THE PROBLEM"},
		{ID: 4, Start: 25, End: 38, Label: "THE CLIFF"},
		{ID: 5, Start: 38, End: 48, Label: "THE FIX"},
		{ID: 6, Start: 48, End: 57, Label: "CLIFFHANGER"},
	}
}

func mustTimeline(t *testing.T, captions []Caption) *Timeline {
	t.Helper()
	tl, err := New(erosionScenes(), captions, 57, 30)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return tl
}

func TestSceneAtCoversWholeRange(t *testing.T) {
	tl := mustTimeline(t, nil)

	for k := 0; k < tl.TotalFrames(); k++ {
		ts := tl.FrameTime(k)
		matches := 0
		for _, s := range tl.Scenes {
			if s.Start <= ts && ts < s.End {
				matches++
			}
		}
		if matches != 1 {
			t.Fatalf("t=%.4f: expected exactly one scene window, got %d", ts, matches)
		}
		got := tl.SceneAt(ts)
		if !(got.Start <= ts && ts < got.End) {
			t.Fatalf("t=%.4f: SceneAt returned scene %d [%g,%g)", ts, got.ID, got.Start, got.End)
		}
	}
}

func TestSceneAtClampsToLast(t *testing.T) {
	tl := mustTimeline(t, nil)

	for _, ts := range []float64{57, 57.5, 1000} {
		if got := tl.SceneAt(ts); got.ID != 6 {
			t.Errorf("t=%g: expected last scene 6, got %d", ts, got.ID)
		}
		if idx := tl.SceneIndexAt(ts); idx != 5 {
			t.Errorf("t=%g: expected index 5, got %d", ts, idx)
		}
	}
}

func TestProgress(t *testing.T) {
	scene := Scene{ID: 2, Start: 5, End: 12}

	tests := []struct {
		t    float64
		want float64
	}{
		{5, 0},
		{8.5, 0.5},
		{12 - 1e-9, 1},
		{2, 0},
		{20, 1},
	}

	for _, tt := range tests {
		got := Progress(scene, tt.t)
		if math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("Progress(t=%g) = %f, want %f", tt.t, got, tt.want)
		}
	}

	tl := mustTimeline(t, nil)
	for _, s := range tl.Scenes {
		if p := Progress(s, s.Start); p != 0 {
			t.Errorf("scene %d: progress at start = %f", s.ID, p)
		}
	}
}

func TestFrameMath(t *testing.T) {
	tl := mustTimeline(t, nil)

	if got := tl.TotalFrames(); got != 1710 {
		t.Fatalf("expected 1710 frames, got %d", got)
	}
	if got := tl.FrameTime(0); got != 0 {
		t.Errorf("frame 0 at %f", got)
	}
	if got := tl.FrameTime(1709); math.Abs(got-56.9667) > 1e-4 {
		t.Errorf("frame 1709 at %f, want 56.9667", got)
	}
}

func TestCaptionAt(t *testing.T) {
	tl := mustTimeline(t, []Caption{
		{Start: 0, End: 1, Text: "Your AI agent"},
		{Start: 1, End: 2, Text: "is getting dumber"},
		{Start: 3, End: 4, Text: "after a gap"},
	})

	for _, ts := range []float64{1.0, 1.5, 1.999} {
		c, ok := tl.CaptionAt(ts)
		if !ok || c.Text != "is getting dumber" {
			t.Errorf("t=%g: got %q, %v", ts, c.Text, ok)
		}
	}

	if c, ok := tl.CaptionAt(2.0); ok {
		t.Errorf("t=2.0: expected no caption, got %q", c.Text)
	}
	if _, ok := tl.CaptionAt(2.5); ok {
		t.Error("t=2.5: gap should have no caption")
	}
}

func TestCaptionOverlapFirstMatchWins(t *testing.T) {
	tl := mustTimeline(t, []Caption{
		{Start: 0, End: 2, Text: "first"},
		{Start: 1, End: 3, Text: "second"},
	})

	c, ok := tl.CaptionAt(1.5)
	if !ok || c.Text != "first" {
		t.Errorf("expected first caption to win, got %q", c.Text)
	}

	pairs := tl.OverlappingCaptions()
	if len(pairs) != 1 || pairs[0] != [2]int{0, 1} {
		t.Errorf("unexpected overlap pairs: %v", pairs)
	}
}

func TestValidateRejectsBadTimelines(t *testing.T) {
	tests := []struct {
		name     string
		scenes   []Scene
		captions []Caption
		duration float64
		fps      int
		problem  string
	}{
		{"no scenes", nil, nil, 10, 30, "no scenes"},
		{"zero fps", []Scene{{ID: 1, Start: 0, End: 10}}, nil, 10, 0, "fps"},
		{"inverted scene", []Scene{{ID: 1, Start: 0, End: 10}, {ID: 2, Start: 10, End: 10}}, nil, 10, 30, "end 10 must be greater"},
		{"overlap", []Scene{{ID: 1, Start: 0, End: 6}, {ID: 2, Start: 5, End: 10}}, nil, 10, 30, "overlaps"},
		{"gap", []Scene{{ID: 1, Start: 0, End: 4}, {ID: 2, Start: 5, End: 10}}, nil, 10, 30, "gap"},
		{"late start", []Scene{{ID: 1, Start: 1, End: 10}}, nil, 10, 30, "must start at 0"},
		{"short duration", []Scene{{ID: 1, Start: 0, End: 10}}, nil, 8, 30, "shorter than last scene"},
		{"duplicate id", []Scene{{ID: 1, Start: 0, End: 5}, {ID: 1, Start: 5, End: 10}}, nil, 10, 30, "duplicate"},
		{"bad caption", []Scene{{ID: 1, Start: 0, End: 10}}, []Caption{{Start: 3, End: 2, Text: "x"}}, 10, 30, "caption 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.scenes, tt.captions, tt.duration, tt.fps)
			var invalid *InvalidTimelineError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidTimelineError, got %v", err)
			}
			if !strings.Contains(invalid.Error(), tt.problem) {
				t.Errorf("error %q does not mention %q", invalid.Error(), tt.problem)
			}
		})
	}
}

func TestDurationBeyondLastSceneIsAccepted(t *testing.T) {
	tl, err := New([]Scene{{ID: 1, Start: 0, End: 9.5}}, nil, 10, 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tl.SceneAt(9.8); got.ID != 1 {
		t.Errorf("tail should clamp to last scene, got %d", got.ID)
	}
}

const sampleYAML = `
version: "1.0"
duration: 12
fps: 30
scenes:
  - id: 1
    start: 0
    end: 5
    label: COLD OPEN
    color: "#ff3b30"
    text: Your AI agent is getting dumber.
    visual:
      kind: title
      headline: CONTEXT EROSION
  - id: 2
    start: 5
    end: 12
    label: PROMISE LOCK
    color: [0, 122, 255]
    text: This is context window erosion.
captions:
  - {start: 0, end: 1, text: Your AI agent}
  - {start: 1, end: 2, text: is getting dumber}
`

func TestDecode(t *testing.T) {
	tl, err := Decode(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if len(tl.Scenes) != 2 || len(tl.Captions) != 2 {
		t.Fatalf("unexpected counts: %d scenes, %d captions", len(tl.Scenes), len(tl.Captions))
	}
	if got := tl.Scenes[0].Color; got != (RGB{255, 59, 48}) {
		t.Errorf("hex color parsed as %v", got)
	}
	if got := tl.Scenes[1].Color; got != (RGB{0, 122, 255}) {
		t.Errorf("list color parsed as %v", got)
	}
	if tl.Scenes[0].Visual.Kind != "title" {
		t.Errorf("visual kind = %q", tl.Scenes[0].Visual.Kind)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode(strings.NewReader("duration: 5\nfps: 30\nbogus: 1\nscenes: [{id: 1, start: 0, end: 5}]\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestWriteRead(t *testing.T) {
	tl, err := Decode(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	path := filepath.Join(t.TempDir(), "timeline.yaml")
	if err := Write(tl, path); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	back, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if back.Scenes[1].Color != tl.Scenes[1].Color || back.Duration != tl.Duration {
		t.Errorf("timeline changed across write/read: %+v", back)
	}
}

func TestFindLatest(t *testing.T) {
	dir := t.TempDir()
	files := []string{"a.yaml", "b.yml", "c.yaml"}
	for i, name := range files {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		mt := time.Now().Add(time.Duration(i) * time.Hour)
		os.Chtimes(p, mt, mt)
	}
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644)

	latest, err := FindLatest(dir)
	if err != nil {
		t.Fatalf("FindLatest failed: %v", err)
	}
	if filepath.Base(latest) != "c.yaml" {
		t.Errorf("expected c.yaml, got %s", latest)
	}

	if _, err := FindLatest(t.TempDir()); err == nil {
		t.Error("expected error for empty directory")
	}
}
