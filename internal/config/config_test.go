package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ivlev/reelmaker/internal/timeline"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Width != 1080 || cfg.Height != 1920 {
		t.Errorf("unexpected canvas %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Narration.Seed != 42 {
		t.Errorf("default seed = %d", cfg.Narration.Seed)
	}
}

func TestTargetDuration(t *testing.T) {
	n := Default().Narration

	tests := []struct {
		window float64
		want   float64
	}{
		{7, 6.4},
		{13, 12.4},
		{1.5, 1.3}, // 0.9 < 1.0, falls back to window - 0.2
	}

	for _, tt := range tests {
		got := n.TargetDuration(tt.window)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("TargetDuration(%g) = %g, want %g", tt.window, got, tt.want)
		}
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reel.yaml")
	data := `
width: 720
height: 1280
palette:
  red: "#ff0000"
encoder:
  quality: 23
narration:
  seed: 7
  backend: flite
tts:
  request_timeout: 45s
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Width != 720 || cfg.Height != 1280 {
		t.Errorf("canvas not overridden: %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Palette.Red != (timeline.RGB{R: 255}) {
		t.Errorf("red = %v", cfg.Palette.Red)
	}
	if cfg.Palette.Gray != Default().Palette.Gray {
		t.Errorf("untouched palette entry changed: %v", cfg.Palette.Gray)
	}
	if cfg.Encoder.Quality != 23 || cfg.Encoder.Preset != "medium" {
		t.Errorf("encoder = %+v", cfg.Encoder)
	}
	if cfg.Narration.Seed != 7 || cfg.Narration.Backend != "flite" || cfg.Narration.SampleRate != 44100 {
		t.Errorf("narration = %+v", cfg.Narration)
	}
	if cfg.TTS.RequestTimeout != 45*time.Second || cfg.TTS.FliteVoice != "rms" {
		t.Errorf("tts = %+v", cfg.TTS)
	}
	if got := cfg.Px(40); got != 27 {
		t.Errorf("Px(40) at 720 wide = %d, want 27", got)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reel.yaml")
	os.WriteFile(path, []byte("widht: 720\n"), 0644)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for misspelled key")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Width = 1081
	cfg.Encoder.Quality = 60
	cfg.Narration.SampleRate = 0
	cfg.TTS.RequestTimeout = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"even", "quality", "sample_rate", "request_timeout"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}
