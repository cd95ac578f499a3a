// Package config carries the immutable render settings shared by the
// compositor, scene renderers, encoder and narration pipeline.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/reelmaker/internal/timeline"
)

// ReferenceWidth is the canvas width all layout constants are written for.
const ReferenceWidth = 1080

type Config struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	Palette   Palette   `yaml:"palette"`
	Encoder   Encoder   `yaml:"encoder"`
	Narration Narration `yaml:"narration"`
	TTS       TTS       `yaml:"tts"`

	FFmpegPath  string `yaml:"ffmpeg_path"`
	FFprobePath string `yaml:"ffprobe_path"`

	// Strict turns unregistered scene renderers into a construction error.
	Strict       bool   `yaml:"strict"`
	ShowStats    bool   `yaml:"show_stats"`
	BuildVersion string `yaml:"-"`
}

// Palette is the fixed color set used by overlays and scene renderers.
type Palette struct {
	Background timeline.RGB `yaml:"background"`
	Red        timeline.RGB `yaml:"red"`
	Green      timeline.RGB `yaml:"green"`
	Blue       timeline.RGB `yaml:"blue"`
	Yellow     timeline.RGB `yaml:"yellow"`
	White      timeline.RGB `yaml:"white"`
	Gray       timeline.RGB `yaml:"gray"`
}

type Encoder struct {
	// Codec is an ffmpeg H.264 encoder name; empty selects the best available.
	Codec   string `yaml:"codec"`
	Quality int    `yaml:"quality"` // crf for libx264, cq for nvenc
	Bitrate int    `yaml:"bitrate"` // kbit/s, videotoolbox only
	Preset  string `yaml:"preset"`
}

type Narration struct {
	Enabled bool `yaml:"enabled"`

	// LeadIn and TailOut are subtracted from the scene window to get the
	// target speech length. When the result drops below MinSpeech the
	// target becomes window - ShortPadding.
	LeadIn       float64 `yaml:"lead_in"`
	TailOut      float64 `yaml:"tail_out"`
	MinSpeech    float64 `yaml:"min_speech"`
	ShortPadding float64 `yaml:"short_padding"`

	SampleRate   int    `yaml:"sample_rate"`
	Loudnorm     string `yaml:"loudnorm"` // loudnorm options; empty skips normalization
	AudioBitrate string `yaml:"audio_bitrate"`

	Seed    int64  `yaml:"seed"`
	Backend string `yaml:"backend"` // forces a TTS backend by name
}

// TargetDuration returns the speech length a scene window of the given
// length should be stretched to.
func (n Narration) TargetDuration(window float64) float64 {
	target := window - n.LeadIn - n.TailOut
	if target < n.MinSpeech {
		target = window - n.ShortPadding
	}
	return target
}

// TTS holds per-provider settings. Credentials come from the environment.
type TTS struct {
	LocalCommand   string  `yaml:"local_command"`
	LocalMinMemGiB float64 `yaml:"local_min_mem_gib"`

	HiggsURL string `yaml:"higgs_url"`

	OpenAIModel string `yaml:"openai_model"`
	OpenAIVoice string `yaml:"openai_voice"`

	ElevenLabsVoiceID string `yaml:"elevenlabs_voice_id"`
	ElevenLabsModel   string `yaml:"elevenlabs_model"`

	FliteCommand string `yaml:"flite_command"`
	FliteVoice   string `yaml:"flite_voice"`

	// RequestTimeout bounds one HTTP synthesis call to a hosted backend.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Default returns the stock vertical-video configuration.
func Default() Config {
	return Config{
		Width:  1080,
		Height: 1920,
		Palette: Palette{
			Background: timeline.RGB{R: 13, G: 17, B: 23},
			Red:        timeline.RGB{R: 255, G: 59, B: 48},
			Green:      timeline.RGB{R: 0, G: 255, B: 136},
			Blue:       timeline.RGB{R: 0, G: 122, B: 255},
			Yellow:     timeline.RGB{R: 255, G: 214, B: 10},
			White:      timeline.RGB{R: 240, G: 246, B: 252},
			Gray:       timeline.RGB{R: 139, G: 148, B: 158},
		},
		Encoder: Encoder{
			Codec:   "libx264",
			Quality: 18,
			Bitrate: 8000,
			Preset:  "medium",
		},
		Narration: Narration{
			Enabled:      true,
			LeadIn:       0.3,
			TailOut:      0.3,
			MinSpeech:    1.0,
			ShortPadding: 0.2,
			SampleRate:   44100,
			Loudnorm:     "I=-16:TP=-1.5:LRA=11",
			AudioBitrate: "192k",
			Seed:         42,
		},
		TTS: TTS{
			LocalCommand:    "dia-tts",
			LocalMinMemGiB:  6,
			HiggsURL:        "https://api.deepinfra.com/v1/inference/bosonai/HiggsAudioV2.5",
			OpenAIModel:     "gpt-4o-mini-tts",
			OpenAIVoice:     "onyx",
			ElevenLabsModel: "eleven_flash_v2_5",
			FliteCommand:    "flite",
			FliteVoice:      "rms",
			RequestTimeout:  2 * time.Minute,
		},
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
	}
}

// Load reads a YAML file over the defaults. Unknown keys are an error so
// typos do not silently fall back to defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config: decode %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %q: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every out-of-range value.
func (c Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("canvas size %dx%d must be positive", c.Width, c.Height))
	}
	if c.Width%2 != 0 || c.Height%2 != 0 {
		errs = append(errs, fmt.Errorf("canvas size %dx%d must be even for yuv420p", c.Width, c.Height))
	}
	if c.Encoder.Quality < 0 || c.Encoder.Quality > 51 {
		errs = append(errs, fmt.Errorf("encoder quality %d out of range 0..51", c.Encoder.Quality))
	}
	if c.Narration.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("narration sample_rate %d must be positive", c.Narration.SampleRate))
	}
	if c.Narration.LeadIn < 0 || c.Narration.TailOut < 0 || c.Narration.ShortPadding < 0 {
		errs = append(errs, errors.New("narration padding must not be negative"))
	}
	if c.TTS.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("tts request_timeout %s must be positive", c.TTS.RequestTimeout))
	}
	if strings.TrimSpace(c.FFmpegPath) == "" || strings.TrimSpace(c.FFprobePath) == "" {
		errs = append(errs, errors.New("ffmpeg_path and ffprobe_path must be set"))
	}
	return errors.Join(errs...)
}

// Scale is the factor applied to layout constants for the configured width.
func (c Config) Scale() float64 {
	return float64(c.Width) / ReferenceWidth
}

// Px scales a reference-width pixel length to the configured canvas.
func (c Config) Px(v float64) int {
	s := v * c.Scale()
	if s < 0 {
		return int(s - 0.5)
	}
	return int(s + 0.5)
}
