package narration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ivlev/reelmaker/internal/config"
	"github.com/ivlev/reelmaker/internal/logging"
	"github.com/ivlev/reelmaker/internal/tts"
	"github.com/ivlev/reelmaker/internal/tts/elevenlabs"
	"github.com/ivlev/reelmaker/internal/tts/flite"
	"github.com/ivlev/reelmaker/internal/tts/higgs"
	"github.com/ivlev/reelmaker/internal/tts/local"
	"github.com/ivlev/reelmaker/internal/tts/openai"
)

const remediation = `Install or configure one of:
  - a local model wrapper (tts.local_command, needs an NVIDIA GPU)
  - DEEPINFRA_API_KEY or HIGGS_API_KEY for Higgs Audio
  - OPENAI_API_KEY for OpenAI speech
  - ELEVENLABS_API_KEY plus tts.elevenlabs_voice_id for ElevenLabs
  - flite for the offline fallback (apt install flite)`

// requireEnv reports a missing variable as the unavailability reason.
func requireEnv(env tts.Env, key string) func(context.Context) error {
	return func(context.Context) error {
		if env(key) == "" {
			return fmt.Errorf("%s not set", key)
		}
		return nil
	}
}

// credential logs which key a hosted backend authenticates with, masked,
// and returns it.
func credential(logger *slog.Logger, backend, key string) string {
	logger.Debug("tts credential", "backend", backend, "key", logging.SanitizeToken(key))
	return key
}

// Backends returns the registry in priority order: local model, Higgs,
// OpenAI, ElevenLabs, Flite.
func Backends(cfg config.Config, env tts.Env, checks local.Checks, logger *slog.Logger) *tts.Registry {
	t := cfg.TTS
	log := logging.WithComponent(logger, "tts")
	reg := tts.NewRegistry(remediation)

	reg.Add(tts.Backend{
		Name:    local.Name,
		Quality: "high",
		Seeded:  true,
		Available: func(ctx context.Context) error {
			return checks.Available(ctx, t.LocalCommand, t.LocalMinMemGiB)
		},
		Open: func() (tts.Provider, error) { return local.New(t.LocalCommand) },
	})
	reg.Add(tts.Backend{
		Name:    higgs.Name,
		Quality: "high",
		Available: func(context.Context) error {
			if higgs.APIKey(env) == "" {
				return fmt.Errorf("%s not set", strings.Join(higgs.APIKeyEnv, " or "))
			}
			return nil
		},
		Open: func() (tts.Provider, error) {
			return higgs.New(credential(log, higgs.Name, higgs.APIKey(env)),
				higgs.WithURL(t.HiggsURL),
				higgs.WithHTTPClient(&http.Client{Timeout: t.RequestTimeout}))
		},
	})
	reg.Add(tts.Backend{
		Name:      openai.Name,
		Quality:   "high",
		Available: requireEnv(env, "OPENAI_API_KEY"),
		Open: func() (tts.Provider, error) {
			return openai.New(credential(log, openai.Name, env("OPENAI_API_KEY")), t.OpenAIModel, t.OpenAIVoice,
				openai.WithTimeout(t.RequestTimeout))
		},
	})
	reg.Add(tts.Backend{
		Name:    elevenlabs.Name,
		Quality: "high",
		Available: func(ctx context.Context) error {
			if err := requireEnv(env, "ELEVENLABS_API_KEY")(ctx); err != nil {
				return err
			}
			if t.ElevenLabsVoiceID == "" {
				return errors.New("tts.elevenlabs_voice_id not configured")
			}
			return nil
		},
		Open: func() (tts.Provider, error) {
			return elevenlabs.New(credential(log, elevenlabs.Name, env("ELEVENLABS_API_KEY")), t.ElevenLabsVoiceID,
				elevenlabs.WithModel(t.ElevenLabsModel))
		},
	})
	reg.Add(tts.Backend{
		Name:      flite.Name,
		Quality:   "low (timing reference)",
		Available: func(context.Context) error { return flite.Available(t.FliteCommand) },
		Open: func() (tts.Provider, error) {
			return flite.New(t.FliteCommand, t.FliteVoice, cfg.FFmpegPath), nil
		},
	})
	return reg
}
