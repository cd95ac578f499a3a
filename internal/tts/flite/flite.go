// Package flite is the offline fallback. The voice is robotic and mainly
// useful as a timing reference.
package flite

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ivlev/reelmaker/internal/audio"
	"github.com/ivlev/reelmaker/internal/system"
	"github.com/ivlev/reelmaker/internal/tts"
)

const Name = "flite"

// enhanceFilter upsamples and shapes the raw voice so it is less harsh.
// Loudness is left to the final mix.
const enhanceFilter = "aresample=44100," +
	"highpass=f=80:poles=2," +
	"lowpass=f=8000:poles=2," +
	"equalizer=f=300:width_type=o:width=1.5:g=4," +
	"equalizer=f=3000:width_type=o:width=1:g=-3," +
	"equalizer=f=6000:width_type=o:width=1:g=-6," +
	"acompressor=threshold=-20dB:ratio=3:attack=5:release=50"

var _ tts.Provider = (*Provider)(nil)

type Provider struct {
	command string
	voice   string
	ffmpeg  string
}

// New returns a provider running command with voice. When ffmpeg is
// non-empty the output is passed through the enhancement filter.
func New(command, voice, ffmpeg string) *Provider {
	if voice == "" {
		voice = "rms"
	}
	return &Provider{command: command, voice: voice, ffmpeg: ffmpeg}
}

// Available reports whether the flite binary can be found.
func Available(command string) error {
	if _, err := exec.LookPath(command); err != nil {
		return fmt.Errorf("%s not found in PATH", command)
	}
	return nil
}

// cleanText strips speaker tags meant for the local model.
func cleanText(text string) string {
	return strings.TrimSpace(strings.NewReplacer("[S1]", "", "[S2]", "").Replace(text))
}

func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (audio.Waveform, error) {
	dir, err := os.MkdirTemp("", "reel_flite_")
	if err != nil {
		return audio.Waveform{}, err
	}
	defer os.RemoveAll(dir)

	raw := filepath.Join(dir, "raw.wav")
	res := system.Run(ctx, p.command, "-voice", p.voice, "-t", cleanText(req.Text), "-o", raw)
	if !res.IsSuccess() {
		return audio.Waveform{}, fmt.Errorf("flite exited %d: %s", res.ExitCode, system.Truncate(res.StderrTail, 500))
	}
	if p.ffmpeg == "" {
		return audio.ReadFile(raw)
	}

	enhanced := filepath.Join(dir, "enhanced.wav")
	res = system.Run(ctx, p.ffmpeg, "-y", "-i", raw, "-filter:a", enhanceFilter, "-ac", "1", "-c:a", "pcm_s16le", enhanced)
	if !res.IsSuccess() {
		// The unfiltered voice is still usable.
		return audio.ReadFile(raw)
	}
	return audio.ReadFile(enhanced)
}
