// Package local runs an on-device speech model through its command-line
// wrapper (dia-tts by default). It needs an NVIDIA accelerator and enough free
// memory to load the model.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/ivlev/reelmaker/internal/audio"
	"github.com/ivlev/reelmaker/internal/system"
	"github.com/ivlev/reelmaker/internal/tts"
)

const Name = "local"

var _ tts.Provider = (*Provider)(nil)

// Checks are the host lookups behind Available. Tests replace them.
type Checks struct {
	LookPath func(file string) (string, error)
	HasGPU   func(ctx context.Context) bool
	FreeGiB  func(ctx context.Context) (float64, error)
}

func DefaultChecks() Checks {
	return Checks{
		LookPath: exec.LookPath,
		HasGPU:   system.HasNVIDIA,
		FreeGiB: func(ctx context.Context) (float64, error) {
			res, err := system.ProbeResources(ctx)
			if err != nil {
				return 0, err
			}
			return res.AvailableGiB(), nil
		},
	}
}

// Available reports why the local model cannot run, or nil.
func (c Checks) Available(ctx context.Context, command string, minGiB float64) error {
	if _, err := c.LookPath(command); err != nil {
		return fmt.Errorf("%s not installed", command)
	}
	if !c.HasGPU(ctx) {
		return errors.New("no NVIDIA accelerator detected")
	}
	free, err := c.FreeGiB(ctx)
	if err != nil {
		return fmt.Errorf("memory check failed: %w", err)
	}
	if free < minGiB {
		return fmt.Errorf("%.1f GiB available, need %.1f GiB", free, minGiB)
	}
	return nil
}

type Provider struct {
	command string
}

func New(command string) (*Provider, error) {
	if command == "" {
		return nil, errors.New("local: command must not be empty")
	}
	return &Provider{command: command}, nil
}

// speakerText wraps text in the single-speaker tags the model expects.
func speakerText(text string) string {
	return "[S1] " + text + " [S1]"
}

func (p *Provider) args(text string, seed int64, out string) []string {
	return []string{
		"--text", speakerText(text),
		"--seed", strconv.FormatInt(seed, 10),
		"--output", out,
	}
}

// Synthesize runs the model once and reads back the WAV it writes.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (audio.Waveform, error) {
	dir, err := os.MkdirTemp("", "reel_local_")
	if err != nil {
		return audio.Waveform{}, err
	}
	defer os.RemoveAll(dir)

	out := filepath.Join(dir, "speech.wav")
	res := system.Run(ctx, p.command, p.args(req.Text, req.Seed, out)...)
	if !res.IsSuccess() {
		return audio.Waveform{}, fmt.Errorf("local: %s exited %d: %s", p.command, res.ExitCode, system.Truncate(res.StderrTail, 500))
	}
	return audio.ReadFile(out)
}
