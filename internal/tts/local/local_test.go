package local

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ivlev/reelmaker/internal/audio"
	"github.com/ivlev/reelmaker/internal/tts"
)

func TestAvailable(t *testing.T) {
	found := func(string) (string, error) { return "/usr/bin/dia-tts", nil }
	missing := func(string) (string, error) { return "", exec.ErrNotFound }
	gpu := func(context.Context) bool { return true }
	noGPU := func(context.Context) bool { return false }
	mem := func(gib float64) func(context.Context) (float64, error) {
		return func(context.Context) (float64, error) { return gib, nil }
	}

	tests := []struct {
		name   string
		checks Checks
		want   string
	}{
		{"ready", Checks{found, gpu, mem(12)}, ""},
		{"not installed", Checks{missing, gpu, mem(12)}, "not installed"},
		{"no gpu", Checks{found, noGPU, mem(12)}, "NVIDIA"},
		{"low memory", Checks{found, gpu, mem(4)}, "need 6.0 GiB"},
		{"memory check error", Checks{found, gpu, func(context.Context) (float64, error) { return 0, errors.New("boom") }}, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.checks.Available(context.Background(), "dia-tts", 6)
			if tt.want == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestSynthesizeRunsCommand(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	fixture := filepath.Join(dir, "fixture.wav")
	if err := audio.WriteFile(fixture, audio.Waveform{SampleRate: 44100, Samples: make([]int16, 441)}); err != nil {
		t.Fatal(err)
	}
	argsLog := filepath.Join(dir, "args")

	script := "#!/bin/sh\n" +
		"echo \"$@\" > " + argsLog + "\n" +
		"while [ $# -gt 0 ]; do if [ \"$1\" = --output ]; then out=$2; fi; shift; done\n" +
		"cp " + fixture + " \"$out\"\n"
	cmd := filepath.Join(dir, "dia-tts")
	if err := os.WriteFile(cmd, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}

	p, err := New(cmd)
	if err != nil {
		t.Fatal(err)
	}
	w, err := p.Synthesize(context.Background(), tts.Request{Text: "Context erodes.", Seed: 42})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if w.Duration() != 0.01 {
		t.Errorf("duration = %g", w.Duration())
	}
	args, _ := os.ReadFile(argsLog)
	if !strings.Contains(string(args), "[S1] Context erodes. [S1]") || !strings.Contains(string(args), "--seed 42") {
		t.Errorf("args = %s", args)
	}
}

func TestSynthesizeFailure(t *testing.T) {
	p, _ := New(filepath.Join(t.TempDir(), "absent"))
	if _, err := p.Synthesize(context.Background(), tts.Request{Text: "x"}); err == nil {
		t.Error("expected error for missing command")
	}
}
