package system

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// MaxStderrBytes bounds the stderr tail kept from a subprocess.
const MaxStderrBytes = 8 * 1024

// RunResult is the outcome of a finished subprocess.
type RunResult struct {
	ExitCode   int
	StderrTail string
	Duration   time.Duration
}

func (r RunResult) IsSuccess() bool {
	return r.ExitCode == 0
}

// TailWriter keeps only the last Limit bytes written to it.
type TailWriter struct {
	buf   bytes.Buffer
	Limit int
}

func NewTailWriter(limit int) *TailWriter {
	return &TailWriter{Limit: limit}
}

func (w *TailWriter) Write(p []byte) (int, error) {
	n := len(p)
	w.buf.Write(p)
	if w.buf.Len() > w.Limit {
		b := w.buf.Bytes()
		tail := append([]byte(nil), b[len(b)-w.Limit:]...)
		w.buf.Reset()
		w.buf.Write(tail)
	}
	return n, nil
}

func (w *TailWriter) String() string {
	return w.buf.String()
}

// ExitCode extracts a process exit code from an exec error: 0 for nil,
// the process status for *exec.ExitError, -1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Run executes name with args, discarding stdout and keeping a bounded
// stderr tail. A start failure is reported as exit code -1.
func Run(ctx context.Context, name string, args ...string) RunResult {
	start := time.Now()

	stderr := NewTailWriter(MaxStderrBytes)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr

	err := cmd.Run()
	res := RunResult{ExitCode: ExitCode(err), StderrTail: stderr.String(), Duration: time.Since(start)}
	if err != nil && res.StderrTail == "" {
		res.StderrTail = err.Error()
	}
	return res
}

// Truncate cuts s to at most n bytes.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// FindLatestFile returns the most recently modified regular file in dir
// whose extension matches one of exts (case-insensitive).
func FindLatestFile(dir string, exts ...string) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !hasExt(f.Name(), exts) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if latestFile == "" || info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("no %s files found in %s", strings.Join(exts, "/"), dir)
	}
	return latestFile, nil
}

func hasExt(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// GetBestH264Encoder picks a hardware encoder when ffmpeg reports one,
// falling back to libx264.
func GetBestH264Encoder(ctx context.Context, ffmpeg string) string {
	out, err := exec.CommandContext(ctx, ffmpeg, "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return "libx264"
	}

	// VideoToolbox on macOS, then NVENC.
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if strings.Contains(string(out), name) {
			return name
		}
	}
	return "libx264"
}

// QualityArgs returns the rate-control arguments for an H.264 encoder.
func QualityArgs(encoder string, quality, bitrateK int, preset string) []string {
	switch encoder {
	case "h264_videotoolbox":
		// VideoToolbox ignores crf-style quality; use a bitrate.
		return []string{"-b:v", fmt.Sprintf("%dk", bitrateK)}
	case "h264_nvenc":
		return []string{"-cq", fmt.Sprintf("%d", quality)}
	default:
		if preset == "" {
			preset = "medium"
		}
		return []string{"-preset", preset, "-crf", fmt.Sprintf("%d", quality)}
	}
}
