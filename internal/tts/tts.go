// Package tts defines the speech synthesis contract and the ordered backend
// registry the narration pipeline selects from.
//
// Providers live in subpackages (local, higgs, openai, elevenlabs, flite).
// Each returns mono PCM at its native rate; callers resample as needed.
package tts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ivlev/reelmaker/internal/audio"
)

// Request is one utterance to synthesize.
type Request struct {
	Text string
	// Seed keeps the voice stable across scenes for providers that accept
	// one. Others ignore it.
	Seed int64
}

// Provider turns text into audio. Implementations must be safe to call
// sequentially from one goroutine; the pipeline never calls them in parallel.
type Provider interface {
	Synthesize(ctx context.Context, req Request) (audio.Waveform, error)
}

// Env looks up an environment variable. os.Getenv in production.
type Env func(key string) string

// OSEnv reads the process environment.
func OSEnv(key string) string { return os.Getenv(key) }

// Backend describes one selectable provider. Available checks prerequisites
// only (binaries, keys, hardware) and never synthesizes.
type Backend struct {
	Name    string
	Quality string
	Seeded  bool

	Available func(ctx context.Context) error
	Open      func() (Provider, error)
}

// ErrUnknownBackend is returned when a forced backend name is not registered.
var ErrUnknownBackend = errors.New("unknown tts backend")

// Unavailable records why a backend was skipped.
type Unavailable struct {
	Backend string
	Reason  string
}

// NoBackendAvailableError is returned when no registered backend can run.
type NoBackendAvailableError struct {
	Skipped     []Unavailable
	Remediation string
}

func (e *NoBackendAvailableError) Error() string {
	var b strings.Builder
	b.WriteString("no tts backend available")
	for _, s := range e.Skipped {
		fmt.Fprintf(&b, "\n  - %s: %s", s.Backend, s.Reason)
	}
	if e.Remediation != "" {
		b.WriteString("\n")
		b.WriteString(e.Remediation)
	}
	return b.String()
}

// Registry is an ordered list of backends, best first.
type Registry struct {
	backends    []Backend
	remediation string
}

func NewRegistry(remediation string, backends ...Backend) *Registry {
	return &Registry{backends: backends, remediation: remediation}
}

func (r *Registry) Add(b Backend) { r.backends = append(r.backends, b) }

func (r *Registry) Names() []string {
	names := make([]string, len(r.backends))
	for i, b := range r.backends {
		names[i] = b.Name
	}
	return names
}

func (r *Registry) lookup(name string) (Backend, bool) {
	for _, b := range r.backends {
		if b.Name == name {
			return b, true
		}
	}
	return Backend{}, false
}

// Select returns the first backend whose prerequisites hold, or the forced
// one when forced is non-empty. A forced backend that is not available is
// reported rather than silently replaced.
func (r *Registry) Select(ctx context.Context, forced string) (Backend, Provider, error) {
	if forced != "" {
		b, ok := r.lookup(forced)
		if !ok {
			return Backend{}, nil, fmt.Errorf("%w %q (known: %s)", ErrUnknownBackend, forced, strings.Join(r.Names(), ", "))
		}
		p, reason := open(ctx, b)
		if reason != "" {
			return Backend{}, nil, &NoBackendAvailableError{
				Skipped:     []Unavailable{{Backend: b.Name, Reason: reason}},
				Remediation: r.remediation,
			}
		}
		return b, p, nil
	}

	var skipped []Unavailable
	for _, b := range r.backends {
		if err := ctx.Err(); err != nil {
			return Backend{}, nil, err
		}
		p, reason := open(ctx, b)
		if reason == "" {
			return b, p, nil
		}
		skipped = append(skipped, Unavailable{Backend: b.Name, Reason: reason})
	}
	return Backend{}, nil, &NoBackendAvailableError{Skipped: skipped, Remediation: r.remediation}
}

func open(ctx context.Context, b Backend) (Provider, string) {
	if b.Available != nil {
		if err := b.Available(ctx); err != nil {
			return nil, err.Error()
		}
	}
	p, err := b.Open()
	if err != nil {
		return nil, err.Error()
	}
	return p, ""
}
