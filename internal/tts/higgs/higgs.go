// Package higgs calls the Higgs Audio model hosted on Deep Infra. The API
// returns raw s16le mono PCM at 24 kHz.
package higgs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ivlev/reelmaker/internal/audio"
	"github.com/ivlev/reelmaker/internal/system"
	"github.com/ivlev/reelmaker/internal/tts"
)

const (
	Name = "higgs"

	DefaultURL = "https://api.deepinfra.com/v1/inference/bosonai/HiggsAudioV2.5"
	SampleRate = 24000
)

// APIKeyEnv lists the variables checked for a key, in order.
var APIKeyEnv = []string{"DEEPINFRA_API_KEY", "HIGGS_API_KEY"}

// APIKey returns the first non-empty key from env.
func APIKey(env tts.Env) string {
	for _, k := range APIKeyEnv {
		if v := env(k); v != "" {
			return v
		}
	}
	return ""
}

var _ tts.Provider = (*Provider)(nil)

type Option func(*Provider)

func WithURL(url string) Option {
	return func(p *Provider) { p.url = url }
}

func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

type Provider struct {
	apiKey     string
	url        string
	httpClient *http.Client
}

func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("higgs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		url:        DefaultURL,
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

type request struct {
	Text         string `json:"text"`
	OutputFormat string `json:"output_format"`
}

func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (audio.Waveform, error) {
	body, err := json.Marshal(request{Text: req.Text, OutputFormat: "pcm"})
	if err != nil {
		return audio.Waveform{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("higgs: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("higgs: request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("higgs: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return audio.Waveform{}, fmt.Errorf("higgs: status %d: %s", resp.StatusCode, system.Truncate(string(data), 500))
	}
	if len(data) < 2 {
		return audio.Waveform{}, errors.New("higgs: empty audio response")
	}
	return audio.FromPCM16LE(data, SampleRate), nil
}
