// Package elevenlabs synthesizes speech over the ElevenLabs stream-input
// WebSocket. Each request opens one socket, sends the whole scene text, and
// collects the base64 PCM chunks until the final message.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/coder/websocket"

	"github.com/ivlev/reelmaker/internal/audio"
	"github.com/ivlev/reelmaker/internal/tts"
)

const (
	Name = "elevenlabs"

	wsEndpointFmt = "wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s&output_format=%s"
	defaultModel  = "eleven_flash_v2_5"
	outputFormat  = "pcm_24000"
	SampleRate    = 24000

	// maxMessageBytes bounds one audio message; chunks are a few hundred KB.
	maxMessageBytes = 8 << 20
)

var _ tts.Provider = (*Provider)(nil)

type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithEndpoint overrides the WebSocket URL format. It receives voice id,
// model and output format in that order.
func WithEndpoint(format string) Option {
	return func(p *Provider) { p.endpointFmt = format }
}

type Provider struct {
	apiKey      string
	voiceID     string
	model       string
	endpointFmt string
}

func New(apiKey, voiceID string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	if voiceID == "" {
		return nil, errors.New("elevenlabs: voice id must not be empty")
	}
	p := &Provider{
		apiKey:      apiKey,
		voiceID:     voiceID,
		model:       defaultModel,
		endpointFmt: wsEndpointFmt,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// boiMessage opens the stream and authenticates it.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
}

type textMessage struct {
	Text                 string `json:"text"`
	TryTriggerGeneration bool   `json:"try_trigger_generation,omitempty"`
}

type audioResponse struct {
	Audio   string `json:"audio"`
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (p *Provider) url() string {
	return fmt.Sprintf(p.endpointFmt, p.voiceID, p.model, outputFormat)
}

func (p *Provider) send(ctx context.Context, conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, b)
}

// Synthesize streams text in and gathers PCM until the server marks the
// output final or closes the socket normally.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (audio.Waveform, error) {
	conn, _, err := websocket.Dial(ctx, p.url(), nil)
	if err != nil {
		return audio.Waveform{}, fmt.Errorf("elevenlabs: dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")
	conn.SetReadLimit(maxMessageBytes)

	// The API wants a single space as the opening text and a trailing space
	// on every chunk.
	boi := boiMessage{
		Text:          " ",
		VoiceSettings: &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
		XiAPIKey:      p.apiKey,
	}
	if err := p.send(ctx, conn, boi); err != nil {
		return audio.Waveform{}, fmt.Errorf("elevenlabs: send BOI: %w", err)
	}
	text := strings.TrimSpace(req.Text) + " "
	if err := p.send(ctx, conn, textMessage{Text: text, TryTriggerGeneration: true}); err != nil {
		return audio.Waveform{}, fmt.Errorf("elevenlabs: send text: %w", err)
	}
	if err := p.send(ctx, conn, textMessage{Text: ""}); err != nil {
		return audio.Waveform{}, fmt.Errorf("elevenlabs: flush: %w", err)
	}

	var pcm []byte
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure && len(pcm) > 0 {
				break
			}
			return audio.Waveform{}, fmt.Errorf("elevenlabs: read: %w", err)
		}
		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}
		if resp.Error != "" {
			return audio.Waveform{}, fmt.Errorf("elevenlabs: %s: %s", resp.Error, resp.Message)
		}
		if resp.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err != nil {
				return audio.Waveform{}, fmt.Errorf("elevenlabs: decode audio: %w", err)
			}
			pcm = append(pcm, chunk...)
		}
		if resp.IsFinal {
			break
		}
	}

	if len(pcm) < 2 {
		return audio.Waveform{}, errors.New("elevenlabs: no audio received")
	}
	return audio.FromPCM16LE(pcm, SampleRate), nil
}
