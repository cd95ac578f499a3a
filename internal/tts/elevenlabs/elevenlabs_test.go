package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/coder/websocket"

	"github.com/ivlev/reelmaker/internal/tts"
)

// fakeServer accepts one stream, records the text messages and answers with
// the given responses.
func fakeServer(t *testing.T, responses []audioResponse, got chan<- map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.RawQuery, "output_format=pcm_24000") {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		ctx := r.Context()
		for i := 0; i < 3; i++ {
			_, msg, err := conn.Read(ctx)
			if err != nil {
				t.Error(err)
				return
			}
			var m map[string]any
			json.Unmarshal(msg, &m)
			got <- m
		}
		for _, resp := range responses {
			b, _ := json.Marshal(resp)
			if err := conn.Write(ctx, websocket.MessageText, b); err != nil {
				return
			}
		}
	}))
}

func endpointFor(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/text-to-speech/%s/stream-input?model_id=%s&output_format=%s"
}

func TestSynthesizeCollectsChunks(t *testing.T) {
	chunk := func(b ...byte) string { return base64.StdEncoding.EncodeToString(b) }
	got := make(chan map[string]any, 3)
	srv := fakeServer(t, []audioResponse{
		{Audio: chunk(0x01, 0x00)},
		{Audio: chunk(0x02, 0x00, 0x03, 0x00)},
		{IsFinal: true},
	}, got)
	defer srv.Close()

	p, err := New("xi-key", "voice-1", WithEndpoint(endpointFor(srv)))
	if err != nil {
		t.Fatal(err)
	}
	w, err := p.Synthesize(context.Background(), tts.Request{Text: "  Agents forget.  "})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if w.SampleRate != SampleRate || len(w.Samples) != 3 || w.Samples[2] != 3 {
		t.Errorf("waveform = %+v", w)
	}

	if boi := <-got; boi["xi_api_key"] != "xi-key" || boi["text"] != " " {
		t.Errorf("BOI = %v", boi)
	}
	if msg := <-got; msg["text"] != "Agents forget. " {
		t.Errorf("text message = %v", msg)
	}
	if flush := <-got; flush["text"] != "" {
		t.Errorf("flush = %v", flush)
	}
}

func TestSynthesizeServerError(t *testing.T) {
	srv := fakeServer(t, []audioResponse{{Error: "quota_exceeded", Message: "out of credits"}}, make(chan map[string]any, 3))
	defer srv.Close()

	p, _ := New("xi-key", "voice-1", WithEndpoint(endpointFor(srv)))
	_, err := p.Synthesize(context.Background(), tts.Request{Text: "x"})
	if err == nil || !strings.Contains(err.Error(), "out of credits") {
		t.Errorf("got %v", err)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New("", "v"); err == nil {
		t.Error("expected error for empty key")
	}
	if _, err := New("k", ""); err == nil {
		t.Error("expected error for empty voice id")
	}
	p, _ := New("k", "v", WithModel(""))
	if p.model != defaultModel {
		t.Errorf("model = %q", p.model)
	}
}
