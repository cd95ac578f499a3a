package higgs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ivlev/reelmaker/internal/tts"
)

func TestAPIKey(t *testing.T) {
	env := func(vals map[string]string) tts.Env {
		return func(k string) string { return vals[k] }
	}
	if k := APIKey(env(map[string]string{"HIGGS_API_KEY": "h"})); k != "h" {
		t.Errorf("got %q", k)
	}
	if k := APIKey(env(map[string]string{"HIGGS_API_KEY": "h", "DEEPINFRA_API_KEY": "d"})); k != "d" {
		t.Errorf("DEEPINFRA_API_KEY should win, got %q", k)
	}
	if k := APIKey(env(nil)); k != "" {
		t.Errorf("got %q", k)
	}
}

func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		var body request
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Error(err)
		}
		if body.Text != "hello" || body.OutputFormat != "pcm" {
			t.Errorf("body = %+v", body)
		}
		w.Write([]byte{0x01, 0x00, 0xff, 0xff, 0x10})
	}))
	defer srv.Close()

	p, err := New("secret", WithURL(srv.URL))
	if err != nil {
		t.Fatal(err)
	}
	w, err := p.Synthesize(context.Background(), tts.Request{Text: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if w.SampleRate != 24000 || len(w.Samples) != 2 || w.Samples[0] != 1 || w.Samples[1] != -1 {
		t.Errorf("waveform = %+v", w)
	}
}

func TestSynthesizeHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p, _ := New("secret", WithURL(srv.URL))
	_, err := p.Synthesize(context.Background(), tts.Request{Text: "hello"})
	if err == nil || !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "quota") {
		t.Errorf("got %v", err)
	}
}

func TestNewRequiresKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Error("expected error")
	}
}
