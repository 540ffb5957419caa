package tts

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yegors/voicebridge/internal/config"
	"github.com/yegors/voicebridge/pkg/logger"
)

func testSynthesizer(t *testing.T, handler http.HandlerFunc) *Synthesizer {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	s := NewSynthesizer(&config.TTSConfig{
		SubscriptionKey: "azure-key",
		Region:          "westeurope",
		Voice:           "tr-TR-EmelNeural",
		Rate:            "-5%",
		Language:        "tr-TR",
		TimeoutSec:      5,
	}, log)
	s.SetEndpoint(server.URL)
	return s
}

func TestSynthesizeRequestShape(t *testing.T) {
	audio := []byte{0x80, 0x81, 0x82, 0x83}

	s := testSynthesizer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "azure-key" {
			t.Errorf("missing subscription key header")
		}
		if r.Header.Get("Content-Type") != "application/ssml+xml" {
			t.Errorf("unexpected content type: %s", r.Header.Get("Content-Type"))
		}
		if r.Header.Get("X-Microsoft-OutputFormat") != "raw-8khz-8bit-mono-pcm" {
			t.Errorf("unexpected output format: %s", r.Header.Get("X-Microsoft-OutputFormat"))
		}

		body, _ := io.ReadAll(r.Body)
		ssml := string(body)
		for _, want := range []string{
			`xml:lang='tr-TR'`,
			`<voice name='tr-TR-EmelNeural'>`,
			`<prosody rate="-5%">`,
			"Merhaba efendim",
		} {
			if !strings.Contains(ssml, want) {
				t.Errorf("SSML missing %q:\n%s", want, ssml)
			}
		}

		w.Write(audio)
	})

	got, err := s.Synthesize(context.Background(), "Merhaba efendim")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if string(got) != string(audio) {
		t.Errorf("unexpected audio bytes: %v", got)
	}
}

func TestSynthesizeEscapesText(t *testing.T) {
	s := testSynthesizer(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		ssml := string(body)
		if strings.Contains(ssml, "<script>") {
			t.Errorf("text should be XML-escaped:\n%s", ssml)
		}
		if !strings.Contains(ssml, "&lt;script&gt;") {
			t.Errorf("expected escaped markup in SSML:\n%s", ssml)
		}
		w.Write([]byte{0x00})
	})

	if _, err := s.Synthesize(context.Background(), "<script>"); err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
}

func TestSynthesizeErrorPropagates(t *testing.T) {
	s := testSynthesizer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})

	if _, err := s.Synthesize(context.Background(), "Merhaba"); err == nil {
		t.Error("expected error for non-200 response")
	}
}
