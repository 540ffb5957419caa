package tts

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yegors/voicebridge/internal/config"
	"github.com/yegors/voicebridge/pkg/logger"
)

// outputFormat matches the transport side: raw 8kHz 8-bit mono samples that
// the transcoder converts for Twilio.
const outputFormat = "raw-8khz-8bit-mono-pcm"

// Synthesizer converts reply text to raw audio via the Azure speech service.
// Unlike the other turn components, synthesis errors propagate: the bridge
// skips sending audio for that turn instead of playing something broken.
type Synthesizer struct {
	httpClient      *http.Client
	endpoint        string
	subscriptionKey string
	voice           string
	rate            string
	language        string
	logger          *logger.Logger
}

// NewSynthesizer creates a new speech synthesizer
func NewSynthesizer(cfg *config.TTSConfig, log *logger.Logger) *Synthesizer {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Synthesizer{
		endpoint:        fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/v1", cfg.Region),
		subscriptionKey: cfg.SubscriptionKey,
		voice:           cfg.Voice,
		rate:            cfg.Rate,
		language:        cfg.Language,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log.Named("tts-azure"),
	}
}

// Synthesize posts an SSML document for the given text and returns the raw
// audio body.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	ssml := s.buildSSML(text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", s.subscriptionKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", outputFormat)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		s.logger.Error("TTS synthesis failed",
			logger.Int("status_code", resp.StatusCode),
			logger.String("body", string(body)))
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio body: %w", err)
	}

	s.logger.Debug("TTS synthesis complete", logger.Int("audio_bytes", len(audio)))
	return audio, nil
}

// buildSSML wraps the text in the fixed voice/rate/language markup. The text
// is XML-escaped so replies containing markup characters stay well-formed.
func (s *Synthesizer) buildSSML(text string) string {
	var escaped bytes.Buffer
	xml.EscapeText(&escaped, []byte(text))

	return fmt.Sprintf(
		`<speak version='1.0' xml:lang='%s'><voice name='%s'><prosody rate="%s">%s</prosody></voice></speak>`,
		s.language, s.voice, s.rate, escaped.String(),
	)
}

// SetEndpoint overrides the synthesis endpoint (used by tests).
func (s *Synthesizer) SetEndpoint(endpoint string) {
	s.endpoint = endpoint
}
