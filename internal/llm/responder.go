package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/yegors/voicebridge/internal/config"
	"github.com/yegors/voicebridge/pkg/logger"
)

// systemPrompt is the fixed maintenance-advisory persona. The agent speaks
// Turkish, keeps replies to 2-3 sentences, and must not pressure a caller
// who declines.
const systemPrompt = `Rolün: Su arıtma cihazı bakım danışmanı.
Türkçe, nazik, 2-3 cümlelik yanıtlar ver.
KVKK'ya uygun davran.
"Hayır, istemiyorum" diyenlere ısrar etme.
Hedefler: (1) Uygun zaman teyidi, (2) Filtre-bakım ihtiyacı, (3) Randevu, (4) WhatsApp bilgi.
Kaçın: Uzun konuşma, teknik detaya boğma, fiyatı net sormadan söyleme.
Duygular: Sakin, çözüm odaklı, saygılı.`

// Canned replies used by the response filter and the degraded path.
const (
	// ContinuationReply replaces any model output that tries to end the call.
	ContinuationReply = "Anladım. Başka bir konuda yardımcı olabilir miyim?"
	// ShortReplyPrompt replaces degenerate replies of fewer than three words.
	ShortReplyPrompt = "Devam edebilirsiniz. Size nasıl yardımcı olabilirim?"
	// FallbackReply is spoken when the model call itself fails.
	FallbackReply = "Anladım. Devam edebilirsiniz."
)

// closingPhrases are farewells the agent must never say: the model does not
// get to end the conversation unilaterally.
var closingPhrases = []string{
	"görüşürüz", "hoşça kal", "teşekkürler", "teşekkür ederim",
	"iyi günler", "sağ olun", "kapattım", "tamam", "anladım",
	"görüşmek üzere", "hoşça kalın", "iyi akşamlar", "iyi geceler",
	"bye", "goodbye", "see you", "take care",
}

// Responder generates assistant replies for finalized caller utterances.
type Responder struct {
	cfg    *config.LLMConfig
	client openai.Client
	logger *logger.Logger
}

// NewResponder creates a new response generator. Extra request options are
// appended after the defaults (tests use this to point at a fake server).
func NewResponder(cfg *config.LLMConfig, log *logger.Logger, extraOpts ...option.RequestOption) *Responder {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	opts = append(opts, extraOpts...)

	return &Responder{
		cfg:    cfg,
		client: openai.NewClient(opts...),
		logger: log.Named("llm-responder"),
	}
}

// Respond produces the assistant reply for the caller's utterance. It never
// fails a turn: any error degrades to the fixed fallback reply.
func (r *Responder) Respond(ctx context.Context, userText string) string {
	completion, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(r.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage("Kullanıcının son sözü: " + userText),
		},
		MaxTokens:   openai.Int(int64(r.cfg.MaxTokens)),
		Temperature: openai.Float(r.cfg.Temperature),
	})
	if err != nil {
		r.logger.Error("LLM request failed", logger.Error(err))
		return FallbackReply
	}

	if len(completion.Choices) == 0 {
		r.logger.Error("LLM response contained no choices")
		return FallbackReply
	}

	reply := strings.TrimSpace(completion.Choices[0].Message.Content)
	filtered := FilterReply(reply)
	if filtered != reply {
		r.logger.Warn("Reply replaced by response filter",
			logger.String("original", reply))
	}

	return filtered
}

// FilterReply applies the domain response-shaping rules: replies containing
// a closing phrase are replaced wholesale with a continuation prompt, and
// replies shorter than three words are replaced with a generic prompt.
func FilterReply(text string) string {
	if containsClosingPhrase(text) {
		return ContinuationReply
	}
	if len(strings.Fields(text)) < 3 {
		return ShortReplyPrompt
	}
	return text
}

func containsClosingPhrase(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range closingPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
