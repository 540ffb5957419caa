package twilio

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/url"
	"testing"

	"github.com/yegors/voicebridge/internal/config"
	"github.com/yegors/voicebridge/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{Level: "error", Format: "json"})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return log
}

// sign reproduces Twilio's canonical signature for test fixtures.
func sign(authToken, requestURL string, form url.Values, keys []string) string {
	base := requestURL
	for _, k := range keys {
		base += k + form.Get(k)
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyValidSignature(t *testing.T) {
	v := NewSignatureVerifier(&config.TwilioConfig{AuthToken: "token123"}, testLogger(t))

	requestURL := "https://example.com/answer"
	form := url.Values{}
	form.Set("CallSid", "CA123")
	form.Set("AccountSid", "AC456")
	form.Set("From", "+905551112233")

	// Keys must be appended in lexicographic order.
	sig := sign("token123", requestURL, form, []string{"AccountSid", "CallSid", "From"})

	if !v.Verify(requestURL, form, sig) {
		t.Error("valid signature should verify")
	}
}

func TestVerifyInvalidSignature(t *testing.T) {
	v := NewSignatureVerifier(&config.TwilioConfig{AuthToken: "token123"}, testLogger(t))

	form := url.Values{}
	form.Set("CallSid", "CA123")

	tests := []struct {
		name string
		url  string
		form url.Values
		sig  string
	}{
		{"empty signature", "https://example.com/answer", form, ""},
		{"garbage signature", "https://example.com/answer", form, "bm90LWEtc2lnbmF0dXJl"},
		{
			"wrong auth token",
			"https://example.com/answer",
			form,
			sign("other-token", "https://example.com/answer", form, []string{"CallSid"}),
		},
		{
			"different url",
			"https://example.com/answer",
			form,
			sign("token123", "https://evil.example.com/answer", form, []string{"CallSid"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if v.Verify(tt.url, tt.form, tt.sig) {
				t.Error("signature should not verify")
			}
		})
	}
}

func TestVerifyBypass(t *testing.T) {
	v := NewSignatureVerifier(&config.TwilioConfig{AuthToken: "token123", SkipVerify: true}, testLogger(t))

	if !v.Verify("https://example.com/answer", url.Values{}, "") {
		t.Error("bypass mode should accept arbitrary input including an empty signature")
	}
	if !v.Verify("", nil, "nonsense") {
		t.Error("bypass mode should accept nonsense input")
	}
}

func TestVerifyEmptyForm(t *testing.T) {
	v := NewSignatureVerifier(&config.TwilioConfig{AuthToken: "token123"}, testLogger(t))

	requestURL := "https://example.com/answer?foo=bar"
	sig := sign("token123", requestURL, url.Values{}, nil)

	if !v.Verify(requestURL, url.Values{}, sig) {
		t.Error("signature over an empty form should verify")
	}
}
