package twilio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yegors/voicebridge/internal/config"
)

func TestCreateCall(t *testing.T) {
	var gotForm map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/Accounts/AC123/Calls.json") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "token" {
			t.Errorf("unexpected basic auth: %s/%s", user, pass)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("failed to parse form: %v", err)
		}
		gotForm = map[string]string{
			"To":   r.PostFormValue("To"),
			"From": r.PostFormValue("From"),
			"Url":  r.PostFormValue("Url"),
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"CA999","status":"queued"}`))
	}))
	defer server.Close()

	client := NewClient(&config.TwilioConfig{
		AccountSID:  "AC123",
		AuthToken:   "token",
		PhoneNumber: "+905550001122",
	}, testLogger(t))
	client.SetAPIBase(server.URL)

	sid, err := client.CreateCall(context.Background(), "+905551112233", "https://example.com/answer")
	if err != nil {
		t.Fatalf("CreateCall failed: %v", err)
	}
	if sid != "CA999" {
		t.Errorf("expected sid CA999, got %s", sid)
	}
	if gotForm["To"] != "+905551112233" || gotForm["From"] != "+905550001122" || gotForm["Url"] != "https://example.com/answer" {
		t.Errorf("unexpected form values: %v", gotForm)
	}
}

func TestCreateCallErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"code":20003,"message":"Authenticate"}`))
	}))
	defer server.Close()

	client := NewClient(&config.TwilioConfig{AccountSID: "AC123", AuthToken: "bad"}, testLogger(t))
	client.SetAPIBase(server.URL)

	if _, err := client.CreateCall(context.Background(), "+905551112233", "https://example.com/answer"); err == nil {
		t.Error("expected error for non-2xx response")
	}
}

func TestAnswerTwiML(t *testing.T) {
	body, err := AnswerTwiML("Merhaba, yapay zeka asistanımız bağlanıyor.", "wss://example.com/stream?token=abc")
	if err != nil {
		t.Fatalf("AnswerTwiML failed: %v", err)
	}

	doc := string(body)
	for _, want := range []string{
		"<Response>",
		`voice="Polly.Filiz"`,
		`language="tr-TR"`,
		`<Pause length="1"`,
		`url="wss://example.com/stream?token=abc"`,
		`track="inbound_track"`,
		`name="ai_stream"`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("TwiML missing %q:\n%s", want, doc)
		}
	}
}

func TestAnswerTwiMLEscapesText(t *testing.T) {
	body, err := AnswerTwiML("a < b & c", "wss://example.com/stream?token=a&b")
	if err != nil {
		t.Fatalf("AnswerTwiML failed: %v", err)
	}
	doc := string(body)
	if strings.Contains(doc, "a < b & c") {
		t.Errorf("special characters should be escaped:\n%s", doc)
	}
	if !strings.Contains(doc, "a &lt; b &amp; c") {
		t.Errorf("expected escaped text in document:\n%s", doc)
	}
}
