package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/yegors/voicebridge/internal/auth"
	"github.com/yegors/voicebridge/internal/config"
	"github.com/yegors/voicebridge/internal/eventlog"
	"github.com/yegors/voicebridge/internal/storage/sqlite"
	"github.com/yegors/voicebridge/internal/twilio"
	"github.com/yegors/voicebridge/pkg/logger"
)

// answerAnnouncement is spoken by the provider before the media stream is
// bridged, while the assistant session is still being set up.
const answerAnnouncement = "Merhaba, yapay zeka asistanımız bağlanıyor."

// recentCallsLimit caps the call list endpoint
const recentCallsLimit = 50

// Handler contains the HTTP handlers for the API
type Handler struct {
	cfg       *config.Config
	twilio    *twilio.Client
	signature *twilio.SignatureVerifier
	tokens    *auth.TokenIssuer
	calls     *sqlite.CallStorage
	events    *eventlog.Writer
	stream    http.HandlerFunc
	logger    *logger.Logger
}

// NewHandler creates a new API handler
func NewHandler(
	cfg *config.Config,
	twilioClient *twilio.Client,
	signature *twilio.SignatureVerifier,
	tokens *auth.TokenIssuer,
	calls *sqlite.CallStorage,
	events *eventlog.Writer,
	stream http.HandlerFunc,
	log *logger.Logger,
) *Handler {
	return &Handler{
		cfg:       cfg,
		twilio:    twilioClient,
		signature: signature,
		tokens:    tokens,
		calls:     calls,
		events:    events,
		stream:    stream,
		logger:    log.Named("api-handler"),
	}
}

type startCallRequest struct {
	To string `json:"to"`
}

type startCallResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// StartCall places an outbound call that will be answered by this server's
// answer webhook.
func (h *Handler) StartCall(w http.ResponseWriter, r *http.Request) {
	var req startCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.To == "" {
		h.respondError(w, http.StatusBadRequest, "to number is required")
		return
	}

	h.events.Log("CALL_START",
		fmt.Sprintf("Attempting to call %s using %s", req.To, h.cfg.Twilio.PhoneNumber), "")

	answerURL := fmt.Sprintf("https://%s/answer", h.cfg.Server.PublicHost)
	callSID, err := h.twilio.CreateCall(r.Context(), req.To, answerURL)
	if err != nil {
		h.events.Log("CALL_ERROR", fmt.Sprintf("Failed to create call: %v", err), "")
		h.logger.Error("Failed to create outbound call", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to create call")
		return
	}

	h.events.Log("CALL_CREATED", "Call initiated with SID: "+callSID, callSID)
	if _, err := h.calls.StartCall(callSID, sqlite.DirectionOutbound); err != nil {
		h.logger.Warn("Failed to record outbound call", logger.Error(err))
	}

	h.respondJSON(w, http.StatusOK, startCallResponse{SID: callSID, Status: "initiated"})
}

// Answer handles the provider's answer webhook: the request is authenticated
// by its signature, then answered with TwiML that bridges the call into the
// stream endpoint with a fresh access token.
func (h *Handler) Answer(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	requestURL := fmt.Sprintf("https://%s%s", h.cfg.Server.PublicHost, r.URL.RequestURI())
	if !h.signature.Verify(requestURL, r.PostForm, r.Header.Get("X-Twilio-Signature")) {
		h.events.Log("SIGNATURE_ERROR", "Invalid webhook signature", r.PostForm.Get("CallSid"))
		h.respondError(w, http.StatusForbidden, "invalid signature")
		return
	}

	token, err := h.tokens.Issue(h.cfg.Auth.TokenTTLDuration())
	if err != nil {
		h.events.Log("ANSWER_ERROR", fmt.Sprintf("Failed to issue stream token: %v", err), "")
		h.logger.Error("Failed to issue stream token", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	h.events.Log("ANSWER_ENDPOINT", "Generated stream token", r.PostForm.Get("CallSid"))

	streamURL := fmt.Sprintf("wss://%s/stream?token=%s", h.cfg.Server.PublicHost, token)
	body, err := twilio.AnswerTwiML(answerAnnouncement, streamURL)
	if err != nil {
		h.events.Log("ANSWER_ERROR", fmt.Sprintf("Failed to build TwiML: %v", err), "")
		h.respondError(w, http.StatusInternalServerError, "failed to build response")
		return
	}
	h.events.Log("TWIML_GENERATED", "TwiML response created with stream URL", r.PostForm.Get("CallSid"))

	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("Failed to write TwiML response", logger.Error(err))
	}
}

// HandleStream delegates to the bridge's websocket handler
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r)
}

// GetHealth returns the health status of the service
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "voicebridge",
	})
}

// GetCalls returns recent call records, newest first
func (h *Handler) GetCalls(w http.ResponseWriter, r *http.Request) {
	records, err := h.calls.GetRecentCalls(recentCallsLimit)
	if err != nil {
		h.logger.Error("Failed to query recent calls", logger.Error(err))
		h.respondError(w, http.StatusInternalServerError, "failed to query calls")
		return
	}
	if records == nil {
		records = []*sqlite.CallRecord{}
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"calls": records,
		"count": len(records),
	})
}

// respondJSON writes a JSON response with the given status code
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", logger.Error(err))
	}
}

// respondError writes a JSON error response
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
