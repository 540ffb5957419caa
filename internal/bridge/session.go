package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/yegors/voicebridge/internal/audio"
	"github.com/yegors/voicebridge/internal/config"
	"github.com/yegors/voicebridge/internal/eventlog"
	"github.com/yegors/voicebridge/internal/storage/sqlite"
	"github.com/yegors/voicebridge/pkg/logger"
)

// TokenVerifier gates access to the stream endpoint.
type TokenVerifier interface {
	Verify(token string) bool
}

// Transcriber is the per-session streaming transcription connection.
// Implemented by stt.Client.
type Transcriber interface {
	Connect(ctx context.Context) error
	SendAudio(audio []byte)
	DrainFinal(timeout time.Duration, maxIters int) (string, bool)
	Close()
}

// TranscriberFactory builds one fresh Transcriber per call session.
type TranscriberFactory func() Transcriber

// Responder generates the assistant reply for a finalized utterance.
type Responder interface {
	Respond(ctx context.Context, userText string) string
}

// Synthesizer converts reply text to raw audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// CallStore records call lifecycle metadata. Implemented by
// sqlite.CallStorage.
type CallStore interface {
	StartCall(callSID, direction string) (int64, error)
	SetStreaming(id int64, callSID, streamSID string) error
	FinishCall(id int64, status string, turns int) error
}

// Handler owns the stream endpoint: it upgrades the telephony socket,
// verifies the access token, and runs one session per call.
type Handler struct {
	cfg            *config.Config
	verifier       TokenVerifier
	newTranscriber TranscriberFactory
	responder      Responder
	synthesizer    Synthesizer
	calls          CallStore
	events         *eventlog.Writer
	upgrader       websocket.Upgrader
	logger         *logger.Logger
}

// NewHandler creates a new stream handler
func NewHandler(
	cfg *config.Config,
	verifier TokenVerifier,
	newTranscriber TranscriberFactory,
	responder Responder,
	synthesizer Synthesizer,
	calls CallStore,
	events *eventlog.Writer,
	log *logger.Logger,
) *Handler {
	return &Handler{
		cfg:            cfg,
		verifier:       verifier,
		newTranscriber: newTranscriber,
		responder:      responder,
		synthesizer:    synthesizer,
		calls:          calls,
		events:         events,
		upgrader: websocket.Upgrader{
			// The provider connects server-to-server without an Origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: log.Named("bridge"),
	}
}

// HandleStream is the websocket endpoint for the provider's media stream.
// Each accepted connection runs as one session in the handler goroutine;
// session failures are contained here and never reach other sessions.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Websocket upgrade failed", logger.Error(err))
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" || !h.verifier.Verify(token) {
		h.events.Log("WEBSOCKET_TOKEN_ERROR", "Missing or invalid stream token", "")
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(CloseInvalidToken, "Invalid token"), deadline)
		_ = conn.Close()
		return
	}

	s := &session{
		id:          uuid.NewString(),
		conn:        conn,
		stt:         h.newTranscriber(),
		responder:   h.responder,
		synthesizer: h.synthesizer,
		calls:       h.calls,
		events:      h.events,
		greeting:    h.cfg.Bridge.Greeting,
		poll:        secondsOrDefault(h.cfg.Bridge.PollTimeoutSec, time.Second),
		inactivity:  secondsOrDefault(h.cfg.Bridge.InactivityTimeoutSec, 30*time.Second),
		drain:       millisOrDefault(h.cfg.STT.DrainTimeoutMs, 100*time.Millisecond),
		drainIters:  h.cfg.STT.DrainMaxIters,
		status:      sqlite.StatusError,
		startedAt:   time.Now(),
	}
	s.logger = h.logger.With(logger.String("session_id", s.id))

	s.run(r.Context())
}

func secondsOrDefault(secs int, def time.Duration) time.Duration {
	if secs <= 0 {
		return def
	}
	return time.Duration(secs) * time.Second
}

func millisOrDefault(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// session owns one call: the telephony socket, the transcription socket, and
// the turn pipeline between them. It runs entirely in one goroutine; there is
// no shared mutable state across sessions.
type session struct {
	id          string
	conn        *websocket.Conn
	stt         Transcriber
	responder   Responder
	synthesizer Synthesizer
	calls       CallStore
	events      *eventlog.Writer
	logger      *logger.Logger

	greeting   string
	poll       time.Duration
	inactivity time.Duration
	drain      time.Duration
	drainIters int

	recordID  int64
	callSID   string
	streamSID string
	turns     int
	status    string
	startedAt time.Time
	lastAudio time.Time
}

// run drives the session loop. Cleanup of both sockets and the call record
// is guaranteed regardless of where the loop exits.
func (s *session) run(ctx context.Context) {
	defer s.cleanup()

	s.events.Log("WEBSOCKET_ACCEPTED", "Stream connection accepted", "")

	if id, err := s.calls.StartCall("", sqlite.DirectionInbound); err != nil {
		s.logger.Warn("Failed to record call start", logger.Error(err))
	} else {
		s.recordID = id
	}

	// A transcription socket that cannot be opened is fatal to this call.
	if err := s.stt.Connect(ctx); err != nil {
		s.events.Log("STT_ERROR", fmt.Sprintf("STT connection failed: %v", err), s.callSID)
		return
	}
	s.events.Log("STT_READY", "STT service connected and ready", s.callSID)

	s.lastAudio = time.Now()

	for {
		if time.Since(s.lastAudio) > s.inactivity {
			s.events.Log("MEDIA_TIMEOUT",
				fmt.Sprintf("No media events for %s, closing connection", s.inactivity), s.callSID)
			s.status = sqlite.StatusTimeout
			return
		}

		msg, outcome := s.readTelephony(s.poll)
		switch outcome {
		case outcomeTimeout:
			continue
		case outcomeClosed:
			s.events.Log("STREAM_CLOSED", "Telephony socket closed", s.callSID)
			s.status = sqlite.StatusCompleted
			return
		case outcomeDecodeError:
			s.events.Log("MESSAGE_ERROR", "Failed to decode telephony message", s.callSID)
			continue
		}

		switch msg.Event {
		case EventConnected:
			s.events.Log("STREAM_CONNECTED", "Stream connected successfully", s.callSID)

		case EventStart:
			s.handleStart(ctx, msg)

		case EventMedia:
			s.handleMedia(ctx, msg)

		case EventStop:
			s.events.Log("STREAM_STOPPED", "Stream stopped by provider", s.callSID)
			s.status = sqlite.StatusCompleted
			return

		default:
			s.events.Log("UNKNOWN_EVENT", "Unknown event type: "+msg.Event, s.callSID)
		}
	}
}

// readTelephony reads one transport message with a poll deadline, so the
// loop can also check the inactivity window between reads.
func (s *session) readTelephony(timeout time.Duration) (*streamMessage, readOutcome) {
	if err := s.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, outcomeClosed
	}

	_, data, err := s.conn.ReadMessage()
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, outcomeTimeout
		}
		return nil, outcomeClosed
	}

	var msg streamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warn("Failed to decode telephony message", logger.Error(err))
		return nil, outcomeDecodeError
	}

	return &msg, outcomeMessage
}

// handleStart captures the stream identifiers and speaks the greeting. A
// greeting failure is logged and absorbed; the call continues without it.
func (s *session) handleStart(ctx context.Context, msg *streamMessage) {
	if msg.Start == nil {
		s.events.Log("MESSAGE_ERROR", "Start event without start payload", s.callSID)
		return
	}

	s.streamSID = msg.Start.StreamSID
	s.callSID = msg.Start.CallSID
	s.logger = s.logger.With(logger.String("call_sid", s.callSID))
	s.events.Log("STREAM_STARTED", "Stream started with SID: "+s.streamSID, s.callSID)

	if s.recordID != 0 {
		if err := s.calls.SetStreaming(s.recordID, s.callSID, s.streamSID); err != nil {
			s.logger.Warn("Failed to record stream start", logger.Error(err))
		}
	}

	pcm, err := s.synthesizer.Synthesize(ctx, s.greeting)
	if err != nil {
		s.events.Log("GREETING_ERROR", fmt.Sprintf("Failed to synthesize greeting: %v", err), s.callSID)
		return
	}
	if s.sendMedia(audio.EncodeForTelephony(pcm)) {
		s.events.Log("INITIAL_GREETING_SENT", "Initial greeting sent", s.callSID)
	}
}

// handleMedia forwards one inbound audio frame and runs at most one reply
// turn if a finalized transcript is waiting. Every failure in here is
// contained to the turn; the session keeps going.
func (s *session) handleMedia(ctx context.Context, msg *streamMessage) {
	// The inactivity window measures media arrival, not decodability.
	s.lastAudio = time.Now()

	if msg.Media == nil {
		s.events.Log("MEDIA_DECODE_ERROR", "Media event without media payload", s.callSID)
		return
	}

	frame, err := base64.StdEncoding.DecodeString(msg.Media.Payload)
	if err != nil {
		s.events.Log("MEDIA_DECODE_ERROR", fmt.Sprintf("Invalid media payload: %v", err), s.callSID)
		return
	}

	s.stt.SendAudio(frame)

	text, ok := s.stt.DrainFinal(s.drain, s.drainIters)
	if !ok {
		return
	}
	s.events.Log("STT_FINAL", "Final transcript: "+text, s.callSID)

	reply := s.responder.Respond(ctx, text)
	s.events.Log("LLM_RESPONSE", "Reply: "+reply, s.callSID)

	pcm, err := s.synthesizer.Synthesize(ctx, reply)
	if err != nil {
		// Synthesis failure skips the audio for this turn only.
		s.events.Log("TTS_ERROR", fmt.Sprintf("Synthesis failed: %v", err), s.callSID)
		return
	}

	if s.streamSID == "" {
		s.events.Log("STREAM_SID_MISSING", "Cannot send audio before start event", s.callSID)
		return
	}

	if s.sendMedia(audio.EncodeForTelephony(pcm)) {
		s.turns++
		s.events.Log("BOT_RESPONSE_SENT", "Reply audio sent", s.callSID)
	}
}

// sendMedia writes one outbound media message. Send failures are absorbed:
// a dropped reply does not terminate the call.
func (s *session) sendMedia(telephonyAudio []byte) bool {
	if s.streamSID == "" {
		return false
	}

	msg := outboundMedia{
		Event:     EventMedia,
		StreamSID: s.streamSID,
		Media:     mediaEnvelope{Payload: base64.StdEncoding.EncodeToString(telephonyAudio)},
	}

	if err := s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
		return false
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		s.events.Log("TWILIO_SEND_ERROR", fmt.Sprintf("Failed to send audio: %v", err), s.callSID)
		return false
	}
	return true
}

// cleanup closes the transcription socket then the telephony socket and
// finalizes the call record. It runs on every exit path.
func (s *session) cleanup() {
	s.stt.Close()

	deadline := time.Now().Add(time.Second)
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	_ = s.conn.Close()

	if s.recordID != 0 {
		if err := s.calls.FinishCall(s.recordID, s.status, s.turns); err != nil {
			s.logger.Warn("Failed to finalize call record", logger.Error(err))
		}
	}

	duration := time.Since(s.startedAt)
	s.events.Log("WEBSOCKET_CLOSED",
		fmt.Sprintf("Stream connection closed after %.2fs (%s)", duration.Seconds(), s.status), s.callSID)
}
