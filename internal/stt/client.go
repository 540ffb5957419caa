package stt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/yegors/voicebridge/internal/config"
	"github.com/yegors/voicebridge/pkg/logger"
)

// Client manages one realtime transcription socket per call session. The
// session goroutine owns the client exclusively; only Close may race with it.
type Client struct {
	cfg    *config.STTConfig
	dialer *websocket.Dialer
	logger *logger.Logger

	conn    *websocket.Conn
	state   State
	writeMu sync.Mutex

	closeOnce sync.Once
}

// NewClient creates a new transcription client
func NewClient(cfg *config.STTConfig, log *logger.Logger) *Client {
	return &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		logger: log.Named("stt-client"),
		state:  StateDisconnected,
	}
}

// State returns the current connection state
func (c *Client) State() State {
	return c.state
}

// Connect opens the streaming socket, waits briefly for the service hello,
// and sends the configuration message. A hello timeout is non-fatal; a dial
// failure is fatal to the call and propagates to the caller.
func (c *Client) Connect(ctx context.Context) error {
	c.state = StateConnecting

	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		c.state = StateClosed
		return fmt.Errorf("failed to parse STT URL: %w", err)
	}
	q := u.Query()
	q.Set("sample_rate", strconv.Itoa(c.cfg.SampleRate))
	q.Set("language", c.cfg.Language)
	u.RawQuery = q.Encode()

	headers := http.Header{}
	headers.Set("Authorization", c.cfg.APIKey)

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		c.state = StateClosed
		if resp != nil {
			return fmt.Errorf("failed to open STT socket (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("failed to open STT socket: %w", err)
	}
	c.conn = conn
	c.state = StateAwaitingHello

	// The service sends a session-begin message first. Missing it is not
	// fatal; audio can be streamed regardless.
	helloTimeout := time.Duration(c.cfg.HelloTimeoutSec) * time.Second
	if helloTimeout <= 0 {
		helloTimeout = 2 * time.Second
	}
	if msg, outcome := c.Receive(helloTimeout); outcome == OutcomeMessage {
		c.logger.Debug("STT hello received", logger.String("message_type", msg.MessageType))
	} else {
		c.logger.Warn("No STT hello within timeout, proceeding anyway")
	}

	if err := c.writeJSON(configMessage{Config: transcriptionConfig{Punctuate: true}}); err != nil {
		// Configuration is best-effort, matching send-audio semantics.
		c.logger.Warn("Failed to send STT configuration", logger.Error(err))
	}
	c.state = StateConfigured

	c.logger.Info("STT socket connected",
		logger.Int("sample_rate", c.cfg.SampleRate),
		logger.String("language", c.cfg.Language))

	c.state = StateStreaming
	return nil
}

// SendAudio forwards one audio chunk as a single base64 message. A dropped
// chunk does not terminate the call: failures are logged and swallowed.
func (c *Client) SendAudio(audio []byte) {
	if c.conn == nil || c.state != StateStreaming {
		c.logger.Warn("Dropping audio chunk, STT socket not streaming")
		return
	}

	msg := audioMessage{AudioData: base64.StdEncoding.EncodeToString(audio)}
	if err := c.writeJSON(msg); err != nil {
		c.logger.Error("Failed to send audio to STT", logger.Error(err), logger.Int("bytes", len(audio)))
	}
}

// Receive pulls one message with the given deadline. Instead of an error it
// returns a tagged outcome so the session loop can dispatch deterministically.
func (c *Client) Receive(timeout time.Duration) (*Message, ReadOutcome) {
	if c.conn == nil {
		return nil, OutcomeClosed
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, OutcomeClosed
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, OutcomeTimeout
		}
		c.logger.Debug("STT socket read failed", logger.Error(err))
		return nil, OutcomeClosed
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("Failed to decode STT message", logger.Error(err))
		return nil, OutcomeDecodeError
	}

	return &msg, OutcomeMessage
}

// DrainFinal polls for transcript messages until it sees one final transcript
// with non-empty text, the per-read timeout fires, the socket drops, or
// maxIters reads have happened. At most one finalized transcript is returned
// per call, which keeps replies from talking over each other.
func (c *Client) DrainFinal(timeout time.Duration, maxIters int) (string, bool) {
	if maxIters <= 0 {
		maxIters = 1
	}

	for i := 0; i < maxIters; i++ {
		msg, outcome := c.Receive(timeout)
		switch outcome {
		case OutcomeMessage:
			if msg.IsFinal() && msg.TrimmedText() != "" {
				return msg.TrimmedText(), true
			}
			// Partial or empty transcript, keep draining.
		case OutcomeDecodeError:
			// A single garbled message does not end the drain.
		case OutcomeTimeout, OutcomeClosed:
			return "", false
		}
	}

	return "", false
}

// Close shuts the socket down best-effort. It is idempotent and suppresses
// all errors; the session is ending either way.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.state = StateClosed
		if c.conn == nil {
			return
		}

		c.writeMu.Lock()
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug("STT socket close failed", logger.Error(err))
		}
	})
}

func (c *Client) writeJSON(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}
