package stt

import "strings"

// State is the transcription connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingHello
	StateConfigured
	StateStreaming
	StateClosed
)

// String returns a readable state name
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingHello:
		return "awaiting_hello"
	case StateConfigured:
		return "configured"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ReadOutcome tags the result of one socket read so callers can dispatch on
// it instead of inspecting error shapes.
type ReadOutcome int

const (
	OutcomeMessage ReadOutcome = iota
	OutcomeTimeout
	OutcomeDecodeError
	OutcomeClosed
)

// Message is one message from the transcription service.
type Message struct {
	MessageType string `json:"message_type"`
	Text        string `json:"text"`
}

// IsFinal reports whether the message carries a finalized transcript
func (m *Message) IsFinal() bool {
	return m.MessageType == "FinalTranscript" || m.MessageType == "final"
}

// TrimmedText returns the transcript text with surrounding whitespace removed
func (m *Message) TrimmedText() string {
	return strings.TrimSpace(m.Text)
}

// audioMessage is the outbound audio frame envelope
type audioMessage struct {
	AudioData string `json:"audio_data"`
}

// configMessage requests service-side transcript formatting
type configMessage struct {
	Config transcriptionConfig `json:"config"`
}

type transcriptionConfig struct {
	Punctuate bool `json:"punctuate"`
}
