package sqlite

import "time"

// Call directions
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Call statuses
const (
	StatusInitiated = "initiated"
	StatusStreaming = "streaming"
	StatusCompleted = "completed"
	StatusTimeout   = "timeout"
	StatusError     = "error"
)

// CallRecord represents one phone call's lifecycle. Only call metadata is
// stored; transcripts and replies are never persisted.
type CallRecord struct {
	ID        int64     `json:"id"`
	CallSID   string    `json:"call_sid"`
	StreamSID string    `json:"stream_sid,omitempty"`
	Direction string    `json:"direction"`
	Status    string    `json:"status"`
	Turns     int       `json:"turns"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
