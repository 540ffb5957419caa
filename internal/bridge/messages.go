package bridge

// Telephony transport events. The provider sends JSON objects whose event
// field takes one of these values.
const (
	EventConnected = "connected"
	EventStart     = "start"
	EventMedia     = "media"
	EventStop      = "stop"
)

// CloseInvalidToken is the close code sent when the stream token is missing
// or fails verification.
const CloseInvalidToken = 4003

// streamMessage is one inbound message on the telephony socket
type streamMessage struct {
	Event     string        `json:"event"`
	StreamSID string        `json:"streamSid,omitempty"`
	Start     *startPayload `json:"start,omitempty"`
	Media     *mediaPayload `json:"media,omitempty"`
}

type startPayload struct {
	StreamSID string `json:"streamSid"`
	CallSID   string `json:"callSid"`
}

type mediaPayload struct {
	Payload string `json:"payload"` // base64 encoded audio
}

// outboundMedia is the message shape for audio sent back to the provider
type outboundMedia struct {
	Event     string        `json:"event"`
	StreamSID string        `json:"streamSid"`
	Media     mediaEnvelope `json:"media"`
}

type mediaEnvelope struct {
	Payload string `json:"payload"`
}

// readOutcome tags the result of one telephony socket read so the session
// loop dispatches on a value rather than an error shape.
type readOutcome int

const (
	outcomeMessage readOutcome = iota
	outcomeTimeout
	outcomeDecodeError
	outcomeClosed
)
