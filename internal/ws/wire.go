package ws

import "encoding/json"

// Kind is a typed broadcast category. The string wire names required by the
// client protocol are composed only at the encoding boundary, never used for
// routing.
type Kind string

const (
	// Per-user kinds; the wire name carries the recipient id suffix.
	KindNewMessage     Kind = "new-message"
	KindMessageHistory Kind = "message"
	KindChatList       Kind = "chat-list"

	// Global kinds; the wire name is the kind itself.
	KindPresence Kind = "onlineUser"
	KindError    Kind = "io-error"
)

// Event is a broadcast addressed to one user's personal channel, or to every
// connection for the global kinds.
type Event struct {
	Kind    Kind
	UserID  string // empty for global kinds
	Payload any
}

// WireName composes the exact event name emitted on the socket, e.g.
// "chat-list::<userId>". Must match the client protocol byte for byte.
func (e Event) WireName() string {
	switch e.Kind {
	case KindPresence, KindError:
		return string(e.Kind)
	default:
		return string(e.Kind) + "::" + e.UserID
	}
}

// Envelope is one frame on the socket. Caller-initiated frames carry an
// optional correlation id echoed back on the reply.
type Envelope struct {
	Event   string          `json:"event"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Result is the one-shot reply for every caller-initiated event.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// replyFrame is the outbound encoding of a Result.
type replyFrame struct {
	Event   string `json:"event"`
	ID      string `json:"id,omitempty"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// broadcastFrame is the outbound encoding of an Event.
type broadcastFrame struct {
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// dataPayload wraps list payloads as {"data": [...]} per the client protocol.
type dataPayload struct {
	Data any `json:"data"`
}
