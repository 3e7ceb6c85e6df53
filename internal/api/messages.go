package api

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeEvent notifies monitor clients of one delivered mouse event
	TypeEvent MessageType = "event"

	// TypeActive notifies monitor clients of an active-terminal change
	TypeActive MessageType = "active"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// ActivePayload is the payload for TypeActive
type ActivePayload struct {
	Terminal string `json:"terminal"`
}
