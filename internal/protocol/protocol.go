package protocol

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// TypeStatus is broadcast by the control API whenever session state changes
	TypeStatus MessageType = "status"

	// TypeToggle is sent by a client to request a toggle
	TypeToggle MessageType = "toggle"

	// TypeExit is sent by a client to end the session
	TypeExit MessageType = "exit"

	// TypeError is sent back when a client message cannot be handled
	TypeError MessageType = "error"
)

// Message is the generic container for all WebSocket messages
type Message struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// StatusPayload is the payload for TypeStatus
type StatusPayload struct {
	Redirecting        bool `json:"redirecting"`
	EdgeTogglingPaused bool `json:"edge_toggling_paused"`
	DeviceConnected    bool `json:"device_connected"`
}

// TogglePayload is the payload for TypeToggle.
// State is "on", "off" or empty to flip.
type TogglePayload struct {
	State string `json:"state"`
}

// ErrorPayload is the payload for TypeError
type ErrorPayload struct {
	Message string `json:"message"`
}
