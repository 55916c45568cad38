package model

// WebSocket message types
const (
	WSMessageTypeState     = "state"
	WSMessageTypeTick      = "tick"
	WSMessageTypeTransport = "transport"
	WSMessageTypeComplete  = "complete"
	WSMessageTypeError     = "error"
	WSMessageTypePing      = "ping"
	WSMessageTypePong      = "pong"
)

// WSMessage represents a generic WebSocket message
type WSMessage struct {
	Type string `json:"type"`
}

// WSStateMessage announces a session state transition
type WSStateMessage struct {
	Type      string       `json:"type"`
	SessionID string       `json:"sessionId"`
	State     SessionState `json:"state"`
	ElapsedMs int64        `json:"elapsedMs"`
}

// WSTickMessage carries elapsed-time progress while recording
type WSTickMessage struct {
	Type       string `json:"type"`
	SessionID  string `json:"sessionId"`
	ElapsedMs  int64  `json:"elapsedMs"`
	DurationMs int64  `json:"durationMs"`
}

// WSTransportMessage commands the client's playback surface. The session
// state machine is the only producer, so original playback and capture stay
// phase-locked by construction.
type WSTransportMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Command   string `json:"command"` // "play", "pause", "reset"
}

// WSCompleteMessage announces a finished publish with its result
type WSCompleteMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId"`
	Result    interface{} `json:"result"`
}

// WSErrorMessage represents an error
type WSErrorMessage struct {
	Type      string  `json:"type"`
	SessionID string  `json:"sessionId"`
	Error     WSError `json:"error"`
}

// WSError represents error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
