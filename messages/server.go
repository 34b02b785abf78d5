package messages

import "github.com/room4-2/aasha/session"

// Error codes
const (
	ErrCodeInvalidMessage = "INVALID_MESSAGE"
	ErrCodeSlowConsumer   = "SLOW_CONSUMER"
)

// Message types
const (
	TypeSnapshot = "snapshot"
	TypeStatus   = "status"
	TypeError    = "error"
)

// ServerMessage is a frame sent to a monitor client
type ServerMessage struct {
	Type    string      `json:"type"` // "snapshot", "status", "error"
	CallID  string      `json:"callId,omitempty"`
	Payload interface{} `json:"payload"`
}

// StatusPayload contains status updates
type StatusPayload struct {
	Status  string `json:"status"` // "connected", "filter_set"
	Message string `json:"message,omitempty"`
	Calls   int    `json:"calls"`
}

// ErrorPayload contains error information
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewSnapshotMessage wraps a call snapshot
func NewSnapshotMessage(snap session.Snapshot) *ServerMessage {
	return &ServerMessage{
		Type:    TypeSnapshot,
		CallID:  snap.CallID,
		Payload: snap,
	}
}

// NewStatusMessage creates a status message
func NewStatusMessage(status, message string, calls int) *ServerMessage {
	return &ServerMessage{
		Type: TypeStatus,
		Payload: StatusPayload{
			Status:  status,
			Message: message,
			Calls:   calls,
		},
	}
}

// NewErrorMessage creates an error message
func NewErrorMessage(code, message string) *ServerMessage {
	return &ServerMessage{
		Type: TypeError,
		Payload: ErrorPayload{
			Code:    code,
			Message: message,
		},
	}
}

// CallStatus is the body of a status query for a number with no call.
type CallStatus struct {
	Status string `json:"status"`
}

// NoActiveCall is returned by the status query when nothing is known about a number.
var NoActiveCall = CallStatus{Status: "no active call"}

// Health is the body of the health check
type Health struct {
	Status string `json:"status"`
	Calls  int    `json:"calls"`
}
