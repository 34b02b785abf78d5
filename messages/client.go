package messages

// Client message types
const (
	TypeFilter = "filter"
	TypePing   = "ping"
)

// ClientMessage represents a message from a monitor client
type ClientMessage struct {
	Type  string `json:"type"`            // "filter", "ping"
	Phone string `json:"phone,omitempty"` // filter: only this number; empty clears
}
