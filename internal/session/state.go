package session

import "github.com/omochice/relay-chat/pkg/protocol"

// ConnectionState is the lifecycle state of a session.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateJoining
	StateConnected
)

// String returns the string representation of ConnectionState
func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateJoining:
		return "JOINING"
	case StateConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Snapshot is a copy of the session state for rendering.
type Snapshot struct {
	State       ConnectionState
	DisplayName string
	// Log holds every event received, in arrival order.
	Log []protocol.ChatEvent
	// PresenceCount is an estimate reconstructed from join and leave
	// announcements, not a roster.
	PresenceCount int
	PendingReply  *protocol.ChatEvent
}
