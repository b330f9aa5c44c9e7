// Package protocol maps wire frames exchanged with the relay to chat events
// and back. It performs no I/O and keeps no state between calls.
package protocol

import (
	"strings"
	"time"
)

const (
	// SystemSender is the sender of every system event.
	SystemSender = "system"
	// UnknownSender is used when a line carries no sender prefix.
	UnknownSender = "unknown"

	JoinedPhrase = "joined the chat"
	LeftPhrase   = "left the chat"
)

// Kind discriminates decoded events.
type Kind int

const (
	KindChat Kind = iota
	KindSystem
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindChat:
		return "CHAT"
	case KindSystem:
		return "SYSTEM"
	default:
		return "UNKNOWN"
	}
}

// PresenceHint tells the session how an event affects the presence estimate.
type PresenceHint int

const (
	// HintUnknown means the effect must be derived from the event text.
	HintUnknown PresenceHint = iota
	HintNone
	HintJoin
	HintLeave
)

// ReplyRef is the frozen summary of the message a reply points to.
type ReplyRef struct {
	ID     string
	Sender string
	Text   string
}

// ChatEvent is one decoded frame.
type ChatEvent struct {
	ID        string
	Kind      Kind
	Sender    string
	Text      string
	Timestamp time.Time
	// ReplyTo is only set on KindChat events.
	ReplyTo *ReplyRef
	Hint    PresenceHint
}

// Summary returns the reference a reply to e embeds on the wire.
func (e ChatEvent) Summary() ReplyRef {
	return ReplyRef{ID: e.ID, Sender: e.Sender, Text: e.Text}
}

// IsJoin reports whether e announces a participant joining.
func IsJoin(e ChatEvent) bool {
	if e.Hint == HintJoin {
		return true
	}
	return e.Kind == KindSystem && e.Hint == HintUnknown && strings.HasSuffix(e.Text, " "+JoinedPhrase)
}

// AnnouncedName extracts the participant name from a join or leave
// announcement. It reports false for any other event.
func AnnouncedName(e ChatEvent) (string, bool) {
	if e.Kind != KindSystem {
		return "", false
	}
	for _, phrase := range []string{" " + JoinedPhrase, " " + LeftPhrase} {
		if name, ok := strings.CutSuffix(e.Text, phrase); ok && name != "" {
			return name, true
		}
	}
	return "", false
}
