package session

import (
	"slices"

	"github.com/omochice/relay-chat/pkg/protocol"
	"github.com/samber/lo"
)

// History is the append-only event log. Entries are never reordered,
// deduplicated, edited or removed.
type History struct {
	events []protocol.ChatEvent
}

// Append adds ev after every existing entry.
func (h *History) Append(ev protocol.ChatEvent) {
	h.events = append(h.events, ev)
}

// Len returns the number of entries.
func (h *History) Len() int {
	return len(h.events)
}

// Find returns the first entry with the given id.
func (h *History) Find(id string) (protocol.ChatEvent, bool) {
	return lo.Find(h.events, func(ev protocol.ChatEvent) bool {
		return ev.ID == id
	})
}

// Events returns a copy of the log.
func (h *History) Events() []protocol.ChatEvent {
	return slices.Clone(h.events)
}
