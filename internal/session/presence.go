package session

import (
	"strings"

	"github.com/omochice/relay-chat/pkg/protocol"
)

// Presence estimates how many participants are in the room.
//
// With the line protocol the estimate is rebuilt from announcement text, so
// it drifts: a message whose body contains "joined the chat" counts as a
// join, and a repeated join counts twice. Envelope frames carry an explicit
// hint and are not affected by message bodies.
type Presence struct {
	count int
}

// Self counts the local participant.
func (p *Presence) Self() {
	p.count++
}

// Observe applies the effect of an inbound event.
func (p *Presence) Observe(ev protocol.ChatEvent) {
	switch ev.Hint {
	case protocol.HintJoin:
		p.count++
	case protocol.HintLeave:
		p.leave()
	case protocol.HintUnknown:
		if strings.Contains(ev.Text, protocol.JoinedPhrase) {
			p.count++
		}
		if strings.Contains(ev.Text, protocol.LeftPhrase) {
			p.leave()
		}
	}
}

func (p *Presence) leave() {
	if p.count > 0 {
		p.count--
	}
}

// Reset drops the estimate to zero.
func (p *Presence) Reset() {
	p.count = 0
}

// Count returns the current estimate. It is never negative.
func (p *Presence) Count() int {
	return p.count
}
