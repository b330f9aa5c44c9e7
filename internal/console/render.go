package console

import (
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
	"github.com/omochice/relay-chat/internal/session"
	"github.com/omochice/relay-chat/pkg/protocol"
)

const timeLayout = "15:04"

var (
	styleHeader = color.New(color.BgBlack, color.FgGreen, color.OpBold)
	styleSystem = color.New(color.FgGray)
	styleSender = color.New(color.FgCyan)
	styleOwn    = color.New(color.FgGreen)
	styleQuote  = color.New(color.FgGray, color.OpItalic)
	styleNotice = color.New(color.FgYellow)
)

// Renderer writes session snapshots to a terminal. The log is append-only,
// so each call prints only the entries that are new since the previous one.
type Renderer struct {
	out   io.Writer
	plain bool

	rendered int
	header   string
	pending  string
}

// NewRenderer creates a Renderer. When plain is set no color codes are
// written.
func NewRenderer(out io.Writer, plain bool) *Renderer {
	return &Renderer{out: out, plain: plain}
}

// Render prints whatever changed in snap.
func (r *Renderer) Render(snap session.Snapshot) {
	if h := Header(snap); h != r.header {
		r.header = h
		r.println(r.paint(styleHeader, h))
	}

	for i := r.rendered; i < len(snap.Log); i++ {
		r.println(r.formatEntry(i+1, snap.Log[i], snap.DisplayName))
	}
	r.rendered = len(snap.Log)

	pending := ""
	if snap.PendingReply != nil {
		pending = snap.PendingReply.ID
	}
	if pending != r.pending {
		if snap.PendingReply != nil {
			p := snap.PendingReply
			r.Notice(fmt.Sprintf("replying to %s: %s (/cancel to stop)", p.Sender, p.Text))
		} else if r.pending != "" {
			r.Notice("reply cleared")
		}
		r.pending = pending
	}
}

// Notice prints a line that is not part of the chat log.
func (r *Renderer) Notice(msg string) {
	r.println(r.paint(styleNotice, "* "+msg))
}

// Header summarizes the connection state. The participant count is an
// estimate and is shown as one.
func Header(snap session.Snapshot) string {
	switch snap.State {
	case session.StateConnected:
		return fmt.Sprintf("== chatting as %s, ~%d online ==", snap.DisplayName, snap.PresenceCount)
	case session.StateJoining:
		return fmt.Sprintf("== joining as %s ==", snap.DisplayName)
	default:
		return "== disconnected (/join to reconnect) =="
	}
}

// FormatEvent renders one log entry without color. n is the number used by
// /reply.
func FormatEvent(n int, ev protocol.ChatEvent, self string) string {
	return NewRenderer(io.Discard, true).formatEntry(n, ev, self)
}

func (r *Renderer) formatEntry(n int, ev protocol.ChatEvent, self string) string {
	prefix := fmt.Sprintf("[%d] %s ", n, ev.Timestamp.Format(timeLayout))

	if ev.Kind == protocol.KindSystem {
		return prefix + r.paint(styleSystem, "-- "+strings.ToLower(ev.Text)+" --")
	}

	var b strings.Builder
	b.WriteString(prefix)
	if ev.Sender == self {
		b.WriteString(r.paint(styleOwn, ev.Sender+" (you)"))
	} else {
		b.WriteString(r.paint(styleSender, ev.Sender))
	}
	b.WriteString(": ")
	b.WriteString(ev.Text)

	if ev.ReplyTo != nil {
		quote := fmt.Sprintf("    > %s: %s", ev.ReplyTo.Sender, ev.ReplyTo.Text)
		b.WriteString("\n")
		b.WriteString(r.paint(styleQuote, quote))
	}
	return b.String()
}

func (r *Renderer) paint(style color.Style, s string) string {
	if r.plain {
		return s
	}
	return style.Render(s)
}

func (r *Renderer) println(s string) {
	_, _ = fmt.Fprintln(r.out, s)
}
