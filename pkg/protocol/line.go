package protocol

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// replyPattern matches "<sender>: [REPLY_TO:<id>:<sender>:<text>] <text>".
// The block ends at the first ']'.
var replyPattern = regexp.MustCompile(`(?s)^([^:]*): \[REPLY_TO:([^:\]]*):([^:\]]*):([^\]]*)\] (.*)$`)

var (
	lineBreaks   = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")
	replyText    = strings.NewReplacer("]", "")
	replyIdent   = strings.NewReplacer("]", "", ":", "")
	defaultClock = Decoder{}
)

// Decoder stamps decoded events with an id and a capture time.
// The zero value uses uuid.NewString and time.Now.
type Decoder struct {
	NewID func() string
	Now   func() time.Time
}

func (d Decoder) newID() string {
	if d.NewID != nil {
		return d.NewID()
	}
	return uuid.NewString()
}

func (d Decoder) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Decode interprets a wire line. It never fails: input that matches no
// structured rule degrades to a chat event from the "unknown" sender.
func (d Decoder) Decode(line string) ChatEvent {
	ev := ChatEvent{
		ID:        d.newID(),
		Timestamp: d.now(),
		Kind:      KindChat,
	}

	if strings.Contains(line, JoinedPhrase) || strings.Contains(line, LeftPhrase) {
		ev.Kind = KindSystem
		ev.Sender = SystemSender
		ev.Text = line
		return ev
	}

	if m := replyPattern.FindStringSubmatch(line); m != nil {
		ev.Sender = m[1]
		ev.ReplyTo = &ReplyRef{ID: m[2], Sender: m[3], Text: m[4]}
		ev.Text = m[5]
		return ev
	}

	if sender, text, ok := strings.Cut(line, ":"); ok {
		ev.Sender = sender
		ev.Text = strings.TrimSpace(text)
		return ev
	}

	ev.Sender = UnknownSender
	ev.Text = line
	return ev
}

// Decode interprets a wire line with a fresh uuid and the current time.
func Decode(line string) ChatEvent {
	return defaultClock.Decode(line)
}

// Encode renders a chat message. When reply is set, its fields are stripped
// of the characters that would end the reply block early.
func Encode(name, text string, reply *ReplyRef) string {
	name = lineBreaks.Replace(name)
	text = lineBreaks.Replace(text)
	if reply == nil {
		return fmt.Sprintf("%s: %s", name, text)
	}
	return fmt.Sprintf("%s: [REPLY_TO:%s:%s:%s] %s",
		name,
		replyIdent.Replace(lineBreaks.Replace(reply.ID)),
		replyIdent.Replace(lineBreaks.Replace(reply.Sender)),
		replyText.Replace(lineBreaks.Replace(reply.Text)),
		text,
	)
}

// EncodeJoin renders the announcement sent once right after connecting.
func EncodeJoin(name string) string {
	return lineBreaks.Replace(name) + " " + JoinedPhrase
}

// EncodeLeave renders the announcement of a participant leaving.
func EncodeLeave(name string) string {
	return lineBreaks.Replace(name) + " " + LeftPhrase
}
