package protocol_test

import (
	"testing"
	"time"

	"github.com/omochice/relay-chat/pkg/protocol"
	"github.com/stretchr/testify/require"
)

func fixedDecoder() protocol.Decoder {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return protocol.Decoder{
		NewID: func() string { return "id-1" },
		Now:   func() time.Time { return at },
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		line string
		want protocol.ChatEvent
	}{
		{
			name: "join announcement is a system event",
			line: "alice joined the chat",
			want: protocol.ChatEvent{Kind: protocol.KindSystem, Sender: "system", Text: "alice joined the chat"},
		},
		{
			name: "leave announcement is a system event",
			line: "alice left the chat",
			want: protocol.ChatEvent{Kind: protocol.KindSystem, Sender: "system", Text: "alice left the chat"},
		},
		{
			name: "announcement phrase anywhere wins over sender prefix",
			line: "bob: guess who joined the chat today",
			want: protocol.ChatEvent{Kind: protocol.KindSystem, Sender: "system", Text: "bob: guess who joined the chat today"},
		},
		{
			name: "plain chat message",
			line: "bob: hello",
			want: protocol.ChatEvent{Kind: protocol.KindChat, Sender: "bob", Text: "hello"},
		},
		{
			name: "text after first colon is trimmed and keeps later colons",
			line: "bob:   time is 12:30  ",
			want: protocol.ChatEvent{Kind: protocol.KindChat, Sender: "bob", Text: "time is 12:30"},
		},
		{
			name: "reply block",
			line: "bob: [REPLY_TO:x1:alice:hi there] sure!",
			want: protocol.ChatEvent{
				Kind:    protocol.KindChat,
				Sender:  "bob",
				Text:    "sure!",
				ReplyTo: &protocol.ReplyRef{ID: "x1", Sender: "alice", Text: "hi there"},
			},
		},
		{
			name: "reply text may contain colons",
			line: "bob: [REPLY_TO:x1:alice:at 10:00?] yes",
			want: protocol.ChatEvent{
				Kind:    protocol.KindChat,
				Sender:  "bob",
				Text:    "yes",
				ReplyTo: &protocol.ReplyRef{ID: "x1", Sender: "alice", Text: "at 10:00?"},
			},
		},
		{
			name: "reply body keeps surrounding spaces verbatim",
			line: "bob: [REPLY_TO:x1:alice:hi]  two spaces",
			want: protocol.ChatEvent{
				Kind:    protocol.KindChat,
				Sender:  "bob",
				Text:    " two spaces",
				ReplyTo: &protocol.ReplyRef{ID: "x1", Sender: "alice", Text: "hi"},
			},
		},
		{
			name: "unterminated reply block degrades to plain chat",
			line: "bob: [REPLY_TO:x1:alice:hi there sure!",
			want: protocol.ChatEvent{Kind: protocol.KindChat, Sender: "bob", Text: "[REPLY_TO:x1:alice:hi there sure!"},
		},
		{
			name: "no colon at all",
			line: "just some words",
			want: protocol.ChatEvent{Kind: protocol.KindChat, Sender: "unknown", Text: "just some words"},
		},
		{
			name: "empty line",
			line: "",
			want: protocol.ChatEvent{Kind: protocol.KindChat, Sender: "unknown", Text: ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fixedDecoder().Decode(tt.line)
			tt.want.ID = "id-1"
			tt.want.Timestamp = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_FreshIDPerCall(t *testing.T) {
	a := protocol.Decode("bob: hello")
	b := protocol.Decode("bob: hello")

	require.NotEmpty(t, a.ID)
	require.NotEqual(t, a.ID, b.ID)
	require.False(t, a.Timestamp.IsZero())
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name  string
		from  string
		text  string
		reply *protocol.ReplyRef
		want  string
	}{
		{"plain message", "carol", "hi all", nil, "carol: hi all"},
		{"empty text", "carol", "", nil, "carol: "},
		{
			"reply",
			"bob", "sure!",
			&protocol.ReplyRef{ID: "x1", Sender: "alice", Text: "hi there"},
			"bob: [REPLY_TO:x1:alice:hi there] sure!",
		},
		{
			"reply fields lose block terminators",
			"bob", "ok",
			&protocol.ReplyRef{ID: "x]1", Sender: "al:i]ce", Text: "see [this] at 10:00"},
			"bob: [REPLY_TO:x1:alice:see [this at 10:00] ok",
		},
		{"line breaks become spaces", "carol", "two\nlines\r\n", nil, "carol: two lines "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, protocol.Encode(tt.from, tt.text, tt.reply))
		})
	}
}

func TestEncodeAnnouncements(t *testing.T) {
	require.Equal(t, "carol joined the chat", protocol.EncodeJoin("carol"))
	require.Equal(t, "carol left the chat", protocol.EncodeLeave("carol"))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		from string
		text string
	}{
		{"simple", "alice", "hello"},
		{"unicode", "zoë", "こんにちは 👋"},
		{"colons in body", "bob", "ratio 3:1 at 10:45"},
		{"brackets in body", "bob", "[not a reply] really"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := protocol.Decode(protocol.Encode(tt.from, tt.text, nil))
			require.Equal(t, protocol.KindChat, got.Kind)
			require.Equal(t, tt.from, got.Sender)
			require.Equal(t, tt.text, got.Text)
			require.Nil(t, got.ReplyTo)
		})
	}
}

func TestEncodeDecodeRoundTrip_Reply(t *testing.T) {
	ref := &protocol.ReplyRef{ID: "8c1f", Sender: "alice", Text: "lunch at 12:30?"}

	got := protocol.Decode(protocol.Encode("bob", "works for me", ref))

	require.Equal(t, "bob", got.Sender)
	require.Equal(t, "works for me", got.Text)
	require.Equal(t, ref, got.ReplyTo)
}

func TestAnnouncedName(t *testing.T) {
	name, ok := protocol.AnnouncedName(protocol.Decode("dave joined the chat"))
	require.True(t, ok)
	require.Equal(t, "dave", name)

	name, ok = protocol.AnnouncedName(protocol.Decode("dave left the chat"))
	require.True(t, ok)
	require.Equal(t, "dave", name)

	_, ok = protocol.AnnouncedName(protocol.Decode("dave: hi"))
	require.False(t, ok)
}

func TestKind_String(t *testing.T) {
	require.Equal(t, "CHAT", protocol.KindChat.String())
	require.Equal(t, "SYSTEM", protocol.KindSystem.String())
	require.Equal(t, "UNKNOWN", protocol.Kind(42).String())
}

func FuzzDecode(f *testing.F) {
	for _, seed := range []string{
		"",
		":",
		"a joined the chat",
		"bob: [REPLY_TO:x1:alice:hi there] sure!",
		"bob: [REPLY_TO::::] ",
		"]]]:[[[",
		"\x00\xff",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, line string) {
		ev := protocol.Decode(line)
		if ev.Kind != protocol.KindChat && ev.Kind != protocol.KindSystem {
			t.Fatalf("Decode(%q) kind = %v", line, ev.Kind)
		}
		if ev.ReplyTo != nil && ev.Kind != protocol.KindChat {
			t.Fatalf("Decode(%q) attached reply to %v event", line, ev.Kind)
		}
		if ev.ID == "" {
			t.Fatalf("Decode(%q) returned empty id", line)
		}
	})
}
