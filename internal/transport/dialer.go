// Package transport selects a concrete transport from a relay URL.
package transport

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/omochice/relay-chat/internal/chat"
	"github.com/omochice/relay-chat/internal/transport/tcp"
	"github.com/omochice/relay-chat/internal/transport/ws"
)

// Dialer dials ws://, wss:// and tcp:// relay URLs.
type Dialer struct {
	// Binary selects binary frames: WebSocket binary messages, or length
	// prefixed frames on raw TCP.
	Binary  bool
	Timeout time.Duration
}

// Dial implements chat.Dialer.
func (d Dialer) Dial(ctx context.Context, rawURL string) (chat.Conn, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay url %q: %w", rawURL, err)
	}

	switch u.Scheme {
	case "ws", "wss":
		return ws.Dialer{Binary: d.Binary, Timeout: d.Timeout}.Dial(ctx, rawURL)
	case "tcp":
		framing := tcp.FramingLines
		if d.Binary {
			framing = tcp.FramingLengthPrefixed
		}
		return tcp.Dialer{Framing: framing, Timeout: d.Timeout}.Dial(ctx, u.Host)
	default:
		return nil, fmt.Errorf("unsupported relay scheme %q", u.Scheme)
	}
}
