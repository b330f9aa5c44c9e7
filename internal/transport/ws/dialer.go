package ws

import (
	"context"
	"fmt"
	"time"

	"github.com/gobwas/ws"
	"github.com/omochice/relay-chat/internal/chat"
)

// Dialer opens client WebSocket connections.
type Dialer struct {
	// Binary selects binary messages for outgoing frames.
	Binary bool
	// Timeout bounds the TCP connect and handshake. Zero means no limit
	// beyond the context passed to Dial.
	Timeout time.Duration
}

// Dial implements chat.Dialer.
func (d Dialer) Dial(ctx context.Context, url string) (chat.Conn, error) {
	dialer := ws.Dialer{Timeout: d.Timeout}
	conn, br, _, err := dialer.Dial(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	return NewClientConn(conn, br, d.Binary), nil
}
