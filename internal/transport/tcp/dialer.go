package tcp

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/omochice/relay-chat/internal/chat"
)

// Dialer opens raw TCP connections to a relay.
type Dialer struct {
	Framing Framing
	Timeout time.Duration
}

// Dial implements chat.Dialer. address is host:port.
func (d Dialer) Dial(ctx context.Context, address string) (chat.Conn, error) {
	nd := net.Dialer{Timeout: d.Timeout}
	conn, err := nd.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	return NewConnWithReader(conn, bufio.NewReader(conn), d.Framing), nil
}
