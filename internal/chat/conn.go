// Package chat holds the transport contracts shared by the client session and
// the relay, and the relay's broadcast hub.
package chat

import "context"

// Conn abstracts a bidirectional frame connection for both TCP and WebSocket.
// One Write is one frame on the wire; one Read returns one whole frame.
type Conn interface {
	// Read blocks until the next frame arrives.
	// Returns io.EOF when connection is closed.
	Read(ctx context.Context) ([]byte, error)

	// Write sends a single frame.
	Write(ctx context.Context, data []byte) error

	// Close closes the connection. Calling it more than once is safe.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}

// Dialer opens a Conn to a relay endpoint.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, url string) (Conn, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) {
	return f(ctx, url)
}
