package session_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/omochice/relay-chat/internal/chat"
	"github.com/omochice/relay-chat/internal/session"
	"github.com/omochice/relay-chat/pkg/protocol"
	"github.com/stretchr/testify/require"
)

const waitFor = time.Second

// fakeConn is an in-memory chat.Conn driven by the test.
type fakeConn struct {
	inbound   chan []byte
	written   chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	closes    atomic.Int32
	writeErr  error
}

func newFakeConn(writeBuffer int) *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte),
		written: make(chan []byte, writeBuffer),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, io.EOF
	case data := <-c.inbound:
		return data, nil
	}
}

func (c *fakeConn) Write(ctx context.Context, data []byte) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	select {
	case c.written <- append([]byte(nil), data...):
		return nil
	case <-c.closed:
		return io.ErrClosedPipe
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *fakeConn) Close() error {
	c.closes.Add(1)
	c.drop()
	return nil
}

func (c *fakeConn) RemoteAddr() string { return "fake" }

// drop simulates the relay going away.
func (c *fakeConn) drop() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// deliver hands a frame to the session's reader.
func (c *fakeConn) deliver(t *testing.T, frame string) {
	t.Helper()
	select {
	case c.inbound <- []byte(frame):
	case <-time.After(waitFor):
		t.Fatalf("session did not read %q", frame)
	}
}

func (c *fakeConn) nextWritten(t *testing.T) string {
	t.Helper()
	select {
	case data := <-c.written:
		return string(data)
	case <-time.After(waitFor):
		t.Fatal("nothing written")
		return ""
	}
}

func connDialer(conn chat.Conn) chat.Dialer {
	return chat.DialerFunc(func(ctx context.Context, url string) (chat.Conn, error) {
		return conn, nil
	})
}

// sequentialCodec numbers decoded events e1, e2, ...
func sequentialCodec() protocol.Codec {
	var n atomic.Int64
	return protocol.LineCodec{Decoder: protocol.Decoder{
		NewID: func() string { return fmt.Sprintf("e%d", n.Add(1)) },
	}}
}

func waitState(t *testing.T, s *session.Session, want session.ConnectionState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Snapshot().State == want
	}, waitFor, 5*time.Millisecond, "state never became %s", want)
}

func waitLogLen(t *testing.T, s *session.Session, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(s.Snapshot().Log) == n
	}, waitFor, 5*time.Millisecond)
}

// connectedSession returns a session joined as carol over conn, with the
// join announcement already consumed.
func connectedSession(t *testing.T, conn *fakeConn, opts session.Options) *session.Session {
	t.Helper()
	opts.URL = "ws://relay"
	opts.Dialer = connDialer(conn)
	if opts.Codec == nil {
		opts.Codec = sequentialCodec()
	}
	s := session.New(opts)
	t.Cleanup(s.Teardown)

	require.NoError(t, s.StartJoin("carol"))
	waitState(t, s, session.StateConnected)
	announced := protocol.EnvelopeCodec{}.Decode([]byte(conn.nextWritten(t)))
	require.Equal(t, "carol joined the chat", announced.Text)
	return s
}
