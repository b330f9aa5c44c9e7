// Package ws provides WebSocket transport implementation using gobwas/ws.
package ws

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

const closeTimeout = time.Second

// MaxFrameSize bounds a single inbound message.
const MaxFrameSize = 64 << 10

// ErrFrameTooLarge is returned by Read for messages over MaxFrameSize.
var ErrFrameTooLarge = wsutil.ErrFrameTooLarge

// Conn adapts a WebSocket connection to chat.Conn.
// Frames are written as text or binary messages depending on how the Conn
// was created; both kinds are accepted on read.
type Conn struct {
	conn       net.Conn
	rw         io.ReadWriter
	state      ws.State
	op         ws.OpCode
	remoteAddr string

	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewClientConn wraps the client side of an established connection. br is
// the reader returned by the handshake and may be nil.
func NewClientConn(conn net.Conn, br *bufio.Reader, binary bool) *Conn {
	var r io.Reader = conn
	if br != nil {
		r = br
	}
	return newConn(conn, r, ws.StateClientSide, binary)
}

// NewServerConn wraps the server side of an upgraded connection. r replaces
// conn for reads when bytes were already buffered during upgrade.
func NewServerConn(conn net.Conn, r io.Reader, binary bool) *Conn {
	if r == nil {
		r = conn
	}
	return newConn(conn, r, ws.StateServerSide, binary)
}

func newConn(conn net.Conn, r io.Reader, state ws.State, binary bool) *Conn {
	c := &Conn{
		conn:       conn,
		state:      state,
		op:         ws.OpText,
		remoteAddr: conn.RemoteAddr().String(),
	}
	if binary {
		c.op = ws.OpBinary
	}
	c.rw = struct {
		io.Reader
		io.Writer
	}{r, lockedWriter{mu: &c.wmu, w: conn}}
	return c
}

// Read implements chat.Conn.
// Control frames are answered transparently; a close frame ends the stream
// with io.EOF.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
		defer c.conn.SetReadDeadline(time.Time{})
	}

	control := wsutil.ControlFrameHandler(c.rw, c.state)
	rd := wsutil.Reader{
		Source:         c.rw,
		State:          c.state,
		CheckUTF8:      true,
		MaxFrameSize:   MaxFrameSize,
		OnIntermediate: control,
	}
	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return nil, readErr(err)
		}
		if hdr.OpCode.IsControl() {
			if err := control(hdr, &rd); err != nil {
				return nil, readErr(err)
			}
			continue
		}
		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := rd.Discard(); err != nil {
				return nil, readErr(err)
			}
			continue
		}

		// Fragments are bounded one by one; the limit also applies to the
		// reassembled message.
		data, err := io.ReadAll(io.LimitReader(&rd, MaxFrameSize+1))
		if err != nil {
			return nil, readErr(err)
		}
		if len(data) > MaxFrameSize {
			return nil, ErrFrameTooLarge
		}
		return data, nil
	}
}

func readErr(err error) error {
	var closed wsutil.ClosedError
	if errors.As(err, &closed) {
		return io.EOF
	}
	return err
}

// Write implements chat.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	return wsutil.WriteMessage(c.conn, c.state, c.op, data)
}

// Close implements chat.Conn.
// It sends a normal-closure frame on a best-effort basis. When a write is
// in flight the frame is skipped and the pending write fails instead of
// holding Close up.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if c.wmu.TryLock() {
			_ = c.conn.SetWriteDeadline(time.Now().Add(closeTimeout))
			body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
			_ = wsutil.WriteMessage(c.conn, c.state, ws.OpClose, body)
			c.wmu.Unlock()
		} else {
			_ = c.conn.SetWriteDeadline(time.Now())
		}
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

// lockedWriter serializes control-frame replies written while reading with
// data frames written by Write.
type lockedWriter struct {
	mu *sync.Mutex
	w  io.Writer
}

func (l lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
