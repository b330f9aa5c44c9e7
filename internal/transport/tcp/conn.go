// Package tcp provides raw TCP transport implementation.
//
// Text frames are newline terminated. Binary frames carry a varint length
// prefix, the same encoding protobuf uses for length-delimited fields.
package tcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// MaxFrameSize bounds a single inbound frame.
const MaxFrameSize = 64 << 10

var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// Framing selects how frames are delimited on the stream.
type Framing int

const (
	FramingLines Framing = iota
	FramingLengthPrefixed
)

// Conn adapts net.Conn to chat.Conn interface.
type Conn struct {
	conn    net.Conn
	reader  *bufio.Reader
	framing Framing

	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps a net.Conn using line framing.
func NewConn(conn net.Conn) *Conn {
	return NewConnWithReader(conn, bufio.NewReader(conn), FramingLines)
}

// NewConnWithReader wraps a net.Conn whose first bytes were already peeked
// into reader.
func NewConnWithReader(conn net.Conn, reader *bufio.Reader, framing Framing) *Conn {
	return &Conn{conn: conn, reader: reader, framing: framing}
}

// Read implements chat.Conn.
// Reads exactly one frame from the TCP stream.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetReadDeadline(deadline)
		defer c.conn.SetReadDeadline(time.Time{})
	}

	if c.framing == FramingLengthPrefixed {
		return c.readPrefixed()
	}
	return c.readLine()
}

func (c *Conn) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, err := c.reader.ReadSlice('\n')
		if len(line)+len(bytes.TrimRight(chunk, "\r\n")) > MaxFrameSize {
			return nil, ErrFrameTooLarge
		}
		line = append(line, chunk...)

		switch {
		case err == nil:
			return bytes.TrimRight(line, "\r\n"), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && len(line) > 0:
			return line, nil
		default:
			return nil, err
		}
	}
}

func (c *Conn) readPrefixed() ([]byte, error) {
	size, err := binary.ReadUvarint(c.reader)
	if err != nil {
		return nil, err
	}
	if size > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(c.reader, data); err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	return data, nil
}

// Write implements chat.Conn.
func (c *Conn) Write(ctx context.Context, data []byte) error {
	var frame []byte
	if c.framing == FramingLengthPrefixed {
		frame = binary.AppendUvarint(make([]byte, 0, len(data)+binary.MaxVarintLen64), uint64(len(data)))
		frame = append(frame, data...)
	} else {
		frame = make([]byte, 0, len(data)+1)
		frame = append(frame, data...)
		frame = append(frame, '\n')
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	_, err := c.conn.Write(frame)
	return err
}

// Close implements chat.Conn.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr implements chat.Conn.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
