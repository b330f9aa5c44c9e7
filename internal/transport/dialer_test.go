package transport_test

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/omochice/relay-chat/internal/transport"
	"github.com/stretchr/testify/require"
)

func TestDialer_UnsupportedScheme(t *testing.T) {
	tests := []string{"http://localhost:8080", "udp://localhost:9", "localhost:8080", "%zz"}

	for _, raw := range tests {
		t.Run(raw, func(t *testing.T) {
			_, err := transport.Dialer{}.Dial(context.Background(), raw)
			require.Error(t, err)
		})
	}
}

func TestDialer_TCP(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	received := make(chan []byte, 1)
	go func() {
		c, err := listener.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		r := bufio.NewReader(c)
		size, _ := r.ReadByte()
		buf := make([]byte, size)
		_, _ = io.ReadFull(r, buf)
		received <- buf
	}()

	d := transport.Dialer{Binary: true, Timeout: time.Second}
	conn, err := d.Dial(context.Background(), "tcp://"+listener.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Write(context.Background(), []byte{0x08, 0x01}))

	select {
	case got := <-received:
		require.Equal(t, []byte{0x08, 0x01}, got)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for frame")
	}
}
