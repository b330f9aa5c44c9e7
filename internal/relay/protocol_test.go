package relay

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDetectProtocol(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  protocolType
	}{
		{name: "websocket upgrade", input: "GET /ws HTTP/1.1\r\n", want: protocolHTTP},
		{name: "post", input: "POST / HTTP/1.1\r\n", want: protocolHTTP},
		{name: "chat line", input: "carol joined the chat\n", want: protocolTCP},
		{name: "envelope", input: "\x10\x08\x02\x12\x01x", want: protocolTCP},
		{name: "short frame", input: "ab\n", want: protocolTCP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, client := net.Pipe()
			defer server.Close()
			defer client.Close()

			go func() {
				_, _ = client.Write([]byte(tt.input))
			}()

			_ = server.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
			got, reader, err := detectProtocol(server)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)

			_ = server.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
			buf := make([]byte, len(tt.input))
			_, err = io.ReadFull(reader, buf)
			require.NoError(t, err)
			require.Equal(t, tt.input, string(buf))
		})
	}
}

func TestDetectProtocol_ClosedBeforeData(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	require.NoError(t, client.Close())

	_, _, err := detectProtocol(server)
	require.ErrorIs(t, err, io.EOF)
}

func TestProtocolType_String(t *testing.T) {
	require.Equal(t, "websocket", protocolHTTP.String())
	require.Equal(t, "tcp", protocolTCP.String())
}
