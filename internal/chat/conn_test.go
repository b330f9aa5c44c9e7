package chat_test

import (
	"context"
	"io"
	"sync"

	"github.com/omochice/relay-chat/internal/chat"
)

// peerConn plays one relay client. It replays a fixed script of inbound
// frames, then reports io.EOF as a clean hang-up, or failure if set.
type peerConn struct {
	addr    string
	script  chan []byte
	failure error

	mu   sync.Mutex
	sent []string
	gone chan struct{}
	once sync.Once
}

func newPeer(addr string, frames ...string) *peerConn {
	script := make(chan []byte, len(frames))
	for _, f := range frames {
		script <- []byte(f)
	}
	close(script)
	return &peerConn{addr: addr, script: script, gone: make(chan struct{})}
}

// idlePeer never sends anything until it is closed.
func idlePeer(addr string) *peerConn {
	return &peerConn{addr: addr, script: make(chan []byte), gone: make(chan struct{})}
}

func (p *peerConn) Read(ctx context.Context) ([]byte, error) {
	if p.failure != nil {
		return nil, p.failure
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.gone:
		return nil, io.EOF
	case frame, ok := <-p.script:
		if !ok {
			return nil, io.EOF
		}
		return frame, nil
	}
}

func (p *peerConn) Write(_ context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, string(data))
	return nil
}

func (p *peerConn) Close() error {
	p.once.Do(func() { close(p.gone) })
	return nil
}

func (p *peerConn) RemoteAddr() string { return p.addr }

func (p *peerConn) Sent() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.sent...)
}

var _ chat.Conn = (*peerConn)(nil)
