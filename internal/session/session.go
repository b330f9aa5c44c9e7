// Package session implements the client side of a relay chat: connection
// lifecycle, the ordered event log, the presence estimate and the reply
// being composed.
//
// Every trigger (a user intent, an inbound frame, a transport failure) is
// applied under one lock and runs to completion before the next. Intents
// never wait on the network; their outcome shows up in later snapshots.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/omochice/relay-chat/internal/chat"
	"github.com/omochice/relay-chat/internal/transport"
	"github.com/omochice/relay-chat/pkg/protocol"
)

const DefaultSendQueue = 16

// Options configures a Session.
type Options struct {
	// URL is the relay endpoint handed to Dialer.
	URL string
	// Dialer defaults to a transport.Dialer matching the codec.
	Dialer chat.Dialer
	// Codec defaults to the line codec.
	Codec protocol.Codec
	// JoinTimeout bounds connecting and announcing. Zero waits until the
	// transport itself gives up.
	JoinTimeout time.Duration
	// SendQueue is the number of frames that may wait for the writer.
	SendQueue int
	Logger    *slog.Logger
}

// Session is the chat session state machine.
type Session struct {
	url         string
	dialer      chat.Dialer
	codec       protocol.Codec
	joinTimeout time.Duration
	queueSize   int
	log         *slog.Logger

	mu       sync.Mutex
	state    ConnectionState
	name     string
	history  History
	presence Presence
	pending  *protocol.ChatEvent

	// attempt fences goroutines of an abandoned connection: they may only
	// touch state while their attempt is current.
	attempt  uint64
	conn     chat.Conn
	cancel   context.CancelFunc
	outgoing chan []byte

	changes chan struct{}
}

// New creates a disconnected session.
func New(opts Options) *Session {
	codec := opts.Codec
	if codec == nil {
		codec = protocol.LineCodec{}
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = transport.Dialer{Binary: codec.Binary()}
	}
	queue := opts.SendQueue
	if queue <= 0 {
		queue = DefaultSendQueue
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Session{
		url:         opts.URL,
		dialer:      dialer,
		codec:       codec,
		joinTimeout: opts.JoinTimeout,
		queueSize:   queue,
		log:         logger,
		changes:     make(chan struct{}, 1),
	}
}

// StartJoin begins connecting as name. The join announcement is sent as
// soon as the transport is ready, before the session reports Connected.
func (s *Session) StartJoin(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateDisconnected {
		return ErrAlreadyJoined
	}

	s.attempt++
	ctx, cancel := context.WithCancel(context.Background())
	s.state = StateJoining
	s.name = name
	s.cancel = cancel
	s.notify()

	s.log.Debug("joining", "url", s.url, "name", name)
	go s.join(ctx, s.attempt, name)
	return nil
}

// Send queues text for transmission, as a reply when one is pending. The
// message enters the log only when the relay echoes it back.
func (s *Session) Send(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnected {
		return ErrNotConnected
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	var reply *protocol.ReplyRef
	if s.pending != nil {
		ref := s.pending.Summary()
		reply = &ref
	}

	select {
	case s.outgoing <- s.codec.Message(s.name, text, reply):
	default:
		return ErrSendQueueFull
	}

	s.pending = nil
	s.notify()
	return nil
}

// BeginReply marks the log entry with the given id as the reply target.
// The log outlives connections, so any state is accepted; a later
// disconnect clears the target again.
func (s *Session) BeginReply(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ev, ok := s.history.Find(id)
	if !ok {
		return ErrUnknownEvent
	}
	if ev.Kind == protocol.KindSystem {
		return ErrReplyToSystem
	}

	s.pending = &ev
	s.notify()
	return nil
}

// CancelReply clears the reply target.
func (s *Session) CancelReply() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		s.pending = nil
		s.notify()
	}
}

// Teardown closes any connection and leaves the session Disconnected before
// returning. It is safe to call in any state, any number of times.
func (s *Session) Teardown() {
	s.mu.Lock()
	if s.state == StateDisconnected && s.conn == nil && s.cancel == nil {
		s.mu.Unlock()
		return
	}
	s.log.Debug("teardown", "state", s.state)
	conn := s.resetLocked()
	s.mu.Unlock()

	s.release(conn)
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		State:         s.state,
		DisplayName:   s.name,
		Log:           s.history.Events(),
		PresenceCount: s.presence.Count(),
	}
	if s.pending != nil {
		p := *s.pending
		snap.PendingReply = &p
	}
	return snap
}

// Changes signals that the state may have changed since the last receive.
// Notifications coalesce; read a Snapshot after each one.
func (s *Session) Changes() <-chan struct{} {
	return s.changes
}

func (s *Session) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *Session) join(ctx context.Context, attempt uint64, name string) {
	dialCtx := ctx
	if s.joinTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, s.joinTimeout)
		defer cancel()
	}

	conn, err := s.dialer.Dial(dialCtx, s.url)
	if err != nil {
		s.abandonJoin(attempt, err)
		return
	}

	if err := conn.Write(dialCtx, s.codec.Join(name)); err != nil {
		_ = conn.Close()
		s.abandonJoin(attempt, fmt.Errorf("failed to announce join: %w", err))
		return
	}

	s.connected(ctx, attempt, conn)
}

func (s *Session) abandonJoin(attempt uint64, err error) {
	s.mu.Lock()
	if attempt != s.attempt || s.state != StateJoining {
		s.mu.Unlock()
		return
	}
	s.log.Warn("join failed", "url", s.url, "error", err)
	conn := s.resetLocked()
	s.mu.Unlock()

	s.release(conn)
}

func (s *Session) connected(ctx context.Context, attempt uint64, conn chat.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if attempt != s.attempt || s.state != StateJoining {
		_ = conn.Close()
		return
	}

	s.state = StateConnected
	s.conn = conn
	s.outgoing = make(chan []byte, s.queueSize)
	s.presence.Self()
	s.notify()

	s.log.Info("connected", "url", s.url, "name", s.name, "remote", conn.RemoteAddr())

	go s.readLoop(ctx, attempt, conn)
	go s.writeLoop(ctx, attempt, conn, s.outgoing)
}

func (s *Session) readLoop(ctx context.Context, attempt uint64, conn chat.Conn) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			s.lost(attempt, err)
			return
		}
		s.receive(attempt, data)
	}
}

func (s *Session) writeLoop(ctx context.Context, attempt uint64, conn chat.Conn, outgoing <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-outgoing:
			if err := conn.Write(ctx, data); err != nil {
				s.lost(attempt, fmt.Errorf("failed to send message: %w", err))
				return
			}
		}
	}
}

func (s *Session) receive(attempt uint64, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if attempt != s.attempt || s.state != StateConnected {
		return
	}

	ev := s.codec.Decode(data)
	s.history.Append(ev)
	s.presence.Observe(ev)
	s.notify()
}

func (s *Session) lost(attempt uint64, err error) {
	s.mu.Lock()
	if attempt != s.attempt || s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	if errors.Is(err, io.EOF) {
		s.log.Info("connection closed by relay", "url", s.url)
	} else {
		s.log.Warn("connection lost", "url", s.url, "error", err)
	}
	conn := s.resetLocked()
	s.mu.Unlock()

	s.release(conn)
}

// resetLocked moves to Disconnected and detaches the connection, which the
// caller closes with release once s.mu is unlocked. The log is kept; live
// counters and the pending reply are cleared.
func (s *Session) resetLocked() chat.Conn {
	s.attempt++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	conn := s.conn
	s.conn = nil
	s.outgoing = nil
	s.state = StateDisconnected
	s.presence.Reset()
	s.pending = nil
	s.notify()
	return conn
}

// release closes a detached connection. A close can wait on a stalled write,
// so it must never run under s.mu.
func (s *Session) release(conn chat.Conn) {
	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		s.log.Debug("close failed", "error", err)
	}
}
