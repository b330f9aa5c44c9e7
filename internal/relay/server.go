// Package relay implements a broadcast relay for local development and
// tests. It accepts WebSocket and raw TCP clients on one port and fans every
// frame out to every client, the sender included.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/omochice/relay-chat/internal/chat"
	"github.com/omochice/relay-chat/internal/transport/tcp"
	wstransport "github.com/omochice/relay-chat/internal/transport/ws"
	"github.com/omochice/relay-chat/pkg/protocol"
	"golang.org/x/time/rate"
)

const (
	DefaultSendQueue = 64

	detectTimeout = 5 * time.Second
	writeTimeout  = 5 * time.Second
)

// Config configures a Server.
type Config struct {
	Address string
	// Codec decides frame kinds: text frames and newline framing for the
	// line codec, binary frames and length prefixes for envelopes.
	Codec     protocol.Codec
	SendQueue int
	RateLimit rate.Limit
	Burst     int
	Logger    *slog.Logger
}

// Server represents a relay that handles both TCP and WebSocket connections
// on a single port.
type Server struct {
	address  string
	codec    protocol.Codec
	queue    int
	hub      *chat.Hub
	log      *slog.Logger
	listener net.Listener

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a new Server instance.
func New(cfg Config) *Server {
	codec := cfg.Codec
	if codec == nil {
		codec = protocol.LineCodec{}
	}
	queue := cfg.SendQueue
	if queue <= 0 {
		queue = DefaultSendQueue
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		address: cfg.Address,
		codec:   codec,
		queue:   queue,
		hub: chat.NewHub(chat.HubConfig{
			Codec:     codec,
			Logger:    logger,
			RateLimit: cfg.RateLimit,
			Burst:     cfg.Burst,
		}),
		log:    logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start listens on the configured address and accepts clients in the
// background until Stop is called.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener
	s.log.Info("relay started", "address", listener.Addr().String(), "codec", s.codec.Name())

	s.wg.Add(1)
	go s.acceptConnections()
	return nil
}

// Stop closes the listener and every client connection, then waits for all
// handlers to return.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.cancel()
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.hub.CloseAll()
		s.wg.Wait()
		s.log.Info("relay stopped")
	})
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	return s.hub.ClientCount()
}

func (s *Server) acceptConnections() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("failed to accept connection", "error", err)
			continue
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection determines whether the connection is HTTP (WebSocket)
// or raw TCP, then relays its frames.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	_ = conn.SetReadDeadline(time.Now().Add(detectTimeout))
	proto, reader, err := detectProtocol(conn)
	_ = conn.SetReadDeadline(time.Time{})
	if err != nil {
		s.log.Debug("failed to detect protocol", "remote", conn.RemoteAddr().String(), "error", err)
		_ = conn.Close()
		return
	}

	var c chat.Conn
	switch proto {
	case protocolHTTP:
		if _, err := (ws.Upgrader{}).Upgrade(&bufferedConn{Conn: conn, reader: reader}); err != nil {
			s.log.Warn("failed to upgrade connection", "remote", conn.RemoteAddr().String(), "error", err)
			_ = conn.Close()
			return
		}
		c = wstransport.NewServerConn(conn, reader, s.codec.Binary())
	default:
		framing := tcp.FramingLines
		if s.codec.Binary() {
			framing = tcp.FramingLengthPrefixed
		}
		c = tcp.NewConnWithReader(conn, reader, framing)
	}

	s.log.Debug("client accepted", "remote", c.RemoteAddr(), "protocol", proto)
	s.serve(c)
}

func (s *Server) serve(conn chat.Conn) {
	client := chat.NewClient(conn, s.queue)
	s.hub.Register(client)
	if s.ctx.Err() != nil {
		// Stop ran between accept and register.
		_ = conn.Close()
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(client)
	}()

	s.hub.HandleClient(s.ctx, client)

	// Unregistered by HandleClient; nothing else sends on Outgoing.
	close(client.Outgoing)
	<-writerDone
	_ = conn.Close()
}

func (s *Server) writeLoop(client *chat.Client) {
	for data := range client.Outgoing {
		ctx, cancel := context.WithTimeout(s.ctx, writeTimeout)
		err := client.Conn.Write(ctx, data)
		cancel()
		if err != nil {
			s.log.Debug("failed to send frame", "remote", client.Conn.RemoteAddr(), "error", err)
			_ = client.Conn.Close()
			// discard until the reader side closes Outgoing
			for range client.Outgoing {
			}
			return
		}
	}
}
