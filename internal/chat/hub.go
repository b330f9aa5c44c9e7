package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/omochice/relay-chat/pkg/protocol"
	"golang.org/x/time/rate"
)

// Client represents a connected client with transport-agnostic connection.
type Client struct {
	Conn     Conn
	Username string
	Outgoing chan []byte
}

// NewClient wraps conn with an outgoing queue of the given size.
func NewClient(conn Conn, queue int) *Client {
	return &Client{
		Conn:     conn,
		Outgoing: make(chan []byte, queue),
	}
}

// HubConfig configures a Hub.
type HubConfig struct {
	Codec  protocol.Codec
	Logger *slog.Logger
	// RateLimit is the sustained number of frames per second a single
	// client may send. Zero disables limiting.
	RateLimit rate.Limit
	Burst     int
}

// Hub manages all connected clients and handles broadcast.
// Every frame is fanned out to every client, the sender included.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex
	codec   protocol.Codec
	log     *slog.Logger
	limit   rate.Limit
	burst   int
}

// NewHub creates a new Hub.
func NewHub(cfg HubConfig) *Hub {
	codec := cfg.Codec
	if codec == nil {
		codec = protocol.LineCodec{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		clients: make(map[*Client]bool),
		codec:   codec,
		log:     logger,
		limit:   cfg.RateLimit,
		burst:   max(cfg.Burst, 1),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

// Unregister removes a client from the hub. Once it returns, no broadcast
// will write to the client's Outgoing channel.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client)
}

// ClientCount returns number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes the connection of every registered client. Their
// HandleClient loops return as soon as the pending read fails.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		_ = client.Conn.Close()
	}
}

// Broadcast queues data for every registered client. Clients whose queue
// is full miss the frame.
func (h *Hub) Broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.Outgoing <- data:
		default:
			h.log.Warn("client queue full, dropping frame", "remote", client.Conn.RemoteAddr())
		}
	}
}

// HandleClient reads frames from client until its connection fails or ctx
// ends, relaying each one. The client is unregistered on return and, if it
// had announced itself, a leave announcement is broadcast in its name.
func (h *Hub) HandleClient(ctx context.Context, client *Client) {
	var limiter *rate.Limiter
	if h.limit > 0 {
		limiter = rate.NewLimiter(h.limit, h.burst)
	}

	remote := client.Conn.RemoteAddr()
	h.log.Debug("client connected", "remote", remote)

	for {
		data, err := client.Conn.Read(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				h.log.Debug("client read failed", "remote", remote, "error", err)
			}
			break
		}

		if limiter != nil && !limiter.Allow() {
			h.log.Warn("client over rate limit, dropping frame", "remote", remote, "user", client.Username)
			continue
		}

		if client.Username == "" {
			ev := h.codec.Decode(data)
			if protocol.IsJoin(ev) {
				client.Username, _ = protocol.AnnouncedName(ev)
				h.log.Info("user joined", "user", client.Username, "remote", remote)
			}
		}

		h.Broadcast(data)
	}

	h.Unregister(client)
	if client.Username != "" {
		h.log.Info("user left", "user", client.Username, "remote", remote)
		h.Broadcast(h.codec.Leave(client.Username))
	}
}
