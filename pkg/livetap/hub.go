// Package livetap streams a live copy of published signals and heartbeats
// over WebSocket so operators can watch egress without touching the bus.
// The tap is read-only and lossy: slow consumers are dropped, never the
// pipeline.
package livetap

import (
	"context"
	"sync"

	"realtime_strategies/internal/core"
)

// Message types pushed to tap clients
const (
	TypeSignal    = "signal"
	TypeHeartbeat = "heartbeat"
	TypeWelcome   = "welcome"
)

// Message is one frame pushed to tap clients
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// clientBuffer is the per-client send queue; a client that falls this far
// behind is disconnected
const clientBuffer = 256

// Client is one connected tap consumer
type Client struct {
	id   string
	send chan Message

	mu     sync.Mutex
	closed bool
}

func newClient(id string) *Client {
	return &Client{id: id, send: make(chan Message, clientBuffer)}
}

// trySend queues a message without blocking; false means the client is too
// slow and should be dropped
func (c *Client) trySend(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub fans messages out to every connected client
type Hub struct {
	logger core.ILogger

	broadcast  chan Message
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	clients map[*Client]bool
}

// NewHub creates an empty hub
func NewHub(logger core.ILogger) *Hub {
	return &Hub{
		logger:     logger.WithField("component", "livetap"),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// Run processes registrations and broadcasts until the context ends,
// then disconnects every client
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				client.close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return nil

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("Tap client connected", "client_id", client.id, "total", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("Tap client disconnected", "client_id", client.id, "total", total)

		case msg := <-h.broadcast:
			h.mu.RLock()
			targets := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				targets = append(targets, client)
			}
			h.mu.RUnlock()

			for _, client := range targets {
				if client.trySend(msg) {
					continue
				}
				// Evict inline; the loop cannot receive on its own
				// unregister channel while handling a broadcast.
				h.mu.Lock()
				if _, ok := h.clients[client]; ok {
					delete(h.clients, client)
					client.close()
				}
				total := len(h.clients)
				h.mu.Unlock()
				h.logger.Info("Tap client evicted", "client_id", client.id, "total", total)
			}
		}
	}
}

// Register hands a client to the hub loop
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Broadcast queues a message for every client; drops it when the hub is
// saturated rather than backing up the caller
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("Tap broadcast buffer full, dropping message", "type", msg.Type)
	}
}

// BroadcastSignal wraps a published wire payload in a signal frame
func (h *Hub) BroadcastSignal(payload []byte) {
	// Payload is already JSON; forward it raw so the tap shows exactly
	// what the trade engine receives.
	h.Broadcast(Message{Type: TypeSignal, Data: jsonRaw(payload)})
}

// ClientCount reports the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
