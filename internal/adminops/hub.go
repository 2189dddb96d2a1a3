package adminops

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is one lifecycle notification fanned out to connected
// operator dashboards. It never carries SDP/ICE payloads.
type Event struct {
	Kind      string    `json:"kind"`
	Token     string    `json:"token,omitempty"`
	Room      string    `json:"room,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	EventSessionCreated = "session_created"
	EventRoomCreated    = "room_created"
	EventRoomPaired     = "room_paired"
	EventSessionExpired = "session_expired"
)

// client wraps one admin websocket connection with the same
// lock-before-write pattern a shared *websocket.Conn requires under
// concurrent writers.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

// Hub fans out Events to every connected admin client. It is a
// read-only tap: nothing flows from a dashboard back into the
// signaling core.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

func (h *Hub) add(conn *websocket.Conn) *client {
	c := &client{conn: conn}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// Broadcast fans event out to every connected client, dropping any
// client whose write fails.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.writeJSON(event); err != nil {
			h.remove(c)
		}
	}
}
