// Package relay fans bus events out to live WebSocket clients.  Delivery
// is at-most-once: a client that is disconnected, or too slow to drain
// its buffer, misses events and is expected to re-fetch state over HTTP.
package relay

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Envelope is the frame sent to clients for every bus message.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Hub tracks connected clients and the rooms they joined.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	log     *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{clients: make(map[*Client]struct{}), log: log}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("ws_connected", "client_id", c.id, "clients", n)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	if ok {
		c.closeSend()
		h.log.Info("ws_disconnected", "client_id", c.id, "clients", n)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends the message of topic to every client.  A payload that
// is not valid JSON is delivered as a JSON string.
func (h *Hub) Broadcast(topic string, payload []byte) {
	raw := json.RawMessage(payload)
	if !json.Valid(payload) {
		quoted, _ := json.Marshal(string(payload))
		raw = quoted
	}
	frame, err := json.Marshal(Envelope{Event: topic, Payload: raw})
	if err != nil {
		h.log.Error("ws_encode_failed", "topic", topic, "error", err)
		return
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.clients {
		if !c.enqueue(frame) {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.log.Warn("ws_client_dropped", "client_id", c.id, "reason", "send buffer full")
		h.unregister(c)
	}
}

// Rooms returns how many clients are in each room.
func (h *Hub) Rooms() map[string]int {
	out := map[string]int{}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		for _, r := range c.roomList() {
			out[r]++
		}
	}
	return out
}
