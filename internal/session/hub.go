// Package session serves live dashboard sessions over websocket.
package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"triplebillion/internal/metrics"
)

const writeWait = 5 * time.Second

// client serialises writes; gorilla connections allow one writer at a time.
type client struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *client) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
}

type Stats struct {
	Clients int `json:"ws_clients"`
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

func (h *Hub) add(ws *websocket.Conn) *client {
	c := &client{ws: ws}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSClients.Set(float64(n))
	return c
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	metrics.WSClients.Set(float64(n))
	_ = c.ws.Close()
}

// BroadcastJSON sends v to every connected session, dropping sessions that
// cannot be written to.
func (h *Hub) BroadcastJSON(v any) {
	h.mu.Lock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		if err := c.writeJSON(v); err != nil {
			h.remove(c)
		}
	}
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{Clients: len(h.clients)}
}
