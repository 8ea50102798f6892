package services

import (
	"encoding/json"
	"sync"

	"mai/internal/jobs"
)

// Hub keeps one websocket per client id and pushes job events to it.
// A client too slow to drain its buffer is dropped.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*WSClient
}

func safeCloseBytes(ch chan []byte) {
	defer func() {
		_ = recover()
	}()
	close(ch)
}

func NewHub() *Hub {
	return &Hub{
		clients: map[string]*WSClient{},
	}
}

func (h *Hub) Add(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.clients[c.id]; ok {
		safeCloseBytes(old.send)
		old.conn.Close()
	}

	h.clients[c.id] = c
}

// Remove drops c only while it is still the registered socket for its id,
// so a stale connection closing never evicts its replacement.
func (h *Hub) Remove(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.clients[c.id]; ok && cur == c {
		delete(h.clients, c.id)
		safeCloseBytes(c.send)
		c.conn.Close()
	}
}

func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := h.clients
	h.clients = map[string]*WSClient{}
	h.mu.Unlock()

	for _, c := range clients {
		safeCloseBytes(c.send)
		c.conn.Close()
	}
}

func (h *Hub) Connected(clientID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[clientID]
	return ok
}

// SendTo holds the read lock across the send; Add and Remove close the
// channel under the write lock.
func (h *Hub) SendTo(clientID string, event jobs.Event) {
	b, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	c := h.clients[clientID]
	if c == nil {
		h.mu.RUnlock()
		return
	}
	var dropped bool
	select {
	case c.send <- b:
	default:
		dropped = true
	}
	h.mu.RUnlock()

	if dropped {
		h.Remove(c)
	}
}
