package core

import "sync"

// Hub is the process-local presence registry and broadcast fanout.
// It maps live connection IDs to clients; nothing here is durable and a
// restart clears the whole registry. All mutations go through the mutex so
// concurrent connection handlers never race on insert/delete.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// Register adds the client to the registry and returns the presence
// snapshot taken under the same lock, including the client itself.
func (h *Hub) Register(c *Client) []PresenceEntry {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.ConnID] = c

	entries := make([]PresenceEntry, 0, len(h.clients))
	for _, client := range h.clients {
		entries = append(entries, client.Entry())
	}
	return entries
}

// Unregister removes the connection if present. Returns true when an entry
// was actually removed, false on the idempotent repeat.
func (h *Hub) Unregister(connID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[connID]; !ok {
		return false
	}
	delete(h.clients, connID)
	return true
}

// IsRegistered reports whether the connection has a presence entry.
func (h *Hub) IsRegistered(connID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	_, ok := h.clients[connID]
	return ok
}

// Snapshot returns the current presence entries.
func (h *Hub) Snapshot() []PresenceEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entries := make([]PresenceEntry, 0, len(h.clients))
	for _, client := range h.clients {
		entries = append(entries, client.Entry())
	}
	return entries
}

// BroadcastAll delivers the event to every currently registered connection.
// Delivery is fire-and-forget per recipient; slow consumers drop.
func (h *Hub) BroadcastAll(event *Event) {
	for _, client := range h.subscribers("") {
		client.send(event)
	}
}

// BroadcastOthers delivers the event to every connection except exceptConnID.
func (h *Hub) BroadcastOthers(exceptConnID string, event *Event) {
	for _, client := range h.subscribers(exceptConnID) {
		client.send(event)
	}
}

// subscribers snapshots the current subscriber set so fanout proceeds
// against the set captured at this moment, independent of later changes.
func (h *Hub) subscribers(exceptConnID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for connID, client := range h.clients {
		if connID == exceptConnID {
			continue
		}
		clients = append(clients, client)
	}
	return clients
}
