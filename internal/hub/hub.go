package hub

import (
	"sync"
)

// Hub maintains the set of open connections and the named channels they have
// joined. Channels are plain broadcast groups: one per user identity for
// directed delivery, one per chat for room-scoped events. The hub does no
// authorization; membership is whatever the relay asked for.
//
// All sends are non-blocking. A client whose send queue is full misses that
// one frame and stays connected; delivery is best-effort by design.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	channels map[string]map[string]*Client
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		channels: make(map[string]map[string]*Client),
	}
}

// Add registers a client with the hub.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Remove drops a client from the hub and from every channel it joined, and
// closes its send queue. Safe to call for a client that was never added.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	delete(h.clients, c.ID)

	for name, members := range h.channels {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.channels, name)
		}
	}

	// Sends happen under the read lock, so nobody can be mid-send here.
	c.closed = true
	close(c.Send)
}

// Join adds a client to a named channel, creating it on first use.
func (h *Hub) Join(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c.ID]; !ok {
		return
	}
	members, ok := h.channels[channel]
	if !ok {
		members = make(map[string]*Client)
		h.channels[channel] = members
	}
	members[c.ID] = c
}

// Leave removes a client from a named channel.
func (h *Hub) Leave(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.channels[channel]
	if !ok {
		return
	}
	delete(members, c.ID)
	if len(members) == 0 {
		delete(h.channels, channel)
	}
}

// Broadcast sends a frame to every connected client.
func (h *Hub) Broadcast(data []byte) (sent, dropped int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.clients {
		if h.trySend(c, data) {
			sent++
		} else {
			dropped++
		}
	}
	return sent, dropped
}

// ToChannel sends a frame to every member of a channel, skipping the client
// whose ID equals except (pass "" to skip nobody). A channel with no members
// is a silent no-op.
func (h *Hub) ToChannel(channel string, data []byte, except string) (sent, dropped int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, c := range h.channels[channel] {
		if id == except {
			continue
		}
		if h.trySend(c, data) {
			sent++
		} else {
			dropped++
		}
	}
	return sent, dropped
}

// ToClient sends a frame to a single client. Returns false if the client is
// unknown or its queue was full.
func (h *Hub) ToClient(clientID string, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[clientID]
	if !ok {
		return false
	}
	return h.trySend(c, data)
}

// ChannelSize returns the number of members in a channel.
func (h *Hub) ChannelSize(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// Counts returns the number of connected clients and live channels.
func (h *Hub) Counts() (clients, channels int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients), len(h.channels)
}

// trySend enqueues without blocking. Callers hold at least the read lock,
// which orders sends against Remove closing the queue.
func (h *Hub) trySend(c *Client, data []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}
