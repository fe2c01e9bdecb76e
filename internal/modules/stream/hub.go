// README: Subscriber groups; ride id → live connections receiving fan-out.
package stream

import (
	"sync"

	"ridewire/internal/types"
)

// Hub owns the subscriber-group table. Nothing outside this type touches
// the maps; callers only subscribe, unsubscribe, drop and broadcast.
type Hub struct {
	mu sync.RWMutex
	// groups is ride id → members; an entry exists only while non-empty.
	groups map[types.ID]map[*Client]struct{}
	// memberships is the reverse index used to detach a client on disconnect.
	memberships map[*Client]map[types.ID]struct{}
}

func NewHub() *Hub {
	return &Hub{
		groups:      make(map[types.ID]map[*Client]struct{}),
		memberships: make(map[*Client]map[types.ID]struct{}),
	}
}

// Subscribe adds c to the group for rideID, creating the group on first use.
func (h *Hub) Subscribe(c *Client, rideID types.ID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.groups[rideID]
	if !ok {
		g = make(map[*Client]struct{})
		h.groups[rideID] = g
	}
	g[c] = struct{}{}

	m, ok := h.memberships[c]
	if !ok {
		m = make(map[types.ID]struct{})
		h.memberships[c] = m
	}
	m[rideID] = struct{}{}
}

// Unsubscribe removes c from one group, tearing the group down when empty.
func (h *Hub) Unsubscribe(c *Client, rideID types.ID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detach(c, rideID)
}

// Drop removes c from every group it belongs to and closes it.
func (h *Hub) Drop(c *Client) {
	h.mu.Lock()
	for rideID := range h.memberships[c] {
		h.detach(c, rideID)
	}
	delete(h.memberships, c)
	h.mu.Unlock()
	c.Close()
}

// Broadcast queues msg on every member of the rideID group. Members whose
// queue is full are disconnected afterwards so one stalled subscriber never
// delays the rest. Returns the number of successful deliveries.
func (h *Hub) Broadcast(rideID types.ID, msg []byte) int {
	h.mu.RLock()
	var stale []*Client
	delivered := 0
	for c := range h.groups[rideID] {
		if c.TrySend(msg) {
			delivered++
		} else {
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.Drop(c)
	}
	return delivered
}

// GroupSize reports the current member count for a ride.
func (h *Hub) GroupSize(rideID types.ID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[rideID])
}

// detach must be called with the write lock held.
func (h *Hub) detach(c *Client, rideID types.ID) {
	if g, ok := h.groups[rideID]; ok {
		delete(g, c)
		if len(g) == 0 {
			delete(h.groups, rideID)
		}
	}
	if m, ok := h.memberships[c]; ok {
		delete(m, rideID)
	}
}
