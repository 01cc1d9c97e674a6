package realtime

import "sync"

// Hub is the registry of live connections. It is owned by the server
// process: created when the listener starts and shut down with it, so every
// outstanding tracker is cancelled on teardown. It is not a package
// singleton.
type Hub struct {
	mu     sync.RWMutex
	conns  map[string]*Conn
	closed bool
}

// NewHub creates an empty connection registry.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]*Conn)}
}

// Register adds a connection. Returns false when the hub is already shut
// down, in which case the caller must close the connection itself.
func (h *Hub) Register(c *Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.conns[c.id] = c
	return true
}

// Unregister removes a connection by ID.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, id)
}

// Len returns the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// Shutdown cancels every outstanding tracker and closes every socket. The
// hub accepts no registrations afterwards.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[string]*Conn)
	h.closed = true
	h.mu.Unlock()

	for _, c := range conns {
		c.stopTracker()
		_ = c.ws.Close()
	}
}
