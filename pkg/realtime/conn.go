package realtime

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the per-connection session state: the verified owner, the bound
// session (if any), the last-activity timestamp, and the handle of the
// running tracker. It is ephemeral and never persisted; closing the
// connection discards it without finalizing the bound session.
type Conn struct {
	id     string
	userID string
	ws     *websocket.Conn

	// writeMu serializes frames: the read loop and the tracker both write.
	writeMu sync.Mutex

	mu           sync.Mutex
	sessionID    string
	lastActivity time.Time

	// Tracker handle. Both channels are nil when no tracker is running;
	// closing stop asks the loop to exit and done is closed when it has.
	stop chan struct{}
	done chan struct{}
}

func newConn(id, userID string, ws *websocket.Conn) *Conn {
	return &Conn{
		id:           id,
		userID:       userID,
		ws:           ws,
		lastActivity: time.Now(),
	}
}

// ID returns the connection identifier.
func (c *Conn) ID() string {
	return c.id
}

// UserID returns the verified owner of the connection.
func (c *Conn) UserID() string {
	return c.userID
}

// SessionID returns the bound session ID, or empty when unbound.
func (c *Conn) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// markActivity records a qualifying client signal.
func (c *Conn) markActivity() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActivity = time.Now()
}

// idleFor reports whether no activity has been seen for longer than
// threshold.
func (c *Conn) idleFor(threshold time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastActivity) > threshold
}

// send writes one JSON frame, serialized across writers.
func (c *Conn) send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(v)
}

// bind attaches a session and resets last-activity. The caller starts the
// tracker separately.
func (c *Conn) bind(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = sessionID
	c.lastActivity = time.Now()
}

// unbind detaches the bound session.
func (c *Conn) unbind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = ""
}

// setTracker installs a fresh tracker handle and returns its channels. The
// caller must have stopped any previous tracker first.
func (c *Conn) setTracker() (stop chan struct{}, done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	return c.stop, c.done
}

// stopTracker cancels the running tracker, if any, and waits for it to
// exit. Every path that unbinds a session goes through here: stop, rebind,
// and disconnect. After it returns no further ticks can be issued, so two
// loops can never double-count the same connection's accumulators.
func (c *Conn) stopTracker() {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}
