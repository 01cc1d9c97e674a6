package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/focusup/focusd/pkg/auth"
	"github.com/focusup/focusd/pkg/session"
)

// Default tracking parameters.
const (
	DefaultTickInterval  = time.Second
	DefaultIdleThreshold = 15 * time.Second
)

// Application close codes, in the 4000-4999 private range. The code
// distinguishes a missing credential from a bad one.
const (
	closeCodeMissingToken = 4401
	closeCodeInvalidToken = 4403
)

const closeWriteTimeout = 5 * time.Second

// Config configures the websocket Handler.
type Config struct {
	Store    session.Store
	Service  *session.Service
	Verifier *auth.Verifier
	Hub      *Hub
	Logger   *slog.Logger

	// TickInterval is the accumulator advancement period. Defaults to 1s.
	TickInterval time.Duration

	// IdleThreshold is the inactivity window after which a tick counts as
	// idle rather than active. Defaults to 15s.
	IdleThreshold time.Duration

	// CheckOrigin overrides the upgrader's origin check. Nil allows any
	// origin, matching a token-authenticated API.
	CheckOrigin func(r *http.Request) bool
}

// Handler serves the live session-tracking protocol at the websocket
// endpoint. Each connection authenticates once at open time via a signed
// token in the query string, then exchanges JSON frames until it closes.
type Handler struct {
	store         session.Store
	service       *session.Service
	verifier      *auth.Verifier
	hub           *Hub
	logger        *slog.Logger
	tickInterval  time.Duration
	idleThreshold time.Duration
	upgrader      websocket.Upgrader
}

// NewHandler creates a websocket handler from cfg.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	tickInterval := cfg.TickInterval
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}
	idleThreshold := cfg.IdleThreshold
	if idleThreshold <= 0 {
		idleThreshold = DefaultIdleThreshold
	}

	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	return &Handler{
		store:         cfg.Store,
		service:       cfg.Service,
		verifier:      cfg.Verifier,
		hub:           cfg.Hub,
		logger:        logger,
		tickInterval:  tickInterval,
		idleThreshold: idleThreshold,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// ServeHTTP upgrades the connection, authenticates it, and runs the read
// loop until the client disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	userID, err := h.verifier.Verify(r.URL.Query().Get("token"))
	if err != nil {
		h.reject(ws, err)
		return
	}

	c := newConn(uuid.NewString(), userID, ws)
	if !h.hub.Register(c) {
		_ = ws.Close()
		return
	}
	defer func() {
		c.stopTracker()
		h.hub.Unregister(c.id)
		_ = ws.Close()
	}()

	if err := c.send(newConnected(c.id)); err != nil {
		return
	}

	h.logger.Info("connection opened", "connection_id", c.id, "user_id", userID)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("connection read failed", "connection_id", c.id, "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Malformed frames are dropped: connection stability beats
			// malformed-hint visibility.
			continue
		}

		h.handleMessage(r.Context(), c, msg)
	}
}

// reject closes a freshly upgraded connection with a protocol-level close
// code distinguishing a missing credential from an invalid or expired one.
func (h *Handler) reject(ws *websocket.Conn, err error) {
	code, reason := closeCodeInvalidToken, "invalid or expired token"
	if errors.Is(err, auth.ErrMissingToken) {
		code, reason = closeCodeMissingToken, "missing token"
	}

	deadline := time.Now().Add(closeWriteTimeout)
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = ws.Close()
}

func (h *Handler) handleMessage(ctx context.Context, c *Conn, msg clientMessage) {
	switch msg.Type {
	case msgTypeStart:
		h.handleStart(ctx, c, msg.SessionID)
	case msgTypeActivity:
		c.markActivity()
	case msgTypeTabSwitch:
		h.handleTabSwitch(ctx, c)
	case msgTypeStop:
		h.handleStop(ctx, c, session.Status(msg.Status))
	default:
		// Unknown types are hints we do not understand. Ignore.
	}
}

func (h *Handler) handleStart(ctx context.Context, c *Conn, sessionID string) {
	if sessionID == "" {
		return
	}

	// Not-found and not-owned get the same in-band error so session
	// existence never leaks across users.
	if _, err := h.service.ValidateStart(ctx, sessionID, c.userID); err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrNotOwner) {
			_ = c.send(newError("Invalid session"))
			return
		}
		h.logger.Error("start validation failed", "connection_id", c.id, "session_id", sessionID, "error", err)
		_ = c.send(newError("Invalid session"))
		return
	}

	c.stopTracker()
	c.bind(sessionID)
	h.startTracker(ctx, c, sessionID)

	_ = c.send(newStarted(sessionID))
}

func (h *Handler) handleTabSwitch(ctx context.Context, c *Conn) {
	sessionID := c.SessionID()
	if sessionID == "" {
		return
	}

	if err := h.store.IncrementTabSwitches(ctx, sessionID, c.userID); err != nil {
		// Transient storage failure: contained to this operation.
		h.logger.Warn("tab switch persist failed", "connection_id", c.id, "session_id", sessionID, "error", err)
		return
	}

	_ = c.send(newTabSwitchAck())
}

func (h *Handler) handleStop(ctx context.Context, c *Conn, status session.Status) {
	sessionID := c.SessionID()
	if sessionID == "" {
		return
	}

	// The tracker stops before the terminal write so no tick can land
	// between scoring and persisting.
	c.stopTracker()

	sess, err := h.service.Finalize(ctx, sessionID, c.userID, status, session.Overrides{})
	if err != nil {
		h.logger.Warn("finalize failed", "connection_id", c.id, "session_id", sessionID, "error", err)
	} else {
		_ = c.send(newStopped(sessionID, sess.FocusScore))
	}

	c.unbind()
}

// startTracker launches the recurring tick loop for the bound session.
// Exactly one loop runs per connection; callers stop the previous one
// before binding a new session.
func (h *Handler) startTracker(ctx context.Context, c *Conn, sessionID string) {
	stop, done := c.setTracker()

	go func() {
		defer close(done)

		ticker := time.NewTicker(h.tickInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				idle := c.idleFor(h.idleThreshold)
				if err := h.store.RecordTick(ctx, sessionID, c.userID, idle); err != nil {
					// Swallowed: the store's last successful write stays
					// authoritative and the next tick retries naturally.
					h.logger.Warn("tick persist failed", "connection_id", c.id, "session_id", sessionID, "error", err)
				}
				_ = c.send(newTick(idle))
			}
		}
	}()
}
