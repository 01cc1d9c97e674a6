package realtime

// Inbound message types. Anything else is ignored: client messages are
// best-effort hints, not protocol-violating traffic.
const (
	msgTypeStart     = "start"
	msgTypeActivity  = "activity"
	msgTypeTabSwitch = "tabSwitch"
	msgTypeStop      = "stop"
)

// clientMessage is the envelope for every inbound frame.
type clientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Status    string `json:"status,omitempty"`
}

// connectedMessage is sent once after a successful handshake.
type connectedMessage struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connectionId"`
}

// startedMessage acknowledges a successful session bind.
type startedMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
}

// tickMessage is sent once per tick while a session is bound.
type tickMessage struct {
	Type string `json:"type"`
	Idle bool   `json:"idle"`
}

// tabSwitchAckMessage acknowledges a recorded tab switch.
type tabSwitchAckMessage struct {
	Type string `json:"type"`
}

// stoppedMessage acknowledges a finalize and carries the computed score.
type stoppedMessage struct {
	Type       string `json:"type"`
	SessionID  string `json:"sessionId"`
	FocusScore int    `json:"focusScore"`
}

// errorMessage reports a rejected operation in-band without closing the
// connection.
type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newConnected(connectionID string) connectedMessage {
	return connectedMessage{Type: "connected", ConnectionID: connectionID}
}

func newStarted(sessionID string) startedMessage {
	return startedMessage{Type: "started", SessionID: sessionID}
}

func newTick(idle bool) tickMessage {
	return tickMessage{Type: "tick", Idle: idle}
}

func newTabSwitchAck() tabSwitchAckMessage {
	return tabSwitchAckMessage{Type: "tabSwitchAck"}
}

func newStopped(sessionID string, focusScore int) stoppedMessage {
	return stoppedMessage{Type: "stopped", SessionID: sessionID, FocusScore: focusScore}
}

func newError(message string) errorMessage {
	return errorMessage{Type: "error", Message: message}
}
