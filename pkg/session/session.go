// Package session provides the study-session domain: the Session type, the
// Store interface for persistence, and the focus scorer shared by every
// finalize path.
package session

import (
	"context"
	"time"
)

// Status is the lifecycle state of a session.
type Status string

// Session lifecycle states. Completed and abandoned are terminal: no
// accumulator mutation is valid afterwards.
const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusCompleted, StatusAbandoned:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Session represents one bounded study attempt.
type Session struct {
	// ID is the unique session identifier.
	ID string `json:"id"`

	// UserID identifies the session owner. Every mutation is scoped by
	// (ID, UserID) so a forged session ID cannot touch foreign state.
	UserID string `json:"userId"`

	// ContentID optionally links the session to study content.
	ContentID string `json:"contentId,omitempty"`

	Subject string `json:"subject"`
	Notes   string `json:"notes,omitempty"`

	// TargetMinutes is the caller-supplied goal duration. Immutable after
	// creation, always >= 1.
	TargetMinutes int `json:"targetMinutes"`

	// Accumulators. Non-negative, monotonically non-decreasing while the
	// session is non-terminal; ActiveSeconds+IdleSeconds == ElapsedSeconds
	// at every persisted checkpoint.
	ElapsedSeconds int `json:"elapsedSeconds"`
	ActiveSeconds  int `json:"activeSeconds"`
	IdleSeconds    int `json:"idleSeconds"`
	TabSwitches    int `json:"tabSwitches"`

	Status Status `json:"status"`

	// FocusScore is set only on transition into a terminal state.
	FocusScore int `json:"focusScore"`

	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ListFilter narrows ListByUser results.
type ListFilter struct {
	// Status restricts results to one lifecycle state when non-empty.
	Status Status

	// Limit caps the number of returned sessions. Zero means no limit.
	Limit int
}

// Store defines the interface for session persistence.
type Store interface {
	// Create persists a new session.
	Create(ctx context.Context, sess *Session) error

	// Get retrieves a session by ID. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (*Session, error)

	// ListByUser returns the user's sessions, newest first.
	ListByUser(ctx context.Context, userID string, filter ListFilter) ([]*Session, error)

	// Update persists mutable metadata (subject, notes) and non-terminal
	// status changes for a session the user owns.
	Update(ctx context.Context, sess *Session) error

	// RecordTick advances the accumulators by one second: elapsed always,
	// and exactly one of active or idle depending on the idle flag. The
	// update is scoped by (id, userID) and skips terminal sessions; a
	// non-matching row is silently not updated.
	RecordTick(ctx context.Context, id, userID string, idle bool) error

	// IncrementTabSwitches atomically increments the tab-switch counter,
	// scoped by (id, userID) like RecordTick.
	IncrementTabSwitches(ctx context.Context, id, userID string) error

	// Finalize persists the terminal state, accumulators, end time, and
	// focus score. Returns ErrAlreadyFinalized when the stored session is
	// already terminal, so a finalize can never apply twice.
	Finalize(ctx context.Context, sess *Session) error

	// Delete removes a session the user owns.
	Delete(ctx context.Context, id, userID string) error

	// Close releases store resources.
	Close() error
}
