// Package user provides the user aggregate: the cumulative focus score and
// streak counter a finalized session feeds into. Account and credential
// management live elsewhere; this package only reads identities and applies
// per-session results.
package user

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the referenced user does not exist.
var ErrNotFound = errors.New("user not found")

// User holds the aggregate fields a finalized session updates.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`

	// FocusScore is the running sum of per-session scores. It never drops
	// below zero but is unbounded upward; this asymmetry is intentional
	// observed behavior.
	FocusScore int `json:"focusScore"`

	// Streak counts completed sessions. Abandoned sessions never
	// increment it.
	Streak int `json:"streak"`

	TotalFocusMinutes int `json:"totalFocusMinutes"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store defines the interface for user aggregate persistence.
type Store interface {
	// Get retrieves a user by ID. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, id string) (*User, error)

	// ApplyScore atomically adds score to the user's cumulative focus
	// score, floor-clamped at zero after the addition, and increments the
	// streak by exactly one when completed is true.
	ApplyScore(ctx context.Context, id string, score int, completed bool) error

	// Close releases store resources.
	Close() error
}
