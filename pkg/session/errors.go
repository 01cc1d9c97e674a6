package session

import "errors"

var (
	// ErrNotFound is returned when the referenced session does not exist.
	ErrNotFound = errors.New("session not found")

	// ErrNotOwner is returned when a session is referenced by a user other
	// than its owner.
	ErrNotOwner = errors.New("session not owned by caller")

	// ErrAlreadyFinalized is returned when a terminal session is finalized
	// a second time.
	ErrAlreadyFinalized = errors.New("session already finalized")

	// ErrInvalidStatus is returned for lifecycle transitions outside the
	// allowed state machine.
	ErrInvalidStatus = errors.New("invalid session status")

	// ErrInvalidTarget is returned when the target duration is not a
	// positive number of minutes.
	ErrInvalidTarget = errors.New("target minutes must be positive")
)
