package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/focusup/focusd/pkg/user"
)

const defaultSubject = "General"

// Service owns session lifecycle rules: creation, owner-scoped access, and
// the single finalize path shared by the live websocket protocol and the
// out-of-band HTTP entry point.
type Service struct {
	sessions Store
	users    user.Store
	logger   *slog.Logger
}

// NewService creates a Service over the given stores.
func NewService(sessions Store, users user.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		sessions: sessions,
		users:    users,
		logger:   logger,
	}
}

// CreateParams holds caller-supplied fields for a new session.
type CreateParams struct {
	ContentID     string
	Subject       string
	TargetMinutes int
}

// Create starts a new session owned by userID.
func (s *Service) Create(ctx context.Context, userID string, p CreateParams) (*Session, error) {
	if p.TargetMinutes < 1 {
		return nil, ErrInvalidTarget
	}

	subject := p.Subject
	if subject == "" {
		subject = defaultSubject
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:            uuid.NewString(),
		UserID:        userID,
		ContentID:     p.ContentID,
		Subject:       subject,
		TargetMinutes: p.TargetMinutes,
		Status:        StatusActive,
		StartTime:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return sess, nil
}

// Get retrieves a session, enforcing ownership.
func (s *Service) Get(ctx context.Context, id, userID string) (*Session, error) {
	sess, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.UserID != userID {
		return nil, ErrNotOwner
	}
	return sess, nil
}

// List returns the user's sessions, newest first.
func (s *Service) List(ctx context.Context, userID string, filter ListFilter) ([]*Session, error) {
	return s.sessions.ListByUser(ctx, userID, filter)
}

// UpdateParams holds optional updates; nil fields are left unchanged.
type UpdateParams struct {
	Subject *string
	Notes   *string

	// Status may only move between active and paused. Terminal transitions
	// go through Finalize.
	Status *Status
}

// Update applies metadata changes and pause/resume transitions.
func (s *Service) Update(ctx context.Context, id, userID string, p UpdateParams) (*Session, error) {
	sess, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return nil, ErrAlreadyFinalized
	}

	if p.Subject != nil {
		sess.Subject = *p.Subject
	}
	if p.Notes != nil {
		sess.Notes = *p.Notes
	}
	if p.Status != nil {
		if *p.Status != StatusActive && *p.Status != StatusPaused {
			return nil, ErrInvalidStatus
		}
		sess.Status = *p.Status
	}

	if err := s.sessions.Update(ctx, sess); err != nil {
		return nil, fmt.Errorf("updating session: %w", err)
	}
	return sess, nil
}

// Delete removes a session the user owns.
func (s *Service) Delete(ctx context.Context, id, userID string) error {
	return s.sessions.Delete(ctx, id, userID)
}

// ValidateStart checks that a session exists and is owned by userID before
// a connection binds to it.
func (s *Service) ValidateStart(ctx context.Context, id, userID string) (*Session, error) {
	return s.Get(ctx, id, userID)
}

// Overrides carries out-of-band accumulator values merged onto the stored
// session before scoring. Nil fields keep the stored value; zero is a
// meaningful override.
type Overrides struct {
	ElapsedSeconds *int
	ActiveSeconds  *int
	IdleSeconds    *int
	TabSwitches    *int
}

// Finalize moves a session into a terminal state, computes its focus score,
// persists both, and applies the score to the owner's aggregates exactly
// once. An empty status defaults to completed. Finalizing an already
// terminal session returns ErrAlreadyFinalized without touching aggregates.
func (s *Service) Finalize(ctx context.Context, id, userID string, status Status, ov Overrides) (*Session, error) {
	if status == "" {
		status = StatusCompleted
	}
	if !status.Terminal() {
		return nil, ErrInvalidStatus
	}

	sess, err := s.Get(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return nil, ErrAlreadyFinalized
	}

	if ov.ElapsedSeconds != nil {
		sess.ElapsedSeconds = *ov.ElapsedSeconds
	}
	if ov.ActiveSeconds != nil {
		sess.ActiveSeconds = *ov.ActiveSeconds
	}
	if ov.IdleSeconds != nil {
		sess.IdleSeconds = *ov.IdleSeconds
	}
	if ov.TabSwitches != nil {
		sess.TabSwitches = *ov.TabSwitches
	}

	now := time.Now().UTC()
	sess.Status = status
	sess.EndTime = &now
	sess.FocusScore = ScoreSession(sess)

	// Store.Finalize is the idempotence gate: it refuses a second terminal
	// write, so the aggregate update below can never double-apply even if
	// two finalize paths race.
	if err := s.sessions.Finalize(ctx, sess); err != nil {
		return nil, err
	}

	if err := s.users.ApplyScore(ctx, userID, sess.FocusScore, status == StatusCompleted); err != nil {
		return nil, fmt.Errorf("applying score to user %s: %w", userID, err)
	}

	s.logger.Info("session finalized",
		"session_id", sess.ID,
		"user_id", userID,
		"status", string(status),
		"focus_score", sess.FocusScore,
	)
	return sess, nil
}
