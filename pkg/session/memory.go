package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store using an in-memory map. It backs tests and
// single-process deployments without Postgres. All reads return copies so
// callers never share mutable state with the store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// Create persists a new session.
func (s *MemoryStore) Create(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *sess
	s.sessions[sess.ID] = &clone
	return nil
}

// Get retrieves a session by ID.
func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *sess
	return &clone, nil
}

// ListByUser returns the user's sessions, newest first.
func (s *MemoryStore) ListByUser(_ context.Context, userID string, filter ListFilter) ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if sess.UserID != userID {
			continue
		}
		if filter.Status != "" && sess.Status != filter.Status {
			continue
		}
		clone := *sess
		result = append(result, &clone)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Update persists mutable metadata and non-terminal status changes.
func (s *MemoryStore) Update(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[sess.ID]
	if !ok || stored.UserID != sess.UserID {
		return ErrNotFound
	}

	stored.Subject = sess.Subject
	stored.Notes = sess.Notes
	stored.Status = sess.Status
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

// RecordTick advances the accumulators by one second. Mirrors the guarded
// SQL update: a session that does not exist, is not owned by userID, or is
// already terminal is silently not updated.
func (s *MemoryStore) RecordTick(_ context.Context, id, userID string, idle bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.UserID != userID || sess.Status.Terminal() {
		return nil
	}

	sess.ElapsedSeconds++
	if idle {
		sess.IdleSeconds++
	} else {
		sess.ActiveSeconds++
	}
	sess.Status = StatusActive
	sess.UpdatedAt = time.Now().UTC()
	return nil
}

// IncrementTabSwitches atomically increments the tab-switch counter.
func (s *MemoryStore) IncrementTabSwitches(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.UserID != userID || sess.Status.Terminal() {
		return nil
	}

	sess.TabSwitches++
	sess.UpdatedAt = time.Now().UTC()
	return nil
}

// Finalize persists the terminal state. Returns ErrAlreadyFinalized if the
// stored session is already terminal.
func (s *MemoryStore) Finalize(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.sessions[sess.ID]
	if !ok || stored.UserID != sess.UserID {
		return ErrNotFound
	}
	if stored.Status.Terminal() {
		return ErrAlreadyFinalized
	}

	stored.Status = sess.Status
	stored.ElapsedSeconds = sess.ElapsedSeconds
	stored.ActiveSeconds = sess.ActiveSeconds
	stored.IdleSeconds = sess.IdleSeconds
	stored.TabSwitches = sess.TabSwitches
	stored.FocusScore = sess.FocusScore
	stored.EndTime = sess.EndTime
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete removes a session the user owns.
func (s *MemoryStore) Delete(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || sess.UserID != userID {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Close is a no-op for the in-memory store.
func (*MemoryStore) Close() error {
	return nil
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
