package user

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store using an in-memory map. It backs tests and
// single-process deployments without Postgres.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*User
}

// NewMemoryStore creates a new in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*User)}
}

// Put inserts or replaces a user. Used for seeding.
func (s *MemoryStore) Put(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *u
	s.users[u.ID] = &clone
}

// Get retrieves a user by ID.
func (s *MemoryStore) Get(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *u
	return &clone, nil
}

// ApplyScore adds score to the cumulative focus score (floor-clamped at
// zero) and increments the streak when completed is true.
func (s *MemoryStore) ApplyScore(_ context.Context, id string, score int, completed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}

	u.FocusScore += score
	if u.FocusScore < 0 {
		u.FocusScore = 0
	}
	if completed {
		u.Streak++
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// Close is a no-op for the in-memory store.
func (*MemoryStore) Close() error {
	return nil
}

// Verify interface compliance.
var _ Store = (*MemoryStore)(nil)
