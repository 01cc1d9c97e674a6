// Package postgres provides PostgreSQL storage for user aggregates.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/focusup/focusd/pkg/user"
)

// Store implements user.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL user store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get retrieves a user by ID.
func (s *Store) Get(ctx context.Context, id string) (*user.User, error) {
	query := `
		SELECT id, email, name, focus_score, streak, total_focus_minutes, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var u user.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.FocusScore,
		&u.Streak,
		&u.TotalFocusMinutes,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting user: %w", err)
	}
	return &u, nil
}

// ApplyScore adds score to the cumulative focus score, floor-clamped at
// zero by GREATEST, and increments the streak when completed is true. One
// statement, so a finalize applies atomically.
func (s *Store) ApplyScore(ctx context.Context, id string, score int, completed bool) error {
	streakInc := 0
	if completed {
		streakInc = 1
	}

	query := `
		UPDATE users
		SET focus_score = GREATEST(focus_score + $2, 0),
		    streak = streak + $3,
		    updated_at = NOW()
		WHERE id = $1
	`
	res, err := s.db.ExecContext(ctx, query, id, score, streakInc)
	if err != nil {
		return fmt.Errorf("applying score: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.ErrNotFound
	}
	return nil
}

// Close is a no-op: the store does not own the *sql.DB.
func (*Store) Close() error {
	return nil
}

// Verify interface compliance.
var _ user.Store = (*Store)(nil)
