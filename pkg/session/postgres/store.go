// Package postgres provides PostgreSQL storage for study sessions.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/focusup/focusd/pkg/session"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// sessionColumns lists columns returned by session SELECT queries.
var sessionColumns = []string{
	"id", "user_id", "content_id", "subject", "notes", "target_minutes",
	"elapsed_seconds", "active_seconds", "idle_seconds", "tab_switches",
	"status", "focus_score", "start_time", "end_time", "created_at", "updated_at",
}

// Store implements session.Store using PostgreSQL.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL session store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create persists a new session.
func (s *Store) Create(ctx context.Context, sess *session.Session) error {
	query := `
		INSERT INTO sessions
		(id, user_id, content_id, subject, notes, target_minutes, elapsed_seconds, active_seconds, idle_seconds, tab_switches, status, focus_score, start_time, end_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := s.db.ExecContext(ctx, query,
		sess.ID,
		sess.UserID,
		nullString(sess.ContentID),
		sess.Subject,
		sess.Notes,
		sess.TargetMinutes,
		sess.ElapsedSeconds,
		sess.ActiveSeconds,
		sess.IdleSeconds,
		sess.TabSwitches,
		string(sess.Status),
		sess.FocusScore,
		sess.StartTime,
		nullTime(sess.EndTime),
		sess.CreatedAt,
		sess.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID.
func (s *Store) Get(ctx context.Context, id string) (*session.Session, error) {
	query := `
		SELECT id, user_id, content_id, subject, notes, target_minutes, elapsed_seconds, active_seconds, idle_seconds, tab_switches, status, focus_score, start_time, end_time, created_at, updated_at
		FROM sessions
		WHERE id = $1
	`
	row := s.db.QueryRowContext(ctx, query, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting session: %w", err)
	}
	return sess, nil
}

// ListByUser returns the user's sessions, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string, filter session.ListFilter) ([]*session.Session, error) {
	qb := psq.Select(sessionColumns...).
		From("sessions").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC")

	if filter.Status != "" {
		qb = qb.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.Limit > 0 {
		qb = qb.Limit(uint64(filter.Limit))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building session query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sessions []*session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session rows: %w", err)
	}
	return sessions, nil
}

// Update persists mutable metadata and non-terminal status changes.
func (s *Store) Update(ctx context.Context, sess *session.Session) error {
	query := `
		UPDATE sessions
		SET subject = $3, notes = $4, status = $5, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status NOT IN ('completed', 'abandoned')
	`
	res, err := s.db.ExecContext(ctx, query,
		sess.ID, sess.UserID, sess.Subject, sess.Notes, string(sess.Status),
	)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return session.ErrNotFound
	}
	return nil
}

// RecordTick advances the accumulators by one second in a single guarded
// statement: the increments apply only when the row matches both the
// session ID and the owner and is not terminal, so a forged session ID or a
// stale tick against a finished session is a no-op. Exactly one of
// active_seconds and idle_seconds advances, keeping
// active + idle == elapsed at every checkpoint.
func (s *Store) RecordTick(ctx context.Context, id, userID string, idle bool) error {
	activeInc, idleInc := 1, 0
	if idle {
		activeInc, idleInc = 0, 1
	}

	query := `
		UPDATE sessions
		SET elapsed_seconds = elapsed_seconds + 1,
		    active_seconds = active_seconds + $3,
		    idle_seconds = idle_seconds + $4,
		    status = 'active',
		    updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status NOT IN ('completed', 'abandoned')
	`
	if _, err := s.db.ExecContext(ctx, query, id, userID, activeInc, idleInc); err != nil {
		return fmt.Errorf("recording tick: %w", err)
	}
	return nil
}

// IncrementTabSwitches atomically increments the tab-switch counter.
func (s *Store) IncrementTabSwitches(ctx context.Context, id, userID string) error {
	query := `
		UPDATE sessions
		SET tab_switches = tab_switches + 1, updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status NOT IN ('completed', 'abandoned')
	`
	if _, err := s.db.ExecContext(ctx, query, id, userID); err != nil {
		return fmt.Errorf("incrementing tab switches: %w", err)
	}
	return nil
}

// Finalize persists the terminal state. The status guard makes it the
// idempotence gate: a second finalize matches zero rows and returns
// ErrAlreadyFinalized.
func (s *Store) Finalize(ctx context.Context, sess *session.Session) error {
	query := `
		UPDATE sessions
		SET status = $3,
		    elapsed_seconds = $4,
		    active_seconds = $5,
		    idle_seconds = $6,
		    tab_switches = $7,
		    focus_score = $8,
		    end_time = $9,
		    updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status NOT IN ('completed', 'abandoned')
	`
	res, err := s.db.ExecContext(ctx, query,
		sess.ID,
		sess.UserID,
		string(sess.Status),
		sess.ElapsedSeconds,
		sess.ActiveSeconds,
		sess.IdleSeconds,
		sess.TabSwitches,
		sess.FocusScore,
		nullTime(sess.EndTime),
	)
	if err != nil {
		return fmt.Errorf("finalizing session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return session.ErrAlreadyFinalized
	}
	return nil
}

// Delete removes a session the user owns.
func (s *Store) Delete(ctx context.Context, id, userID string) error {
	query := `DELETE FROM sessions WHERE id = $1 AND user_id = $2`
	res, err := s.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return session.ErrNotFound
	}
	return nil
}

// Close is a no-op: the store does not own the *sql.DB.
func (*Store) Close() error {
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*session.Session, error) {
	var (
		sess      session.Session
		contentID sql.NullString
		status    string
		endTime   sql.NullTime
	)
	err := row.Scan(
		&sess.ID,
		&sess.UserID,
		&contentID,
		&sess.Subject,
		&sess.Notes,
		&sess.TargetMinutes,
		&sess.ElapsedSeconds,
		&sess.ActiveSeconds,
		&sess.IdleSeconds,
		&sess.TabSwitches,
		&status,
		&sess.FocusScore,
		&sess.StartTime,
		&endTime,
		&sess.CreatedAt,
		&sess.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	sess.ContentID = contentID.String
	sess.Status = session.Status(status)
	if endTime.Valid {
		t := endTime.Time
		sess.EndTime = &t
	}
	return &sess, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Verify interface compliance.
var _ session.Store = (*Store)(nil)
