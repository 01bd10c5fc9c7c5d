package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Session is one successful login.
type Session struct {
	ID          int64
	Backend     string
	Server      string
	Username    string
	UserID      string
	LoggedInAt  time.Time
	LoggedOutAt time.Time
}

// RecordLogin stores a successful login and returns its session.
func (s *Store) RecordLogin(backend, server, username, userID string) (*Session, error) {
	now := time.Now().UTC()

	res, err := s.db.Exec(`
		INSERT INTO sessions (backend, server, username, user_id, logged_in_at)
		VALUES (?, ?, ?, ?, ?)
	`, backend, server, username, userID, now)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}

	return &Session{
		ID:         id,
		Backend:    backend,
		Server:     server,
		Username:   username,
		UserID:     userID,
		LoggedInAt: now,
	}, nil
}

// RecordLogout closes session id.
func (s *Store) RecordLogout(id int64) error {
	res, err := s.db.Exec(`
		UPDATE sessions SET logged_out_at = ? WHERE id = ? AND logged_out_at IS NULL
	`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %d not found or already closed", id)
	}
	return nil
}

// LastSession returns the newest session for backend, or nil when there is
// none.
func (s *Store) LastSession(backend string) (*Session, error) {
	var sess Session
	var loggedOut sql.NullTime

	err := s.db.QueryRow(`
		SELECT id, backend, server, username, user_id, logged_in_at, logged_out_at
		FROM sessions WHERE backend = ?
		ORDER BY id DESC LIMIT 1
	`, backend).Scan(&sess.ID, &sess.Backend, &sess.Server, &sess.Username, &sess.UserID, &sess.LoggedInAt, &loggedOut)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last session: %w", err)
	}

	if loggedOut.Valid {
		sess.LoggedOutAt = loggedOut.Time
	}
	return &sess, nil
}
