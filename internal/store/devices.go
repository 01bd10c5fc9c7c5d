package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DeviceID returns the device ID last issued to userID by homeserver, or ""
// when none is recorded.
func (s *Store) DeviceID(homeserver, userID string) (string, error) {
	var id string
	err := s.db.QueryRow(`
		SELECT device_id FROM devices WHERE homeserver = ? AND user_id = ?
	`, homeserver, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query device: %w", err)
	}
	return id, nil
}

// SaveDevice records deviceID for userID on homeserver, replacing any
// previous one.
func (s *Store) SaveDevice(homeserver, userID, deviceID string) error {
	_, err := s.db.Exec(`
		INSERT INTO devices (homeserver, user_id, device_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (homeserver, user_id) DO UPDATE SET
			device_id = excluded.device_id,
			updated_at = excluded.updated_at
	`, homeserver, userID, deviceID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert device: %w", err)
	}
	return nil
}

// ForgetDevice removes the recorded device for userID on homeserver.
func (s *Store) ForgetDevice(homeserver, userID string) error {
	_, err := s.db.Exec(`DELETE FROM devices WHERE homeserver = ? AND user_id = ?`, homeserver, userID)
	if err != nil {
		return fmt.Errorf("delete device: %w", err)
	}
	return nil
}
