package store

import (
	"database/sql"
	"time"
)

// SaveSession persists the bearer token and identity snapshot as one row.
func (db *DB) SaveSession(token, profileJSON string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO session (id, token, profile_json, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			profile_json = excluded.profile_json,
			updated_at = excluded.updated_at`,
		token, profileJSON, now)
	return err
}

// LoadSession returns the persisted session, or nil when none exists.
// A row with an empty token or snapshot is treated as absent.
func (db *DB) LoadSession() (*SessionRecord, error) {
	var rec SessionRecord
	err := db.QueryRow(`SELECT token, profile_json, updated_at FROM session WHERE id = 1`).
		Scan(&rec.Token, &rec.ProfileJSON, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.Token == "" || rec.ProfileJSON == "" {
		return nil, nil
	}
	return &rec, nil
}

// ClearSession removes the persisted session and the cached conversation
// list. Token and snapshot always leave together.
func (db *DB) ClearSession() error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM session`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM conversations`); err != nil {
		return err
	}
	return tx.Commit()
}
