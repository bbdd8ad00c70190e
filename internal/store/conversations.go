package store

import "time"

// ReplaceConversations overwrites the cached conversation list in one
// transaction. The cache mirrors the last successful authoritative refresh,
// so a wholesale replace is correct here.
func (db *DB) ReplaceConversations(convs []CachedConversation) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM conversations`); err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	for _, c := range convs {
		if _, err := tx.Exec(`
			INSERT INTO conversations (peer_id, display_name, avatar_url, last_preview, last_message_at, unread_count, peer_online, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.PeerID, c.DisplayName, c.AvatarURL, c.LastPreview, c.LastMessageAt, c.UnreadCount, c.PeerOnline, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListConversations returns the cached list sorted by last message timestamp
// descending, for warm starts before the first refresh lands.
func (db *DB) ListConversations() ([]CachedConversation, error) {
	rows, err := db.Query(`
		SELECT peer_id, display_name, avatar_url, last_preview, last_message_at, unread_count, peer_online
		FROM conversations
		ORDER BY last_message_at DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []CachedConversation
	for rows.Next() {
		var c CachedConversation
		if err := rows.Scan(&c.PeerID, &c.DisplayName, &c.AvatarURL, &c.LastPreview, &c.LastMessageAt, &c.UnreadCount, &c.PeerOnline); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}
