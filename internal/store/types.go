package store

// SessionRecord is the persisted session: an opaque bearer token plus the
// serialized identity snapshot. Both are required for a session to be
// considered valid on startup, and both are cleared together on sign-out.
type SessionRecord struct {
	Token       string
	ProfileJSON string
	UpdatedAt   int64
}

// CachedConversation is a warm-start snapshot row of the conversation list.
type CachedConversation struct {
	PeerID        int64
	DisplayName   string
	AvatarURL     string
	LastPreview   string
	LastMessageAt int64
	UnreadCount   int
	PeerOnline    bool
}
