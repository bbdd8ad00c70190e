package backend

import "time"

// User is the backend's user record, returned by auth and profile endpoints
// and embedded in friendship and conversation payloads.
type User struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email,omitempty"`
	Username    string    `json:"username"`
	FullName    string    `json:"fullName,omitempty"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	AvatarURL   string    `json:"avatarUrl,omitempty"`
	Status      string    `json:"status,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	IsOnline    bool      `json:"isOnline"`
	LastSeen    time.Time `json:"lastSeen,omitempty"`
}

// AuthResponse is returned by /auth/login and /auth/register.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Message is a backend message record. IDs are backend-assigned and
// monotonically increasing.
type Message struct {
	ID          int64     `json:"id"`
	SenderID    int64     `json:"senderId"`
	ReceiverID  int64     `json:"receiverId"`
	Content     string    `json:"content"`
	MessageType string    `json:"messageType"`
	IsRead      bool      `json:"isRead"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ConversationSummary is one entry of GET /messages/conversations.
type ConversationSummary struct {
	Friend      User     `json:"friend"`
	LastMessage *Message `json:"lastMessage"`
	UnreadCount int      `json:"unreadCount"`
}

// Friendship is one entry of GET /friendships/friends or /friendships/pending.
type Friendship struct {
	ID          int64     `json:"id"`
	Friend      User      `json:"friend"`
	Status      string    `json:"status"`
	IsRequester bool      `json:"isRequester"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SearchResult is one entry of GET /friendships/search.
type SearchResult struct {
	ID               int64  `json:"id"`
	Username         string `json:"username"`
	FullName         string `json:"fullName,omitempty"`
	AvatarURL        string `json:"avatarUrl,omitempty"`
	IsOnline         bool   `json:"isOnline"`
	FriendshipStatus string `json:"friendshipStatus,omitempty"`
	IsFriend         bool   `json:"isFriend"`
}

// ProfileUpdate is the PUT /users/profile request body. Nil fields are
// omitted so the backend keeps their current values.
type ProfileUpdate struct {
	FullName    *string `json:"fullName,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
	AvatarURL   *string `json:"avatarUrl,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	Status      *string `json:"status,omitempty"`
}
