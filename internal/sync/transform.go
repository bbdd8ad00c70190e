package sync

import (
	"fmt"
	"net/url"
	"time"

	"github.com/matheus3301/chatflow/internal/backend"
	"github.com/matheus3301/chatflow/internal/state"
)

// displayName prefers the profile full name and falls back to the
// account username when no full name was ever set.
func displayName(fullName, username string) string {
	if fullName != "" {
		return fullName
	}
	return username
}

// avatarURL falls back to a generated initials avatar when the profile
// carries no picture.
func avatarURL(stored, name string) string {
	if stored != "" {
		return stored
	}
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=random"
}

// relativeLabel renders a message timestamp the way the conversation
// list shows it: coarse relative buckets up to a week, then the date.
func relativeLabel(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}

func toConversation(s backend.ConversationSummary, now time.Time) state.Conversation {
	name := displayName(s.Friend.FullName, s.Friend.Username)
	c := state.Conversation{
		PeerID:      s.Friend.ID,
		DisplayName: name,
		AvatarURL:   avatarURL(s.Friend.AvatarURL, name),
		UnreadCount: s.UnreadCount,
		PeerOnline:  s.Friend.IsOnline,
	}
	if s.LastMessage != nil {
		c.LastPreview = s.LastMessage.Content
		c.LastMessageAt = s.LastMessage.CreatedAt
		c.TimeLabel = relativeLabel(s.LastMessage.CreatedAt, now)
	} else {
		c.LastPreview = state.PlaceholderPreview
	}
	return c
}

// Friend is a row of the contacts surface, decoupled from the wire shape.
type Friend struct {
	ID          int64
	Username    string
	DisplayName string
	AvatarURL   string
	Online      bool
}

func toFriend(u backend.User) Friend {
	name := displayName(u.FullName, u.Username)
	return Friend{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: name,
		AvatarURL:   avatarURL(u.AvatarURL, name),
		Online:      u.IsOnline,
	}
}

// toMessage maps a backend message into the thread model. The backend
// only distinguishes read from not-read, so unread messages in either
// direction land on DeliveryDelivered.
func toMessage(m backend.Message, selfID int64) state.Message {
	delivery := state.DeliveryDelivered
	if m.IsRead {
		delivery = state.DeliveryRead
	}
	kind := state.KindText
	if m.MessageType == "IMAGE" {
		kind = state.KindImage
	}
	peer := m.SenderID
	if m.SenderID == selfID {
		peer = m.ReceiverID
	}
	return state.Message{
		ID:         state.PermanentID(m.ID),
		PeerID:     peer,
		Body:       m.Content,
		Kind:       kind,
		Delivery:   delivery,
		AuthoredAt: m.CreatedAt,
		FromSelf:   m.SenderID == selfID,
	}
}
