package state

import (
	"sync"
	"time"
)

// PlaceholderPreview is shown for a conversation synthesized locally when
// the user navigates to a peer with no prior history.
const PlaceholderPreview = "Start a conversation"

// Conversation is one entry of the sidebar list, keyed by peer id.
type Conversation struct {
	PeerID        int64
	DisplayName   string
	AvatarURL     string
	LastPreview   string
	TimeLabel     string
	LastMessageAt time.Time
	UnreadCount   int
	PeerOnline    bool

	// Synthesized marks a locally created placeholder the backend has not
	// reported yet. A list refresh preserves it while it is active.
	Synthesized bool
}

// ConversationList is the local view of all conversations. The list
// synchronizer bulk-replaces it; the send pipeline point-updates single
// entries. A point update losing a race against a bulk replace is accepted
// and self-heals on the next refresh cycle.
type ConversationList struct {
	mu    sync.Mutex
	convs []Conversation
}

// NewConversationList creates an empty list.
func NewConversationList() *ConversationList {
	return &ConversationList{}
}

// ReplaceAll swaps the full list for the authoritative result. If the
// currently active conversation (activePeer) is a synthesized placeholder
// absent from the result, it is kept at the front until the backend first
// reports it.
func (l *ConversationList) ReplaceAll(convs []Conversation, activePeer int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if activePeer != 0 {
		if cur, ok := l.find(activePeer); ok && cur.Synthesized && !contains(convs, activePeer) {
			convs = append([]Conversation{cur}, convs...)
		}
	}
	l.convs = convs
}

// Clear empties the list (non-silent refresh failure shows an explicit
// empty state).
func (l *ConversationList) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.convs = nil
}

// Synthesize creates a placeholder conversation for a peer with no history
// and prepends it. If the peer already has a conversation, that one is
// returned unchanged.
func (l *ConversationList) Synthesize(peerID int64, displayName, avatarURL string, online bool) Conversation {
	l.mu.Lock()
	defer l.mu.Unlock()

	if c, ok := l.find(peerID); ok {
		return c
	}
	c := Conversation{
		PeerID:      peerID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		LastPreview: PlaceholderPreview,
		TimeLabel:   "Now",
		PeerOnline:  online,
		Synthesized: true,
	}
	l.convs = append([]Conversation{c}, l.convs...)
	return c
}

// SetPreview point-updates one conversation's preview after an optimistic
// send.
func (l *ConversationList) SetPreview(peerID int64, preview, timeLabel string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.convs {
		if l.convs[i].PeerID == peerID {
			l.convs[i].LastPreview = preview
			l.convs[i].TimeLabel = timeLabel
			return
		}
	}
}

// ZeroUnread optimistically clears a conversation's unread count, ahead of
// the next list refresh.
func (l *ConversationList) ZeroUnread(peerID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.convs {
		if l.convs[i].PeerID == peerID {
			l.convs[i].UnreadCount = 0
			return
		}
	}
}

// Get returns the conversation for peerID.
func (l *ConversationList) Get(peerID int64) (Conversation, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.find(peerID)
}

// Snapshot returns a copy of the current list.
func (l *ConversationList) Snapshot() []Conversation {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Conversation, len(l.convs))
	copy(out, l.convs)
	return out
}

func (l *ConversationList) find(peerID int64) (Conversation, bool) {
	for _, c := range l.convs {
		if c.PeerID == peerID {
			return c, true
		}
	}
	return Conversation{}, false
}

func contains(convs []Conversation, peerID int64) bool {
	for _, c := range convs {
		if c.PeerID == peerID {
			return true
		}
	}
	return false
}
