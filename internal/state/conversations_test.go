package state

import (
	"testing"
	"time"
)

func TestReplaceAllSwapsList(t *testing.T) {
	l := NewConversationList()
	l.ReplaceAll([]Conversation{{PeerID: 1, DisplayName: "Bob"}}, 0)
	l.ReplaceAll([]Conversation{{PeerID: 2, DisplayName: "Carol"}}, 0)

	convs := l.Snapshot()
	if len(convs) != 1 || convs[0].PeerID != 2 {
		t.Errorf("list = %+v, want only peer 2", convs)
	}
}

func TestReplaceAllPreservesActivePlaceholder(t *testing.T) {
	l := NewConversationList()
	l.Synthesize(5, "Dave", "", false)

	// Backend does not know about peer 5 yet.
	l.ReplaceAll([]Conversation{{PeerID: 1, DisplayName: "Bob"}}, 5)

	convs := l.Snapshot()
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want placeholder + backend entry", len(convs))
	}
	if convs[0].PeerID != 5 || !convs[0].Synthesized {
		t.Errorf("placeholder not preserved at front: %+v", convs[0])
	}
}

func TestReplaceAllDropsInactivePlaceholder(t *testing.T) {
	l := NewConversationList()
	l.Synthesize(5, "Dave", "", false)

	// Peer 5 is no longer the active conversation.
	l.ReplaceAll([]Conversation{{PeerID: 1, DisplayName: "Bob"}}, 1)

	convs := l.Snapshot()
	if len(convs) != 1 || convs[0].PeerID != 1 {
		t.Errorf("inactive placeholder survived: %+v", convs)
	}
}

func TestReplaceAllBackendSupersedesPlaceholder(t *testing.T) {
	l := NewConversationList()
	l.Synthesize(5, "Dave", "", false)

	l.ReplaceAll([]Conversation{{PeerID: 5, DisplayName: "Dave", LastPreview: "first!", UnreadCount: 1}}, 5)

	convs := l.Snapshot()
	if len(convs) != 1 {
		t.Fatalf("got %d conversations, want backend entry only", len(convs))
	}
	if convs[0].Synthesized || convs[0].LastPreview != "first!" {
		t.Errorf("backend record did not replace placeholder: %+v", convs[0])
	}
}

func TestSynthesizeIsIdempotentPerPeer(t *testing.T) {
	l := NewConversationList()
	l.ReplaceAll([]Conversation{{PeerID: 3, DisplayName: "Eve", LastPreview: "hi", UnreadCount: 2}}, 0)

	c := l.Synthesize(3, "Eve", "", true)
	if c.Synthesized {
		t.Error("existing conversation replaced by placeholder")
	}
	if c.LastPreview != "hi" {
		t.Errorf("preview = %q, want existing preserved", c.LastPreview)
	}
	if len(l.Snapshot()) != 1 {
		t.Error("duplicate conversation for one peer")
	}
}

func TestSynthesizePlaceholderShape(t *testing.T) {
	l := NewConversationList()
	c := l.Synthesize(9, "Frank", "http://a/av.png", true)

	if c.LastPreview != PlaceholderPreview {
		t.Errorf("preview = %q, want %q", c.LastPreview, PlaceholderPreview)
	}
	if c.UnreadCount != 0 {
		t.Errorf("unreadCount = %d, want 0", c.UnreadCount)
	}
	if !c.Synthesized || !c.PeerOnline {
		t.Errorf("placeholder = %+v", c)
	}
}

func TestSetPreviewAndZeroUnread(t *testing.T) {
	l := NewConversationList()
	l.ReplaceAll([]Conversation{
		{PeerID: 1, LastPreview: "old", UnreadCount: 4, LastMessageAt: time.Now()},
		{PeerID: 2, LastPreview: "other", UnreadCount: 1},
	}, 0)

	l.SetPreview(1, "new text", "Just now")
	l.ZeroUnread(1)

	c, ok := l.Get(1)
	if !ok {
		t.Fatal("conversation missing")
	}
	if c.LastPreview != "new text" || c.TimeLabel != "Just now" || c.UnreadCount != 0 {
		t.Errorf("conversation = %+v", c)
	}

	// Unrelated peer untouched.
	c2, _ := l.Get(2)
	if c2.LastPreview != "other" || c2.UnreadCount != 1 {
		t.Errorf("unrelated conversation mutated: %+v", c2)
	}
}

func TestClear(t *testing.T) {
	l := NewConversationList()
	l.ReplaceAll([]Conversation{{PeerID: 1}}, 0)
	l.Clear()
	if len(l.Snapshot()) != 0 {
		t.Error("Clear() left entries behind")
	}
}
