package sync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/chatflow/internal/backend"
	"github.com/matheus3301/chatflow/internal/bus"
	"github.com/matheus3301/chatflow/internal/sched"
	"github.com/matheus3301/chatflow/internal/session"
	"github.com/matheus3301/chatflow/internal/state"
	"github.com/matheus3301/chatflow/internal/status"
	"github.com/matheus3301/chatflow/internal/store"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "chatflow.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fakeBackend struct {
	fail          atomic.Bool
	markReadCalls atomic.Int64
	threadCalls   atomic.Int64

	summaries []backend.ConversationSummary
	messages  []backend.Message
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /messages/conversations", func(w http.ResponseWriter, r *http.Request) {
		if f.fail.Load() {
			http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(f.summaries)
	})
	mux.HandleFunc("GET /messages/conversation/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.threadCalls.Add(1)
		_ = json.NewEncoder(w).Encode(f.messages)
	})
	mux.HandleFunc("PUT /messages/conversation/{id}/read", func(w http.ResponseWriter, r *http.Request) {
		f.markReadCalls.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /friendships/friends", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]backend.Friendship{})
	})
	return mux
}

func newListSync(t *testing.T, api *backend.Client) (*ListSynchronizer, *state.ConversationList, *state.Thread, *bus.Bus) {
	t.Helper()
	b := bus.New()
	list := state.NewConversationList()
	thread := state.NewThread()
	machine := status.NewMachine(b)
	sch := sched.New(zap.NewNop())
	t.Cleanup(sch.Stop)
	db := openTestDB(t)
	s := NewListSynchronizer(api, list, thread, db, machine, sch, b, zap.NewNop(), time.Hour)
	return s, list, thread, b
}

func summary(peerID int64, username, fullName string, unread int, last *backend.Message) backend.ConversationSummary {
	return backend.ConversationSummary{
		Friend:      backend.User{ID: peerID, Username: username, FullName: fullName},
		LastMessage: last,
		UnreadCount: unread,
	}
}

func TestRelativeLabel(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"just now", now.Add(-10 * time.Second), "Just now"},
		{"minutes", now.Add(-5 * time.Minute), "5m ago"},
		{"hours", now.Add(-3 * time.Hour), "3h ago"},
		{"days", now.Add(-48 * time.Hour), "2d ago"},
		{"older than a week", now.Add(-10 * 24 * time.Hour), "Aug 19, 2026"},
		{"zero", time.Time{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := relativeLabel(tt.at, now); got != tt.want {
				t.Errorf("relativeLabel() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToConversationFallbacks(t *testing.T) {
	now := time.Now()

	// No full name: username is the display name. No last message: the
	// placeholder preview is shown.
	c := toConversation(summary(7, "bob", "", 0, nil), now)
	if c.DisplayName != "bob" {
		t.Errorf("DisplayName = %q, want %q", c.DisplayName, "bob")
	}
	if c.LastPreview != state.PlaceholderPreview {
		t.Errorf("LastPreview = %q, want placeholder", c.LastPreview)
	}
	if c.AvatarURL == "" {
		t.Error("expected generated avatar URL for empty avatar")
	}

	// Full name wins over username.
	c = toConversation(summary(8, "alice", "Alice Doe", 2, nil), now)
	if c.DisplayName != "Alice Doe" {
		t.Errorf("DisplayName = %q, want %q", c.DisplayName, "Alice Doe")
	}
}

func TestToMessageDirectionAndDelivery(t *testing.T) {
	m := toMessage(backend.Message{ID: 10, SenderID: 1, ReceiverID: 2, Content: "hi", IsRead: false}, 1)
	if !m.FromSelf {
		t.Error("sender == self should be FromSelf")
	}
	if m.PeerID != 2 {
		t.Errorf("PeerID = %d, want 2", m.PeerID)
	}
	if m.Delivery != state.DeliveryDelivered {
		t.Errorf("Delivery = %q, want delivered", m.Delivery)
	}

	m = toMessage(backend.Message{ID: 11, SenderID: 2, ReceiverID: 1, Content: "yo", IsRead: true}, 1)
	if m.FromSelf {
		t.Error("sender != self should not be FromSelf")
	}
	if m.PeerID != 2 {
		t.Errorf("PeerID = %d, want 2", m.PeerID)
	}
	if m.Delivery != state.DeliveryRead {
		t.Errorf("Delivery = %q, want read", m.Delivery)
	}
}

func TestRefreshReplacesList(t *testing.T) {
	fake := &fakeBackend{summaries: []backend.ConversationSummary{
		summary(1, "alice", "Alice", 1, &backend.Message{ID: 5, SenderID: 1, ReceiverID: 9, Content: "hey", CreatedAt: time.Now()}),
		summary(2, "bob", "", 0, nil),
	}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	s, list, _, _ := newListSync(t, backend.NewClient(srv.URL))
	if err := s.Refresh(context.Background(), true); err != nil {
		t.Fatalf("Refresh() = %v", err)
	}

	convs := list.Snapshot()
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if convs[0].LastPreview != "hey" {
		t.Errorf("LastPreview = %q, want %q", convs[0].LastPreview, "hey")
	}
}

func TestNonSilentFailureClearsList(t *testing.T) {
	fake := &fakeBackend{summaries: []backend.ConversationSummary{summary(1, "alice", "", 0, nil)}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	s, list, _, _ := newListSync(t, backend.NewClient(srv.URL))
	if err := s.Refresh(context.Background(), false); err != nil {
		t.Fatalf("Refresh() = %v", err)
	}
	if len(list.Snapshot()) != 1 {
		t.Fatal("expected one conversation after successful refresh")
	}

	fake.fail.Store(true)
	if err := s.Refresh(context.Background(), false); err == nil {
		t.Fatal("expected error from failing backend")
	}
	if got := list.Snapshot(); len(got) != 0 {
		t.Errorf("non-silent failure left %d conversations, want empty list", len(got))
	}
}

func TestSilentFailureKeepsList(t *testing.T) {
	fake := &fakeBackend{summaries: []backend.ConversationSummary{summary(1, "alice", "", 0, nil)}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	s, list, _, _ := newListSync(t, backend.NewClient(srv.URL))
	if err := s.Refresh(context.Background(), true); err != nil {
		t.Fatalf("Refresh() = %v", err)
	}

	fake.fail.Store(true)
	if err := s.Refresh(context.Background(), true); err == nil {
		t.Fatal("expected error from failing backend")
	}
	if got := list.Snapshot(); len(got) != 1 {
		t.Errorf("silent failure left %d conversations, want previous 1", len(got))
	}
}

func TestRefreshPreservesActiveSynthesizedConversation(t *testing.T) {
	fake := &fakeBackend{summaries: []backend.ConversationSummary{summary(1, "alice", "", 0, nil)}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	s, list, thread, _ := newListSync(t, backend.NewClient(srv.URL))

	// Peer 42 has no backend history; the user opened it anyway.
	thread.Activate(42)
	s.Ensure(42)

	if err := s.Refresh(context.Background(), true); err != nil {
		t.Fatalf("Refresh() = %v", err)
	}
	convs := list.Snapshot()
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want synthesized + fetched", len(convs))
	}
	if convs[0].PeerID != 42 || !convs[0].Synthesized {
		t.Errorf("synthesized active conversation not preserved at front: %+v", convs[0])
	}
}

func TestNewMessageSignalSkipsActiveConversation(t *testing.T) {
	fake := &fakeBackend{summaries: []backend.ConversationSummary{
		summary(1, "alice", "", 0, nil),
		summary(2, "bob", "", 0, nil),
	}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	s, _, thread, b := newListSync(t, backend.NewClient(srv.URL))
	if err := s.Refresh(context.Background(), true); err != nil {
		t.Fatalf("Refresh() = %v", err)
	}

	thread.Activate(1)
	events, unsub := b.Subscribe("message.received", 8)
	defer unsub()

	// Both conversations gained unread messages; only the inactive one
	// should signal.
	fake.summaries = []backend.ConversationSummary{
		summary(1, "alice", "", 3, &backend.Message{ID: 7, SenderID: 1, ReceiverID: 9, Content: "a", CreatedAt: time.Now()}),
		summary(2, "bob", "", 1, &backend.Message{ID: 8, SenderID: 2, ReceiverID: 9, Content: "b", CreatedAt: time.Now()}),
	}
	if err := s.Refresh(context.Background(), true); err != nil {
		t.Fatalf("Refresh() = %v", err)
	}

	select {
	case evt := <-events:
		sig := evt.Payload.(NewMessageSignal)
		if sig.PeerID != 2 {
			t.Errorf("signal for peer %d, want 2 (inactive)", sig.PeerID)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a message.received signal")
	}
	select {
	case evt := <-events:
		t.Fatalf("unexpected second signal: %+v", evt.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAuthExpiredOnUnauthorizedRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"expired"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	b := bus.New()
	machine := status.NewMachine(b)
	if err := machine.Transition(status.SigningIn); err != nil {
		t.Fatal(err)
	}
	if err := machine.Transition(status.Online); err != nil {
		t.Fatal(err)
	}
	sch := sched.New(zap.NewNop())
	defer sch.Stop()
	s := NewListSynchronizer(backend.NewClient(srv.URL), state.NewConversationList(), state.NewThread(), openTestDB(t), machine, sch, b, zap.NewNop(), time.Hour)

	if err := s.Refresh(context.Background(), true); err == nil {
		t.Fatal("expected unauthorized error")
	}
	if got := machine.Current(); got != status.AuthExpired {
		t.Errorf("machine state = %q, want AUTH_EXPIRED", got)
	}
}

func newThreadSync(t *testing.T, api *backend.Client) (*ThreadSynchronizer, *ListSynchronizer, *state.Thread, *state.ConversationList, *sched.Scheduler) {
	t.Helper()
	b := bus.New()
	list := state.NewConversationList()
	thread := state.NewThread()
	machine := status.NewMachine(b)
	sch := sched.New(zap.NewNop())
	t.Cleanup(sch.Stop)
	db := openTestDB(t)
	lists := NewListSynchronizer(api, list, thread, db, machine, sch, b, zap.NewNop(), time.Hour)
	sessions := session.NewStore(db, api, b, zap.NewNop())
	ts := NewThreadSynchronizer(api, thread, lists, sessions, machine, sch, b, zap.NewNop(), time.Hour)
	return ts, lists, thread, list, sch
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestActivateFetchesMarksReadAndZerosUnread(t *testing.T) {
	fake := &fakeBackend{messages: []backend.Message{
		{ID: 1, SenderID: 5, ReceiverID: 9, Content: "hello", CreatedAt: time.Now()},
	}}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	ts, _, thread, list, _ := newThreadSync(t, backend.NewClient(srv.URL))
	list.ReplaceAll([]state.Conversation{{PeerID: 5, DisplayName: "eve", UnreadCount: 4}}, 0)

	ts.Activate(5)

	if c, ok := list.Get(5); !ok || c.UnreadCount != 0 {
		t.Errorf("unread not zeroed optimistically: %+v", c)
	}
	waitFor(t, func() bool { return len(thread.Messages()) == 1 }, "thread never received fetched messages")
	waitFor(t, func() bool { return fake.markReadCalls.Load() == 1 }, "mark-as-read never reached the backend")
}

func TestActivateSynthesizesUnknownPeer(t *testing.T) {
	fake := &fakeBackend{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	ts, _, _, list, _ := newThreadSync(t, backend.NewClient(srv.URL))
	ts.Activate(77)

	c, ok := list.Get(77)
	if !ok {
		t.Fatal("expected synthesized conversation for unknown peer")
	}
	if !c.Synthesized || c.LastPreview != state.PlaceholderPreview {
		t.Errorf("synthesized conversation malformed: %+v", c)
	}
}

func TestSwitchingCancelsPreviousThreadTimer(t *testing.T) {
	fake := &fakeBackend{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	ts, _, thread, _, sch := newThreadSync(t, backend.NewClient(srv.URL))
	ts.Activate(1)
	genAfterFirst := thread.Generation()
	ts.Activate(2)

	if sch.Active(sched.Key{Component: threadComponent, Scope: "1"}) {
		t.Error("previous peer's timer still active after switch")
	}
	if !sch.Active(sched.Key{Component: threadComponent, Scope: "2"}) {
		t.Error("new peer's timer not installed")
	}
	if thread.Generation() == genAfterFirst {
		t.Error("generation not bumped on switch")
	}
	if thread.PeerID() != 2 {
		t.Errorf("active peer = %d, want 2", thread.PeerID())
	}

	ts.Deactivate()
	if sch.Active(sched.Key{Component: threadComponent, Scope: "2"}) {
		t.Error("timer still active after Deactivate")
	}
	if thread.PeerID() != 0 {
		t.Error("thread still scoped after Deactivate")
	}
}

func TestFailurePolicies(t *testing.T) {
	if p := PolicyFor(OpListRefresh); !p.Logged || !p.ClearsState {
		t.Errorf("list refresh policy = %+v, want logged and state-clearing", p)
	}
	if p := PolicyFor(OpSend); !p.Surfaced {
		t.Errorf("send policy = %+v, want surfaced to the caller", p)
	}
	for _, op := range []Op{OpHeartbeat, OpSetOnline, OpSetOffline, OpFriendsRefresh, OpThreadRefresh, OpMarkRead} {
		p := PolicyFor(op)
		if p.Surfaced {
			t.Errorf("%s policy surfaced, background ops are log-only", op)
		}
		if !p.Logged {
			t.Errorf("%s policy not logged", op)
		}
	}
}
