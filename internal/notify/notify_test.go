package notify

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/chatflow/internal/bus"
	chatsync "github.com/matheus3301/chatflow/internal/sync"
)

func TestPushExpiresAfterTTL(t *testing.T) {
	b := bus.New()
	s := New(b, zap.NewNop(), 50*time.Millisecond)
	defer s.Stop()

	removed, unsub := b.Subscribe("notification.removed", 4)
	defer unsub()

	n := s.Push(5, "Alice", "hey")
	if got := s.Active(); len(got) != 1 || got[0].ID != n.ID {
		t.Fatalf("Active() = %+v, want the pushed notification", got)
	}

	select {
	case evt := <-removed:
		r := evt.Payload.(Removal)
		if r.ID != n.ID || r.Reason != "expired" {
			t.Errorf("removal = %+v, want expired %s", r, n.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification never expired")
	}
	if got := s.Active(); len(got) != 0 {
		t.Errorf("Active() = %+v after expiry, want empty", got)
	}
}

func TestDismissIsIdempotent(t *testing.T) {
	b := bus.New()
	s := New(b, zap.NewNop(), time.Hour)
	defer s.Stop()

	removed, unsub := b.Subscribe("notification.removed", 4)
	defer unsub()

	n := s.Push(5, "Alice", "hey")
	s.Dismiss(n.ID)
	s.Dismiss(n.ID)
	s.Dismiss("no-such-id")

	select {
	case evt := <-removed:
		if r := evt.Payload.(Removal); r.Reason != "dismissed" {
			t.Errorf("reason = %q, want dismissed", r.Reason)
		}
	case <-time.After(time.Second):
		t.Fatal("no removal published")
	}
	select {
	case evt := <-removed:
		t.Fatalf("duplicate removal published: %+v", evt.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClickNavigatesOnce(t *testing.T) {
	b := bus.New()
	s := New(b, zap.NewNop(), time.Hour)
	defer s.Stop()

	var clicks atomic.Int64
	var lastPeer atomic.Int64
	s.SetClickHandler(func(peerID int64) {
		clicks.Add(1)
		lastPeer.Store(peerID)
	})

	n := s.Push(7, "Bob", "yo")
	s.Click(n.ID)
	s.Click(n.ID) // already removed

	if clicks.Load() != 1 {
		t.Errorf("click handler fired %d times, want 1", clicks.Load())
	}
	if lastPeer.Load() != 7 {
		t.Errorf("navigated to peer %d, want 7", lastPeer.Load())
	}
}

func TestConcurrentClicksNavigateOnce(t *testing.T) {
	b := bus.New()
	s := New(b, zap.NewNop(), time.Hour)
	defer s.Stop()

	var clicks atomic.Int64
	s.SetClickHandler(func(int64) {
		clicks.Add(1)
	})

	n := s.Push(7, "Bob", "yo")

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			s.Click(n.ID)
		}()
	}
	close(start)
	wg.Wait()

	if clicks.Load() != 1 {
		t.Errorf("click handler fired %d times across concurrent clicks, want 1", clicks.Load())
	}
}

func TestEarlyRemovalCancelsExpiryTimer(t *testing.T) {
	b := bus.New()
	s := New(b, zap.NewNop(), 50*time.Millisecond)
	defer s.Stop()

	removed, unsub := b.Subscribe("notification.removed", 4)
	defer unsub()

	n := s.Push(5, "Alice", "hey")
	s.Dismiss(n.ID)

	<-removed // the dismissal
	select {
	case evt := <-removed:
		t.Fatalf("expiry fired after dismissal: %+v", evt.Payload)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestStartConsumesNewMessageSignals(t *testing.T) {
	b := bus.New()
	s := New(b, zap.NewNop(), time.Hour)
	s.Start()
	defer s.Stop()

	pushed, unsub := b.Subscribe("notification.pushed", 4)
	defer unsub()

	b.Publish(bus.Event{
		Kind:      bus.KindMessageReceived,
		Timestamp: time.Now(),
		Payload:   chatsync.NewMessageSignal{PeerID: 3, DisplayName: "Carol", Preview: "ping"},
	})

	select {
	case evt := <-pushed:
		n := evt.Payload.(Notification)
		if n.PeerID != 3 || n.Title != "Carol" || n.Preview != "ping" {
			t.Errorf("notification = %+v", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no notification pushed for message.received signal")
	}
}
