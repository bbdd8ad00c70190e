// Package notify schedules transient in-app notifications for messages
// arriving in inactive conversations. Every notification auto-expires
// after a TTL; dismissing or clicking one earlier cancels its timer.
package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/chatflow/internal/bus"
	chatsync "github.com/matheus3301/chatflow/internal/sync"
)

// Notification is one visible toast.
type Notification struct {
	ID        string
	PeerID    int64
	Title     string
	Preview   string
	CreatedAt time.Time
}

// Removal is the payload of notification.removed events.
type Removal struct {
	ID     string
	Reason string // "expired", "dismissed" or "clicked"
}

type entry struct {
	n     Notification
	timer *time.Timer
}

// Scheduler owns the active notification set. At most one expiry timer
// exists per notification; removal through any path is idempotent.
type Scheduler struct {
	ttl     time.Duration
	bus     *bus.Bus
	logger  *zap.Logger
	onClick func(peerID int64)

	mu     sync.Mutex
	active map[string]*entry
	unsub  func()
	done   chan struct{}
}

// New creates a scheduler with the given auto-dismiss TTL.
func New(b *bus.Bus, logger *zap.Logger, ttl time.Duration) *Scheduler {
	return &Scheduler{
		ttl:    ttl,
		bus:    b,
		logger: logger,
		active: make(map[string]*entry),
	}
}

// SetClickHandler installs the navigation callback invoked when a
// notification is clicked.
func (s *Scheduler) SetClickHandler(fn func(peerID int64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClick = fn
}

// Start subscribes to message.received signals and turns each into a
// notification. Calling Start while already running is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.unsub != nil {
		s.mu.Unlock()
		return
	}
	events, unsub := s.bus.Subscribe("message.received", 16)
	done := make(chan struct{})
	s.unsub = unsub
	s.done = done
	s.mu.Unlock()

	go func() {
		for {
			select {
			case <-done:
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				sig, ok := evt.Payload.(chatsync.NewMessageSignal)
				if !ok {
					continue
				}
				s.Push(sig.PeerID, sig.DisplayName, sig.Preview)
			}
		}
	}()
}

// Push creates a notification and arms its expiry timer.
func (s *Scheduler) Push(peerID int64, title, preview string) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		PeerID:    peerID,
		Title:     title,
		Preview:   preview,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.active[n.ID] = &entry{
		n:     n,
		timer: time.AfterFunc(s.ttl, func() { s.remove(n.ID, "expired") }),
	}
	s.mu.Unlock()

	s.bus.Publish(bus.Event{
		Kind:      bus.KindNotificationPushed,
		Timestamp: time.Now(),
		Payload:   n,
	})
	return n
}

// Dismiss removes a notification before its TTL. Dismissing an unknown or
// already-removed id is a no-op.
func (s *Scheduler) Dismiss(id string) {
	s.remove(id, "dismissed")
}

// Click removes the notification and fires the navigation callback with
// the source conversation's peer. Clicking an already-removed id is a
// no-op: the callback does not fire twice.
func (s *Scheduler) Click(id string) {
	s.mu.Lock()
	e, ok := s.active[id]
	onClick := s.onClick
	s.mu.Unlock()
	if !ok {
		return
	}
	// Only the caller that actually removed the entry navigates; a
	// concurrent click or expiry that got there first wins.
	if !s.remove(id, "clicked") {
		return
	}
	if onClick != nil {
		onClick(e.n.PeerID)
	}
}

// Active returns the currently visible notifications, oldest first.
func (s *Scheduler) Active() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, 0, len(s.active))
	for _, e := range s.active {
		out = append(out, e.n)
	}
	sortByCreation(out)
	return out
}

// Stop unsubscribes from the bus and cancels every pending expiry timer.
// Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	unsub := s.unsub
	s.unsub = nil
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	for id, e := range s.active {
		e.timer.Stop()
		delete(s.active, id)
	}
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// remove reports whether this call deleted the entry, so removal paths
// racing on the same id resolve to a single winner.
func (s *Scheduler) remove(id, reason string) bool {
	s.mu.Lock()
	e, ok := s.active[id]
	if ok {
		e.timer.Stop()
		delete(s.active, id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}

	s.bus.Publish(bus.Event{
		Kind:      bus.KindNotificationRemoved,
		Timestamp: time.Now(),
		Payload:   Removal{ID: id, Reason: reason},
	})
	return true
}

func sortByCreation(ns []Notification) {
	sort.Slice(ns, func(i, j int) bool {
		return ns[i].CreatedAt.Before(ns[j].CreatedAt)
	})
}
