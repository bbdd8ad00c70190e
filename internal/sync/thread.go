package sync

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/chatflow/internal/backend"
	"github.com/matheus3301/chatflow/internal/bus"
	"github.com/matheus3301/chatflow/internal/sched"
	"github.com/matheus3301/chatflow/internal/session"
	"github.com/matheus3301/chatflow/internal/state"
	"github.com/matheus3301/chatflow/internal/status"
)

const threadComponent = "thread"

// ThreadUpdate is the payload of message.upserted events.
type ThreadUpdate struct {
	PeerID int64
	Count  int
}

// ThreadSynchronizer polls the active conversation's messages. Exactly one
// thread timer exists at a time: activating a conversation cancels the
// previous peer's timer and bumps the thread generation, so a fetch that
// was in flight for the old peer can never land in the new thread.
type ThreadSynchronizer struct {
	api      *backend.Client
	thread   *state.Thread
	lists    *ListSynchronizer
	sessions *session.Store
	machine  *status.Machine
	sched    *sched.Scheduler
	bus      *bus.Bus
	logger   *zap.Logger
	interval time.Duration
}

// NewThreadSynchronizer wires a thread synchronizer. No timer runs until
// Activate.
func NewThreadSynchronizer(api *backend.Client, thread *state.Thread, lists *ListSynchronizer, sessions *session.Store, machine *status.Machine, sch *sched.Scheduler, b *bus.Bus, logger *zap.Logger, interval time.Duration) *ThreadSynchronizer {
	return &ThreadSynchronizer{
		api:      api,
		thread:   thread,
		lists:    lists,
		sessions: sessions,
		machine:  machine,
		sched:    sch,
		bus:      b,
		logger:   logger,
		interval: interval,
	}
}

// Activate switches the active conversation to peerID. The previous
// thread's timer and message set are discarded, a placeholder conversation
// is synthesized if the peer has no history, the unread count is zeroed
// optimistically, and the backend mark-as-read runs in the background.
func (s *ThreadSynchronizer) Activate(peerID int64) {
	s.sched.CancelComponent(threadComponent)
	gen := s.thread.Activate(peerID)

	s.lists.Ensure(peerID)
	s.lists.list.ZeroUnread(peerID)
	go s.markRead(peerID)

	s.bus.Publish(bus.Event{
		Kind:      bus.KindConversationActivated,
		Timestamp: time.Now(),
		Payload:   peerID,
	})

	s.sched.Set(sched.Key{Component: threadComponent, Scope: strconv.FormatInt(peerID, 10)}, s.interval, func(ctx context.Context) {
		s.refresh(ctx, peerID, gen)
	})
}

// Deactivate closes the active conversation: the timer stops and the
// message set is cleared.
func (s *ThreadSynchronizer) Deactivate() {
	s.sched.CancelComponent(threadComponent)
	s.thread.Deactivate()
}

// Refresh runs one fetch for the currently active conversation. No-op when
// nothing is active.
func (s *ThreadSynchronizer) Refresh(ctx context.Context) {
	peerID := s.thread.PeerID()
	if peerID == 0 {
		return
	}
	s.refresh(ctx, peerID, s.thread.Generation())
}

func (s *ThreadSynchronizer) refresh(ctx context.Context, peerID int64, gen uint64) {
	msgs, err := s.api.ConversationMessages(ctx, peerID)
	if err != nil {
		failed(s.logger, s.machine, OpThreadRefresh, err)
		return
	}

	var selfID int64
	if id, ok := s.sessions.Identity(); ok {
		selfID = id.ID
	}
	mapped := make([]state.Message, 0, len(msgs))
	for _, m := range msgs {
		mapped = append(mapped, toMessage(m, selfID))
	}

	if !s.thread.Reconcile(gen, mapped) {
		// The user switched conversations while this fetch was in flight.
		return
	}
	s.bus.Publish(bus.Event{
		Kind:      bus.KindMessageUpserted,
		Timestamp: time.Now(),
		Payload:   ThreadUpdate{PeerID: peerID, Count: len(mapped)},
	})
}

func (s *ThreadSynchronizer) markRead(peerID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.api.MarkConversationRead(ctx, peerID); err != nil {
		failed(s.logger, s.machine, OpMarkRead, err)
	}
}
