// Package sync keeps the local conversation state converging on the
// backend's through periodic polling. The backend is pull-only: nothing
// is pushed to the client, so the list synchronizer and the thread
// synchronizer each own a timer in the scheduler and fold every fetch
// result into the shared state collections.
package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/chatflow/internal/backend"
	"github.com/matheus3301/chatflow/internal/bus"
	"github.com/matheus3301/chatflow/internal/sched"
	"github.com/matheus3301/chatflow/internal/state"
	"github.com/matheus3301/chatflow/internal/status"
	"github.com/matheus3301/chatflow/internal/store"
)

const listComponent = "conversations"

// ListUpdate is the payload of conversation.list_updated events.
type ListUpdate struct {
	Silent bool
	Count  int
}

// NewMessageSignal is the payload of message.received events, emitted when
// a refresh observes unread growth in a conversation that is not active.
type NewMessageSignal struct {
	PeerID      int64
	DisplayName string
	Preview     string
}

// ListSynchronizer polls the conversation summaries endpoint, transforms
// the wire shapes into list entries, and bulk-replaces the local list.
// It also refreshes the friends surface on the same cadence.
type ListSynchronizer struct {
	api      *backend.Client
	list     *state.ConversationList
	thread   *state.Thread
	db       *store.DB
	machine  *status.Machine
	sched    *sched.Scheduler
	bus      *bus.Bus
	logger   *zap.Logger
	interval time.Duration

	mu      gosync.Mutex
	friends []Friend
	unread  map[int64]int
}

// NewListSynchronizer wires a list synchronizer. Start must be called to
// begin polling.
func NewListSynchronizer(api *backend.Client, list *state.ConversationList, thread *state.Thread, db *store.DB, machine *status.Machine, sch *sched.Scheduler, b *bus.Bus, logger *zap.Logger, interval time.Duration) *ListSynchronizer {
	return &ListSynchronizer{
		api:      api,
		list:     list,
		thread:   thread,
		db:       db,
		machine:  machine,
		sched:    sch,
		bus:      b,
		logger:   logger,
		interval: interval,
		unread:   make(map[int64]int),
	}
}

// Start seeds the list from the on-disk cache so a warm start renders
// immediately, then installs the polling timer. The timer's first run
// fires at once, so the cached view is replaced as soon as the backend
// answers.
func (s *ListSynchronizer) Start() {
	s.warmStart()
	s.sched.Set(sched.Key{Component: listComponent}, s.interval, func(ctx context.Context) {
		if err := s.Refresh(ctx, true); err != nil {
			return
		}
		_ = s.RefreshFriends(ctx)
	})
}

// Stop cancels the polling timer. The current list contents are left in
// place for the caller to clear or persist.
func (s *ListSynchronizer) Stop() {
	s.sched.Cancel(sched.Key{Component: listComponent})
}

func (s *ListSynchronizer) warmStart() {
	cached, err := s.db.ListConversations()
	if err != nil {
		s.logger.Warn("conversation cache read failed", zap.Error(err))
		return
	}
	if len(cached) == 0 {
		return
	}
	now := time.Now()
	convs := make([]state.Conversation, 0, len(cached))
	for _, c := range cached {
		at := time.UnixMilli(c.LastMessageAt)
		if c.LastMessageAt == 0 {
			at = time.Time{}
		}
		convs = append(convs, state.Conversation{
			PeerID:        c.PeerID,
			DisplayName:   c.DisplayName,
			AvatarURL:     c.AvatarURL,
			LastPreview:   c.LastPreview,
			TimeLabel:     relativeLabel(at, now),
			LastMessageAt: at,
			UnreadCount:   c.UnreadCount,
			PeerOnline:    c.PeerOnline,
		})
	}
	s.list.ReplaceAll(convs, 0)
	s.publishUpdate(true, len(convs))
}

// Refresh fetches the authoritative conversation list and replaces the
// local one. silent marks a background tick: its failure leaves the
// current list untouched, whereas a user-initiated (non-silent) failure
// clears the list so stale data is not presented as current.
func (s *ListSynchronizer) Refresh(ctx context.Context, silent bool) error {
	summaries, err := s.api.Conversations(ctx)
	if err != nil {
		s.failed(OpListRefresh, err)
		if !silent && PolicyFor(OpListRefresh).ClearsState {
			s.list.Clear()
			s.publishUpdate(silent, 0)
		}
		return err
	}

	now := time.Now()
	activePeer := s.thread.PeerID()
	convs := make([]state.Conversation, 0, len(summaries))
	for _, sum := range summaries {
		convs = append(convs, toConversation(sum, now))
	}

	s.signalNewMessages(convs, activePeer)
	s.list.ReplaceAll(convs, activePeer)
	s.persist(convs)
	s.publishUpdate(silent, len(convs))
	return nil
}

// signalNewMessages compares unread counts against the previous refresh
// and emits message.received for every inactive conversation that grew.
// The active conversation never signals: the user is already looking at it.
func (s *ListSynchronizer) signalNewMessages(convs []state.Conversation, activePeer int64) {
	s.mu.Lock()
	prev := s.unread
	next := make(map[int64]int, len(convs))
	for _, c := range convs {
		next[c.PeerID] = c.UnreadCount
	}
	s.unread = next
	s.mu.Unlock()

	for _, c := range convs {
		if c.PeerID == activePeer {
			continue
		}
		if c.UnreadCount > prev[c.PeerID] {
			s.bus.Publish(bus.Event{
				Kind:      bus.KindMessageReceived,
				Timestamp: time.Now(),
				Payload: NewMessageSignal{
					PeerID:      c.PeerID,
					DisplayName: c.DisplayName,
					Preview:     c.LastPreview,
				},
			})
		}
	}
}

func (s *ListSynchronizer) persist(convs []state.Conversation) {
	cached := make([]store.CachedConversation, 0, len(convs))
	for _, c := range convs {
		var at int64
		if !c.LastMessageAt.IsZero() {
			at = c.LastMessageAt.UnixMilli()
		}
		cached = append(cached, store.CachedConversation{
			PeerID:        c.PeerID,
			DisplayName:   c.DisplayName,
			AvatarURL:     c.AvatarURL,
			LastPreview:   c.LastPreview,
			LastMessageAt: at,
			UnreadCount:   c.UnreadCount,
			PeerOnline:    c.PeerOnline,
		})
	}
	if err := s.db.ReplaceConversations(cached); err != nil {
		s.logger.Warn("conversation cache write failed", zap.Error(err))
	}
}

// RefreshFriends fetches the accepted-friends surface. Failures keep the
// previous snapshot.
func (s *ListSynchronizer) RefreshFriends(ctx context.Context) error {
	friendships, err := s.api.Friends(ctx)
	if err != nil {
		s.failed(OpFriendsRefresh, err)
		return err
	}
	friends := make([]Friend, 0, len(friendships))
	for _, f := range friendships {
		friends = append(friends, toFriend(f.Friend))
	}
	s.mu.Lock()
	s.friends = friends
	s.mu.Unlock()
	return nil
}

// Friends returns a copy of the latest friends snapshot.
func (s *ListSynchronizer) Friends() []Friend {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Friend, len(s.friends))
	copy(out, s.friends)
	return out
}

// Ensure returns the conversation for peerID, synthesizing a local
// placeholder from the friends surface when the backend has reported no
// history with that peer yet.
func (s *ListSynchronizer) Ensure(peerID int64) state.Conversation {
	if c, ok := s.list.Get(peerID); ok {
		return c
	}
	name := fmt.Sprintf("User %d", peerID)
	avatar := avatarURL("", name)
	online := false
	for _, f := range s.Friends() {
		if f.ID == peerID {
			name = f.DisplayName
			avatar = f.AvatarURL
			online = f.Online
			break
		}
	}
	return s.list.Synthesize(peerID, name, avatar, online)
}

func (s *ListSynchronizer) publishUpdate(silent bool, count int) {
	s.bus.Publish(bus.Event{
		Kind:      bus.KindConversationListUpdated,
		Timestamp: time.Now(),
		Payload:   ListUpdate{Silent: silent, Count: count},
	})
}

func (s *ListSynchronizer) failed(op Op, err error) {
	failed(s.logger, s.machine, op, err)
}

// failed applies the failure policy for op: log if the policy says so and
// push the status machine into AUTH_EXPIRED when the backend rejected the
// token. No operation retries outside its own timer cadence.
func failed(logger *zap.Logger, machine *status.Machine, op Op, err error) {
	if PolicyFor(op).Logged {
		logger.Warn("background operation failed",
			zap.String("op", string(op)),
			zap.Error(err))
	}
	if errors.Is(err, backend.ErrUnauthorized) && machine != nil {
		cur := machine.Current()
		if cur == status.Online || cur == status.Hidden {
			_ = machine.Transition(status.AuthExpired)
		}
	}
}
