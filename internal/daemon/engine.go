package daemon

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/matheus3301/chatflow/internal/bus"
	"github.com/matheus3301/chatflow/internal/notify"
	"github.com/matheus3301/chatflow/internal/outbox"
	"github.com/matheus3301/chatflow/internal/presence"
	"github.com/matheus3301/chatflow/internal/sched"
	"github.com/matheus3301/chatflow/internal/session"
	"github.com/matheus3301/chatflow/internal/state"
	"github.com/matheus3301/chatflow/internal/status"
	intsync "github.com/matheus3301/chatflow/internal/sync"
)

var errNotSignedIn = errors.New("daemon: not signed in")

// Engine coordinates the background synchronizers around the session
// lifecycle: signing in starts presence, list polling and notifications;
// signing out or losing the token stops all of them and clears state.
type Engine struct {
	sessions *session.Store
	presence *presence.Manager
	lists    *intsync.ListSynchronizer
	threads  *intsync.ThreadSynchronizer
	sender   *outbox.Sender
	notifier *notify.Scheduler
	machine  *status.Machine
	sched    *sched.Scheduler
	bus      *bus.Bus
	logger   *zap.Logger

	done chan struct{}
}

// NewEngine wires the coordinator. Start begins event processing.
func NewEngine(sessions *session.Store, pres *presence.Manager, lists *intsync.ListSynchronizer, threads *intsync.ThreadSynchronizer, sender *outbox.Sender, notifier *notify.Scheduler, machine *status.Machine, sch *sched.Scheduler, b *bus.Bus, logger *zap.Logger) *Engine {
	return &Engine{
		sessions: sessions,
		presence: pres,
		lists:    lists,
		threads:  threads,
		sender:   sender,
		notifier: notifier,
		machine:  machine,
		sched:    sch,
		bus:      b,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// Start subscribes to session events and, when a persisted session
// restores, brings the engine online immediately.
func (e *Engine) Start() {
	// Clicking a notification navigates to its source conversation.
	e.notifier.SetClickHandler(e.OpenConversation)

	events, unsub := e.bus.Subscribe("session.", 16)
	go e.run(events, unsub)

	restored, err := e.sessions.Restore()
	if err != nil {
		e.logger.Warn("session restore failed", zap.Error(err))
		return
	}
	if !restored {
		e.logger.Info("no persisted session, sign-in required")
		return
	}
	if err := e.machine.Transition(status.SigningIn); err == nil {
		_ = e.machine.Transition(status.Online)
	}
	e.online()
}

// Stop tears down background work and releases the bus subscription.
func (e *Engine) Stop() {
	close(e.done)
	e.offline()
	e.sched.Stop()
}

func (e *Engine) run(events <-chan bus.Event, unsub func()) {
	defer unsub()
	for {
		select {
		case <-e.done:
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			e.handle(evt)
		}
	}
}

func (e *Engine) handle(evt bus.Event) {
	switch evt.Kind {
	case bus.KindSessionSignedIn:
		if e.machine.Current() == status.SignedOut || e.machine.Current() == status.AuthExpired {
			if err := e.machine.Transition(status.SigningIn); err == nil {
				_ = e.machine.Transition(status.Online)
			}
		}
		e.online()
	case bus.KindSessionSignedOut:
		e.offline()
	case bus.KindSessionStatusChanged:
		change, ok := evt.Payload.(status.StatusChange)
		if !ok || change.To != status.AuthExpired {
			return
		}
		// The backend rejected the token mid-session. Stop background work
		// and drop the persisted session so the next start asks for sign-in.
		e.logger.Warn("session token expired, signing out")
		e.offline()
		if err := e.sessions.SignOut(); err != nil {
			e.logger.Warn("sign-out after token expiry failed", zap.Error(err))
		}
		_ = e.machine.Transition(status.SignedOut)
	}
}

// online starts presence, list polling and the notifier for the current
// identity. Safe to call when already online: the scheduler replaces
// timers by key instead of stacking them.
func (e *Engine) online() {
	id, ok := e.sessions.Identity()
	if !ok {
		return
	}
	e.presence.Start(id.ID)
	e.lists.Start()
	e.notifier.Start()
	e.logger.Info("engine online",
		zap.Int64("identity", id.ID),
		zap.String("username", id.Username))
}

func (e *Engine) offline() {
	e.threads.Deactivate()
	e.lists.Stop()
	e.notifier.Stop()
	e.presence.Stop()
	e.logger.Info("engine offline")
}

// OpenConversation makes peerID the active conversation: previous thread
// discarded, unread zeroed, mark-as-read issued, thread polling started.
func (e *Engine) OpenConversation(peerID int64) {
	e.threads.Activate(peerID)
}

// CloseConversation deactivates the current thread.
func (e *Engine) CloseConversation() {
	e.threads.Deactivate()
}

// Send dispatches a message through the optimistic pipeline.
func (e *Engine) Send(peerID int64, body string, kind state.MessageKind) (state.MessageID, error) {
	if _, ok := e.sessions.Identity(); !ok {
		return state.MessageID{}, errNotSignedIn
	}
	return e.sender.Send(peerID, body, kind)
}

// MarkHidden propagates a visibility loss (terminal detached, UI hidden).
func (e *Engine) MarkHidden(ctx context.Context) {
	e.presence.MarkHidden(ctx)
}

// MarkVisible propagates a visibility gain.
func (e *Engine) MarkVisible(ctx context.Context) {
	e.presence.MarkVisible(ctx)
}
