// Package presence keeps the backend's view of this identity's
// reachability current: an immediate online signal on start, a periodic
// heartbeat while the session lives, offline/online flips on visibility
// changes, and a best-effort offline signal on stop.
package presence

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/matheus3301/chatflow/internal/backend"
	"github.com/matheus3301/chatflow/internal/bus"
	"github.com/matheus3301/chatflow/internal/sched"
	"github.com/matheus3301/chatflow/internal/status"
	"go.uber.org/zap"
)

const component = "presence"

// Manager owns the heartbeat timer for the signed-in identity. Signal
// failures are logged and swallowed; they never stop the timer and are
// retried naturally on the next tick.
type Manager struct {
	api      *backend.Client
	sched    *sched.Scheduler
	machine  *status.Machine
	bus      *bus.Bus
	logger   *zap.Logger
	interval time.Duration

	mu         sync.Mutex
	identityID int64 // 0 when stopped
}

// NewManager creates a presence manager with the given heartbeat interval.
func NewManager(api *backend.Client, s *sched.Scheduler, machine *status.Machine, b *bus.Bus, logger *zap.Logger, interval time.Duration) *Manager {
	return &Manager{
		api:      api,
		sched:    s,
		machine:  machine,
		bus:      b,
		logger:   logger,
		interval: interval,
	}
}

// Start begins the heartbeat for identityID and immediately signals online.
// At most one heartbeat timer exists per identity: starting twice replaces
// the timer, it never stacks.
func (m *Manager) Start(identityID int64) {
	m.mu.Lock()
	m.identityID = identityID
	m.mu.Unlock()

	m.sched.Set(m.key(identityID), m.interval, func(ctx context.Context) {
		if err := m.api.Heartbeat(ctx); err != nil {
			m.logger.Warn("heartbeat failed", zap.Error(err))
		}
	})

	go m.signalOnline(context.Background())
}

// Stop cancels the heartbeat and sends a best-effort final offline signal.
// Idempotent: stopping an already-stopped manager is a no-op.
func (m *Manager) Stop() {
	m.mu.Lock()
	id := m.identityID
	m.identityID = 0
	m.mu.Unlock()
	if id == 0 {
		return
	}

	m.sched.Cancel(m.key(id))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := m.api.SetOffline(ctx); err != nil {
		m.logger.Warn("final offline signal failed", zap.Error(err))
	}
	m.bus.Publish(bus.Event{Kind: bus.KindPresenceOffline, Timestamp: time.Now()})
}

// MarkHidden signals offline when the page/tab becomes hidden. The
// heartbeat keeps running; a hidden tab is still a live session.
func (m *Manager) MarkHidden(ctx context.Context) {
	if !m.running() {
		return
	}
	if err := m.api.SetOffline(ctx); err != nil {
		m.logger.Warn("offline signal failed", zap.Error(err))
	}
	_ = m.machine.Transition(status.Hidden)
	m.bus.Publish(bus.Event{Kind: bus.KindPresenceOffline, Timestamp: time.Now()})
}

// MarkVisible signals online when the page/tab becomes visible again.
func (m *Manager) MarkVisible(ctx context.Context) {
	if !m.running() {
		return
	}
	_ = m.machine.Transition(status.Online)
	m.signalOnline(ctx)
}

// Running reports whether a heartbeat is active.
func (m *Manager) Running() bool {
	return m.running()
}

func (m *Manager) signalOnline(ctx context.Context) {
	if err := m.api.SetOnline(ctx); err != nil {
		m.logger.Warn("online signal failed", zap.Error(err))
		return
	}
	m.bus.Publish(bus.Event{Kind: bus.KindPresenceOnline, Timestamp: time.Now()})
}

func (m *Manager) running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.identityID != 0
}

func (m *Manager) key(identityID int64) sched.Key {
	return sched.Key{Component: component, Scope: strconv.FormatInt(identityID, 10)}
}
