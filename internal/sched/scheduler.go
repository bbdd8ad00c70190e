// Package sched owns every recurring timer in the engine. Timers are named
// by (component, scope) so that re-scoping a component — switching the
// active conversation, restarting presence for a new identity — atomically
// cancels the previous timer and its in-flight work before the new one runs.
package sched

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Key identifies a timer: the owning component and the resource it is
// scoped to (identity id, peer id, or empty for session-wide timers).
type Key struct {
	Component string
	Scope     string
}

type timer struct {
	cancel context.CancelFunc
}

// Scheduler runs named periodic jobs. At most one timer exists per key.
type Scheduler struct {
	mu     sync.Mutex
	timers map[Key]*timer
	logger *zap.Logger
}

// New creates an empty scheduler.
func New(logger *zap.Logger) *Scheduler {
	return &Scheduler{
		timers: make(map[Key]*timer),
		logger: logger,
	}
}

// Set installs a periodic job under key, replacing (and cancelling) any
// existing job with the same key. fn runs once immediately and then on every
// interval tick, always sequentially: a tick never overlaps a still-running
// fn for the same key. The context passed to fn is cancelled when the key is
// replaced or cancelled, so in-flight requests for an abandoned scope die
// with their timer.
func (s *Scheduler) Set(key Key, interval time.Duration, fn func(ctx context.Context)) {
	ctx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if old, ok := s.timers[key]; ok {
		old.cancel()
	}
	s.timers[key] = &timer{cancel: cancel}
	s.mu.Unlock()

	go func() {
		fn(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if ctx.Err() != nil {
					return
				}
				fn(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Cancel stops the job under key. Idempotent: cancelling a missing or
// already-cancelled key is a no-op.
func (s *Scheduler) Cancel(key Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[key]; ok {
		t.cancel()
		delete(s.timers, key)
	}
}

// CancelComponent stops every job owned by component, regardless of scope.
func (s *Scheduler) CancelComponent(component string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.timers {
		if key.Component == component {
			t.cancel()
			delete(s.timers, key)
		}
	}
}

// Active reports whether a job currently exists under key.
func (s *Scheduler) Active(key Key) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

// Stop cancels every job. Called on sign-out and daemon shutdown.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, t := range s.timers {
		t.cancel()
		delete(s.timers, key)
	}
	if s.logger != nil {
		s.logger.Info("scheduler stopped")
	}
}
