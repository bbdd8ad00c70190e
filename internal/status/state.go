package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/chatflow/internal/bus"
)

// State represents a session lifecycle state.
type State string

const (
	SignedOut   State = "SIGNED_OUT"
	SigningIn   State = "SIGNING_IN"
	Online      State = "ONLINE"
	Hidden      State = "HIDDEN"
	SigningOut  State = "SIGNING_OUT"
	AuthExpired State = "AUTH_EXPIRED"
)

// validTransitions defines allowed state transitions. Online and Hidden
// oscillate with page/tab visibility; AuthExpired is entered from any
// authenticated state when the backend rejects the token.
var validTransitions = map[State][]State{
	SignedOut:   {SigningIn},
	SigningIn:   {Online, SignedOut},
	Online:      {Hidden, SigningOut, AuthExpired},
	Hidden:      {Online, SigningOut, AuthExpired},
	SigningOut:  {SignedOut},
	AuthExpired: {SignedOut, SigningIn},
}

// Machine tracks and enforces session lifecycle transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting signed out.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: SignedOut,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      bus.KindSessionStatusChanged,
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
