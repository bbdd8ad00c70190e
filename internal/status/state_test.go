package status

import (
	"testing"

	"github.com/matheus3301/chatflow/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != SignedOut {
		t.Errorf("initial state = %s, want SIGNED_OUT", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{SignedOut, SigningIn},
		{SigningIn, Online},
		{SigningIn, SignedOut},
		{Online, Hidden},
		{Hidden, Online},
		{Online, SigningOut},
		{SigningOut, SignedOut},
		{Online, AuthExpired},
		{AuthExpired, SignedOut},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Online); err == nil {
		t.Error("Transition(SIGNED_OUT -> ONLINE) should fail; must go through SIGNING_IN")
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(SigningIn); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.KindSessionStatusChanged {
		t.Errorf("event kind = %q, want session.status_changed", evt.Kind)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != SignedOut || change.To != SigningIn {
		t.Errorf("change = %v -> %v, want SIGNED_OUT -> SIGNING_IN", change.From, change.To)
	}
}

// TestVisibilityOscillation simulates tab hide/show cycles:
// ONLINE → HIDDEN → ONLINE → HIDDEN → ONLINE.
func TestVisibilityOscillation(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Online)

	steps := []State{Hidden, Online, Hidden, Online}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.Current() != Online {
		t.Errorf("final state = %s, want ONLINE", m.Current())
	}
}

// TestSignOutFromHidden verifies that sign-out works while the tab is hidden.
func TestSignOutFromHidden(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Hidden)

	steps := []State{SigningOut, SignedOut}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v", s, err)
		}
	}
	if m.Current() != SignedOut {
		t.Errorf("final state = %s, want SIGNED_OUT", m.Current())
	}
}

// TestAuthExpiredForcesSignIn verifies the expired-token path ends back at
// the sign-in screen state and can re-authenticate from there.
func TestAuthExpiredForcesSignIn(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, Online)

	if err := m.Transition(AuthExpired); err != nil {
		t.Fatalf("ONLINE -> AUTH_EXPIRED: %v", err)
	}
	if err := m.Transition(SigningIn); err != nil {
		t.Fatalf("AUTH_EXPIRED -> SIGNING_IN: %v", err)
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		SignedOut:   {},
		SigningIn:   {SigningIn},
		Online:      {SigningIn, Online},
		Hidden:      {SigningIn, Online, Hidden},
		SigningOut:  {SigningIn, Online, SigningOut},
		AuthExpired: {SigningIn, Online, AuthExpired},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
