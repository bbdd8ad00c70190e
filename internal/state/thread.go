package state

import (
	"sort"
	"sync"
)

// Thread holds the active conversation's message set. The set is
// conversation-scoped: switching conversations discards it entirely, it is
// never merged across peers. Two producers write here — the thread
// synchronizer (authoritative fetches) and the send pipeline (optimistic
// entries) — so every mutation re-establishes the ordering invariant before
// returning.
//
// Each activation bumps a generation counter. Reconcile applies a fetch
// result only when its generation still matches, which discards in-flight
// responses for a conversation the user has already left.
type Thread struct {
	mu     sync.Mutex
	peerID int64
	gen    uint64
	msgs   []Message
}

// NewThread creates an empty, inactive thread.
func NewThread() *Thread {
	return &Thread{}
}

// Activate scopes the thread to peerID, discarding the previous message set,
// and returns the new generation. Activating the already-active peer still
// bumps the generation so older in-flight fetches are dropped.
func (t *Thread) Activate(peerID int64) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peerID = peerID
	t.gen++
	t.msgs = nil
	return t.gen
}

// Deactivate clears the thread entirely (sign-out, conversation closed).
func (t *Thread) Deactivate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peerID = 0
	t.gen++
	t.msgs = nil
}

// PeerID returns the active peer, or 0 when no conversation is active.
func (t *Thread) PeerID() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peerID
}

// Generation returns the current generation.
func (t *Thread) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen
}

// Reconcile applies an authoritative fetch result. It returns false without
// touching the set when gen no longer matches the current generation (the
// response belongs to an abandoned activation).
//
// Reconciliation merges by identity rather than wholesale-replacing:
// permanent entries are replaced by the fetch result, while temporary
// entries (pending or failed optimistic sends) are preserved — a poll
// landing between send and confirmation must not erase the in-flight entry.
func (t *Thread) Reconcile(gen uint64, fetched []Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		return false
	}

	merged := make([]Message, 0, len(fetched)+4)
	merged = append(merged, fetched...)
	for _, m := range t.msgs {
		if m.ID.IsTemp() {
			merged = append(merged, m)
		}
	}
	sortMessages(merged)
	t.msgs = merged
	return true
}

// InsertPending adds an optimistic entry at its sorted position.
func (t *Thread) InsertPending(m Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.msgs = append(t.msgs, m)
	sortMessages(t.msgs)
}

// ConfirmPending replaces the temporary entry tempID in place with the
// backend-confirmed message, then re-sorts (the backend timestamp may differ
// from the optimistic one). If a refresh already delivered the permanent
// record while the ack was in flight, the temporary entry is simply removed:
// a confirmed send keeps exactly one representation. Returns false when the
// entry no longer exists — a confirmation arriving after a conversation
// switch is dropped, never inserted into the wrong thread.
func (t *Thread) ConfirmPending(tempID string, confirmed Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	fetched := false
	for _, m := range t.msgs {
		if !m.ID.IsTemp() && m.ID.Permanent == confirmed.ID.Permanent {
			fetched = true
			break
		}
	}

	for i, m := range t.msgs {
		if m.ID.Temp != tempID {
			continue
		}
		if fetched {
			t.msgs = append(t.msgs[:i], t.msgs[i+1:]...)
		} else {
			t.msgs[i] = confirmed
			sortMessages(t.msgs)
		}
		return true
	}
	return false
}

// FailPending marks the temporary entry tempID as failed. The entry is
// retained so the user can see what did not send.
func (t *Thread) FailPending(tempID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, m := range t.msgs {
		if m.ID.Temp == tempID {
			t.msgs[i].Delivery = DeliveryFailed
			return true
		}
	}
	return false
}

// Messages returns a copy of the current set in sorted order.
func (t *Thread) Messages() []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Message, len(t.msgs))
	copy(out, t.msgs)
	return out
}

func sortMessages(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return Less(msgs[i], msgs[j])
	})
}
