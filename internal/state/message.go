package state

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DeliveryState tracks a message's position in the send/receive lifecycle.
type DeliveryState string

const (
	DeliveryPending   DeliveryState = "pending"
	DeliverySent      DeliveryState = "sent"
	DeliveryDelivered DeliveryState = "delivered"
	DeliveryRead      DeliveryState = "read"
	DeliveryFailed    DeliveryState = "failed"
)

// MessageKind is the message payload type.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
)

// MessageID is either a backend-assigned permanent id (totally ordered,
// monotonically increasing) or a locally generated temporary id. A temporary
// id always sorts after any permanent id with an equal timestamp.
type MessageID struct {
	Permanent int64
	Temp      string
	seq       uint64
}

// IsTemp reports whether the id is a local temporary one.
func (id MessageID) IsTemp() bool {
	return id.Temp != ""
}

func (id MessageID) String() string {
	if id.IsTemp() {
		return id.Temp
	}
	return fmt.Sprintf("%d", id.Permanent)
}

// PermanentID wraps a backend message id.
func PermanentID(id int64) MessageID {
	return MessageID{Permanent: id}
}

var tempSeq atomic.Uint64

// NewTempID generates a temporary id unique within the client session. The
// sequence number preserves creation order among temporaries with equal
// timestamps.
func NewTempID() MessageID {
	seq := tempSeq.Add(1)
	return MessageID{
		Temp: fmt.Sprintf("temp-%d-%s", time.Now().UnixMilli(), uuid.NewString()),
		seq:  seq,
	}
}

// Message is one entry of a conversation's message set.
type Message struct {
	ID         MessageID
	PeerID     int64
	Body       string
	Kind       MessageKind
	AuthoredAt time.Time
	FromSelf   bool
	Delivery   DeliveryState
}

// Less is the ordering invariant for a conversation's message set:
// authoredAt ascending; at equal authoredAt permanent ids sort before
// temporary ids, permanent ids by numeric value, temporary ids by creation
// order.
func Less(a, b Message) bool {
	if !a.AuthoredAt.Equal(b.AuthoredAt) {
		return a.AuthoredAt.Before(b.AuthoredAt)
	}
	at, bt := a.ID.IsTemp(), b.ID.IsTemp()
	if at != bt {
		return bt // permanent before temporary
	}
	if at {
		return a.ID.seq < b.ID.seq
	}
	return a.ID.Permanent < b.ID.Permanent
}
