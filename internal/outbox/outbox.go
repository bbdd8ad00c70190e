// Package outbox implements optimistic message sending: the message shows
// up in the active thread immediately with a temporary id, and the backend
// round trip confirms or fails it afterwards.
package outbox

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/chatflow/internal/backend"
	"github.com/matheus3301/chatflow/internal/bus"
	"github.com/matheus3301/chatflow/internal/state"
	"github.com/matheus3301/chatflow/internal/status"
)

var (
	// ErrEmptyMessage rejects a text send whose body is empty or whitespace.
	ErrEmptyMessage = errors.New("outbox: message body is empty")
	// ErrMissingAttachment rejects an image send with no payload.
	ErrMissingAttachment = errors.New("outbox: image message requires a payload")
)

// SendAck is the payload of message.send_ack events.
type SendAck struct {
	PeerID      int64
	TempID      string
	PermanentID int64
}

// SendFailure is the payload of message.send_failed events. The failed
// entry stays in the thread marked failed; nothing retries it.
type SendFailure struct {
	PeerID int64
	TempID string
	Reason string
}

// Sender is the send pipeline. Send never blocks on the network: the
// backend call runs in a goroutine with its own deadline, so navigating
// away mid-send does not cancel the delivery.
type Sender struct {
	api     *backend.Client
	thread  *state.Thread
	list    *state.ConversationList
	machine *status.Machine
	bus     *bus.Bus
	logger  *zap.Logger
}

// NewSender wires the send pipeline.
func NewSender(api *backend.Client, thread *state.Thread, list *state.ConversationList, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *Sender {
	return &Sender{
		api:     api,
		thread:  thread,
		list:    list,
		machine: machine,
		bus:     b,
		logger:  logger,
	}
}

// Send validates the outgoing message, inserts it into the thread as a
// pending entry, point-updates the conversation preview, and dispatches
// the backend call asynchronously. The returned id is the temporary one;
// callers track the outcome through send_ack / send_failed events.
func (s *Sender) Send(peerID int64, body string, kind state.MessageKind) (state.MessageID, error) {
	switch kind {
	case state.KindText:
		if strings.TrimSpace(body) == "" {
			return state.MessageID{}, ErrEmptyMessage
		}
	case state.KindImage:
		if body == "" {
			return state.MessageID{}, ErrMissingAttachment
		}
	}

	tempID := state.NewTempID()
	s.thread.InsertPending(state.Message{
		ID:         tempID,
		PeerID:     peerID,
		Body:       body,
		Kind:       kind,
		AuthoredAt: time.Now(),
		FromSelf:   true,
		Delivery:   state.DeliveryPending,
	})
	s.list.SetPreview(peerID, body, "Just now")

	go s.deliver(peerID, body, kind, tempID)
	return tempID, nil
}

func (s *Sender) deliver(peerID int64, body string, kind state.MessageKind, tempID state.MessageID) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	messageType := "TEXT"
	if kind == state.KindImage {
		messageType = "IMAGE"
	}
	confirmed, err := s.api.SendMessage(ctx, peerID, body, messageType)
	if err != nil {
		s.fail(peerID, tempID, err)
		return
	}

	applied := s.thread.ConfirmPending(tempID.Temp, state.Message{
		ID:         state.PermanentID(confirmed.ID),
		PeerID:     peerID,
		Body:       confirmed.Content,
		Kind:       kind,
		AuthoredAt: confirmed.CreatedAt,
		FromSelf:   true,
		Delivery:   state.DeliverySent,
	})
	if !applied {
		// The user switched conversations before the ack came back. The next
		// poll of that conversation will show the message with its permanent id.
		s.logger.Debug("send confirmation after conversation switch",
			zap.Int64("peer_id", peerID),
			zap.String("temp_id", tempID.Temp))
	}
	s.list.SetPreview(peerID, confirmed.Content, "Just now")
	s.bus.Publish(bus.Event{
		Kind:      bus.KindMessageSendAck,
		Timestamp: time.Now(),
		Payload:   SendAck{PeerID: peerID, TempID: tempID.Temp, PermanentID: confirmed.ID},
	})
}

func (s *Sender) fail(peerID int64, tempID state.MessageID, err error) {
	s.thread.FailPending(tempID.Temp)
	s.logger.Warn("message send failed",
		zap.Int64("peer_id", peerID),
		zap.String("temp_id", tempID.Temp),
		zap.Error(err))
	if errors.Is(err, backend.ErrUnauthorized) {
		cur := s.machine.Current()
		if cur == status.Online || cur == status.Hidden {
			_ = s.machine.Transition(status.AuthExpired)
		}
	}
	s.bus.Publish(bus.Event{
		Kind:      bus.KindMessageSendFailed,
		Timestamp: time.Now(),
		Payload:   SendFailure{PeerID: peerID, TempID: tempID.Temp, Reason: err.Error()},
	})
}
