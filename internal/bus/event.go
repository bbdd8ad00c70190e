package bus

import "time"

// Event kinds published by the engine. Subscribers filter by namespace
// prefix, e.g. "message." receives every message event.
const (
	KindSessionSignedIn      = "session.signed_in"
	KindSessionSignedOut     = "session.signed_out"
	KindSessionStatusChanged = "session.status_changed"

	KindPresenceOnline  = "presence.online"
	KindPresenceOffline = "presence.offline"

	KindConversationListUpdated = "conversation.list_updated"
	KindConversationActivated   = "conversation.activated"

	KindMessageReceived   = "message.received"
	KindMessageUpserted   = "message.upserted"
	KindMessageSendAck    = "message.send_ack"
	KindMessageSendFailed = "message.send_failed"

	KindNotificationPushed  = "notification.pushed"
	KindNotificationRemoved = "notification.removed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
