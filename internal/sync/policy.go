package sync

// Op names a backend operation issued by the background engine.
type Op string

const (
	OpHeartbeat      Op = "heartbeat"
	OpSetOnline      Op = "set_online"
	OpSetOffline     Op = "set_offline"
	OpListRefresh    Op = "list_refresh"
	OpFriendsRefresh Op = "friends_refresh"
	OpThreadRefresh  Op = "thread_refresh"
	OpMarkRead       Op = "mark_read"
	OpSend           Op = "send"
)

// Policy declares how a failure of the operation is handled. Background
// operations retry only through their next timer tick; nothing in the
// engine retries a failed call by itself.
type Policy struct {
	// Surfaced: the failure is converted into a result value for the
	// initiating caller to render.
	Surfaced bool
	// Logged: the failure is written to the structured log.
	Logged bool
	// ClearsState: a non-silent failure empties the local view instead of
	// leaving stale data visible.
	ClearsState bool
}

// policies is the single place the failure-handling rules live, so the
// behavior per operation is auditable and testable rather than scattered
// across call sites.
var policies = map[Op]Policy{
	OpHeartbeat:      {Logged: true},
	OpSetOnline:      {Logged: true},
	OpSetOffline:     {Logged: true},
	OpListRefresh:    {Logged: true, ClearsState: true}, // non-silent refresh only
	OpFriendsRefresh: {Logged: true},
	OpThreadRefresh:  {Logged: true},
	OpMarkRead:       {Logged: true},
	OpSend:           {Surfaced: true, Logged: true},
}

// PolicyFor returns the failure policy for op.
func PolicyFor(op Op) Policy {
	return policies[op]
}
