package reactortypes

// PresenceState is a lifecycle mode of the reactor as a whole. Transitions
// are governed exclusively by the Presence Graph (internal/reactor/presence);
// no other component may set this field directly.
type PresenceState int

const (
	PresenceDormant PresenceState = iota
	PresenceAttentive
	PresenceEngaged
	PresenceQuietlyHolding
	PresenceSuspended
)

func (p PresenceState) String() string {
	switch p {
	case PresenceDormant:
		return "dormant"
	case PresenceAttentive:
		return "attentive"
	case PresenceEngaged:
		return "engaged"
	case PresenceQuietlyHolding:
		return "quietly_holding"
	case PresenceSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// PresenceRequest is a request for a presence transition. Requests are
// proposals, not commands — the graph validates them and may reject.
type PresenceRequest int

const (
	ReqSystemBoot PresenceRequest = iota
	ReqWakeWordDetected
	ReqInputActivity
	ReqOutputCompleted
	ReqLongTermIntentDetected
	ReqIntentResolved
	ReqUserSuspend
	ReqUserResume
	ReqTimeout
)
