// Package presence implements the Presence Graph: a pure partial
// state-machine over lifecycle modes. Illegal transitions are rejected
// outright — the graph is the sole authority over PresenceState.
package presence

import "github.com/MrWong99/reactorcore/pkg/reactortypes"

// Transition computes the next PresenceState for (current, req), or false
// if the request is not legal from current — in which case the caller
// must leave state unchanged.
func Transition(current reactortypes.PresenceState, req reactortypes.PresenceRequest) (next reactortypes.PresenceState, ok bool) {
	switch current {
	case reactortypes.PresenceDormant:
		if req == reactortypes.ReqSystemBoot {
			return reactortypes.PresenceAttentive, true
		}

	case reactortypes.PresenceAttentive:
		switch req {
		case reactortypes.ReqWakeWordDetected, reactortypes.ReqInputActivity:
			return reactortypes.PresenceEngaged, true
		case reactortypes.ReqUserSuspend:
			return reactortypes.PresenceSuspended, true
		}

	case reactortypes.PresenceEngaged:
		switch req {
		case reactortypes.ReqOutputCompleted, reactortypes.ReqIntentResolved, reactortypes.ReqTimeout:
			return reactortypes.PresenceAttentive, true
		case reactortypes.ReqLongTermIntentDetected:
			return reactortypes.PresenceQuietlyHolding, true
		case reactortypes.ReqUserSuspend:
			return reactortypes.PresenceSuspended, true
		}

	case reactortypes.PresenceQuietlyHolding:
		switch req {
		case reactortypes.ReqInputActivity:
			return reactortypes.PresenceEngaged, true
		case reactortypes.ReqIntentResolved:
			return reactortypes.PresenceAttentive, true
		case reactortypes.ReqUserSuspend:
			return reactortypes.PresenceSuspended, true
		}

	case reactortypes.PresenceSuspended:
		if req == reactortypes.ReqUserResume {
			return reactortypes.PresenceAttentive, true
		}
	}

	return current, false
}
