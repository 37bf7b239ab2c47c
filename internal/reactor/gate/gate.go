// Package gate implements the Crystallization Gate: a pure predicate over
// uncertainty that decides whether a proposed response may be spoken, and
// how hedged it must be.
package gate

import "github.com/MrWong99/reactorcore/pkg/reactortypes"

// Decision is the closed set of gate outcomes.
type Decision int

const (
	// Deny refuses to crystallize anything this tick.
	Deny Decision = iota
	// Delay asks the caller to retry after DelayMillis.
	Delay
	// AllowPartial permits a hedged ("It seems that...") response.
	AllowPartial
	// AllowHard permits a direct response.
	AllowHard
)

func (d Decision) String() string {
	switch d {
	case Deny:
		return "deny"
	case Delay:
		return "delay"
	case AllowPartial:
		return "allow_partial"
	case AllowHard:
		return "allow_hard"
	default:
		return "unknown"
	}
}

const (
	baseDenyThreshold       = 0.8
	confidencePenaltyWeight = 0.3
	delayThreshold          = 0.6
	partialThreshold        = 0.4

	// DelayMillis is the fixed backoff the driver should wait before the
	// reactor re-evaluates a Delay decision.
	DelayMillis = 500
)

// Check evaluates the gate for the current tick. userSpeaking always wins
// outright; otherwise the decision is driven by global latent uncertainty,
// tightened by the self-observation monitor's confidence penalty.
func Check(userSpeaking bool, latents map[string]reactortypes.LatentSlot, meta reactortypes.MetaLatents) Decision {
	if userSpeaking {
		return Deny
	}

	u := globalUncertainty(latents)
	effectiveDenyThreshold := baseDenyThreshold - confidencePenaltyWeight*meta.ConfidencePenalty

	switch {
	case u > effectiveDenyThreshold:
		return Deny
	case u > delayThreshold:
		return Delay
	case u > partialThreshold:
		return AllowPartial
	default:
		return AllowHard
	}
}

// globalUncertainty is 1 minus the mean confidence across all latent slots,
// clamped to [0, 1]; zero slots means zero uncertainty (nothing to doubt).
func globalUncertainty(latents map[string]reactortypes.LatentSlot) float64 {
	if len(latents) == 0 {
		return 0
	}
	var sum float64
	for _, slot := range latents {
		sum += slot.Confidence
	}
	mean := sum / float64(len(latents))
	u := 1 - mean
	if u < 0 {
		return 0
	}
	if u > 1 {
		return 1
	}
	return u
}
