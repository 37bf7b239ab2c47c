// Package lhim implements the Long-Horizon Intent Manager: a registry of
// user goals that persist across turns, suspended on interruption and
// resumed when context reappears, with monotonic decay absent
// reinforcement.
package lhim

import (
	"math"

	"github.com/google/uuid"

	"github.com/MrWong99/reactorcore/pkg/reactortypes"
)

const (
	// DecayRate is applied per elapsed tick: score *= rate^(now-last_updated).
	DecayRate = 0.9997

	suspendPenalty = 0.8
	resumeBoost    = 0.1

	invalidationThreshold = 0.1
	dormancyThreshold     = 0.3
	resumeThreshold       = 0.3 // Suspended/Dormant must clear this to resume
)

// Register either reinforces an existing intent sharing id (decay reset to
// 1.0, status -> Active) or creates a new Active one.
func Register(existing map[string]reactortypes.LongHorizonIntent, id string, hypothesis reactortypes.Hypothesis, symbolIDs []string, now reactortypes.Tick) reactortypes.LongHorizonIntent {
	if intent, ok := existing[id]; ok {
		intent.DecayScore = 1.0
		intent.Status = reactortypes.IntentActive
		intent.LastActiveAt = now
		intent.LastUpdatedAt = now
		intent.SuspendedAt = nil
		return intent
	}
	return reactortypes.LongHorizonIntent{
		ID:              id,
		Hypothesis:      hypothesis,
		SourceSymbolIDs: symbolIDs,
		DecayScore:      1.0,
		Status:          reactortypes.IntentActive,
		CreatedAt:       now,
		LastActiveAt:    now,
		LastUpdatedAt:   now,
	}
}

// NewID mints an opaque identifier for a freshly registered intent.
func NewID() string {
	return uuid.NewString()
}

// Suspend applies the immediate suspension penalty to an Active intent.
// No-op (returned unchanged) if intent is not Active.
func Suspend(intent reactortypes.LongHorizonIntent, now reactortypes.Tick) reactortypes.LongHorizonIntent {
	if intent.Status != reactortypes.IntentActive {
		return intent
	}
	intent.Status = reactortypes.IntentSuspendedStatus
	intent.DecayScore *= suspendPenalty
	intent.SuspendedAt = &now
	intent.LastUpdatedAt = now
	return intent
}

// SuspendAllActive bulk-suspends every Active intent in one pass — used
// for interruption handling (cancellation or SpeechStart).
func SuspendAllActive(intents map[string]reactortypes.LongHorizonIntent, now reactortypes.Tick) []reactortypes.LongHorizonIntent {
	var changed []reactortypes.LongHorizonIntent
	for id, intent := range intents {
		if intent.Status != reactortypes.IntentActive {
			continue
		}
		suspended := Suspend(intent, now)
		intents[id] = suspended
		changed = append(changed, suspended)
	}
	return changed
}

// Tick applies one tick's worth of decay to intent and returns the updated
// value along with whether its status changed to Invalidated this call (for
// telemetry). A change to Dormant is reflected only in updated.Status.
func Tick(intent reactortypes.LongHorizonIntent, now reactortypes.Tick) (updated reactortypes.LongHorizonIntent, invalidated bool) {
	if intent.Status == reactortypes.IntentInvalidated || intent.Status == reactortypes.IntentCompleted {
		return intent, false
	}

	elapsed := now.Sub(intent.LastUpdatedAt)
	intent.DecayScore *= math.Pow(DecayRate, float64(elapsed))
	intent.LastUpdatedAt = now

	switch {
	case intent.DecayScore < invalidationThreshold:
		intent.Status = reactortypes.IntentInvalidated
		return intent, true
	case intent.DecayScore < dormancyThreshold:
		if intent.Status == reactortypes.IntentActive || intent.Status == reactortypes.IntentSuspendedStatus {
			intent.Status = reactortypes.IntentDormant
		}
	}
	return intent, false
}

// CanResume reports whether intent is eligible for silent resumption: it
// must be Suspended or Dormant, above resumeThreshold, and share a source
// symbol with forming.
func CanResume(intent reactortypes.LongHorizonIntent, forming reactortypes.IntentCandidate) bool {
	if intent.Status != reactortypes.IntentSuspendedStatus && intent.Status != reactortypes.IntentDormant {
		return false
	}
	if intent.DecayScore <= resumeThreshold {
		return false
	}
	return sharesSymbol(intent.SourceSymbolIDs, forming.SourceSymbolIDs)
}

// Resume promotes intent back to Active with the bounded resumption
// boost.
func Resume(intent reactortypes.LongHorizonIntent, now reactortypes.Tick) reactortypes.LongHorizonIntent {
	intent.Status = reactortypes.IntentActive
	intent.DecayScore = clamp01(intent.DecayScore + resumeBoost)
	intent.LastActiveAt = now
	intent.LastUpdatedAt = now
	return intent
}

// Context derives the planner-facing IntentContext from the strongest
// Active intent, or a zero-value (empty focus) if none exists.
func Context(intents map[string]reactortypes.LongHorizonIntent) reactortypes.IntentContext {
	var best reactortypes.LongHorizonIntent
	found := false
	for _, intent := range intents {
		if intent.Status != reactortypes.IntentActive {
			continue
		}
		if !found || intent.DecayScore > best.DecayScore {
			best = intent
			found = true
		}
	}
	if !found {
		return reactortypes.IntentContext{}
	}
	return reactortypes.IntentContext{ActiveFocus: best.Hypothesis.String(), Strength: best.DecayScore}
}

func sharesSymbol(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
