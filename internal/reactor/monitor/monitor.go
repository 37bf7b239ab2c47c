// Package monitor implements the Self-Observation Monitor: it watches raw
// inputs for self-correction and interruption signals and derives the
// slow-moving MetaLatents that bias the gate and the planner snapshot's mood
// label. All three
// latents decay toward zero absent reinforcement.
package monitor

import (
	"strings"

	"github.com/MrWong99/reactorcore/pkg/reactortypes"
)

const (
	decayPerTick = 0.02

	correctionBump          = 0.15
	interruptionBump        = 0.2
	confidencePenaltyBump   = 0.1
	correctionBumpCeiling   = 1.0
)

var correctionPhrases = []string{"no,", "not that", "that's wrong", "i said"}

// Observe feeds one tick's raw inputs (and whether an interruption/cancel
// happened) into the running MetaLatents and returns the updated value.
// It never reads long-term state — only the immediate tick's signals.
func Observe(current reactortypes.MetaLatents, inputs []reactortypes.InputEvent, interrupted bool) reactortypes.MetaLatents {
	next := decay(current)

	if interrupted {
		next.InterruptionSensitivity = clamp01(next.InterruptionSensitivity + interruptionBump)
	}

	for _, in := range inputs {
		text, ok := in.Content.(reactortypes.TextContent)
		if !ok {
			continue
		}
		if containsCorrection(strings.ToLower(text.Text)) {
			next.CorrectionBias = clamp01(next.CorrectionBias + correctionBump)
			next.ConfidencePenalty = clamp01(next.ConfidencePenalty + confidencePenaltyBump)
		}
	}

	return next
}

func decay(m reactortypes.MetaLatents) reactortypes.MetaLatents {
	return reactortypes.MetaLatents{
		InterruptionSensitivity: clamp01(m.InterruptionSensitivity - decayPerTick),
		ConfidencePenalty:       clamp01(m.ConfidencePenalty - decayPerTick),
		CorrectionBias:          clamp01(m.CorrectionBias - decayPerTick),
	}
}

func containsCorrection(lower string) bool {
	for _, phrase := range correctionPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > correctionBumpCeiling {
		return correctionBumpCeiling
	}
	return v
}
