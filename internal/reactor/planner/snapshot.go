package planner

import "github.com/MrWong99/reactorcore/pkg/reactortypes"

// LatentSummary is the textual-firewall view of one latent slot: modality
// and confidence only, never the underlying values. This is the one place
// raw sensor data is guaranteed never to leak into the planner prompt.
type LatentSummary struct {
	Modality   string
	Confidence float64
}

// Snapshot is everything the out-of-process planner is allowed to see.
type Snapshot struct {
	Epoch               reactortypes.Epoch
	UserActive          bool
	ActiveOutputCount   int
	RecentInterruptions int
	Latents             []LatentSummary
	MoodLabel           string
	IntentContext       reactortypes.IntentContext
}

// BuildSnapshot assembles the planner-facing view from the reactor's
// current world state. Nothing here ever copies raw latent values, audio,
// or text — only derived, privacy-safe summaries.
func BuildSnapshot(
	epoch reactortypes.Epoch,
	userSpeaking bool,
	activeOutputCount int,
	recentInterruptions int,
	latents map[string]reactortypes.LatentSlot,
	meta reactortypes.MetaLatents,
	intentCtx reactortypes.IntentContext,
) Snapshot {
	summaries := make([]LatentSummary, 0, len(latents))
	for _, slot := range latents {
		summaries = append(summaries, LatentSummary{Modality: slot.Modality.String(), Confidence: slot.Confidence})
	}

	return Snapshot{
		Epoch:               epoch,
		UserActive:          userSpeaking,
		ActiveOutputCount:   activeOutputCount,
		RecentInterruptions: recentInterruptions,
		Latents:             summaries,
		MoodLabel:           moodLabel(meta),
		IntentContext:       intentCtx,
	}
}

// moodLabel collapses the three meta-latents into a single coarse label —
// deliberately lossy, since the planner only needs a steering hint, not
// the underlying scalars.
func moodLabel(meta reactortypes.MetaLatents) string {
	switch {
	case meta.CorrectionBias > 0.5:
		return "corrected"
	case meta.InterruptionSensitivity > 0.5:
		return "guarded"
	case meta.ConfidencePenalty > 0.5:
		return "uncertain"
	default:
		return "neutral"
	}
}
