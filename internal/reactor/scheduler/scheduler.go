// Package scheduler implements the pure projection from an accepted
// planner Intent to the (StateDelta, SideEffect) pair the reactor applies
// and emits. Output ids are deterministic — (tick.frame, ordinal) — so
// scheduling the same intent at the same position always yields the same
// identity.
package scheduler

import "github.com/MrWong99/reactorcore/pkg/reactortypes"

const rootTaskID = "root_task"

// Schedule projects one accepted intent into an optional state delta and
// an optional side effect. gateDecision is only consulted for
// BeginResponse — every other intent bypasses the gate entirely, per the
// ordered-phase contract.
func Schedule(intent reactortypes.Intent, tick reactortypes.Tick, ordinal uint16, gateDecision GateDecision) (delta reactortypes.StateDelta, effect reactortypes.SideEffect) {
	outputID := reactortypes.OutputID{Tick: tick.Frame, Ordinal: ordinal}

	switch in := intent.(type) {
	case reactortypes.DoNothingIntent:
		return nil, nil

	case reactortypes.DelayIntent:
		return nil, reactortypes.LogEffect{Message: "planner requested delay"}

	case reactortypes.AskClarificationIntent:
		out := reactortypes.Output{
			ID:         outputID,
			Text:       in.Prompt,
			Status:     reactortypes.OutputDraft,
			ParentID:   rootTaskID,
			ProposedAt: tick,
		}
		return reactortypes.OutputProposedDelta{Output: out}, reactortypes.SpawnAudioEffect{OutputID: outputID, Text: in.Prompt}

	case reactortypes.ReviseIntent:
		out := reactortypes.Output{
			ID:         in.TargetOutput,
			Text:       in.Text,
			Status:     reactortypes.OutputDraft,
			ParentID:   rootTaskID,
			ProposedAt: tick,
		}
		return reactortypes.OutputProposedDelta{Output: out}, reactortypes.SpawnAudioEffect{OutputID: in.TargetOutput, Text: in.Text}

	case reactortypes.BeginResponseIntent:
		return scheduleBeginResponse(in, outputID, tick, gateDecision)

	default:
		return nil, nil
	}
}

// GateDecision mirrors gate.Decision without importing the gate package,
// avoiding a dependency cycle — the reactor orchestrator passes the
// concrete decision in.
type GateDecision int

const (
	GateDeny GateDecision = iota
	GateDelay
	GateAllowPartial
	GateAllowHard
)

func scheduleBeginResponse(in reactortypes.BeginResponseIntent, outputID reactortypes.OutputID, tick reactortypes.Tick, decision GateDecision) (reactortypes.StateDelta, reactortypes.SideEffect) {
	switch decision {
	case GateDeny:
		return nil, reactortypes.LogEffect{Message: "gate denied crystallization"}
	case GateDelay:
		return nil, reactortypes.LogEffect{Message: "gate delayed crystallization"}
	case GateAllowPartial:
		text := hedge(in.Text)
		out := reactortypes.Output{ID: outputID, Text: text, Status: reactortypes.OutputSoftCommit, ParentID: rootTaskID, ProposedAt: tick}
		return reactortypes.OutputProposedDelta{Output: out}, reactortypes.SpawnAudioEffect{OutputID: outputID, Text: text}
	case GateAllowHard:
		out := reactortypes.Output{ID: outputID, Text: in.Text, Status: reactortypes.OutputHardCommit, ParentID: rootTaskID, ProposedAt: tick}
		return reactortypes.OutputProposedDelta{Output: out}, reactortypes.SpawnAudioEffect{OutputID: outputID, Text: in.Text}
	default:
		return nil, nil
	}
}

func hedge(text string) string {
	if text == "" {
		return text
	}
	return "It seems that " + lowerFirst(text)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'A' && r[0] <= 'Z' {
		r[0] = r[0] + ('a' - 'A')
	}
	return string(r)
}
