// Package state holds the reactor's single canonical State struct and its
// one pure reducer. Nothing outside this package ever mutates a State
// directly — every change flows through Reduce(delta).
package state

import (
	"math"

	"github.com/MrWong99/reactorcore/pkg/reactortypes"
)

// VisualState tracks the decaying stability score derived from
// screen-capture hash distances.
type VisualState struct {
	Hash      uint64
	Stability float64
}

// State is the reactor's entire world view. Every field is owned
// exclusively by the reducer; external collaborators only ever see a
// read-only projection (a snapshot or a telemetry summary).
type State struct {
	Tick    reactortypes.Tick
	Version uint64

	UserSpeaking       bool
	LastSpeechStart    reactortypes.Tick
	HasLastSpeechStart bool
	HesitationDetected bool
	TurnPressure       float64

	Visual VisualState

	Latents map[string]reactortypes.LatentSlot

	ActiveOutputs map[reactortypes.OutputID]reactortypes.Output

	ActiveSegmentID string // empty if no segment is Buffering
	AudioSegments   map[string]reactortypes.AudioSegment

	IntentState reactortypes.IntentState

	LongHorizonIntents map[string]reactortypes.LongHorizonIntent

	MemoryCandidates map[string]reactortypes.MemoryCandidate
	MemoryRecords    map[string]reactortypes.MemoryRecord
	MemoryConsents   map[reactortypes.MemoryKey]reactortypes.MemoryConsent

	Presence    reactortypes.PresenceState
	MetaLatents reactortypes.MetaLatents

	LastPlannedVersion uint64
}

// New returns a zero-value State ready to receive the first Tick delta.
func New() *State {
	return &State{
		Latents:            make(map[string]reactortypes.LatentSlot),
		ActiveOutputs:      make(map[reactortypes.OutputID]reactortypes.Output),
		AudioSegments:      make(map[string]reactortypes.AudioSegment),
		LongHorizonIntents: make(map[string]reactortypes.LongHorizonIntent),
		MemoryCandidates:   make(map[string]reactortypes.MemoryCandidate),
		MemoryRecords:      make(map[string]reactortypes.MemoryRecord),
		MemoryConsents:     make(map[reactortypes.MemoryKey]reactortypes.MemoryConsent),
		Presence:           reactortypes.PresenceDormant,
	}
}

const (
	idleTurnPressureDecay    = 0.01
	speakingOverOutputGain   = 0.1
	visualStabilityDecay     = 0.01
	latentPruneThreshold     = 0.05
	hesitationSpeechMaxTicks = 10
)

// Reduce applies one delta, mutating State in place. Every delta — even a
// no-op one, e.g. referring to a missing id — increments Version; the
// reducer is total and never panics.
func (s *State) Reduce(delta reactortypes.StateDelta) {
	s.Version++

	switch d := delta.(type) {
	case reactortypes.TickDelta:
		s.reduceTick(d)
	case reactortypes.InputReceivedDelta:
		s.reduceInputReceived(d)
	case reactortypes.VisualStateUpdateDelta:
		s.Visual.Hash = d.Hash
		s.Visual.Stability = clamp01(d.Stability)
	case reactortypes.LatentUpdateDelta:
		s.Latents[d.Slot.ID] = d.Slot
	case reactortypes.OutputProposedDelta:
		s.ActiveOutputs[d.Output.ID] = d.Output
	case reactortypes.OutputStatusDelta:
		s.reduceOutputStatus(d)
	case reactortypes.TaskCanceledDelta:
		s.reduceTaskCanceled(d)
	case reactortypes.AudioSegmentDelta:
		s.reduceAudioSegment(d)
	case reactortypes.IntentStateDelta:
		s.IntentState = d.State
	case reactortypes.LongHorizonIntentUpdateDelta:
		s.LongHorizonIntents[d.Intent.ID] = d.Intent
	case reactortypes.MemoryCandidateCreatedDelta:
		s.MemoryCandidates[d.Candidate.ID] = d.Candidate
	case reactortypes.MemoryCandidateReinforcedDelta:
		s.reduceMemoryCandidateReinforced(d)
	case reactortypes.MemoryCandidateRemovedDelta:
		delete(s.MemoryCandidates, d.ID)
	case reactortypes.MemoryPromotedDelta:
		s.MemoryRecords[d.Record.ID] = d.Record
	case reactortypes.MemoryDecayedDelta:
		s.reduceMemoryDecayed(d)
	case reactortypes.MemoryForgottenDelta:
		delete(s.MemoryRecords, d.ID)
	case reactortypes.MemoryConsentAskedDelta:
		s.MemoryConsents[d.Key] = reactortypes.MemoryConsent{Key: d.Key, State: reactortypes.ConsentUnknown, AskedAt: d.Now}
	case reactortypes.MemoryConsentResolvedDelta:
		s.reduceMemoryConsentResolved(d)
	case reactortypes.PresenceTransitionDelta:
		s.Presence = d.New
	case reactortypes.MetaLatentUpdateDelta:
		s.MetaLatents = d.Latents
	case reactortypes.LastPlannedVersionDelta:
		s.LastPlannedVersion = d.Version
	default:
		// Unknown delta variant: no-op. The algebra is closed, so this
		// only fires if a new variant was added without a case here.
	}
}

func (s *State) reduceTick(d reactortypes.TickDelta) {
	s.Tick = d.Tick

	if s.UserSpeaking && s.hasSpeakingOutput() {
		s.TurnPressure = clamp01(s.TurnPressure + speakingOverOutputGain)
	} else {
		s.TurnPressure = clamp01(s.TurnPressure - idleTurnPressureDecay)
	}

	s.Visual.Stability = clamp01(s.Visual.Stability - visualStabilityDecay)

	for id, slot := range s.Latents {
		slot.Confidence *= 1 - slot.DecayRate
		if slot.Confidence <= latentPruneThreshold {
			delete(s.Latents, id)
			continue
		}
		s.Latents[id] = slot
	}
}

func (s *State) hasSpeakingOutput() bool {
	for _, out := range s.ActiveOutputs {
		if out.Status == reactortypes.OutputSoftCommit || out.Status == reactortypes.OutputHardCommit {
			return true
		}
	}
	return false
}

func (s *State) reduceInputReceived(d reactortypes.InputReceivedDelta) {
	switch c := d.Input.Content.(type) {
	case reactortypes.VADEdgeContent:
		switch c.Edge {
		case reactortypes.VADSpeechStart:
			s.UserSpeaking = true
			s.LastSpeechStart = s.Tick
			s.HasLastSpeechStart = true
			s.HesitationDetected = false
		case reactortypes.VADSpeechEnd:
			s.UserSpeaking = false
			if s.HasLastSpeechStart {
				duration := s.Tick.Sub(s.LastSpeechStart)
				s.HesitationDetected = duration < hesitationSpeechMaxTicks
			}
		}
	}
}

func (s *State) reduceOutputStatus(d reactortypes.OutputStatusDelta) {
	out, ok := s.ActiveOutputs[d.ID]
	if !ok {
		return
	}
	if out.Status == reactortypes.OutputCanceled {
		return
	}
	out.Status = d.Status
	if d.CommittedAt != nil {
		out.CommittedAt = d.CommittedAt
	}
	s.ActiveOutputs[d.ID] = out
}

func (s *State) reduceTaskCanceled(d reactortypes.TaskCanceledDelta) {
	for id, out := range s.ActiveOutputs {
		if out.ParentID != d.ParentID || out.Status == reactortypes.OutputCanceled {
			continue
		}
		out.Status = reactortypes.OutputCanceled
		s.ActiveOutputs[id] = out
	}
}

func (s *State) reduceAudioSegment(d reactortypes.AudioSegmentDelta) {
	seg := d.Segment
	s.AudioSegments[seg.ID] = seg
	switch seg.Status {
	case reactortypes.SegmentBuffering:
		s.ActiveSegmentID = seg.ID
	default:
		if s.ActiveSegmentID == seg.ID {
			s.ActiveSegmentID = ""
		}
	}
}

func (s *State) reduceMemoryCandidateReinforced(d reactortypes.MemoryCandidateReinforcedDelta) {
	cand, ok := s.MemoryCandidates[d.ID]
	if !ok {
		return
	}
	cand.ReinforcementCount++
	cand.LastReinforcedAt = d.Now
	s.MemoryCandidates[d.ID] = cand
}

func (s *State) reduceMemoryDecayed(d reactortypes.MemoryDecayedDelta) {
	rec, ok := s.MemoryRecords[d.ID]
	if !ok {
		return
	}
	rec.Strength = clamp01(d.NewStrength)
	s.MemoryRecords[d.ID] = rec
}

func (s *State) reduceMemoryConsentResolved(d reactortypes.MemoryConsentResolvedDelta) {
	consent, ok := s.MemoryConsents[d.Key]
	if !ok {
		consent = reactortypes.MemoryConsent{Key: d.Key}
	}
	consent.State = d.State
	now := d.Now
	consent.ResolvedAt = &now
	s.MemoryConsents[d.Key] = consent
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
