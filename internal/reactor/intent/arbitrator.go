// Package intent implements the Intent Arbitrator: a pure classifier that
// turns a transcribed utterance into an IntentState, plus the decide()
// function that maps IntentState to a dialogue act. Stable never yields
// anything but Wait — the arbitrator hands off to the planner and never
// speaks on its own.
package intent

import (
	"strings"

	"github.com/antzucaro/matchr"
	"github.com/google/uuid"

	"github.com/MrWong99/reactorcore/pkg/reactortypes"
)

const (
	stabilityGuardMinLen = 5

	commandConfidence           = 0.9
	inquiryStableConfidence     = 0.85
	inquiryUnstableConfidence   = 0.6
	thinkingAloudConfidence     = 0.7
	statementConfidence         = 0.5
	commandFuzzyThreshold       = 0.9
	hedgedInquiryMaxLen         = 10
	thinkingAloudMaxLen         = 5
	unstableClarifyConfMin      = 0.5
)

var commandPhrases = []string{"turn on", "turn off", "play"}
var hedgeWords = []string{"maybe"}
var fillerWords = []string{"um", "uh"}

// Arbitrator classifies transcribed text into IntentState and decides
// dialogue acts. It holds no mutable state of its own — all persistence
// lives in the reactor's canonical State.
type Arbitrator struct{}

// New returns a stateless Arbitrator.
func New() *Arbitrator {
	return &Arbitrator{}
}

// Assess classifies text (with its originating symbol id) against the
// current IntentState and returns the next IntentState. Suspended states
// guard against being overwritten by noise shorter than
// stabilityGuardMinLen; anything longer re-assesses from scratch.
func (a *Arbitrator) Assess(text, symbolID string, current reactortypes.IntentState) reactortypes.IntentState {
	if current.Kind == reactortypes.IntentSuspended && len(text) < stabilityGuardMinLen {
		return current
	}

	candidate := a.classify(text, symbolID)

	switch candidate.hypothesis {
	case reactortypes.HypothesisCommand, reactortypes.HypothesisInquiry:
		if candidate.stable {
			return reactortypes.IntentState{Kind: reactortypes.IntentStable, Candidate: candidate.toTyped()}
		}
	}
	return reactortypes.IntentState{Kind: reactortypes.IntentForming, Candidates: []reactortypes.IntentCandidate{candidate.toTyped()}}
}

// classified is an internal staging struct; it tracks stability alongside
// the public IntentCandidate fields so classify() can stay a single flat
// function without a second return value.
type classified struct {
	hypothesis reactortypes.Hypothesis
	confidence float64
	symbolID   string
	stable     bool
}

func (c classified) toTyped() reactortypes.IntentCandidate {
	return reactortypes.IntentCandidate{
		ID:              uuid.NewString(),
		Hypothesis:      c.hypothesis,
		Confidence:      c.confidence,
		SourceSymbolIDs: []string{c.symbolID},
		Fingerprint:     fingerprint(c.hypothesis, c.symbolID),
	}
}

// classify applies the order-sensitive classification heuristics: command
// keywords first, then wh-/question forms, then filler/short fragments,
// else a low-confidence statement.
func (a *Arbitrator) classify(text, symbolID string) classified {
	lower := strings.ToLower(text)

	if containsAny(lower, commandPhrases) || fuzzyCommandMatch(lower) {
		return classified{hypothesis: reactortypes.HypothesisCommand, confidence: commandConfidence, symbolID: symbolID, stable: true}
	}

	if strings.Contains(lower, "what") || strings.Contains(lower, "how") || strings.Contains(lower, "?") {
		if containsAny(lower, hedgeWords) || len(lower) < hedgedInquiryMaxLen {
			return classified{hypothesis: reactortypes.HypothesisInquiry, confidence: inquiryUnstableConfidence, symbolID: symbolID, stable: false}
		}
		return classified{hypothesis: reactortypes.HypothesisInquiry, confidence: inquiryStableConfidence, symbolID: symbolID, stable: true}
	}

	if containsAny(lower, fillerWords) || len(lower) < thinkingAloudMaxLen {
		return classified{hypothesis: reactortypes.HypothesisThinkingAloud, confidence: thinkingAloudConfidence, symbolID: symbolID, stable: false}
	}

	return classified{hypothesis: reactortypes.HypothesisStatement, confidence: statementConfidence, symbolID: symbolID, stable: false}
}

// fuzzyCommandMatch catches near-miss command phrases an ASR engine
// mangled (e.g. " turn om the lights") via Jaro-Winkler similarity against
// the canonical phrase set, so transcription noise doesn't silently demote
// a command to a low-confidence statement.
func fuzzyCommandMatch(lower string) bool {
	words := strings.Fields(lower)
	for i := range words {
		for j := i + 1; j <= len(words) && j <= i+2; j++ {
			phrase := strings.Join(words[i:j], " ")
			for _, canonical := range commandPhrases {
				if matchr.JaroWinkler(phrase, canonical) >= commandFuzzyThreshold {
					return true
				}
			}
		}
	}
	return false
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func fingerprint(h reactortypes.Hypothesis, symbolID string) string {
	return h.String() + ":" + symbolID
}

// Decide maps an IntentState to the dialogue act the arbitrator commits
// to. Stable intents always Wait — the planner owns the response, never
// the arbitrator.
func Decide(state reactortypes.IntentState) reactortypes.DialogueAct {
	switch state.Kind {
	case reactortypes.IntentNone:
		return reactortypes.DialogueAct{Kind: reactortypes.ActStaySilent}
	case reactortypes.IntentSuspended:
		return reactortypes.DialogueAct{Kind: reactortypes.ActStaySilent}
	case reactortypes.IntentStable:
		return reactortypes.DialogueAct{Kind: reactortypes.ActWait}
	case reactortypes.IntentForming:
		return decideForForming(state.Candidates)
	default:
		return reactortypes.DialogueAct{Kind: reactortypes.ActStaySilent}
	}
}

func decideForForming(candidates []reactortypes.IntentCandidate) reactortypes.DialogueAct {
	if len(candidates) == 0 {
		return reactortypes.DialogueAct{Kind: reactortypes.ActStaySilent}
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
	}

	switch best.Hypothesis {
	case reactortypes.HypothesisThinkingAloud, reactortypes.HypothesisFragment:
		return reactortypes.DialogueAct{Kind: reactortypes.ActStaySilent}
	}

	if best.Confidence > unstableClarifyConfMin {
		return reactortypes.DialogueAct{Kind: reactortypes.ActAskClarification, Message: "Do you want me to respond to that?"}
	}
	return reactortypes.DialogueAct{Kind: reactortypes.ActStaySilent}
}
