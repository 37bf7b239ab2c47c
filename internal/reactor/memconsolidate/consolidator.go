// Package memconsolidate implements the Memory Consolidator: a candidate
// buffer with reinforcement counting, temporal gating, consent-aware
// promotion to long-term records, and post-promotion decay. Every
// operation here is a pure function over the maps the reactor's state
// package owns — this package holds no state of its own.
package memconsolidate

import (
	"github.com/google/uuid"

	"github.com/MrWong99/reactorcore/pkg/reactortypes"
)

const (
	// IngestConfidenceMin is the Stable-intent confidence floor that makes
	// an utterance eligible for memory ingestion at all.
	IngestConfidenceMin = 0.85

	// MinConsolidationWindow is the minimum candidate age, in ticks, before
	// it can be promoted (~60s at a 50ms tick base).
	MinConsolidationWindow = 1200

	// MaxCandidateAge is how long an idle (unreinforced) candidate survives
	// before pruning.
	MaxCandidateAge = 12000

	// DecayFactor is applied to a long-term record's strength once the
	// grace window has elapsed since last access.
	DecayFactor = 0.9995

	// GracePeriod is how many ticks since last access before decay begins.
	GracePeriod = 200

	// ForgetThreshold is the strength floor; crossing it emits forgetting.
	ForgetThreshold = 0.1

	// promotedInitialStrength is the strength a freshly promoted record
	// starts at — deliberately below 1.0 so first recall doesn't already
	// read as maximally confident.
	promotedInitialStrength = 0.5

	// unknownConsentConfidenceMin and the Statement-hypothesis requirement
	// gate the one path that is eligible for promotion without prior
	// consent: a very confident, literal statement.
	unknownConsentConfidenceMin = 0.95

	reinforcementStrict     = 2
	reinforcementPermissive = 3
)

// Config selects the consolidator's strictness and safety posture.
type Config struct {
	// PermissiveMode relaxes the promotion reinforcement threshold from 2
	// to 3 repetitions.
	PermissiveMode bool

	// SafeMode, when true, suppresses every memory delta: no ingestion, no
	// promotion, no decay, no forgetting.
	SafeMode bool
}

func (c Config) reinforcementThreshold() int {
	if c.PermissiveMode {
		return reinforcementPermissive
	}
	return reinforcementStrict
}

// Ingest reports the candidate mutation to apply for a newly Stable,
// sufficiently confident intent: reinforcement of an existing candidate
// sharing key, or creation of a new one. ok is false if cfg.SafeMode or
// the intent doesn't clear IngestConfidenceMin.
func Ingest(cfg Config, candidates map[string]reactortypes.MemoryCandidate, key reactortypes.MemoryKey, matched reactortypes.IntentCandidate, now reactortypes.Tick) (candidateID string, reinforced bool, ok bool) {
	if cfg.SafeMode || matched.Confidence < IngestConfidenceMin {
		return "", false, false
	}
	for id, cand := range candidates {
		if cand.Key == key {
			return id, true, true
		}
	}
	return uuid.NewString(), false, true
}

// NewCandidate constructs the MemoryCandidate for a fresh (non-reinforced)
// ingestion.
func NewCandidate(id string, key reactortypes.MemoryKey, matched reactortypes.IntentCandidate, now reactortypes.Tick) reactortypes.MemoryCandidate {
	return reactortypes.MemoryCandidate{
		ID:                 id,
		Key:                key,
		Intent:             matched,
		CreatedAt:          now,
		ReinforcementCount: 1,
		LastReinforcedAt:   now,
	}
}

// PromotionDecision is the outcome of evaluating one candidate against the
// promotion rule.
type PromotionDecision int

const (
	// PromotionNone means no action: the candidate is neither ready to
	// promote nor pruned.
	PromotionNone PromotionDecision = iota
	// PromotionReady means the candidate should become a MemoryRecord.
	PromotionReady
	// PromotionNeedsConsent means the candidate qualifies by reinforcement
	// and age but consent is Unknown and doesn't meet the no-ask
	// fast path — an AskMemoryConsent side effect should be emitted.
	PromotionNeedsConsent
	// PromotionPrune means the candidate has been idle past
	// MaxCandidateAge and should be removed unreinforced.
	PromotionPrune
)

// Evaluate decides what should happen to a single candidate this tick.
func Evaluate(cfg Config, cand reactortypes.MemoryCandidate, consent reactortypes.MemoryConsent, now reactortypes.Tick) PromotionDecision {
	if cfg.SafeMode {
		return PromotionNone
	}

	if now.Sub(cand.LastReinforcedAt) >= MaxCandidateAge {
		return PromotionPrune
	}

	if cand.ReinforcementCount < cfg.reinforcementThreshold() {
		return PromotionNone
	}
	if now.Sub(cand.CreatedAt) < MinConsolidationWindow {
		return PromotionNone
	}

	switch consent.State {
	case reactortypes.ConsentGranted:
		return PromotionReady
	case reactortypes.ConsentUnknown:
		if cand.Key.Hypothesis == reactortypes.HypothesisStatement && cand.Intent.Confidence >= unknownConsentConfidenceMin {
			return PromotionReady
		}
		return PromotionNeedsConsent
	default: // Declined, Ignored
		return PromotionNone
	}
}

// Promote builds the MemoryRecord for a candidate approved by Evaluate.
func Promote(cand reactortypes.MemoryCandidate, now reactortypes.Tick) reactortypes.MemoryRecord {
	return reactortypes.MemoryRecord{
		ID:               cand.ID,
		Intent:           cand.Intent,
		FirstCommittedAt: now,
		LastAccessedAt:   now,
		Strength:         promotedInitialStrength,
	}
}

// DecayRecord applies grace-then-decay to one long-term record. forgotten
// is true iff the resulting strength crossed below ForgetThreshold.
func DecayRecord(cfg Config, rec reactortypes.MemoryRecord, now reactortypes.Tick) (newStrength float64, forgotten bool) {
	if cfg.SafeMode {
		return rec.Strength, false
	}
	if now.Sub(rec.LastAccessedAt) <= GracePeriod {
		return rec.Strength, false
	}
	strength := rec.Strength * DecayFactor
	return strength, strength < ForgetThreshold
}

// Access refreshes a record's LastAccessedAt without changing its
// strength — recall resets the decay grace window but never boosts
// confidence above what it already is.
func Access(rec reactortypes.MemoryRecord, now reactortypes.Tick) reactortypes.MemoryRecord {
	rec.LastAccessedAt = now
	return rec
}
