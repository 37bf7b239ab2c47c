// Package reactor implements the cognitive reactor's orchestrator: the
// single-threaded, I/O-free tick step that drains queued events, runs
// every subsystem in a fixed phase order, and returns the side effects an
// external driver must execute.
package reactor

import (
	"context"
	"log/slog"
	"time"

	"github.com/MrWong99/reactorcore/internal/reactor/audiosegment"
	"github.com/MrWong99/reactorcore/internal/reactor/clock"
	"github.com/MrWong99/reactorcore/internal/reactor/gate"
	"github.com/MrWong99/reactorcore/internal/reactor/intent"
	"github.com/MrWong99/reactorcore/internal/reactor/lhim"
	"github.com/MrWong99/reactorcore/internal/reactor/memconsolidate"
	"github.com/MrWong99/reactorcore/internal/reactor/monitor"
	"github.com/MrWong99/reactorcore/internal/reactor/planner"
	"github.com/MrWong99/reactorcore/internal/reactor/presence"
	"github.com/MrWong99/reactorcore/internal/reactor/scheduler"
	"github.com/MrWong99/reactorcore/internal/reactor/state"
	"github.com/MrWong99/reactorcore/internal/reactor/telemetry"
	"github.com/MrWong99/reactorcore/internal/reactor/vad"
	"github.com/MrWong99/reactorcore/pkg/reactortypes"
)

const rootTaskID = "root_task"

// fastDecayRate and slowDecayRate govern the two latent modalities derived
// directly from sensor edges, per the tick's latent-derivation phase.
const (
	fastDecayRate = 0.1  // audio energy latent: forgets within a couple seconds
	slowDecayRate = 0.01 // visual anchor latent: persists much longer
)

const (
	visualStabilityBoost             = 0.1
	visualStabilityPenalty           = 0.3
	visualStabilityDistanceThreshold = 5
)

// Reactor owns every subsystem and the canonical State. It is not safe for
// concurrent use — the driver must serialize all calls to TickStep.
type Reactor struct {
	Clock      *clock.Clock
	State      *state.State
	Segments   *audiosegment.Store
	Arbitrator *intent.Arbitrator
	MemoryCfg  memconsolidate.Config
	Semantic   memconsolidate.SemanticStore
	Telemetry  *telemetry.Recorder
	Planner    *planner.Bridge
	Mode       reactortypes.KernelMode

	vadMonitor *vad.Monitor

	lastSpawnAudioAt time.Time
}

// Option configures a Reactor at construction time.
type Option func(*Reactor)

// WithVADMonitor attaches a VAD monitor; omit it for text-only operation.
func WithVADMonitor(m *vad.Monitor) Option {
	return func(r *Reactor) { r.vadMonitor = m }
}

// WithMemoryConfig overrides the default (strict, non-safe) consolidator
// posture.
func WithMemoryConfig(cfg memconsolidate.Config) Option {
	return func(r *Reactor) { r.MemoryCfg = cfg }
}

// WithSemanticStore attaches long-term memory persistence backed by store —
// either a [memconsolidate.FileSemanticStore] or a postgres-backed store.
func WithSemanticStore(store memconsolidate.SemanticStore) Option {
	return func(r *Reactor) { r.Semantic = store }
}

// WithKernelMode sets the initial kernel mode (defaults to Active).
func WithKernelMode(mode reactortypes.KernelMode) Option {
	return func(r *Reactor) { r.Mode = mode }
}

// New constructs a Reactor. bridge may be nil only in tests that never
// exercise planner dispatch.
func New(bridge *planner.Bridge, opts ...Option) *Reactor {
	r := &Reactor{
		Clock:      clock.New(),
		State:      state.New(),
		Segments:   audiosegment.New(),
		Arbitrator: intent.New(),
		Telemetry:  telemetry.New(),
		Planner:    bridge,
		Mode:       reactortypes.KernelActive,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Semantic != nil {
		if records, err := r.Semantic.Load(context.Background()); err != nil {
			slog.Warn("reactor: failed to load semantic memory", "error", err)
		} else {
			r.State.MemoryRecords = records
		}
	}
	return r
}

// TickStep advances logical time by exactly one tick, folds events into
// state, and returns the side effects the driver must execute. It never
// blocks, awaits, or performs a system call of its own — Planner.Dispatch
// only starts a goroutine, it does not wait for it.
func (r *Reactor) TickStep(events []reactortypes.Event) []reactortypes.SideEffect {
	now := r.Clock.Advance()
	r.State.Reduce(reactortypes.TickDelta{Tick: now})

	var effects []reactortypes.SideEffect

	inputs, proposals := classify(events)
	if r.Mode == reactortypes.KernelOnboarding {
		inputs = nil
	}

	speechStartedThisTick := false
	for _, in := range inputs {
		if edge, ok := in.Content.(reactortypes.VADEdgeContent); ok && edge.Edge == reactortypes.VADSpeechStart {
			speechStartedThisTick = true
		}
	}

	effects = append(effects, r.preprocessInputs(inputs, now)...)

	cancelled := r.decideCancellation(inputs)
	if cancelled {
		effects = append(effects, reactortypes.StopAudioEffect{})
		r.recordInterruption()
	}

	interrupted := cancelled || speechStartedThisTick
	if interrupted {
		for _, changed := range lhim.SuspendAllActive(r.State.LongHorizonIntents, now) {
			r.State.Reduce(reactortypes.LongHorizonIntentUpdateDelta{Intent: changed})
			r.Telemetry.Record(reactortypes.IntentLifecycleEvent{Timestamp: time.Now(), Kind: reactortypes.IntentSuspendedEvent, IntentID: changed.ID})
		}
	}

	r.tickLHIMDecay(now)

	if len(inputs) == 0 && !interrupted {
		r.tryResumeLHIM(now)
	}

	meta := monitor.Observe(r.State.MetaLatents, inputs, interrupted)

	if len(inputs) > 0 && r.Planner != nil {
		r.Planner.Abort()
	}

	acceptedIntents := r.ingestProposals(proposals)

	if len(r.State.ActiveOutputs) == 0 && r.State.LastPlannedVersion != r.State.Version && r.Planner != nil {
		snapshot := planner.BuildSnapshot(
			reactortypes.Epoch{Tick: now, StateVersion: r.State.Version},
			r.State.UserSpeaking,
			len(r.State.ActiveOutputs),
			0,
			r.State.Latents,
			r.State.MetaLatents,
			lhim.Context(r.State.LongHorizonIntents),
		)
		r.Planner.Dispatch(snapshot)
		r.State.Reduce(reactortypes.LastPlannedVersionDelta{Version: r.State.Version})
	}

	effects = append(effects, r.scheduleIntents(acceptedIntents, now)...)

	effects = append(effects, r.postTick(now)...)

	r.State.Reduce(reactortypes.MetaLatentUpdateDelta{Latents: meta})

	return effects
}

func classify(events []reactortypes.Event) (inputs []reactortypes.InputEvent, proposals []reactortypes.PlannerProposalEvent) {
	for _, ev := range events {
		switch e := ev.(type) {
		case reactortypes.InputEvent:
			inputs = append(inputs, e)
		case reactortypes.PlannerProposalEvent:
			proposals = append(proposals, e)
		}
	}
	return inputs, proposals
}

// preprocessInputs implements phase 3 (and, fused with it, the generic
// part of phase 9 — most input content has no reduction rule beyond what
// is applied here inline).
func (r *Reactor) preprocessInputs(inputs []reactortypes.InputEvent, now reactortypes.Tick) []reactortypes.SideEffect {
	var effects []reactortypes.SideEffect

	for _, in := range inputs {
		switch c := in.Content.(type) {
		case reactortypes.PlaybackStatusContent:
			if r.vadMonitor != nil {
				r.vadMonitor.SetPlaybackActive(c.Started)
			}

		case reactortypes.RawAudioChunkContent:
			if r.vadMonitor != nil {
				if edge, ok := r.vadMonitor.ProcessFrame(c.PCM); ok {
					r.handleVADEdge(edge, in.Source, now)
				}
			}
			r.appendActiveSegment(c.PCM)

		case reactortypes.VADEdgeContent:
			r.handleVADEdge(c, in.Source, now)

		case reactortypes.VisualPerceptContent:
			r.deriveVisualStability(c, now)

		case reactortypes.TranscriptionRequestContent:
			seg, ok := r.State.AudioSegments[c.SegmentID]
			if !ok {
				continue
			}
			updated, ok := audiosegment.BeginTranscription(seg)
			if !ok {
				continue
			}
			r.State.Reduce(reactortypes.AudioSegmentDelta{Segment: updated})
			effects = append(effects, reactortypes.RequestTranscriptionEffect{SegmentID: c.SegmentID})

		case reactortypes.ProvisionalTextContent:
			if seg, ok := r.State.AudioSegments[c.SegmentID]; ok {
				r.State.Reduce(reactortypes.AudioSegmentDelta{Segment: audiosegment.CompleteTranscription(seg, c.Text)})
			}
			r.classifyUtterance(c.Text, c.SegmentID, now)

		case reactortypes.TextContent:
			r.classifyUtterance(c.Text, "text", now)

		case reactortypes.ConsentResponseContent:
			next := reactortypes.ConsentDeclined
			if c.Granted {
				next = reactortypes.ConsentGranted
			}
			r.State.Reduce(reactortypes.MemoryConsentResolvedDelta{Key: c.Key, State: next, Now: now})
		}
	}

	return effects
}

func (r *Reactor) appendActiveSegment(pcm []byte) {
	id := r.State.ActiveSegmentID
	if id == "" {
		return
	}
	seg, ok := r.State.AudioSegments[id]
	if !ok {
		return
	}
	r.State.Reduce(reactortypes.AudioSegmentDelta{Segment: audiosegment.AppendFrames(seg, pcm)})
}

func (r *Reactor) handleVADEdge(edge reactortypes.VADEdgeContent, source reactortypes.EventSource, now reactortypes.Tick) {
	switch edge.Edge {
	case reactortypes.VADSpeechStart:
		if r.State.ActiveSegmentID == "" {
			seg := r.Segments.StartSegment(now)
			r.State.Reduce(reactortypes.AudioSegmentDelta{Segment: seg})
		}
		r.suspendOnInterruption()
		r.State.Reduce(reactortypes.LatentUpdateDelta{Slot: reactortypes.LatentSlot{
			ID:         "audio-energy",
			Values:     []float64{1.0},
			Confidence: 0.8,
			Modality:   reactortypes.ModalityAudio,
			DecayRate:  fastDecayRate,
			CreatedAt:  now,
		}})

	case reactortypes.VADSpeechEnd:
		if id := r.State.ActiveSegmentID; id != "" {
			if seg, ok := r.State.AudioSegments[id]; ok {
				r.State.Reduce(reactortypes.AudioSegmentDelta{Segment: audiosegment.Finalize(seg, now)})
			}
		}
	}

	r.State.Reduce(reactortypes.InputReceivedDelta{Input: reactortypes.InputEvent{Source: source, Content: edge}})
}

// suspendOnInterruption implements the interruption-suspend rule from
// phase 3: Forming -> Suspended on the best candidate; Stable -> Suspended.
func (r *Reactor) suspendOnInterruption() {
	cur := r.State.IntentState
	switch cur.Kind {
	case reactortypes.IntentForming:
		if len(cur.Candidates) == 0 {
			return
		}
		best := cur.Candidates[0]
		for _, c := range cur.Candidates[1:] {
			if c.Confidence > best.Confidence {
				best = c
			}
		}
		r.State.Reduce(reactortypes.IntentStateDelta{State: reactortypes.IntentState{Kind: reactortypes.IntentSuspended, Candidate: best}})
	case reactortypes.IntentStable:
		r.State.Reduce(reactortypes.IntentStateDelta{State: reactortypes.IntentState{Kind: reactortypes.IntentSuspended, Candidate: cur.Candidate}})
	}
}

func (r *Reactor) deriveVisualStability(c reactortypes.VisualPerceptContent, now reactortypes.Tick) {
	stability := r.State.Visual.Stability
	if c.Distance < visualStabilityDistanceThreshold {
		stability = clamp01(stability + visualStabilityBoost)
	} else {
		stability = clamp01(stability - visualStabilityPenalty)
	}
	r.State.Reduce(reactortypes.VisualStateUpdateDelta{Hash: c.Hash, Stability: stability})
	r.State.Reduce(reactortypes.LatentUpdateDelta{Slot: reactortypes.LatentSlot{
		ID:         "visual-anchor",
		Values:     []float64{stability},
		Confidence: 0.8,
		Modality:   reactortypes.ModalityVisual,
		DecayRate:  slowDecayRate,
		CreatedAt:  now,
	}})
}

func (r *Reactor) classifyUtterance(text, symbolID string, now reactortypes.Tick) {
	next := r.Arbitrator.Assess(text, symbolID, r.State.IntentState)
	r.State.Reduce(reactortypes.IntentStateDelta{State: next})

	act := intent.Decide(next)
	r.Telemetry.Record(reactortypes.DialogueActEvent{Timestamp: time.Now(), Act: act.Kind})

	if next.Kind != reactortypes.IntentStable {
		return
	}

	matched := next.Candidate
	r.registerLongHorizonIntent(matched, now)
	r.ingestMemoryCandidate(matched, now)
}

func (r *Reactor) registerLongHorizonIntent(matched reactortypes.IntentCandidate, now reactortypes.Tick) {
	id := matched.ID
	for existingID, existing := range r.State.LongHorizonIntents {
		if existing.Hypothesis == matched.Hypothesis && sameSymbols(existing.SourceSymbolIDs, matched.SourceSymbolIDs) {
			id = existingID
			break
		}
	}
	_, existed := r.State.LongHorizonIntents[id]
	registered := lhim.Register(r.State.LongHorizonIntents, id, matched.Hypothesis, matched.SourceSymbolIDs, now)
	r.State.Reduce(reactortypes.LongHorizonIntentUpdateDelta{Intent: registered})
	if !existed {
		r.Telemetry.Record(reactortypes.IntentLifecycleEvent{Timestamp: time.Now(), Kind: reactortypes.IntentCreated, IntentID: id})
	}
}

func (r *Reactor) ingestMemoryCandidate(matched reactortypes.IntentCandidate, now reactortypes.Tick) {
	key := reactortypes.MemoryKey{Hypothesis: matched.Hypothesis, Fingerprint: matched.Fingerprint}
	id, reinforced, ok := memconsolidate.Ingest(r.MemoryCfg, r.State.MemoryCandidates, key, matched, now)
	if !ok {
		return
	}
	if reinforced {
		r.State.Reduce(reactortypes.MemoryCandidateReinforcedDelta{ID: id, Now: now})
		r.Telemetry.Record(reactortypes.MemoryEvent{Timestamp: time.Now(), Kind: reactortypes.MemoryReinforced, MemoryID: id})
		return
	}
	cand := memconsolidate.NewCandidate(id, key, matched, now)
	r.State.Reduce(reactortypes.MemoryCandidateCreatedDelta{Candidate: cand})
	r.Telemetry.Record(reactortypes.MemoryEvent{Timestamp: time.Now(), Kind: reactortypes.MemoryCandidateCreated, MemoryID: id})
}

func (r *Reactor) decideCancellation(inputs []reactortypes.InputEvent) bool {
	for _, in := range inputs {
		if reactortypes.StopSignal(in.Content) {
			r.State.Reduce(reactortypes.TaskCanceledDelta{ParentID: rootTaskID})
			return true
		}
	}
	return false
}

func (r *Reactor) recordInterruption() {
	r.Telemetry.Record(reactortypes.InterruptionEvent{Timestamp: time.Now(), CancelLatency: 0})
}

func (r *Reactor) tickLHIMDecay(now reactortypes.Tick) {
	for id, it := range r.State.LongHorizonIntents {
		updated, invalidated := lhim.Tick(it, now)
		r.State.Reduce(reactortypes.LongHorizonIntentUpdateDelta{Intent: updated})
		if invalidated {
			r.Telemetry.Record(reactortypes.IntentLifecycleEvent{Timestamp: time.Now(), Kind: reactortypes.IntentInvalidatedEvent, IntentID: id})
		}
	}
}

func (r *Reactor) tryResumeLHIM(now reactortypes.Tick) {
	if r.State.IntentState.Kind != reactortypes.IntentForming {
		return
	}
	for _, candidate := range r.State.IntentState.Candidates {
		for id, it := range r.State.LongHorizonIntents {
			if !lhim.CanResume(it, candidate) {
				continue
			}
			dormancy := time.Duration(0)
			if it.SuspendedAt != nil {
				dormancy = time.Duration(now.Sub(*it.SuspendedAt)) * time.Millisecond
			}
			resumed := lhim.Resume(it, now)
			r.State.Reduce(reactortypes.LongHorizonIntentUpdateDelta{Intent: resumed})
			r.Telemetry.Record(reactortypes.IntentLifecycleEvent{Timestamp: time.Now(), Kind: reactortypes.IntentResumedEvent, IntentID: id, DormancyAge: dormancy})
			return
		}
	}
}

func (r *Reactor) ingestProposals(proposals []reactortypes.PlannerProposalEvent) []reactortypes.Intent {
	var accepted []reactortypes.Intent
	for _, p := range proposals {
		v := p.Epoch.StateVersion
		if v == r.State.Version || v+1 == r.State.Version || v == 0 {
			accepted = append(accepted, p.Intent)
		} else {
			slog.Debug("reactor: discarded stale plan", "epoch_version", v, "state_version", r.State.Version)
		}
	}
	return accepted
}

func (r *Reactor) scheduleIntents(intents []reactortypes.Intent, now reactortypes.Tick) []reactortypes.SideEffect {
	var effects []reactortypes.SideEffect
	for ordinal, in := range intents {
		gd := scheduler.GateAllowHard
		if _, isBegin := in.(reactortypes.BeginResponseIntent); isBegin {
			gd = translateGate(gate.Check(r.State.UserSpeaking, r.State.Latents, r.State.MetaLatents))
		}

		delta, effect := scheduler.Schedule(in, now, uint16(ordinal), gd)
		if delta != nil {
			r.State.Reduce(delta)
		}
		if effect != nil {
			effects = append(effects, effect)
			if _, ok := effect.(reactortypes.SpawnAudioEffect); ok {
				r.recordSilenceBeforeSpawn()
			}
		}
	}
	return effects
}

func translateGate(d gate.Decision) scheduler.GateDecision {
	switch d {
	case gate.Deny:
		return scheduler.GateDeny
	case gate.Delay:
		return scheduler.GateDelay
	case gate.AllowPartial:
		return scheduler.GateAllowPartial
	default:
		return scheduler.GateAllowHard
	}
}

func (r *Reactor) recordSilenceBeforeSpawn() {
	now := time.Now()
	if !r.lastSpawnAudioAt.IsZero() {
		r.Telemetry.Record(reactortypes.SilenceEvent{Timestamp: now, Duration: now.Sub(r.lastSpawnAudioAt)})
	}
	r.lastSpawnAudioAt = now
}

// postTick implements phase 14: consolidator tick (LTM decay, promotion,
// pruning) and persistence.
func (r *Reactor) postTick(now reactortypes.Tick) []reactortypes.SideEffect {
	var effects []reactortypes.SideEffect

	for id, cand := range r.State.MemoryCandidates {
		key := cand.Key
		consent := r.State.MemoryConsents[key]
		switch memconsolidate.Evaluate(r.MemoryCfg, cand, consent, now) {
		case memconsolidate.PromotionReady:
			record := memconsolidate.Promote(cand, now)
			r.State.Reduce(reactortypes.MemoryPromotedDelta{Record: record})
			r.State.Reduce(reactortypes.MemoryCandidateRemovedDelta{ID: id})
			r.Telemetry.Record(reactortypes.MemoryEvent{Timestamp: time.Now(), Kind: reactortypes.MemoryPromoted, MemoryID: id})
			r.persistSemantic()
		case memconsolidate.PromotionNeedsConsent:
			r.State.Reduce(reactortypes.MemoryConsentAskedDelta{Key: key, Now: now})
			effects = append(effects, reactortypes.AskMemoryConsentEffect{Key: key, PromptID: id})
		case memconsolidate.PromotionPrune:
			r.State.Reduce(reactortypes.MemoryCandidateRemovedDelta{ID: id})
			r.Telemetry.Record(reactortypes.MemoryEvent{Timestamp: time.Now(), Kind: reactortypes.MemoryCandidatePruned, MemoryID: id})
		}
	}

	forgotten := false
	for id, rec := range r.State.MemoryRecords {
		newStrength, forget := memconsolidate.DecayRecord(r.MemoryCfg, rec, now)
		if forget {
			r.State.Reduce(reactortypes.MemoryForgottenDelta{ID: id})
			r.Telemetry.Record(reactortypes.MemoryEvent{Timestamp: time.Now(), Kind: reactortypes.MemoryForgottenEvt, MemoryID: id})
			forgotten = true
			continue
		}
		if newStrength != rec.Strength {
			r.State.Reduce(reactortypes.MemoryDecayedDelta{ID: id, NewStrength: newStrength})
		}
	}
	if forgotten {
		r.persistSemantic()
	}

	return effects
}

func (r *Reactor) persistSemantic() {
	if r.Semantic == nil {
		return
	}
	if err := r.Semantic.Save(context.Background(), r.State.MemoryRecords); err != nil {
		slog.Warn("reactor: failed to persist semantic memory", "error", err)
	}
}

func sameSymbols(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// RequestPresenceTransition applies req to the presence graph iff legal,
// returning whether it took effect.
func (r *Reactor) RequestPresenceTransition(req reactortypes.PresenceRequest) bool {
	next, ok := presence.Transition(r.State.Presence, req)
	if !ok {
		return false
	}
	r.State.Reduce(reactortypes.PresenceTransitionDelta{New: next})
	return true
}

// SegmentFrames returns a copy of the buffered PCM for segment id, for
// handoff to the driver's ASR worker. Callers must only invoke this from
// within side-effect dispatch for the same tick that produced the
// RequestTranscriptionEffect — the reactor is not safe for concurrent use
// otherwise.
func (r *Reactor) SegmentFrames(id string) ([]byte, bool) {
	seg, ok := r.State.AudioSegments[id]
	if !ok {
		return nil, false
	}
	buf := make([]byte, len(seg.Frames))
	copy(buf, seg.Frames)
	return buf, true
}

// Shutdown releases the VAD session, if any.
func (r *Reactor) Shutdown(_ context.Context) error {
	if r.vadMonitor != nil {
		return r.vadMonitor.Close()
	}
	return nil
}
