// Package telemetry implements the Telemetry Recorder: an append-only,
// bounded ring of privacy-clean events with a derived-metric snapshot API.
// Recorder is read-only to the rest of the reactor in the sense that
// nothing in decision logic may query it — only an external inspector
// (CLI, metrics exporter) calls Snapshot.
package telemetry

import (
	"sync"
	"time"

	"github.com/MrWong99/reactorcore/pkg/reactortypes"
)

// MaxEvents bounds the ring; the oldest event is dropped once full.
const MaxEvents = 10000

// Recorder is safe for concurrent use: the reactor's single-threaded core
// writes to it during the tick step, while an external inspector may read
// a Snapshot from another goroutine at any time.
type Recorder struct {
	mu     sync.Mutex
	events []reactortypes.TelemetryEvent
	next   int
	full   bool
}

// New returns an empty Recorder.
func New() *Recorder {
	return &Recorder{events: make([]reactortypes.TelemetryEvent, MaxEvents)}
}

// Record appends ev to the ring, dropping the oldest event if full.
func (r *Recorder) Record(ev reactortypes.TelemetryEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[r.next] = ev
	r.next = (r.next + 1) % MaxEvents
	if r.next == 0 {
		r.full = true
	}
}

// Snapshot is the derived-metric view computed over the current ring
// contents.
type Snapshot struct {
	SilenceCount          int
	SilenceTotal          time.Duration
	SilenceMean           time.Duration
	InterruptionCount     int
	InterruptionMeanDelay time.Duration
	IntentCreated         int
	IntentSuspended       int
	IntentResumed         int
	IntentInvalidated     int
	IntentMeanDormancy    time.Duration
	MemoryCandidateCount  int
	MemoryReinforcedCount int
	MemoryPromotedCount   int
	MemoryForgottenCount  int
	MemoryPrunedCount     int
	DialogueActCounts     map[reactortypes.DialogueActKind]int
}

// Snapshot computes derived metrics over every event currently held.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{DialogueActCounts: make(map[reactortypes.DialogueActKind]int)}

	var interruptionDelaySum, dormancySum time.Duration

	for _, ev := range r.liveEvents() {
		switch e := ev.(type) {
		case reactortypes.SilenceEvent:
			snap.SilenceCount++
			snap.SilenceTotal += e.Duration
		case reactortypes.InterruptionEvent:
			snap.InterruptionCount++
			interruptionDelaySum += e.CancelLatency
		case reactortypes.IntentLifecycleEvent:
			switch e.Kind {
			case reactortypes.IntentCreated:
				snap.IntentCreated++
			case reactortypes.IntentSuspendedEvent:
				snap.IntentSuspended++
			case reactortypes.IntentResumedEvent:
				snap.IntentResumed++
				dormancySum += e.DormancyAge
			case reactortypes.IntentInvalidatedEvent:
				snap.IntentInvalidated++
			}
		case reactortypes.MemoryEvent:
			switch e.Kind {
			case reactortypes.MemoryCandidateCreated:
				snap.MemoryCandidateCount++
			case reactortypes.MemoryReinforced:
				snap.MemoryReinforcedCount++
			case reactortypes.MemoryPromoted:
				snap.MemoryPromotedCount++
			case reactortypes.MemoryForgottenEvt:
				snap.MemoryForgottenCount++
			case reactortypes.MemoryCandidatePruned:
				snap.MemoryPrunedCount++
			}
		case reactortypes.DialogueActEvent:
			snap.DialogueActCounts[e.Act]++
		}
	}

	if snap.SilenceCount > 0 {
		snap.SilenceMean = snap.SilenceTotal / time.Duration(snap.SilenceCount)
	}
	if snap.InterruptionCount > 0 {
		snap.InterruptionMeanDelay = interruptionDelaySum / time.Duration(snap.InterruptionCount)
	}
	if snap.IntentResumed > 0 {
		snap.IntentMeanDormancy = dormancySum / time.Duration(snap.IntentResumed)
	}

	return snap
}

// liveEvents returns the events currently held, oldest first. Must be
// called with mu held.
func (r *Recorder) liveEvents() []reactortypes.TelemetryEvent {
	if !r.full {
		return r.events[:r.next]
	}
	ordered := make([]reactortypes.TelemetryEvent, 0, MaxEvents)
	ordered = append(ordered, r.events[r.next:]...)
	ordered = append(ordered, r.events[:r.next]...)
	return ordered
}
