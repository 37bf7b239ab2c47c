package reactortypes

import "time"

// TelemetryEvent is the closed, privacy-clean event algebra the recorder
// accepts. Every variant carries only ids, enums, counts, and durations —
// never raw text, audio, or embeddings. Decision code must never read
// these back; they exist purely for the read-only snapshot API.
type TelemetryEvent interface {
	isTelemetryEvent()
	At() time.Time
}

// SilenceEvent records how long the system stayed silent between two
// outputs (or boot and the first output).
type SilenceEvent struct {
	Timestamp time.Time
	Duration  time.Duration
}

func (e SilenceEvent) isTelemetryEvent() {}
func (e SilenceEvent) At() time.Time     { return e.Timestamp }

// InterruptionEvent records a user-speech interruption of an in-flight
// output and how long it took to cancel playback.
type InterruptionEvent struct {
	Timestamp     time.Time
	CancelLatency time.Duration
}

func (e InterruptionEvent) isTelemetryEvent() {}
func (e InterruptionEvent) At() time.Time     { return e.Timestamp }

// IntentLifecycleKind enumerates the long-horizon-intent lifecycle events
// the telemetry ring tracks.
type IntentLifecycleKind int

const (
	IntentCreated IntentLifecycleKind = iota
	IntentSuspendedEvent
	IntentResumedEvent
	IntentInvalidatedEvent
)

// IntentLifecycleEvent records one LHIM transition.
type IntentLifecycleEvent struct {
	Timestamp   time.Time
	Kind        IntentLifecycleKind
	IntentID    string
	DormancyAge time.Duration // meaningful only for IntentResumedEvent
}

func (e IntentLifecycleEvent) isTelemetryEvent() {}
func (e IntentLifecycleEvent) At() time.Time     { return e.Timestamp }

// MemoryEventKind enumerates the memory-consolidator lifecycle events.
type MemoryEventKind int

const (
	MemoryCandidateCreated MemoryEventKind = iota
	MemoryReinforced
	MemoryPromoted
	MemoryForgottenEvt
	MemoryCandidatePruned
)

// MemoryEvent records one memory-consolidator transition.
type MemoryEvent struct {
	Timestamp time.Time
	Kind      MemoryEventKind
	MemoryID  string
}

func (e MemoryEvent) isTelemetryEvent() {}
func (e MemoryEvent) At() time.Time     { return e.Timestamp }

// DialogueActEvent records which dialogue act the arbitrator decided.
type DialogueActEvent struct {
	Timestamp time.Time
	Act       DialogueActKind
}

func (e DialogueActEvent) isTelemetryEvent() {}
func (e DialogueActEvent) At() time.Time     { return e.Timestamp }
