// Package driver is the reactor's only I/O boundary: a ticker loop that
// periodically calls Reactor.TickStep, an MPSC event channel every sensor
// goroutine feeds, and an EffectSink that turns returned side effects into
// real playback/transcription/consent-prompt actions.
//
// Every goroutine this package starts is a producer onto a single buffered
// channel; the tick loop is the sole consumer. If a tick is running when the
// ticker fires again, the firing is dropped — ticks are never queued up to
// catch up later, matching the logical clock's own skip-don't-catch-up
// contract.
package driver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/reactorcore/internal/observe"
	"github.com/MrWong99/reactorcore/internal/reactor"
	"github.com/MrWong99/reactorcore/pkg/reactortypes"
)

const eventBufferSize = 256

// EffectSink executes the side effects TickStep returns. Implementations
// must return promptly — anything slow (an HTTP call, a subprocess) belongs
// on its own goroutine that reports its outcome back as an input event.
type EffectSink interface {
	SpawnAudio(reactortypes.SpawnAudioEffect)
	StopAudio(reactortypes.StopAudioEffect)
	RequestTranscription(effect reactortypes.RequestTranscriptionEffect, pcm []byte)
	AskMemoryConsent(reactortypes.AskMemoryConsentEffect)
	Log(reactortypes.LogEffect)
}

// LoggingSink is a minimal EffectSink that routes every effect through
// slog. Embed it in a richer sink to get sensible defaults for whichever
// effects that sink doesn't need to override.
type LoggingSink struct{}

func (LoggingSink) SpawnAudio(e reactortypes.SpawnAudioEffect) {
	slog.Info("driver: spawn audio", "output_id", e.OutputID, "text", e.Text)
}

func (LoggingSink) StopAudio(reactortypes.StopAudioEffect) {
	slog.Info("driver: stop audio")
}

func (LoggingSink) RequestTranscription(e reactortypes.RequestTranscriptionEffect, pcm []byte) {
	slog.Info("driver: request transcription", "segment_id", e.SegmentID, "bytes", len(pcm))
}

func (LoggingSink) AskMemoryConsent(e reactortypes.AskMemoryConsentEffect) {
	slog.Info("driver: ask memory consent", "prompt_id", e.PromptID, "hypothesis", e.Key.Hypothesis)
}

func (LoggingSink) Log(e reactortypes.LogEffect) {
	slog.Info("driver: reactor log", "message", e.Message)
}

// Driver owns the tick loop and the MPSC event channel feeding it. It does
// not own sensor goroutines directly — callers start those separately and
// feed Events() — but it does own the ticker and the effect dispatch.
type Driver struct {
	reactor *reactor.Reactor
	sink    EffectSink
	period  time.Duration
	metrics *observe.Metrics

	events chan reactortypes.Event

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Option configures optional Driver behavior.
type Option func(*Driver)

// WithMetrics records tick duration and dropped-event counters to m. When
// unset, the driver runs without emitting OTel metrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// NewEventChannel allocates the MPSC channel a Driver will consume. Callers
// construct it first so it can also be handed to the planner bridge (which
// needs somewhere to deliver proposals) before the Reactor and Driver
// themselves exist.
func NewEventChannel() chan reactortypes.Event {
	return make(chan reactortypes.Event, eventBufferSize)
}

// New returns a Driver ticking at period, feeding r, and dispatching
// returned effects to sink. events is typically one previously returned by
// NewEventChannel and already wired into the planner bridge.
func New(r *reactor.Reactor, sink EffectSink, period time.Duration, events chan reactortypes.Event, opts ...Option) *Driver {
	d := &Driver{
		reactor: r,
		sink:    sink,
		period:  period,
		events:  events,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Events returns the write-only side of the MPSC channel. Every sensor
// goroutine (audio capture, vision, text input, the STT worker, the
// planner bridge) sends onto this same channel.
func (d *Driver) Events() chan<- reactortypes.Event {
	return d.events
}

// Run blocks, ticking the reactor at d.period until ctx is cancelled or
// Stop is called. It is the single consumer of d.events.
func (d *Driver) Run(ctx context.Context) {
	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case <-ticker.C:
			d.tick()
		}
	}
}

// tick drains whatever events have queued up since the last tick — without
// blocking for more — then advances the reactor by exactly one logical
// tick and dispatches the returned side effects.
func (d *Driver) tick() {
	var pending []reactortypes.Event
drain:
	for {
		select {
		case ev := <-d.events:
			pending = append(pending, ev)
		default:
			break drain
		}
	}

	start := time.Now()
	effects := d.reactor.TickStep(pending)
	if d.metrics != nil {
		d.metrics.RecordTick(context.Background(), time.Since(start).Seconds(), len(pending) > 0)
	}
	for _, effect := range effects {
		d.dispatch(effect)
	}
}

func (d *Driver) dispatch(effect reactortypes.SideEffect) {
	switch e := effect.(type) {
	case reactortypes.SpawnAudioEffect:
		d.sink.SpawnAudio(e)
	case reactortypes.StopAudioEffect:
		d.sink.StopAudio(e)
	case reactortypes.RequestTranscriptionEffect:
		pcm, _ := d.reactor.SegmentFrames(e.SegmentID)
		d.sink.RequestTranscription(e, pcm)
	case reactortypes.AskMemoryConsentEffect:
		d.sink.AskMemoryConsent(e)
	case reactortypes.LogEffect:
		d.sink.Log(e)
	default:
		slog.Warn("driver: unhandled side effect type", "type", effect)
	}
}

// Stop halts the tick loop. Safe to call more than once.
func (d *Driver) Stop() {
	d.closeOnce.Do(func() {
		close(d.done)
	})
}

// Send delivers ev onto the event channel without blocking the caller
// indefinitely; a full buffer indicates the driver has fallen badly behind
// and the event is dropped rather than risk stalling a sensor goroutine.
func (d *Driver) Send(ev reactortypes.Event) {
	sendEvent(d.events, ev)
}

func sourceOf(ev reactortypes.Event) reactortypes.EventSource {
	if in, ok := ev.(reactortypes.InputEvent); ok {
		return in.Source
	}
	return reactortypes.SourceUnknown
}
