package driver

import (
	"context"
	"log/slog"
	"sync"

	"github.com/MrWong99/reactorcore/pkg/audio"
	"github.com/MrWong99/reactorcore/pkg/audio/mixer"
	"github.com/MrWong99/reactorcore/pkg/provider/tts"
	"github.com/MrWong99/reactorcore/pkg/reactortypes"
	"github.com/MrWong99/reactorcore/pkg/types"
)

// agentID is the fixed speaker identity the mixer associates with every
// segment the reactor ever enqueues — there is exactly one voice.
const agentID = "reactor"

// PlaybackSink is an EffectSink that fulfils SpawnAudioEffect/StopAudioEffect
// by streaming synthesized speech through a [mixer.PriorityMixer] onto an
// audio.Connection's output. Every segment is enqueued at the same fixed
// priority; the reactor only ever has one Output active at a time, so
// SpawnAudio always interrupts whatever the mixer is currently playing
// before enqueuing the new segment — mirroring the planner bridge's
// single-in-flight-request discipline, just arbitrated by the mixer instead
// of a bespoke cancel context.
type PlaybackSink struct {
	LoggingSink

	Events chan<- reactortypes.Event
	TTS    tts.Provider
	Voice  types.VoiceProfile

	mx *mixer.PriorityMixer

	mu       sync.Mutex
	cancelFn context.CancelFunc
}

// NewPlaybackSink constructs a PlaybackSink that streams mixed playback
// audio onto output.
func NewPlaybackSink(events chan<- reactortypes.Event, ttsProvider tts.Provider, voice types.VoiceProfile, output chan<- audio.AudioFrame) *PlaybackSink {
	p := &PlaybackSink{Events: events, TTS: ttsProvider, Voice: voice}
	p.mx = mixer.New(func(chunk []byte) {
		output <- audio.AudioFrame{Data: chunk, SampleRate: 48000, Channels: 1}
	})
	return p
}

// SpawnAudio interrupts whatever the mixer is currently playing, starts a
// new synthesis for effect.Text on its own goroutine, and enqueues the
// resulting stream. It reports playback start/stop back to the reactor as
// PlaybackStatusContent so the VAD monitor can suppress echo while the
// reactor's own voice is playing.
func (p *PlaybackSink) SpawnAudio(effect reactortypes.SpawnAudioEffect) {
	p.mx.Interrupt(audio.DMOverride)
	p.abortSynthesis()

	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancelFn = cancel
	p.mu.Unlock()

	go p.synthesize(ctx, effect.Text)
}

// StopAudio cancels in-flight synthesis and interrupts current playback
// immediately.
func (p *PlaybackSink) StopAudio(reactortypes.StopAudioEffect) {
	p.mx.Interrupt(audio.DMOverride)
	p.abortSynthesis()
}

func (p *PlaybackSink) abortSynthesis() {
	p.mu.Lock()
	cancel := p.cancelFn
	p.cancelFn = nil
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Close releases the mixer's dispatch goroutine. Call once during shutdown.
func (p *PlaybackSink) Close() error {
	return p.mx.Close()
}

func (p *PlaybackSink) synthesize(ctx context.Context, text string) {
	textCh := make(chan string, 1)
	textCh <- text
	close(textCh)

	pcm, err := p.TTS.SynthesizeStream(ctx, textCh, p.Voice)
	if err != nil {
		slog.Warn("driver: playback: failed to start synthesis", "error", err)
		return
	}

	audioCh, done := relay(ctx, pcm)
	segment := &audio.AudioSegment{
		AgentID:      agentID,
		Audio:      audioCh,
		SampleRate: 48000,
		Channels:   1,
		Priority:   0,
	}

	SendPlaybackStatus(p.Events, true)
	p.mx.Enqueue(segment, 0)
	<-done
	SendPlaybackStatus(p.Events, false)
}

// relay re-exposes pcm as a channel the mixer reads from, stopping once ctx
// is cancelled so an aborted synthesis doesn't leave the mixer waiting on a
// chunk that will never come. done closes the moment pcm is fully drained
// or forwarding stops, which is the caller's signal that this segment's
// voice activity — real or abandoned — has ended.
func relay(ctx context.Context, pcm <-chan []byte) (<-chan []byte, <-chan struct{}) {
	out := make(chan []byte)
	done := make(chan struct{})
	go func() {
		defer close(out)
		defer close(done)
		for chunk := range pcm {
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, done
}

// SendPlaybackStatus reports a playback lifecycle transition to the
// reactor.
func SendPlaybackStatus(events chan<- reactortypes.Event, started bool) {
	sendEvent(events, reactortypes.InputEvent{
		Source:  reactortypes.SourcePlayback,
		Content: reactortypes.PlaybackStatusContent{Started: started},
	})
}
