package driver

import (
	"context"
	"log/slog"

	"github.com/MrWong99/reactorcore/internal/observe"
	"github.com/MrWong99/reactorcore/pkg/audio"
	"github.com/MrWong99/reactorcore/pkg/reactortypes"
)

// RunAudioCapture reads frames from one participant input stream and
// forwards them to the driver as RawAudioChunkContent events, until that
// stream closes. It runs on its own goroutine; callers
// typically start one per newly joined participant, keyed off
// [audio.Connection.OnParticipantChange].
func RunAudioCapture(events chan<- reactortypes.Event, stream <-chan audio.AudioFrame) {
	for frame := range stream {
		sendEvent(events, reactortypes.InputEvent{
			Source: reactortypes.SourceAudio,
			Content: reactortypes.RawAudioChunkContent{
				PCM:        frame.Data,
				SampleRate: frame.SampleRate,
			},
		})
	}
}

// RunPlaybackStatus forwards platform-level output lifecycle to the reactor
// so the VAD monitor's echo-suppression flag tracks actual playback state.
func RunPlaybackStatus(events chan<- reactortypes.Event, started <-chan bool) {
	for v := range started {
		sendEvent(events, reactortypes.InputEvent{
			Source:  reactortypes.SourcePlayback,
			Content: reactortypes.PlaybackStatusContent{Started: v},
		})
	}
}

// SendText delivers a single already-final utterance — typed chat input or
// a command from another collaborator surface — directly to the
// arbitrator, bypassing VAD and transcription entirely.
func SendText(events chan<- reactortypes.Event, text string) {
	sendEvent(events, reactortypes.InputEvent{
		Source:  reactortypes.SourceText,
		Content: reactortypes.TextContent{Text: text},
	})
}

// SendTranscription reports a completed STT result for segmentID.
func SendTranscription(events chan<- reactortypes.Event, segmentID, text string) {
	sendEvent(events, reactortypes.InputEvent{
		Source:  reactortypes.SourceTranscription,
		Content: reactortypes.ProvisionalTextContent{SegmentID: segmentID, Text: text},
	})
}

// SendConsentResponse reports the user's answer to a prior
// AskMemoryConsentEffect.
func SendConsentResponse(events chan<- reactortypes.Event, key reactortypes.MemoryKey, granted bool) {
	sendEvent(events, reactortypes.InputEvent{
		Source:  reactortypes.SourceConsent,
		Content: reactortypes.ConsentResponseContent{Key: key, Granted: granted},
	})
}

// OnParticipantJoin is the audio.Connection participant-change callback
// wiring: every join gets its own capture goroutine, sourced from the
// connection's current InputStreams snapshot.
func OnParticipantJoin(events chan<- reactortypes.Event, conn audio.Connection) func(audio.Event) {
	return func(ev audio.Event) {
		if ev.Type != audio.EventJoin {
			return
		}
		streams := conn.InputStreams()
		stream, ok := streams[ev.UserID]
		if !ok {
			slog.Warn("driver: join event for unknown participant", "user_id", ev.UserID)
			return
		}
		go RunAudioCapture(events, stream)
	}
}

// sendEvent delivers ev without blocking the caller indefinitely; a full
// buffer indicates the driver has fallen badly behind and the event is
// dropped rather than risk stalling a sensor goroutine.
func sendEvent(events chan<- reactortypes.Event, ev reactortypes.Event) {
	select {
	case events <- ev:
	default:
		source := sourceOf(ev)
		slog.Warn("driver: event buffer full, dropping event", "source", source)
		observe.DefaultMetrics().RecordEventDropped(context.Background(), source.String())
	}
}
