// Package vad wraps a voice-activity-detection session into the stateful
// envelope monitor the reactor's tick step consumes: raw PCM in, at most
// one synthetic speech-edge event out. Echo suppression — ignoring mic
// frames while the system itself is talking — lives here, not in the
// underlying engine.
package vad

import (
	"github.com/MrWong99/reactorcore/pkg/provider/vad"
	"github.com/MrWong99/reactorcore/pkg/reactortypes"
)

// Monitor adapts a vad.SessionHandle into the edge-only view the reactor
// needs. It is not safe for concurrent use — the reactor core calls it
// from a single tick-processing context.
type Monitor struct {
	session         vad.SessionHandle
	playbackActive  bool
	lastWasSpeaking bool
}

// New wraps session, which must already be configured for the stream's
// sample rate and frame size.
func New(session vad.SessionHandle) *Monitor {
	return &Monitor{session: session}
}

// SetPlaybackActive records whether the speech synthesizer is currently
// producing audio. While true, ProcessFrame reports no edges at all — this
// is the monitor's echo-suppression contract.
func (m *Monitor) SetPlaybackActive(active bool) {
	m.playbackActive = active
	if active {
		m.session.Reset()
		m.lastWasSpeaking = false
	}
}

// ProcessFrame runs one PCM frame through the underlying session and
// returns a synthetic VAD edge iff the speaking/silent envelope just
// flipped. ok is false when no edge fired this frame (steady state,
// suppressed by playback, or a transient engine error — the error is
// dropped here and the caller cannot tell it apart from steady state).
func (m *Monitor) ProcessFrame(frame []byte) (edge reactortypes.VADEdgeContent, ok bool) {
	if m.playbackActive {
		return reactortypes.VADEdgeContent{}, false
	}

	event, err := m.session.ProcessFrame(frame)
	if err != nil {
		return reactortypes.VADEdgeContent{}, false
	}

	speaking := m.lastWasSpeaking
	switch event.Type {
	case vad.VADSpeechStart, vad.VADSpeechContinue:
		speaking = true
	case vad.VADSpeechEnd, vad.VADSilence:
		speaking = false
	}

	if speaking == m.lastWasSpeaking {
		return reactortypes.VADEdgeContent{}, false
	}
	m.lastWasSpeaking = speaking

	if speaking {
		return reactortypes.VADEdgeContent{Edge: reactortypes.VADSpeechStart}, true
	}
	return reactortypes.VADEdgeContent{Edge: reactortypes.VADSpeechEnd}, true
}

// Close releases the underlying session.
func (m *Monitor) Close() error {
	return m.session.Close()
}
