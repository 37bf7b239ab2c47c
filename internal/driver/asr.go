package driver

import (
	"context"
	"log/slog"

	"github.com/MrWong99/reactorcore/pkg/provider/stt"
	"github.com/MrWong99/reactorcore/pkg/reactortypes"
)

// ASRSink is an EffectSink that fulfils RequestTranscriptionEffect by
// opening a one-shot STT stream per segment, feeding it the segment's
// buffered PCM, and reporting the first final transcript back to the
// driver as a ProvisionalTextContent input. All other effects fall back to
// LoggingSink's defaults.
type ASRSink struct {
	LoggingSink

	Events chan<- reactortypes.Event
	STT    stt.Provider
	Config stt.StreamConfig
}

// RequestTranscription opens a session, streams pcm to it in one shot, and
// relays the first final transcript. Transcription happens on its own
// goroutine — the tick loop is never blocked on provider latency.
func (s *ASRSink) RequestTranscription(effect reactortypes.RequestTranscriptionEffect, pcm []byte) {
	go s.transcribe(effect.SegmentID, pcm)
}

func (s *ASRSink) transcribe(segmentID string, pcm []byte) {
	ctx := context.Background()
	session, err := s.STT.StartStream(ctx, s.Config)
	if err != nil {
		slog.Warn("driver: asr: failed to start stream", "segment_id", segmentID, "error", err)
		return
	}
	defer session.Close()

	if err := session.SendAudio(pcm); err != nil {
		slog.Warn("driver: asr: failed to send audio", "segment_id", segmentID, "error", err)
		return
	}

	for t := range session.Finals() {
		if !t.IsFinal {
			continue
		}
		SendTranscription(s.Events, segmentID, t.Text)
		return
	}
}
