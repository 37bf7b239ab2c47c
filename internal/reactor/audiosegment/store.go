// Package audiosegment manages the per-utterance PCM buffer lifecycle:
// Buffering -> Pending -> Transcribing -> Transcribed, with an escape to
// Discarded. The store never talks to ASR itself — it only tracks status
// and buffers, and reports back to the reactor via deltas it asks the
// caller to apply.
package audiosegment

import (
	"strconv"

	"github.com/MrWong99/reactorcore/pkg/reactortypes"
)

// Store is a pure helper around state's AudioSegments map: it knows the
// lifecycle rules, but never owns state directly.
type Store struct {
	nextOrdinal uint64
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// StartSegment begins a new Buffering segment for the given tick. The
// caller (the reactor) is responsible for checking that no segment is
// already active before calling this — the spec guarantees at most one
// Buffering segment at a time.
func (s *Store) StartSegment(now reactortypes.Tick) reactortypes.AudioSegment {
	s.nextOrdinal++
	return reactortypes.AudioSegment{
		ID:        segmentID(now, s.nextOrdinal),
		StartTick: now,
		Status:    reactortypes.SegmentBuffering,
	}
}

// AppendFrames returns seg with pcm appended to its frame buffer. Only
// meaningful while seg.Status == SegmentBuffering.
func AppendFrames(seg reactortypes.AudioSegment, pcm []byte) reactortypes.AudioSegment {
	seg.Frames = append(seg.Frames, pcm...)
	return seg
}

// Finalize transitions a Buffering segment to Pending at SpeechEnd.
func Finalize(seg reactortypes.AudioSegment, now reactortypes.Tick) reactortypes.AudioSegment {
	seg.EndTick = now
	seg.Status = reactortypes.SegmentPending
	return seg
}

// BeginTranscription transitions a Pending segment to Transcribing. ok is
// false (no-op) if seg is not Pending — transcription requests against any
// other status are silently rejected per the ordered-phase contract.
func BeginTranscription(seg reactortypes.AudioSegment) (reactortypes.AudioSegment, bool) {
	if seg.Status != reactortypes.SegmentPending {
		return seg, false
	}
	seg.Status = reactortypes.SegmentTranscribing
	return seg, true
}

// CompleteTranscription transitions a Transcribing segment to Transcribed
// and records the provisional text.
func CompleteTranscription(seg reactortypes.AudioSegment, text string) reactortypes.AudioSegment {
	seg.Status = reactortypes.SegmentTranscribed
	seg.Transcription = text
	return seg
}

// Discard marks seg as Discarded from any non-terminal status (e.g. a VAD
// false positive with no accompanying speech).
func Discard(seg reactortypes.AudioSegment) reactortypes.AudioSegment {
	seg.Status = reactortypes.SegmentDiscarded
	return seg
}

func segmentID(tick reactortypes.Tick, ordinal uint64) string {
	return "seg-" + strconv.FormatUint(tick.Frame, 10) + "-" + strconv.FormatUint(ordinal, 10)
}
