package reactortypes

// SideEffect is the closed set of actions the reactor cannot perform
// itself; the tick step returns a slice of these for the driver to
// execute between ticks. The set is closed and small by design — every
// new capability the reactor needs is a new variant here, never an
// ad hoc callback.
type SideEffect interface {
	isSideEffect()
}

// LogEffect is an idempotent sink for diagnostic messages; the driver may
// route it to slog at Info level.
type LogEffect struct {
	Message string
}

func (LogEffect) isSideEffect() {}

// SpawnAudioEffect starts speech playback for a crystallized Output. The
// driver must cancel any prior in-flight spawn before starting this one.
type SpawnAudioEffect struct {
	OutputID OutputID
	Text     string
}

func (SpawnAudioEffect) isSideEffect() {}

// StopAudioEffect cancels the current playback immediately. The driver is
// contractually bound to synchronously cancel any in-flight audio; the
// latency target is one tick.
type StopAudioEffect struct{}

func (StopAudioEffect) isSideEffect() {}

// RequestTranscriptionEffect asks the driver to hand a Pending segment's
// buffered frames to the ASR worker.
type RequestTranscriptionEffect struct {
	SegmentID string
}

func (RequestTranscriptionEffect) isSideEffect() {}

// AskMemoryConsentEffect asks the driver to prompt the user for consent to
// remember something, keyed for later correlation with ConsentResponse.
type AskMemoryConsentEffect struct {
	Key     MemoryKey
	PromptID string
}

func (AskMemoryConsentEffect) isSideEffect() {}
