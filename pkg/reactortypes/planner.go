package reactortypes

// Intent is the closed set of proposals the planner bridge's external
// worker may return. Any other or malformed response collapses to
// DoNothingIntent before it ever reaches the tick step.
type Intent interface {
	isIntent()
}

// BeginResponseIntent asks the reactor to crystallize a spoken reply.
// Confidence is the planner's own self-reported confidence, independent of
// (but often correlated with) the gate's latent-derived uncertainty.
type BeginResponseIntent struct {
	Confidence float64
	Text       string
}

func (BeginResponseIntent) isIntent() {}

// DelayIntent asks the reactor to wait before acting again.
type DelayIntent struct {
	Ticks uint64
}

func (DelayIntent) isIntent() {}

// AskClarificationIntent asks the reactor to speak a clarifying question.
type AskClarificationIntent struct {
	Prompt string
}

func (AskClarificationIntent) isIntent() {}

// ReviseIntent asks the reactor to revise a previously proposed output.
type ReviseIntent struct {
	TargetOutput OutputID
	Text         string
}

func (ReviseIntent) isIntent() {}

// DoNothingIntent is the safe fallback: timeouts, transport errors, and
// malformed planner responses all collapse to this.
type DoNothingIntent struct{}

func (DoNothingIntent) isIntent() {}
