// Package planner implements the Planner Bridge: the reactor's single
// in-flight dispatcher to the out-of-process LLM planner. Dispatch never
// blocks the tick step — it starts an HTTP round trip on its own goroutine
// and reports the result back to the reactor as a PlannerProposalEvent on
// the same channel every other driver thread uses.
package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/MrWong99/reactorcore/internal/resilience"
	"github.com/MrWong99/reactorcore/pkg/reactortypes"
)

// DefaultTimeout is the hard wall-clock deadline enforced on every
// dispatch; exceeding it resolves to DoNothingIntent.
const DefaultTimeout = 200 * time.Millisecond

// requestBody is the wire shape POSTed to the planner endpoint.
type requestBody struct {
	Prompt     string         `json:"prompt"`
	NPredict   int            `json:"n_predict"`
	JSONSchema map[string]any `json:"json_schema"`
}

// responseBody is the shape the planner is constrained (via JSONSchema) to
// return. Any other shape, or an unrecognised Intent string, collapses to
// DoNothingIntent.
type responseBody struct {
	Intent string         `json:"intent"`
	Data   map[string]any `json:"data"`
}

// Bridge owns at most one in-flight planner request. All exported methods
// are safe for concurrent use; Dispatch/Abort are typically called from
// the single-threaded tick step, while the background goroutine they
// start delivers its result onto events from its own goroutine.
type Bridge struct {
	endpoint string
	timeout  time.Duration
	client   *http.Client
	events   chan<- reactortypes.Event
	breaker  *resilience.CircuitBreaker

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.timeout = d }
}

// WithHTTPClient overrides the default *http.Client — primarily for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Bridge) { b.client = c }
}

// New returns a Bridge that POSTs to endpoint and reports results onto
// events. A circuit breaker guards the endpoint: after consecutive
// failures it trips open and dispatches collapse straight to
// DoNothingIntent without attempting the HTTP round trip, so a dead
// planner process never costs the tick loop a dial timeout per request.
func New(endpoint string, events chan<- reactortypes.Event, opts ...Option) *Bridge {
	b := &Bridge{
		endpoint: endpoint,
		timeout:  DefaultTimeout,
		client:   http.DefaultClient,
		events:   events,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:         "planner",
			MaxFailures:  3,
			ResetTimeout: 5 * time.Second,
		}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Dispatch aborts any existing in-flight request, then starts a new one
// tagged with snapshot.Epoch. It returns immediately — the HTTP round trip
// runs on its own goroutine.
func (b *Bridge) Dispatch(snapshot Snapshot) {
	b.Abort()

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)

	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()

	go b.run(ctx, cancel, snapshot)
}

// Abort cancels any in-flight request. Safe to call when nothing is
// in-flight. The reactor calls this on every tick that carries any input,
// per the cancellation contract — even if a stale response later arrives,
// the state-version acceptance rule rejects it independently.
func (b *Bridge) Abort() {
	b.mu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (b *Bridge) run(ctx context.Context, cancel context.CancelFunc, snapshot Snapshot) {
	defer cancel()

	intent := b.request(ctx, snapshot)

	select {
	case b.events <- reactortypes.PlannerProposalEvent{Epoch: snapshot.Epoch, Intent: intent}:
	case <-ctx.Done():
		// The bridge itself was aborted or the overall driver is shutting
		// down; dropping the result here is safe, the reactor never
		// learns of a dispatch it didn't see a proposal for.
	}
}

func (b *Bridge) request(ctx context.Context, snapshot Snapshot) reactortypes.Intent {
	body := requestBody{
		Prompt:     prompt(snapshot),
		NPredict:   256,
		JSONSchema: responseSchema,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		slog.Warn("planner: encode request failed", "error", err)
		return reactortypes.DoNothingIntent{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(payload))
	if err != nil {
		slog.Warn("planner: build request failed", "error", err)
		return reactortypes.DoNothingIntent{}
	}
	req.Header.Set("Content-Type", "application/json")

	var data []byte
	err = b.breaker.Execute(func() error {
		resp, err := b.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err = io.ReadAll(resp.Body)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		slog.Debug("planner: circuit open, collapsing to DoNothing")
		return reactortypes.DoNothingIntent{}
	}
	if err != nil {
		slog.Debug("planner: request failed, collapsing to DoNothing", "error", err)
		return reactortypes.DoNothingIntent{}
	}

	var parsed responseBody
	if err := json.Unmarshal(data, &parsed); err != nil {
		slog.Debug("planner: malformed response, collapsing to DoNothing", "error", err)
		return reactortypes.DoNothingIntent{}
	}

	return decodeIntent(parsed)
}

var responseSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"intent": map[string]any{
			"type": "string",
			"enum": []string{"BeginResponse", "Delay", "AskClarification", "DoNothing"},
		},
		"data": map[string]any{"type": "object"},
	},
	"required": []string{"intent", "data"},
}

func decodeIntent(resp responseBody) reactortypes.Intent {
	switch resp.Intent {
	case "BeginResponse":
		return reactortypes.BeginResponseIntent{
			Confidence: floatField(resp.Data, "confidence"),
			Text:       stringField(resp.Data, "text"),
		}
	case "Delay":
		return reactortypes.DelayIntent{Ticks: uint64(floatField(resp.Data, "ticks"))}
	case "AskClarification":
		return reactortypes.AskClarificationIntent{Prompt: stringField(resp.Data, "prompt")}
	case "DoNothing":
		return reactortypes.DoNothingIntent{}
	default:
		return reactortypes.DoNothingIntent{}
	}
}

func floatField(data map[string]any, key string) float64 {
	v, ok := data[key].(float64)
	if !ok {
		return 0
	}
	return v
}

func stringField(data map[string]any, key string) string {
	v, ok := data[key].(string)
	if !ok {
		return ""
	}
	return v
}

func prompt(snapshot Snapshot) string {
	return fmt.Sprintf(
		"mood=%s user_active=%t active_outputs=%d interruptions=%d intent_focus=%q intent_strength=%.2f",
		snapshot.MoodLabel,
		snapshot.UserActive,
		snapshot.ActiveOutputCount,
		snapshot.RecentInterruptions,
		snapshot.IntentContext.ActiveFocus,
		snapshot.IntentContext.Strength,
	)
}
