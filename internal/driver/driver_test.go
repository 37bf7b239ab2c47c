package driver_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/reactorcore/internal/driver"
	"github.com/MrWong99/reactorcore/internal/reactor"
	"github.com/MrWong99/reactorcore/pkg/reactortypes"
)

// recordingSink captures every effect dispatched to it so tests can assert
// on what a tick produced without depending on a real TTS/STT backend.
type recordingSink struct {
	driver.LoggingSink

	mu     sync.Mutex
	spawns []reactortypes.SpawnAudioEffect
}

func (s *recordingSink) SpawnAudio(e reactortypes.SpawnAudioEffect) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spawns = append(s.spawns, e)
}

func (s *recordingSink) snapshot() []reactortypes.SpawnAudioEffect {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]reactortypes.SpawnAudioEffect, len(s.spawns))
	copy(out, s.spawns)
	return out
}

func TestDriver_SendDeliversEventToNextTick(t *testing.T) {
	t.Parallel()

	events := driver.NewEventChannel()
	react := reactor.New(nil)
	sink := &recordingSink{}
	d := driver.New(react, sink, 5*time.Millisecond, events)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	driver.SendText(events, "hello")

	time.Sleep(50 * time.Millisecond)
	d.Stop()
	cancel()
	<-done
}

func TestDriver_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	events := driver.NewEventChannel()
	react := reactor.New(nil)
	d := driver.New(react, driver.LoggingSink{}, time.Hour, events)

	d.Stop()
	d.Stop() // must not panic
}

func TestDriver_SendDropsWhenBufferFull(t *testing.T) {
	t.Parallel()

	events := driver.NewEventChannel()
	react := reactor.New(nil)
	d := driver.New(react, driver.LoggingSink{}, time.Hour, events)

	// Fill the buffer without a consumer running (Run is never started),
	// then confirm an additional Send does not block the test goroutine.
	for i := 0; i < cap(events); i++ {
		d.Send(reactortypes.InputEvent{Source: reactortypes.SourceText, Content: reactortypes.TextContent{Text: "x"}})
	}

	sent := make(chan struct{})
	go func() {
		d.Send(reactortypes.InputEvent{Source: reactortypes.SourceText, Content: reactortypes.TextContent{Text: "overflow"}})
		close(sent)
	}()

	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("Send blocked on a full buffer instead of dropping the event")
	}
}

func TestSendText_NonBlockingOnFullBuffer(t *testing.T) {
	t.Parallel()

	events := driver.NewEventChannel()
	for i := 0; i < cap(events); i++ {
		events <- reactortypes.InputEvent{Source: reactortypes.SourceText, Content: reactortypes.TextContent{Text: "x"}}
	}

	done := make(chan struct{})
	go func() {
		driver.SendText(events, "dropped")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SendText blocked on a full buffer instead of dropping the event")
	}
}

func TestSendTranscription_DeliversProvisionalText(t *testing.T) {
	t.Parallel()

	events := driver.NewEventChannel()
	driver.SendTranscription(events, "seg-1", "testing")

	select {
	case ev := <-events:
		in, ok := ev.(reactortypes.InputEvent)
		if !ok {
			t.Fatalf("expected InputEvent, got %T", ev)
		}
		if in.Source != reactortypes.SourceTranscription {
			t.Errorf("expected SourceTranscription, got %v", in.Source)
		}
		content, ok := in.Content.(reactortypes.ProvisionalTextContent)
		if !ok {
			t.Fatalf("expected ProvisionalTextContent, got %T", in.Content)
		}
		if content.SegmentID != "seg-1" || content.Text != "testing" {
			t.Errorf("unexpected content: %+v", content)
		}
	default:
		t.Fatal("expected an event to be queued")
	}
}
