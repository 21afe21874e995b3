package bus

import (
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
)

func testEBLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestEventBus_EmitAndReceive(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	var received int32
	eb.On(EventCommentStored, func(e Event) {
		if e.Payload["text"] != "hello" {
			t.Errorf("unexpected payload: %v", e.Payload)
		}
		atomic.AddInt32(&received, 1)
	})

	eb.Emit(Event{Type: EventCommentStored, Payload: map[string]any{"text": "hello"}})

	if atomic.LoadInt32(&received) != 1 {
		t.Errorf("expected 1 event received, got %d", received)
	}
}

func TestEventBus_WildcardHandler(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	var count int32
	eb.On("*", func(e Event) {
		atomic.AddInt32(&count, 1)
	})

	eb.Emit(Event{Type: EventRenderStarted})
	eb.Emit(Event{Type: EventRenderFinished})

	if atomic.LoadInt32(&count) != 2 {
		t.Errorf("expected 2, got %d", count)
	}
}

func TestEventBus_Off(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	var first, second int32
	id := eb.On("x", func(e Event) { atomic.AddInt32(&first, 1) })
	eb.On("x", func(e Event) { atomic.AddInt32(&second, 1) })

	eb.Emit(Event{Type: "x"})
	eb.Off("x", id)
	eb.Emit(Event{Type: "x"})

	if atomic.LoadInt32(&first) != 1 {
		t.Errorf("expected 1 after unsubscribe, got %d", first)
	}
	if atomic.LoadInt32(&second) != 2 {
		t.Errorf("remaining handler should see both events, got %d", second)
	}
}

func TestEventBus_HandlerIDsUniqueAfterOff(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	a := eb.On("x", func(Event) {})
	eb.Off("x", a)
	b := eb.On("x", func(Event) {})
	if a == b {
		t.Fatalf("handler IDs reused: %q", a)
	}
}

func TestEventBus_PanicRecovery(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	var after int32
	eb.On("panic", func(e Event) { panic("test panic") })
	eb.On("panic", func(e Event) { atomic.AddInt32(&after, 1) })

	eb.Emit(Event{Type: "panic"})

	if atomic.LoadInt32(&after) != 1 {
		t.Error("handler after a panicking one should still run")
	}
}

func TestEventBus_HandlerMayEmit(t *testing.T) {
	eb := NewEventBus(testEBLogger())

	var chained int32
	eb.On("first", func(Event) { eb.Emit(Event{Type: "second"}) })
	eb.On("second", func(Event) { atomic.AddInt32(&chained, 1) })

	eb.Emit(Event{Type: "first"})

	if atomic.LoadInt32(&chained) != 1 {
		t.Errorf("expected nested emit to reach its handler, got %d", chained)
	}
}
