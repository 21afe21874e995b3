package bus

import (
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// Event is a pipeline notification for internal pub/sub.
type Event struct {
	Type      string         // one of the Event* constants
	Source    string         // originating component
	Payload   map[string]any // event-specific data
	Timestamp time.Time
}

// EventHandler is a callback for events.
type EventHandler func(Event)

type namedHandler struct {
	ID      string
	Handler EventHandler
}

// EventBus is a topic-based publish/subscribe hub. Handlers run
// synchronously on the emitting goroutine; "*" receives every event.
// Events are not retained after dispatch.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	seq      int
	logger   *slog.Logger
}

func NewEventBus(logger *slog.Logger) *EventBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventBus{
		handlers: make(map[string][]namedHandler),
		logger:   logger,
	}
}

// On registers a handler and returns its ID for Off.
func (eb *EventBus) On(eventType string, handler EventHandler) string {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.seq++
	id := eventType + "-" + strconv.Itoa(eb.seq)
	eb.handlers[eventType] = append(eb.handlers[eventType], namedHandler{ID: id, Handler: handler})
	return id
}

// Off removes a handler by its ID.
func (eb *EventBus) Off(eventType, handlerID string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	handlers := eb.handlers[eventType]
	for i, h := range handlers {
		if h.ID == handlerID {
			eb.handlers[eventType] = append(handlers[:i:i], handlers[i+1:]...)
			return
		}
	}
}

// Emit calls matching handlers in registration order.
// A panicking handler is logged and does not affect the others.
func (eb *EventBus) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.RLock()
	var targets []namedHandler
	targets = append(targets, eb.handlers[event.Type]...)
	targets = append(targets, eb.handlers["*"]...)
	eb.mu.RUnlock()

	for _, h := range targets {
		eb.dispatch(h, event)
	}
}

func (eb *EventBus) dispatch(h namedHandler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			eb.logger.Error("event handler panic", "event", event.Type, "handler", h.ID, "panic", r)
		}
	}()
	h.Handler(event)
}

// Pipeline event types.
const (
	EventCommentForwarded = "comment.forwarded"
	EventCommentStored    = "comment.stored"
	EventCommentCleared   = "comment.cleared"
	EventCommentInjected  = "comment.injected"
	EventRenderStarted    = "render.started"
	EventRenderFinished   = "render.finished"
	EventRenderFailed     = "render.failed"
	EventStreamingToggled = "streaming.toggled"
	EventExtractorStopped = "extractor.stopped"
	EventCycleFailed      = "extractor.cycle_failed"
	EventDuplicateSkipped = "extractor.duplicate_skipped"
	EventRequestUnknown   = "request.unknown"
)
