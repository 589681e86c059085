package bus

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Event is one internal occurrence worth observing: a delivery outcome, an
// inbound message, a handled command.
type Event struct {
	Type      string         // e.g. "file.sent"
	Source    string         // originating component
	Payload   map[string]any // event-specific data
	Timestamp time.Time
}

// EventHandler is a callback for events.
type EventHandler func(Event)

// EventBus is a small in-process pub/sub for events. Subscribe to a specific
// type or to "*" for everything.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[string][]subscription
	nextID int
	logger *slog.Logger
}

type subscription struct {
	id string
	fn EventHandler
}

func NewEventBus(logger *slog.Logger) *EventBus {
	return &EventBus{
		subs:   make(map[string][]subscription),
		logger: logger,
	}
}

// On registers a handler for the given event type and returns an ID usable
// with Off.
func (eb *EventBus) On(eventType string, handler EventHandler) string {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	id := fmt.Sprintf("%s#%d", eventType, eb.nextID)
	eb.subs[eventType] = append(eb.subs[eventType], subscription{id: id, fn: handler})
	return id
}

// Off removes a previously registered handler.
func (eb *EventBus) Off(eventType, id string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	subs := eb.subs[eventType]
	for i, s := range subs {
		if s.id == id {
			eb.subs[eventType] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

// Emit delivers the event to type-specific then wildcard handlers, in
// registration order. A panicking handler is logged and does not stop the
// others.
func (eb *EventBus) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eb.mu.RLock()
	subs := append([]subscription(nil), eb.subs[event.Type]...)
	subs = append(subs, eb.subs["*"]...)
	eb.mu.RUnlock()

	for _, s := range subs {
		eb.invoke(s, event)
	}
}

// EmitAsync delivers the event without blocking the caller.
func (eb *EventBus) EmitAsync(event Event) {
	go eb.Emit(event)
}

func (eb *EventBus) invoke(s subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			eb.logger.Error("event handler panic", "event", event.Type, "handler", s.id, "panic", r)
		}
	}()
	s.fn(event)
}

// --- Well-known event types ---
const (
	EventMessageReceived = "message.received"
	EventFileSent        = "file.sent"
	EventFileFailed      = "file.failed"
	EventCommandHandled  = "command.handled"
)
