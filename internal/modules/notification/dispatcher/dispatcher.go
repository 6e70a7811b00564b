// Package dispatcher is the in-process event bus. Publishers never know who listens.
package dispatcher

import (
	"context"
	"log/slog"
	"sync"
)

type EventType string

const (
	EventUserDataUpdated EventType = "USER_DATA_UPDATED"
	EventUserDataDeleted EventType = "USER_DATA_DELETED"
	EventNewNotification EventType = "NEW_NOTIFICATION"
	EventChatMessage     EventType = "CHAT_MESSAGE"
)

// Event is delivered to every handler subscribed to its Type.
// Payload depends on the type: the saved record, the new notification or the chat message.
type Event struct {
	Type    EventType
	UserID  string
	Payload interface{}
}

type Handler func(ctx context.Context, event Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus calls handlers synchronously, in subscription order, on the publisher's goroutine.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[EventType][]subscription
	log    *slog.Logger
}

func New(log *slog.Logger) *Bus {
	return &Bus{
		subs: make(map[EventType][]subscription),
		log:  log.With(slog.String("service", "EventBus")),
	}
}

// Subscribe registers handler for eventType and returns a function that removes it.
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[eventType] = append(b.subs[eventType], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[eventType]
		for i, s := range list {
			if s.id == id {
				b.subs[eventType] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

func (b *Bus) Dispatch(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[event.Type]))
	for _, s := range b.subs[event.Type] {
		handlers = append(handlers, s.handler)
	}
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.log.Debug("no subscribers for event", "eventType", string(event.Type))
		return
	}

	for _, h := range handlers {
		b.call(ctx, h, event)
	}
}

// call isolates a panicking handler so later subscribers still run.
func (b *Bus) call(ctx context.Context, h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked", "eventType", string(event.Type), "userID", event.UserID, "panic", r)
		}
	}()
	h(ctx, event)
}
