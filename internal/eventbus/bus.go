package eventbus

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one published lifecycle notification.
type Event struct {
	EventID   string    `json:"event_id"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// Handler receives events synchronously, in publish order.
type Handler func(ctx context.Context, evt Event)

// Bus is an in-process synchronous publish/subscribe bus. Delivery
// happens on the publisher's goroutine; a handler panic propagates to
// the publisher, matching the host-style synchronous trigger the
// export pipeline was written against.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	all      []Handler
}

func New() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Subscribe registers h for one event name.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// SubscribeAll registers h for every event.
func (b *Bus) SubscribeAll(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, h)
}

// Publish delivers payload to every matching handler before returning.
func (b *Bus) Publish(ctx context.Context, name string, payload any) {
	evt := Event{
		EventID:   uuid.New().String(),
		Name:      name,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}

	b.mu.RLock()
	named := b.handlers[name]
	all := b.all
	b.mu.RUnlock()

	for _, h := range named {
		h(ctx, evt)
	}
	for _, h := range all {
		h(ctx, evt)
	}
}
