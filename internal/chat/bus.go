package chat

import (
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Bus distributes backend events to handlers registered per category.
// Backends embed a Bus to satisfy the Subscribe/Unsubscribe half of Service.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[Category]map[uint64]Handler
	closed   bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Category]map[uint64]Handler),
	}
}

// Subscribe registers handler for category and returns its handle.
// Subscribing to a closed bus returns an invalid handle.
func (b *Bus) Subscribe(category Category, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || handler == nil {
		return Subscription{}
	}

	b.nextID++
	subs, ok := b.handlers[category]
	if !ok {
		subs = make(map[uint64]Handler)
		b.handlers[category] = subs
	}
	subs[b.nextID] = handler
	return Subscription{id: b.nextID, category: category}
}

// Unsubscribe removes a handler. Unknown or repeated handles are ignored.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.handlers[sub.category]
	if !ok {
		return
	}
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(b.handlers, sub.category)
	}
}

// Publish delivers payload to every handler of category, in subscription
// order, on the caller's goroutine. A panicking handler is logged and the
// remaining handlers still run.
func (b *Bus) Publish(category Category, payload any) {
	b.mu.RLock()
	subs := b.handlers[category]
	ids := make([]uint64, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	handlers := make([]Handler, len(ids))
	for i, id := range ids {
		handlers[i] = subs[id]
	}
	b.mu.RUnlock()

	event := Event{
		Category:  category,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	for _, h := range handlers {
		deliver(h, event)
	}
}

func deliver(h Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("category", string(event.Category)).Msg("Event handler panicked")
		}
	}()
	h(event)
}

// Len returns the number of handlers registered for category.
func (b *Bus) Len(category Category) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[category])
}

// Close drops every handler. Later Subscribe calls return invalid handles.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers = make(map[Category]map[uint64]Handler)
	b.closed = true
}
