package tree

import (
	"sync"

	"github.com/imkrishn/notex/pkg/models"
)

// Event announces that the child set under a parent has changed and any
// cached listing for it is stale. A zero ParentID means the root set of
// OwnerID changed.
type Event struct {
	ParentID models.PageID
	OwnerID  models.UserID
}

// Bus is a small synchronous fan-out for cache-invalidation events. Mutating
// operations publish on it and cached tree nodes refetch in response, which
// replaces manual "remember to re-fetch the parent" bookkeeping at call
// sites.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(Event)
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Event))}
}

// Subscribe registers fn for future events and returns a cancel function.
// fn is invoked synchronously on the publisher's goroutine, so it must not
// block and must not publish re-entrantly.
func (b *Bus) Subscribe(fn func(Event)) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Invalidate publishes an event to all current subscribers.
func (b *Bus) Invalidate(ev Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
