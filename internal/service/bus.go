package service

import (
	"log"
	"os"
	"sync"

	"jobwatch/internal/core/domain"
)

// Listener receives published events.
type Listener func(domain.Event)

// Subscription identifies one registered listener.
type Subscription struct {
	kind domain.EventKind
	id   int
}

// Bus is an in-memory, best-effort publish/subscribe channel for job events.
// Events published while no listener is subscribed are dropped; there is no
// buffering or replay. Delivery is synchronous, so events of the same kind
// for the same job arrive in the order they were published.
type Bus struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[domain.EventKind]map[int]Listener
	logger    *log.Logger
}

// NewBus creates a Bus. logger may be nil.
func NewBus(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return &Bus{
		listeners: make(map[domain.EventKind]map[int]Listener),
		logger:    logger,
	}
}

// Subscribe registers fn for events of the given kind.
func (b *Bus) Subscribe(kind domain.EventKind, fn Listener) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.listeners[kind] == nil {
		b.listeners[kind] = make(map[int]Listener)
	}
	b.nextID++
	b.listeners[kind][b.nextID] = fn
	return &Subscription{kind: kind, id: b.nextID}
}

// Unsubscribe removes a previously registered listener. Safe to call with a
// subscription that was already removed.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners[sub.kind], sub.id)
}

// Publish delivers evt to every listener of evt.Kind. A listener panicking
// does not prevent the others from running.
func (b *Bus) Publish(evt domain.Event) {
	b.mu.RLock()
	fns := make([]Listener, 0, len(b.listeners[evt.Kind]))
	for _, fn := range b.listeners[evt.Kind] {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		b.deliver(fn, evt)
	}
}

func (b *Bus) deliver(fn Listener, evt domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Printf("[JOB %s] event listener panicked on %s: %v", evt.JobID, evt.Kind, r)
		}
	}()
	fn(evt)
}
