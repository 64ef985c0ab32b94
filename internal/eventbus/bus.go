// Package eventbus is the general-purpose broadcast channel automations
// listen on. Delivery is best effort to listeners attached at fire time.
package eventbus

import (
	"context"
	"sync"
	"time"
)

// MatchAll subscribes a listener to every event type.
const MatchAll = "*"

// Event is one broadcast.
type Event struct {
	Type      string         `json:"event_type"`
	Data      map[string]any `json:"data"`
	TimeFired time.Time      `json:"time_fired"`
	Origin    string         `json:"origin"`
}

// Listener receives events synchronously on the firing goroutine.
type Listener func(ctx context.Context, e Event)

// Bus fans events out to listeners.
type Bus interface {
	Fire(ctx context.Context, eventType string, data map[string]any) error
	Listen(eventType string, fn Listener) (unsubscribe func())
}

// MemoryBus keeps listeners in process.
type MemoryBus struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[string]map[uint64]Listener
	order     []uint64
	clock     func() time.Time
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{listeners: map[string]map[uint64]Listener{}, clock: time.Now}
}

func (b *MemoryBus) Listen(eventType string, fn Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	if b.listeners[eventType] == nil {
		b.listeners[eventType] = map[uint64]Listener{}
	}
	b.listeners[eventType][id] = fn
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners[eventType], id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

func (b *MemoryBus) Fire(ctx context.Context, eventType string, data map[string]any) error {
	b.deliver(ctx, Event{Type: eventType, Data: data, TimeFired: b.clock().UTC(), Origin: "LOCAL"})
	return nil
}

// deliver calls matching listeners in subscription order.
func (b *MemoryBus) deliver(ctx context.Context, e Event) {
	b.mu.RLock()
	var targets []Listener
	for _, id := range b.order {
		if fn, ok := b.listeners[e.Type][id]; ok {
			targets = append(targets, fn)
		} else if fn, ok := b.listeners[MatchAll][id]; ok {
			targets = append(targets, fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range targets {
		fn(ctx, e)
	}
}
