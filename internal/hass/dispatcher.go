package hass

import (
	"context"
	"sync"
)

// Dispatcher is a targeted signal fan-out. Send calls every listener
// connected at that moment, once, on the caller's goroutine. Nothing is
// queued for listeners that connect later.
type Dispatcher struct {
	mu      sync.RWMutex
	nextID  uint64
	signals map[string][]signalTarget
}

type signalTarget struct {
	id uint64
	fn func(ctx context.Context)
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{signals: map[string][]signalTarget{}}
}

// Connect attaches fn to signal and returns its disconnect func.
func (d *Dispatcher) Connect(signal string, fn func(ctx context.Context)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.signals[signal] = append(d.signals[signal], signalTarget{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { d.disconnect(signal, id) })
	}
}

func (d *Dispatcher) disconnect(signal string, id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	targets := d.signals[signal]
	for i, t := range targets {
		if t.id == id {
			d.signals[signal] = append(targets[:i:i], targets[i+1:]...)
			break
		}
	}
	if len(d.signals[signal]) == 0 {
		delete(d.signals, signal)
	}
}

func (d *Dispatcher) Send(ctx context.Context, signal string) {
	d.mu.RLock()
	targets := append([]signalTarget(nil), d.signals[signal]...)
	d.mu.RUnlock()
	for _, t := range targets {
		t.fn(ctx)
	}
}

// Listeners returns how many targets are attached to signal.
func (d *Dispatcher) Listeners(signal string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.signals[signal])
}
