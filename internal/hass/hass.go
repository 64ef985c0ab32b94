// Package hass is the in-process host the integrations plug into. It owns
// the service registry, webhook registry, dispatcher signals, entity states
// and the event bus.
package hass

import (
	"log/slog"

	"ha-sip-bridge/internal/eventbus"
)

// Hass aggregates the host registries. Integrations receive it by pointer
// at setup; there are no package-level globals.
type Hass struct {
	Bus        eventbus.Bus
	Services   *Services
	Webhooks   *Webhooks
	Dispatcher *Dispatcher
	States     *States
	Log        *slog.Logger
}

// New builds a host around bus. A nil logger falls back to slog.Default().
func New(bus eventbus.Bus, log *slog.Logger) *Hass {
	if bus == nil {
		bus = eventbus.NewMemoryBus()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Hass{
		Bus:        bus,
		Services:   NewServices(),
		Webhooks:   NewWebhooks(),
		Dispatcher: NewDispatcher(),
		States:     NewStates(bus),
		Log:        log,
	}
}
