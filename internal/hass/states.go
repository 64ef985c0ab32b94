package hass

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ha-sip-bridge/internal/eventbus"
)

const EventStateChanged = "state_changed"

// State is the externally visible snapshot of one entity.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

// States is the entity state machine observers read from.
type States struct {
	mu     sync.RWMutex
	states map[string]State
	bus    eventbus.Bus
	clock  func() time.Time
}

func NewStates(bus eventbus.Bus) *States {
	return &States{states: map[string]State{}, bus: bus, clock: time.Now}
}

// Set stores the state and fires state_changed. LastChanged only moves when
// the state string changes.
func (s *States) Set(ctx context.Context, entityID, state string, attrs map[string]any) error {
	now := s.clock().UTC()

	s.mu.Lock()
	old, had := s.states[entityID]
	next := State{EntityID: entityID, State: state, Attributes: attrs, LastChanged: now, LastUpdated: now}
	if had && old.State == state {
		next.LastChanged = old.LastChanged
	}
	s.states[entityID] = next
	s.mu.Unlock()

	if s.bus == nil {
		return nil
	}
	data := map[string]any{"entity_id": entityID, "new_state": next, "old_state": nil}
	if had {
		data["old_state"] = old
	}
	return s.bus.Fire(ctx, EventStateChanged, data)
}

func (s *States) Remove(entityID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, entityID)
}

func (s *States) Get(entityID string) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[entityID]
	return st, ok
}

// All returns every state ordered by entity id.
func (s *States) All() []State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]State, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// GenerateEntityID returns base, or base_2, base_3... if taken.
func (s *States) GenerateEntityID(base string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, taken := s.states[base]; !taken {
		return base
	}
	for n := 2; ; n++ {
		id := fmt.Sprintf("%s_%d", base, n)
		if _, taken := s.states[id]; !taken {
			return id
		}
	}
}
