package talk

import (
	"context"
	"log/slog"
	"time"

	"ha-sip-bridge/internal/hass"
)

const (
	SensorName     = "UniFi Talk Last Call"
	SensorIcon     = "mdi:phone"
	sensorEntityID = "sensor.unifi_talk_last_call"
)

// CallStateSensor projects an entry's CallState onto the host state machine.
type CallStateSensor struct {
	entryID  string
	entityID string
	state    *State
	hass     *hass.Hass
	log      *slog.Logger

	disconnect func()
}

func NewCallStateSensor(entryID string, state *State) *CallStateSensor {
	return &CallStateSensor{entryID: entryID, state: state}
}

func (s *CallStateSensor) UniqueID() string { return s.entryID + "_call_state" }

// EntityID is set once the sensor is added.
func (s *CallStateSensor) EntityID() string { return s.entityID }

// AddedToHass claims an entity id, writes the current state and starts
// following the entry's call-state signal.
func (s *CallStateSensor) AddedToHass(ctx context.Context, h *hass.Hass) error {
	s.hass = h
	s.log = h.Log.With("component", "talk.sensor", "entry_id", s.entryID)
	s.entityID = h.States.GenerateEntityID(sensorEntityID)
	s.disconnect = h.Dispatcher.Connect(SignalCallState(s.entryID), s.refresh)
	return s.write(ctx)
}

// WillRemoveFromHass stops following the signal and drops the entity.
func (s *CallStateSensor) WillRemoveFromHass() {
	if s.disconnect != nil {
		s.disconnect()
		s.disconnect = nil
	}
	if s.hass != nil && s.entityID != "" {
		s.hass.States.Remove(s.entityID)
	}
}

// NativeValue is the current event name, idle when none was reported.
func (s *CallStateSensor) NativeValue() string {
	cs := s.state.Snapshot()
	if cs.Event == nil || *cs.Event == "" {
		return EventIdle
	}
	return *cs.Event
}

func (s *CallStateSensor) Attributes() map[string]any {
	cs := s.state.Snapshot()
	attrs := map[string]any{
		"caller":          strOrNil(cs.Caller),
		"parsed_caller":   strOrNil(cs.ParsedCaller),
		"sip_account":     strOrNil(cs.SIPAccount),
		"internal_id":     strOrNil(cs.InternalID),
		"last_dtmf_digit": strOrNil(cs.LastDTMFDigit),
		"last_type":       strOrNil(cs.LastType),
		"last_message":    strOrNil(cs.LastMessage),
		"last_audio_file": strOrNil(cs.LastAudioFile),
		"updated":         nil,
		"friendly_name":   SensorName,
		"icon":            SensorIcon,
	}
	if !cs.Updated.IsZero() {
		attrs["updated"] = cs.Updated.UTC().Format(time.RFC3339)
	}
	return attrs
}

func (s *CallStateSensor) refresh(ctx context.Context) {
	if err := s.write(ctx); err != nil {
		s.log.Warn("sensor state write failed", "entity_id", s.entityID, "err", err)
	}
}

func (s *CallStateSensor) write(ctx context.Context) error {
	return s.hass.States.Set(ctx, s.entityID, s.NativeValue(), s.Attributes())
}

func strOrNil(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
