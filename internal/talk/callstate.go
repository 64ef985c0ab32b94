package talk

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"
)

// CallState is the last call state reported by the add-on. A nil field is
// "null": never reported, or blanked by a later event that omitted it.
type CallState struct {
	Event        *string
	Caller       *string
	ParsedCaller *string
	SIPAccount   *string
	InternalID   *string

	// Retained across events; only dtmf_digit updates LastDTMFDigit.
	LastDTMFDigit *string
	// Retained across events; only playback_done updates these.
	LastType      *string
	LastMessage   *string
	LastAudioFile *string

	Updated time.Time
}

// Payload is one decoded webhook body.
type Payload map[string]any

// String returns the value at key as text. Missing keys and JSON null map
// to nil. Numbers and booleans keep their JSON spelling; objects and arrays
// are re-encoded.
func (p Payload) String(key string) *string {
	v, ok := p[key]
	if !ok || v == nil {
		return nil
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case bool:
		s = strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return nil
		}
		s = string(b)
	}
	return &s
}

// EventName is the "event" value if it is a JSON string.
func (p Payload) EventName() string {
	s, _ := p["event"].(string)
	return s
}

// State is the per-entry container owned by an Entry. The ingestor is its
// only writer; sensors read snapshots.
type State struct {
	mu sync.RWMutex
	cs CallState
}

// NewState returns a container in the idle state with every other field empty.
func NewState() *State {
	idle := EventIdle
	return &State{cs: CallState{Event: &idle}}
}

func (s *State) Snapshot() CallState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cs
}

// Merge folds p into the state in place and stamps Updated with now, or
// keeps the previous stamp if now is earlier.
//
// event, caller, parsed_caller, sip_account and internal_id are always
// overwritten, so an event that omits caller blanks it.
func (s *State) Merge(p Payload, now time.Time) CallState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cs.Event = p.String("event")
	s.cs.Caller = p.String("caller")
	s.cs.ParsedCaller = p.String("parsed_caller")
	s.cs.SIPAccount = p.String("sip_account")
	s.cs.InternalID = p.String("internal_id")

	switch p.EventName() {
	case EventDTMFDigit:
		s.cs.LastDTMFDigit = p.String("digit")
	case EventPlaybackDone:
		s.cs.LastType = p.String("type")
		s.cs.LastMessage = p.String("message")
		s.cs.LastAudioFile = p.String("audio_file")
	}

	now = now.UTC()
	if now.After(s.cs.Updated) {
		s.cs.Updated = now
	}
	return s.cs
}
