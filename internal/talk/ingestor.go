package talk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ha-sip-bridge/internal/audit"
	"ha-sip-bridge/internal/auth"
	"ha-sip-bridge/internal/hass"
)

var ErrMalformedPayload = errors.New("talk: malformed webhook payload")

// Ingestor handles webhook callbacks from the add-on for one entry.
type Ingestor struct {
	entryID string
	state   *State
	hass    *hass.Hass
	audit   *audit.Service
	log     *slog.Logger
	clock   func() time.Time

	// mu keeps merge, signal and broadcast of one delivery together so
	// deliveries fan out in arrival order.
	mu sync.Mutex
}

func NewIngestor(h *hass.Hass, entryID string, state *State, aud *audit.Service) *Ingestor {
	return &Ingestor{
		entryID: entryID,
		state:   state,
		hass:    h,
		audit:   aud,
		log:     h.Log.With("component", "talk.webhook", "entry_id", entryID),
		clock:   time.Now,
	}
}

// ParsePayload decodes body as a JSON object. Numbers keep their literal form.
func ParsePayload(body []byte) (Payload, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var p Payload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: body is not an object", ErrMalformedPayload)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedPayload)
	}
	return p, nil
}

// Handle is the hass.WebhookHandler for the entry. A malformed body is
// rejected before the state is touched. Once parsed, the delivery always
// succeeds: a failed bus broadcast is logged only.
func (i *Ingestor) Handle(ctx context.Context, webhookID string, body []byte) error {
	p, err := ParsePayload(body)
	if err != nil {
		i.log.Warn("webhook payload rejected", "err", err)
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	cs := i.state.Merge(p, i.clock())
	i.hass.Dispatcher.Send(ctx, SignalCallState(i.entryID))
	if err := i.hass.Bus.Fire(ctx, EventWebhook, p); err != nil {
		i.log.Warn("webhook event broadcast failed", "err", err)
	}

	event := p.EventName()
	i.log.Debug("webhook merged", "event", event, "updated", cs.Updated)
	if event == "" {
		event = "unknown"
	}
	internalID := ""
	if cs.InternalID != nil {
		internalID = *cs.InternalID
	}
	i.audit.LogWebhook(ctx, i.entryID, auth.ClientIP(ctx), event, internalID, p)
	return nil
}
