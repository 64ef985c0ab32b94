package talk

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"ha-sip-bridge/internal/audit"
	"ha-sip-bridge/internal/hass"
	"ha-sip-bridge/internal/supervisor"
)

var (
	ErrMissingEntryID    = errors.New("talk: entry id is required")
	ErrAlreadyConfigured = errors.New("talk: an entry is already loaded")
)

// Config is one configured ha-sip integration entry.
type Config struct {
	EntryID   string
	SIPHost   string
	SIPPort   int
	WebhookID string
	AddonSlug string
}

// Entry is a loaded integration instance. It owns the CallState.
type Entry struct {
	cfg        Config
	hass       *hass.Hass
	state      *State
	ingestor   *Ingestor
	dispatcher *Dispatcher
	sensor     *CallStateSensor
}

// Setup registers the entry's services, webhook and sensor on h. Services
// are domain-wide, so only one entry may be loaded at a time.
func Setup(ctx context.Context, h *hass.Hass, cfg Config, ch Channel, aud *audit.Service) (*Entry, error) {
	if cfg.EntryID == "" {
		return nil, ErrMissingEntryID
	}
	if h.Services.Has(Domain, ServiceDial) {
		return nil, ErrAlreadyConfigured
	}
	if ch == nil {
		return nil, errors.New("talk: command channel is required")
	}
	if cfg.SIPHost == "" {
		cfg.SIPHost = DefaultSIPHost
	}
	if cfg.AddonSlug == "" {
		cfg.AddonSlug = supervisor.DefaultAddonSlug
	}
	if cfg.WebhookID == "" {
		cfg.WebhookID = hass.GenerateID()
	}

	e := &Entry{cfg: cfg, hass: h, state: NewState()}
	e.ingestor = NewIngestor(h, cfg.EntryID, e.state, aud)
	e.dispatcher = NewDispatcher(ch, cfg.AddonSlug, cfg.SIPHost, cfg.EntryID, aud, h.Log)
	e.sensor = NewCallStateSensor(cfg.EntryID, e.state)

	h.Webhooks.Register(Domain, webhookName, cfg.WebhookID, e.ingestor.Handle)
	handler := e.dispatcher.ServiceHandler()
	for _, svc := range Services() {
		h.Services.Register(Domain, svc, handler)
	}
	if err := e.sensor.AddedToHass(ctx, h); err != nil {
		e.Unload(ctx)
		return nil, fmt.Errorf("talk: add sensor: %w", err)
	}

	h.Log.Info("ha-sip entry loaded",
		"entry_id", cfg.EntryID,
		"sip_server", net.JoinHostPort(cfg.SIPHost, strconv.Itoa(cfg.SIPPort)),
		"addon", cfg.AddonSlug,
		"webhook_id", cfg.WebhookID,
	)
	return e, nil
}

// Unload removes everything Setup registered and drops the call state.
func (e *Entry) Unload(_ context.Context) {
	for _, svc := range Services() {
		e.hass.Services.Remove(Domain, svc)
	}
	e.hass.Webhooks.Unregister(e.cfg.WebhookID)
	e.sensor.WillRemoveFromHass()
	e.state = nil
	e.hass.Log.Info("ha-sip entry unloaded", "entry_id", e.cfg.EntryID)
}

func (e *Entry) WebhookID() string { return e.cfg.WebhookID }

// WebhookPath is the URL path the add-on should post events to.
func (e *Entry) WebhookPath() string { return "/api/webhook/" + e.cfg.WebhookID }

func (e *Entry) Sensor() *CallStateSensor { return e.sensor }

// Snapshot returns the entry's current call state.
func (e *Entry) Snapshot() CallState {
	if e.state == nil {
		return CallState{}
	}
	return e.state.Snapshot()
}
