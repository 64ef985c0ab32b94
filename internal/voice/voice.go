// Package voice is the "call with TTS" integration for the DSS VoIP add-on.
package voice

import (
	"context"
	"errors"
	"log/slog"

	"ha-sip-bridge/internal/audit"
	"ha-sip-bridge/internal/auth"
	"ha-sip-bridge/internal/hass"
	"ha-sip-bridge/internal/schema"
	"ha-sip-bridge/internal/sipuri"
)

const (
	Domain      = "hacs_unifi_voice"
	ServiceCall = "call"

	DefaultHost  = "192.168.1.1"
	DefaultPort  = 5060
	DefaultAddon = "89275b70_dss_voip"
)

// Channel delivers input to an add-on's stdin.
type Channel interface {
	AddonStdin(ctx context.Context, slug string, input any) error
}

// CallRequest is the service data of hacs_unifi_voice.call.
type CallRequest struct {
	PhoneNumber string  `json:"phone_number" validate:"required"`
	MessageTTS  string  `json:"message_tts" validate:"required"`
	Host        *string `json:"host"`
	Port        *int    `json:"port" validate:"omitempty,min=1,max=65535"`
	Addon       *string `json:"addon"`
}

// CallInput is what the add-on reads from stdin.
type CallInput struct {
	CallSIPURI string `json:"call_sip_uri"`
	MessageTTS string `json:"message_tts"`
}

// Resolve applies defaults and returns the target add-on and its input.
func (r CallRequest) Resolve() (addon string, in CallInput) {
	host, port, addon := DefaultHost, DefaultPort, DefaultAddon
	if r.Host != nil {
		host = *r.Host
	}
	if r.Port != nil {
		port = *r.Port
	}
	if r.Addon != nil {
		addon = *r.Addon
	}
	return addon, CallInput{
		CallSIPURI: sipuri.WithPort(sipuri.E164(r.PhoneNumber), host, port),
		MessageTTS: r.MessageTTS,
	}
}

var ErrAlreadyConfigured = errors.New("voice: an entry is already loaded")

// Entry is a loaded voice integration.
type Entry struct {
	entryID string
	hass    *hass.Hass
	ch      Channel
	audit   *audit.Service
	log     *slog.Logger
}

// Setup registers hacs_unifi_voice.call on h. Only one entry may be loaded.
func Setup(h *hass.Hass, entryID string, ch Channel, aud *audit.Service) (*Entry, error) {
	if entryID == "" {
		return nil, errors.New("voice: entry id is required")
	}
	if h.Services.Has(Domain, ServiceCall) {
		return nil, ErrAlreadyConfigured
	}
	if ch == nil {
		return nil, errors.New("voice: command channel is required")
	}
	e := &Entry{
		entryID: entryID,
		hass:    h,
		ch:      ch,
		audit:   aud,
		log:     h.Log.With("component", "voice", "entry_id", entryID),
	}
	h.Services.Register(Domain, ServiceCall, e.handle)
	return e, nil
}

func (e *Entry) Unload() {
	if e.hass.Services.Has(Domain, ServiceCall) {
		e.hass.Services.Remove(Domain, ServiceCall)
	}
}

// Call delivers one TTS call request. Delivery errors are returned unmodified.
func (e *Entry) Call(ctx context.Context, req CallRequest) error {
	userID, _ := auth.UserID(ctx)
	ip := auth.ClientIP(ctx)
	if err := schema.Validate(req); err != nil {
		e.audit.LogCommand(ctx, e.entryID, userID, ip, ServiceCall, "", audit.OutcomeRejected, err, nil)
		return err
	}

	addon, in := req.Resolve()
	if err := e.ch.AddonStdin(ctx, addon, in); err != nil {
		e.log.Error("voice call delivery failed", "addon", addon, "uri", in.CallSIPURI, "err", err)
		e.audit.LogCommand(ctx, e.entryID, userID, ip, ServiceCall, in.CallSIPURI, audit.OutcomeFailed, err, in)
		return err
	}
	e.log.Info("voice call requested", "addon", addon, "uri", in.CallSIPURI)
	e.audit.LogCommand(ctx, e.entryID, userID, ip, ServiceCall, in.CallSIPURI, audit.OutcomeOK, nil, in)
	return nil
}

func (e *Entry) handle(ctx context.Context, call hass.ServiceCall) error {
	var req CallRequest
	if err := schema.Decode(call.Data, &req); err != nil {
		return err
	}
	return e.Call(ctx, req)
}
