package talk

import (
	"context"
	"fmt"
	"log/slog"

	"ha-sip-bridge/internal/audit"
	"ha-sip-bridge/internal/auth"
	"ha-sip-bridge/internal/hass"
	"ha-sip-bridge/internal/schema"
)

// Channel delivers one command to an add-on's stdin. *supervisor.Client
// satisfies it.
type Channel interface {
	AddonStdin(ctx context.Context, slug string, input any) error
}

// Dispatcher turns validated service calls into add-on commands.
type Dispatcher struct {
	ch      Channel
	slug    string
	host    string
	entryID string
	audit   *audit.Service
	log     *slog.Logger
}

func NewDispatcher(ch Channel, slug, host, entryID string, aud *audit.Service, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	if host == "" {
		host = DefaultSIPHost
	}
	return &Dispatcher{
		ch:      ch,
		slug:    slug,
		host:    host,
		entryID: entryID,
		audit:   aud,
		log:     log.With("component", "talk.dispatch", "entry_id", entryID),
	}
}

// Dispatch validates req and writes its command once. Validation failures
// never reach the channel. Delivery errors are returned unmodified.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) error {
	if err := schema.Validate(req); err != nil {
		d.record(ctx, req.Service(), "", audit.OutcomeRejected, err, nil)
		return err
	}

	cmd, target := req.Command(d.host)
	if err := d.ch.AddonStdin(ctx, d.slug, cmd); err != nil {
		d.log.Error("command delivery failed", "service", req.Service(), "target", target, "err", err)
		d.record(ctx, req.Service(), target, audit.OutcomeFailed, err, cmd)
		return err
	}

	d.log.Info("command dispatched", "service", req.Service(), "target", target)
	d.record(ctx, req.Service(), target, audit.OutcomeOK, nil, cmd)
	return nil
}

// Handle decodes raw service data for service and dispatches it.
func (d *Dispatcher) Handle(ctx context.Context, service string, data []byte) error {
	req, ok := NewRequest(service)
	if !ok {
		return fmt.Errorf("%w: %s.%s", hass.ErrServiceNotFound, Domain, service)
	}
	if err := schema.Decode(data, req); err != nil {
		d.record(ctx, service, "", audit.OutcomeRejected, err, nil)
		return err
	}
	return d.Dispatch(ctx, req)
}

// ServiceHandler adapts Handle to the host's service registry.
func (d *Dispatcher) ServiceHandler() hass.ServiceHandler {
	return func(ctx context.Context, call hass.ServiceCall) error {
		return d.Handle(ctx, call.Service, call.Data)
	}
}

func (d *Dispatcher) record(ctx context.Context, service, target string, outcome audit.Outcome, cause error, cmd any) {
	userID, _ := auth.UserID(ctx)
	d.audit.LogCommand(ctx, d.entryID, userID, auth.ClientIP(ctx), service, target, outcome, cause, cmd)
}
