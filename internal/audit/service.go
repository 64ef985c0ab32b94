package audit

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events. It is
// append-only; there are no Update/Delete methods.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Lister is implemented by repositories that can read back events.
type Lister interface {
	ListByEntry(ctx context.Context, entryID string, limit int) ([]Event, error)
}

var ErrListUnsupported = errors.New("audit: repository cannot list events")

// Service records command dispatches and webhook deliveries.
type Service struct {
	repo  Repository
	clock func() time.Time
	log   *slog.Logger
}

func NewService(repo Repository, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, clock: time.Now, log: log}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.EntryID == "" || e.Type == "" || e.Action == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	if e.Outcome == "" {
		e.Outcome = OutcomeOK
	}
	return s.repo.Append(ctx, e)
}

// LogCommand records a service call. A non-nil cause marks it failed;
// detail, when set, is stored as JSON metadata.
// Errors from the repository are logged and swallowed.
func (s *Service) LogCommand(ctx context.Context, entryID, actorUserID, ip, action, target string, outcome Outcome, cause error, detail any) {
	e := Event{
		EntryID:     entryID,
		Type:        EventTypeCommand,
		ActorUserID: actorUserID,
		IPAddress:   ip,
		Action:      action,
		Target:      target,
		Outcome:     outcome,
		Metadata:    s.metadata(detail),
	}
	if cause != nil {
		e.Message = cause.Error()
	}
	s.bestEffort(ctx, e)
}

// LogWebhook records an inbound add-on event with its payload.
func (s *Service) LogWebhook(ctx context.Context, entryID, ip, event, internalID string, payload any) {
	s.bestEffort(ctx, Event{
		EntryID:   entryID,
		Type:      EventTypeWebhook,
		IPAddress: ip,
		Action:    event,
		Target:    internalID,
		Outcome:   OutcomeOK,
		Metadata:  s.metadata(payload),
	})
}

func (s *Service) metadata(v any) string {
	if s == nil || v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		s.log.Warn("audit metadata not encodable", "err", err)
		return ""
	}
	return string(b)
}

func (s *Service) bestEffort(ctx context.Context, e Event) {
	if s == nil {
		return
	}
	if err := s.Append(ctx, e); err != nil {
		s.log.Warn("audit append failed", "type", e.Type, "action", e.Action, "err", err)
	}
}

// Recent returns the newest events for entryID.
func (s *Service) Recent(ctx context.Context, entryID string, limit int) ([]Event, error) {
	if s == nil {
		return nil, ErrListUnsupported
	}
	l, ok := s.repo.(Lister)
	if !ok {
		return nil, ErrListUnsupported
	}
	return l.ListByEntry(ctx, entryID, limit)
}
