package audit

import "time"

// Event is an immutable, append-only audit record.
//
// Invariants:
// - Events are never updated or deleted.
// - entry_id is required; it scopes the record to one integration entry.
// - audit is best-effort; it never blocks command delivery or webhook ingestion.
//
// Call state itself is never written here.
type Event struct {
	ID      string    `json:"id" db:"id"`
	EntryID string    `json:"entry_id" db:"entry_id"`
	Type    EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated API user, empty for webhooks.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	IPAddress   string `json:"ip_address,omitempty" db:"ip_address"`

	// Action is the service name or the webhook event name.
	Action string `json:"action" db:"action"`
	// Target is the normalized number or internal id the action addressed.
	Target  string  `json:"target,omitempty" db:"target"`
	Outcome Outcome `json:"outcome" db:"outcome"`

	Message  string `json:"message,omitempty" db:"message"`
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCommand EventType = "command_dispatched"
	EventTypeWebhook EventType = "webhook_received"
)

type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
)
