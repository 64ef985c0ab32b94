package audit

import (
	"context"
	"database/sql"
	"errors"

	"ha-sip-bridge/pkg/utils"
)

var schemaStatements = []string{`
CREATE TABLE IF NOT EXISTS audit_events (
  id UUID PRIMARY KEY,
  entry_id TEXT NOT NULL,
  type TEXT NOT NULL,
  actor_user_id TEXT NOT NULL DEFAULT '',
  ip_address TEXT NOT NULL DEFAULT '',
  action TEXT NOT NULL,
  target TEXT NOT NULL DEFAULT '',
  outcome TEXT NOT NULL,
  message TEXT NOT NULL DEFAULT '',
  metadata TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL
)`, `
CREATE INDEX IF NOT EXISTS audit_events_entry_created_idx
  ON audit_events (entry_id, created_at DESC)`,
}

// PostgresRepo appends to the audit_events table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

// Migrate creates the table and index if missing, in one transaction.
func (r *PostgresRepo) Migrate(ctx context.Context) error {
	if r.db == nil {
		return errors.New("audit: postgres db is nil")
	}
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range schemaStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	if r.db == nil {
		return errors.New("audit: postgres db is nil")
	}
	const q = `
INSERT INTO audit_events (
  id, entry_id, type, actor_user_id, ip_address, action, target, outcome, message, metadata, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.EntryID,
		e.Type,
		e.ActorUserID,
		e.IPAddress,
		e.Action,
		e.Target,
		e.Outcome,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}

// ListByEntry returns the newest events for an entry, newest first.
func (r *PostgresRepo) ListByEntry(ctx context.Context, entryID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT id, entry_id, type, actor_user_id, ip_address, action, target, outcome, message, metadata, created_at
FROM audit_events
WHERE entry_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, entryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(
			&e.ID,
			&e.EntryID,
			&e.Type,
			&e.ActorUserID,
			&e.IPAddress,
			&e.Action,
			&e.Target,
			&e.Outcome,
			&e.Message,
			&e.Metadata,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
