package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"feedesk/pkg/platform/tx"
)

const eventsSchema = `
CREATE TABLE IF NOT EXISTS receipt_events (
	id             UUID PRIMARY KEY,
	occurred_at    TIMESTAMPTZ NOT NULL,
	action         TEXT NOT NULL,
	transaction_id TEXT NOT NULL,
	receipt_no     TEXT NOT NULL DEFAULT '',
	application_no TEXT NOT NULL DEFAULT '',
	stage          TEXT NOT NULL DEFAULT '',
	reason         TEXT NOT NULL DEFAULT '',
	request_id     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS receipt_events_transaction_idx ON receipt_events (transaction_id, occurred_at);
`

// PostgresStore appends events to receipt_events. When ctx carries a transaction the
// insert joins it, so an event commits or rolls back with the caller's writes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the receipt_events table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := tx.Conn(ctx, s.db).ExecContext(ctx, eventsSchema); err != nil {
		return fmt.Errorf("migrate receipt_events: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, e Event) error {
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO receipt_events
			(id, occurred_at, action, transaction_id, receipt_no, application_no, stage, reason, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.New(), e.Timestamp, string(e.Action), e.TransactionID,
		e.ReceiptNo, e.ApplicationNo, e.Stage, e.Reason, e.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert receipt event: %w", err)
	}
	return nil
}

// ListByTransaction returns events for one transaction, oldest first.
func (s *PostgresStore) ListByTransaction(ctx context.Context, transactionID string) ([]Event, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT occurred_at, action, transaction_id, receipt_no, application_no, stage, reason, request_id
		FROM receipt_events
		WHERE transaction_id = $1
		ORDER BY occurred_at, id`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("list receipt events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var action string
		if err := rows.Scan(&e.Timestamp, &action, &e.TransactionID, &e.ReceiptNo,
			&e.ApplicationNo, &e.Stage, &e.Reason, &e.RequestID); err != nil {
			return nil, fmt.Errorf("scan receipt event: %w", err)
		}
		e.Action = Action(action)
		events = append(events, e)
	}
	return events, rows.Err()
}
