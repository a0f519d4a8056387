package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"feedesk/internal/receipt/models"
	"feedesk/pkg/platform/sentinel"
	"feedesk/pkg/platform/tx"
)

const (
	uniqueViolation        = "23505"
	transactionIDConstraint = "registrations_transaction_id_key"
)

const schema = `
CREATE TABLE IF NOT EXISTS registrations (
	seq            BIGSERIAL PRIMARY KEY,
	receipt_no     TEXT NOT NULL UNIQUE,
	application_no TEXT NOT NULL,
	student_name   TEXT NOT NULL,
	branch         TEXT NOT NULL,
	year           TEXT NOT NULL,
	college        TEXT NOT NULL,
	course         TEXT NOT NULL,
	mobile         TEXT NOT NULL,
	email          TEXT NOT NULL,
	pay_for        TEXT NOT NULL,
	amount         TEXT NOT NULL,
	payment_mode   TEXT NOT NULL,
	payment_date   TEXT NOT NULL,
	transaction_id TEXT NOT NULL UNIQUE,
	generated_at   TEXT NOT NULL
)`

const columns = `receipt_no, application_no, student_name, branch, year, college, course,
	mobile, email, pay_for, amount, payment_mode, payment_date, transaction_id, generated_at`

// PostgresStore keeps entries in the registrations table; seq preserves append order.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the registrations table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return tx.Run(ctx, s.db, func(ctx context.Context) error {
		if _, err := tx.Conn(ctx, s.db).ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("migrate registrations: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) Load(ctx context.Context) ([]models.RegistrationEntry, error) {
	rows, err := tx.Conn(ctx, s.db).QueryContext(ctx, `SELECT `+columns+` FROM registrations ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("load registrations: %w", err)
	}
	defer rows.Close()

	entries := []models.RegistrationEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registrations: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) Exists(ctx context.Context, transactionID string) (bool, error) {
	var exists bool
	err := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM registrations WHERE transaction_id = $1)`, transactionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check registration: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Find(ctx context.Context, transactionID string) (*models.RegistrationEntry, error) {
	row := tx.Conn(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+columns+` FROM registrations WHERE transaction_id = $1`, transactionID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find registration: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := tx.Conn(ctx, s.db).QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count registrations: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Append(ctx context.Context, e models.RegistrationEntry) error {
	_, err := tx.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO registrations (`+columns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		e.ReceiptNo, e.ApplicationNo, e.StudentName, e.Branch, e.Year, e.College, e.Course,
		e.Mobile, e.Email, e.PayFor, e.Amount, e.PaymentMode, e.PaymentDate, e.TransactionID, e.Timestamp,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation && pqErr.Constraint == transactionIDConstraint {
			return fmt.Errorf("append transaction %s: %w", e.TransactionID, sentinel.ErrConflict)
		}
		return fmt.Errorf("append registration: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*models.RegistrationEntry, error) {
	var e models.RegistrationEntry
	err := row.Scan(&e.ReceiptNo, &e.ApplicationNo, &e.StudentName, &e.Branch, &e.Year, &e.College,
		&e.Course, &e.Mobile, &e.Email, &e.PayFor, &e.Amount, &e.PaymentMode, &e.PaymentDate,
		&e.TransactionID, &e.Timestamp)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
