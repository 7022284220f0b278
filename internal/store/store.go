// Package store persists canonical transactions, accounts, and import runs
// in SQLite. Transaction inserts key on the content hash, so re-importing
// the same statement is a no-op.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/cuentas-dev/cuentas/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps the SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database file and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initialize() error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("enabling wal: %w", err)
	}
	if _, err := s.db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertAccount inserts or refreshes an account row.
func (s *Store) UpsertAccount(ctx context.Context, a model.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (account_id, display_name, type, bank_id, closing_day, currency)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			display_name = excluded.display_name,
			type         = excluded.type,
			bank_id      = excluded.bank_id,
			closing_day  = excluded.closing_day,
			currency     = excluded.currency,
			updated_at   = datetime('now')`,
		a.AccountID, a.DisplayName, a.Type, a.BankID, a.ClosingDay, a.Currency)
	if err != nil {
		return fmt.Errorf("upserting account %s: %w", a.AccountID, err)
	}
	return nil
}

// StartImport records the beginning of one file's import run.
func (s *Store) StartImport(ctx context.Context, run model.ImportRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO imports (import_id, bank_id, source_file, processed_at, status, row_count, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.BankID, run.SourceFile, run.ProcessedAt.UTC().Format(time.RFC3339),
		string(run.Status), run.RowCount, run.Error)
	if err != nil {
		return fmt.Errorf("recording import start: %w", err)
	}
	return nil
}

// FinishImport updates a run's terminal status and row count.
func (s *Store) FinishImport(ctx context.Context, id string, status model.ImportStatus, rowCount int, runErr string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE imports SET status = ?, row_count = ?, error = ? WHERE import_id = ?`,
		string(status), rowCount, runErr, id)
	if err != nil {
		return fmt.Errorf("recording import finish: %w", err)
	}
	return nil
}

// InsertTransaction persists one canonical transaction. The returned bool
// reports whether a new row was written; an existing identical hash leaves
// the stored row untouched.
func (s *Store) InsertTransaction(ctx context.Context, t model.CanonicalTransaction, importID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO transactions
			(source_hash, date, raw_description, normalized_description, amount,
			 bank_id, account_id, canonical_account_id, source, tax_id, import_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID(), t.Date, t.RawDescription, t.NormalizedDescription, t.Amount.StringFixed(2),
		t.BankID, t.AccountID, t.CanonicalAccountID, t.Source, t.TaxID, importID)
	if err != nil {
		return false, fmt.Errorf("inserting transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reading insert result: %w", err)
	}
	return n > 0, nil
}

// TransactionRecord is a stored transaction row.
type TransactionRecord struct {
	SourceHash            string
	Date                  string
	RawDescription        string
	NormalizedDescription string
	Amount                decimal.Decimal
	BankID                string
	AccountID             string
	CanonicalAccountID    string
	Source                string
	TaxID                 string
	ImportID              string
}

// BackfillNormalized re-derives normalized_description for every stored row
// using fn. Only the normalized text changes; hashes, amounts, and dates
// stay as imported. Returns the number of rows updated.
func (s *Store) BackfillNormalized(ctx context.Context, fn func(raw string) string) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_hash, raw_description, normalized_description FROM transactions`)
	if err != nil {
		return 0, fmt.Errorf("scanning transactions: %w", err)
	}
	defer rows.Close()

	type change struct {
		hash string
		text string
	}
	var changes []change
	for rows.Next() {
		var hash, raw, current string
		if err := rows.Scan(&hash, &raw, &current); err != nil {
			return 0, fmt.Errorf("reading transaction row: %w", err)
		}
		if next := fn(raw); next != current {
			changes = append(changes, change{hash: hash, text: next})
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterating transactions: %w", err)
	}

	for _, c := range changes {
		if _, err := s.db.ExecContext(ctx,
			`UPDATE transactions SET normalized_description = ? WHERE source_hash = ?`,
			c.text, c.hash); err != nil {
			return 0, fmt.Errorf("backfilling %s: %w", c.hash, err)
		}
	}
	return len(changes), nil
}

// RecordAuditEvent appends one audit trail entry. The payload is stored as
// JSON.
func (s *Store) RecordAuditEvent(ctx context.Context, importID, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding audit payload: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (import_id, event_type, payload) VALUES (?, ?, ?)`,
		importID, eventType, string(data)); err != nil {
		return fmt.Errorf("recording audit event: %w", err)
	}
	return nil
}

// ListImports returns import runs, newest first.
func (s *Store) ListImports(ctx context.Context, limit int) ([]model.ImportRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT import_id, bank_id, source_file, processed_at, status, row_count, error
		FROM imports ORDER BY processed_at DESC, import_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing imports: %w", err)
	}
	defer rows.Close()

	var runs []model.ImportRun
	for rows.Next() {
		var run model.ImportRun
		var processedAt, status string
		if err := rows.Scan(&run.ID, &run.BankID, &run.SourceFile, &processedAt,
			&status, &run.RowCount, &run.Error); err != nil {
			return nil, fmt.Errorf("reading import row: %w", err)
		}
		run.Status = model.ImportStatus(status)
		if ts, parseErr := time.Parse(time.RFC3339, processedAt); parseErr == nil {
			run.ProcessedAt = ts
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CountTransactions returns the total stored transaction count.
func (s *Store) CountTransactions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting transactions: %w", err)
	}
	return n, nil
}

// Transactions returns stored rows ordered by date then hash.
func (s *Store) Transactions(ctx context.Context) ([]TransactionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_hash, date, raw_description, normalized_description, amount,
		       bank_id, account_id, canonical_account_id, source, tax_id, import_id
		FROM transactions ORDER BY date, source_hash`)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var out []TransactionRecord
	for rows.Next() {
		var rec TransactionRecord
		var amount string
		if err := rows.Scan(&rec.SourceHash, &rec.Date, &rec.RawDescription,
			&rec.NormalizedDescription, &amount, &rec.BankID, &rec.AccountID,
			&rec.CanonicalAccountID, &rec.Source, &rec.TaxID, &rec.ImportID); err != nil {
			return nil, fmt.Errorf("reading transaction row: %w", err)
		}
		if d, parseErr := decimal.NewFromString(amount); parseErr == nil {
			rec.Amount = d
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
