package model

import "time"

// Account is one row in the accounts catalog, keyed by canonical account id.
// Accounts are upserted on every observation and never deleted.
type Account struct {
	AccountID   string // canonical account id, e.g. "cc:hsbc"
	DisplayName string
	Type        string // "credit_card", "debit", ...
	BankID      string
	ClosingDay  int // statement cutoff day of month; 31 = end of month
	Currency    string
}

// ImportStatus is the lifecycle state of an import run.
type ImportStatus string

const (
	ImportStarted ImportStatus = "started"
	ImportSuccess ImportStatus = "success"
	ImportFailed  ImportStatus = "failed"
)

// ImportRun is one record in the append-only import audit trail. One run is
// created per file processed.
type ImportRun struct {
	ID          string
	BankID      string
	SourceFile  string
	ProcessedAt time.Time
	Status      ImportStatus
	RowCount    int
	Error       string
}
