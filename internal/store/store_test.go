package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuentas-dev/cuentas/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTxn() model.CanonicalTransaction {
	return model.CanonicalTransaction{
		Date:                  "2024-01-12",
		RawDescription:        "OXXO CENTRO 4521",
		NormalizedDescription: "Oxxo Centro",
		Amount:                decimal.RequireFromString("-45.50"),
		BankID:                "hsbc",
		AccountID:             "4444111122223333",
		CanonicalAccountID:    "cc:hsbc",
		Source:                "xml",
	}
}

func startRun(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, s.StartImport(context.Background(), model.ImportRun{
		ID:          id,
		BankID:      "hsbc",
		SourceFile:  "statement.xml",
		ProcessedAt: time.Now(),
		Status:      model.ImportStarted,
	}))
}

func TestInsertTransaction_Idempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	startRun(t, s, "run-1")

	inserted, err := s.InsertTransaction(ctx, sampleTxn(), "run-1")
	require.NoError(t, err)
	assert.True(t, inserted)

	// Identical content is a no-op, even under a different run.
	startRun(t, s, "run-2")
	inserted, err = s.InsertTransaction(ctx, sampleTxn(), "run-2")
	require.NoError(t, err)
	assert.False(t, inserted)

	n, err := s.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The stored row keeps its original import id.
	records, err := s.Transactions(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "run-1", records[0].ImportID)
}

func TestInsertTransaction_DifferentContentInserts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	startRun(t, s, "run-1")

	_, err := s.InsertTransaction(ctx, sampleTxn(), "run-1")
	require.NoError(t, err)

	other := sampleTxn()
	other.Amount = decimal.RequireFromString("-46.00")
	inserted, err := s.InsertTransaction(ctx, other, "run-1")
	require.NoError(t, err)
	assert.True(t, inserted)

	n, err := s.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUpsertAccount(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	account := model.Account{
		AccountID:   "cc:hsbc",
		DisplayName: "HSBC 2Now",
		Type:        "credit_card",
		BankID:      "hsbc",
		ClosingDay:  15,
		Currency:    "MXN",
	}
	require.NoError(t, s.UpsertAccount(ctx, account))

	// Second upsert refreshes instead of failing.
	account.DisplayName = "HSBC 2Now Platinum"
	require.NoError(t, s.UpsertAccount(ctx, account))
}

func TestImportLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	startRun(t, s, "run-1")
	require.NoError(t, s.FinishImport(ctx, "run-1", model.ImportSuccess, 12, ""))

	startRun(t, s, "run-2")
	require.NoError(t, s.FinishImport(ctx, "run-2", model.ImportFailed, 0, "parse error"))

	runs, err := s.ListImports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byID := map[string]model.ImportRun{}
	for _, run := range runs {
		byID[run.ID] = run
	}
	assert.Equal(t, model.ImportSuccess, byID["run-1"].Status)
	assert.Equal(t, 12, byID["run-1"].RowCount)
	assert.Equal(t, model.ImportFailed, byID["run-2"].Status)
	assert.Equal(t, "parse error", byID["run-2"].Error)
}

func TestBackfillNormalized(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	startRun(t, s, "run-1")

	txn := sampleTxn()
	txn.NormalizedDescription = "stale"
	_, err := s.InsertTransaction(ctx, txn, "run-1")
	require.NoError(t, err)

	updated, err := s.BackfillNormalized(ctx, strings.ToLower)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	records, err := s.Transactions(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "oxxo centro 4521", records[0].NormalizedDescription)
	// The hash key is untouched.
	assert.Equal(t, txn.ID(), records[0].SourceHash)

	// Re-running with the same function changes nothing.
	updated, err = s.BackfillNormalized(ctx, strings.ToLower)
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
}

func TestRecordAuditEvent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.RecordAuditEvent(context.Background(), "run-1", "import_completed",
		map[string]any{"rows": 3}))
}
