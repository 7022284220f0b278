package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuentas-dev/cuentas/internal/config"
	"github.com/cuentas-dev/cuentas/internal/model"
	"github.com/cuentas-dev/cuentas/internal/pdfext"
	"github.com/cuentas-dev/cuentas/internal/store"
)

const testRules = `defaults:
  currency: MXN
  fallback_expense: Expenses:Other:Uncategorized
  accounts:
    likeu_cc:
      name: Liabilities:CC:Santander
      closing_day: 15
    main_checking: Assets:Bank:Checking

banks:
  santander_likeu:
    type: csv
    account_key: likeu_cc
    payment_asset_key: main_checking
    card_tag: card:likeu
    fallback_name: Liabilities:CC:Santander
    fallback_asset: Assets:Bank:Checking
    kind_strategy: sign

rules:
  - name: convenience
    any_regex: ["oxxo"]
    set:
      expense: Expenses:Food:Convenience
      tags: []

merchant_aliases:
  - canon: oxxo
    any_regex: ["oxxo"]

canonical_accounts:
  cc:santander:
    display_name: Santander LikeU
    type: credit_card
    bank_ids: [santander_likeu]
    closing_day: 15
`

const testCSV = `Fecha,Concepto,Importe
2024-01-16,OXXO CENTRO 4521,-45.50
2024-01-10,SU PAGO GRACIAS,1500.00
2024-01-12,TAQUERIA EL PAISA,-230.00
`

func newTestPipeline(t *testing.T, opts ...Option) (*Pipeline, *store.Store) {
	t.Helper()
	return newPipelineWithRules(t, testRules, opts...)
}

func newPipelineWithRules(t *testing.T, rules string, opts ...Option) (*Pipeline, *store.Store) {
	t.Helper()

	cfg, err := config.Load(writeFile(t, "rules.yml", rules))
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	logger := log.New(io.Discard)
	return New(cfg, st, logger, opts...), st
}

// stubExtractor stands in for the PDF engine.
type stubExtractor struct {
	rows []model.RawTransaction
	meta pdfext.Metadata
}

func (s *stubExtractor) Transactions(context.Context, string, int) ([]model.RawTransaction, error) {
	return s.rows, nil
}

func (s *stubExtractor) Metadata(context.Context, string) (pdfext.Metadata, error) {
	return s.meta, nil
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun_ImportsAndClassifies(t *testing.T) {
	p, st := newTestPipeline(t)
	csvPath := writeFile(t, "likeu.csv", testCSV)

	summary, results := p.Run(context.Background(), []FileSpec{{
		BankID:   "santander_likeu",
		DataPath: csvPath,
	}})

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, 1, summary.FilesProcessed)
	assert.Equal(t, 3, summary.RowsSeen)
	assert.Equal(t, 3, summary.RowsInserted)

	rows := results[0].Rows
	require.Len(t, rows, 3)

	// Rows arrive date-sorted from the parser: payment, taqueria, oxxo.
	payment := rows[0]
	assert.Equal(t, "transfer", payment.Type)
	assert.Equal(t, "Assets:Bank:Checking", payment.SourceName)
	assert.Equal(t, "Liabilities:CC:Santander", payment.DestinationName)
	assert.Equal(t, "1500.00", payment.Amount)
	assert.Contains(t, payment.Tags, "pago")
	assert.Contains(t, payment.Tags, "period:2024-01")

	oxxo := rows[2]
	assert.Equal(t, "withdrawal", oxxo.Type)
	assert.Equal(t, "Liabilities:CC:Santander", oxxo.SourceName)
	assert.Equal(t, "Expenses:Food:Convenience", oxxo.DestinationName)
	assert.Equal(t, "Food", oxxo.Category)
	assert.Equal(t, "45.50", oxxo.Amount)
	// Jan 16 with closing day 15 belongs to the February statement.
	assert.Contains(t, oxxo.Tags, "period:2024-02")
	assert.Contains(t, oxxo.Tags, "card:likeu")
	assert.Contains(t, oxxo.Tags, "merchant:oxxo")

	// The taqueria fell through to the fallback expense.
	require.Len(t, results[0].UnknownMerchants, 1)
	um := results[0].UnknownMerchants[0]
	assert.Equal(t, "taqueria_el", um.Merchant)
	assert.Equal(t, 1, um.Count)
	assert.Equal(t, "230.00", um.Total.StringFixed(2))

	n, err := st.CountTransactions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRun_RulesMatchRawDescriptions(t *testing.T) {
	// "SUPERCT" is rewritten to "Supercenter" by the normalizer; the rule
	// and alias regexes must still fire on the statement's original text.
	rules := `defaults:
  currency: MXN
  fallback_expense: Expenses:Other:Uncategorized
  accounts:
    likeu_cc:
      name: Liabilities:CC:Santander
      closing_day: 15

banks:
  santander_likeu:
    type: csv
    account_key: likeu_cc
    card_tag: card:likeu
    fallback_asset: Assets:Bank:Checking
    kind_strategy: sign

rules:
  - name: groceries
    any_regex: ["superct"]
    set:
      expense: Expenses:Food:Groceries
      tags: []

merchant_aliases:
  - canon: walmart
    any_regex: ["wal\\s*mart"]
`
	p, st := newPipelineWithRules(t, rules)
	csvPath := writeFile(t, "likeu.csv", "Fecha,Concepto,Importe\n2024-01-10,WAL MART SUPERCT 1234,-512.00\n")

	_, results := p.Run(context.Background(), []FileSpec{{
		BankID:   "santander_likeu",
		DataPath: csvPath,
	}})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	require.Len(t, results[0].Rows, 1)

	row := results[0].Rows[0]
	assert.Equal(t, "withdrawal", row.Type)
	assert.Equal(t, "Expenses:Food:Groceries", row.DestinationName)
	assert.Contains(t, row.Tags, "merchant:walmart")
	assert.Empty(t, results[0].UnknownMerchants)

	// The stored row still carries the normalized rewrite.
	stored, err := st.Transactions(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Wal Mart Supercenter", stored[0].NormalizedDescription)
}

func TestRun_PDFSourceReconcilesAgainstData(t *testing.T) {
	stub := &stubExtractor{
		rows: []model.RawTransaction{{
			Date:        "2024-01-16",
			Description: "OXXO CENTRO",
			Amount:      decimal.RequireFromString("-45.50"),
			Source:      "pdf",
			Page:        2,
		}},
		meta: pdfext.Metadata{CutoffDate: "15/ENE/2024"},
	}
	p, _ := newTestPipeline(t, WithEngine(stub))
	csvPath := writeFile(t, "likeu.csv", testCSV)

	_, results := p.Run(context.Background(), []FileSpec{{
		BankID:    "santander_likeu",
		DataPath:  csvPath,
		PDFPath:   filepath.Join(t.TempDir(), "statement.pdf"),
		PDFSource: true,
		Year:      2024,
	}})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	recon := results[0].Reconciliation
	require.NotNil(t, recon)
	assert.Equal(t, 1, recon.Matched)
	assert.Equal(t, 1, recon.TotalPrimary)
	assert.Equal(t, 3, recon.TotalSecondary)
	assert.Empty(t, recon.PrimaryOnly)
	assert.Len(t, recon.SecondaryOnly, 2)
	// Descriptions disagree ("OXXO CENTRO" vs "OXXO CENTRO 4521").
	assert.Len(t, recon.Differences, 1)

	// The PDF reading wins for matched rows; unmatched export rows survive.
	require.Len(t, results[0].Rows, 3)
	assert.Equal(t, "OXXO CENTRO", results[0].Rows[0].Description)

	require.NotNil(t, results[0].Metadata)
	assert.Equal(t, "15/ENE/2024", results[0].Metadata.CutoffDate)
}

func TestRun_ReimportIsIdempotent(t *testing.T) {
	p, st := newTestPipeline(t)
	csvPath := writeFile(t, "likeu.csv", testCSV)
	file := FileSpec{BankID: "santander_likeu", DataPath: csvPath}

	first, _ := p.Run(context.Background(), []FileSpec{file})
	assert.Equal(t, 3, first.RowsInserted)

	second, results := p.Run(context.Background(), []FileSpec{file})
	require.NoError(t, results[0].Err)
	assert.Equal(t, 3, second.RowsSeen)
	assert.Equal(t, 0, second.RowsInserted)

	n, err := st.CountTransactions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRun_UnknownBankFailsOnlyThatFile(t *testing.T) {
	p, st := newTestPipeline(t)
	csvPath := writeFile(t, "likeu.csv", testCSV)

	summary, results := p.Run(context.Background(), []FileSpec{
		{BankID: "bbva", DataPath: csvPath},
		{BankID: "santander_likeu", DataPath: csvPath},
	})

	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, config.ErrUnknownBank)
	require.NoError(t, results[1].Err)
	assert.Equal(t, 1, summary.FilesFailed)
	assert.Equal(t, 1, summary.FilesProcessed)
	assert.Equal(t, 3, summary.RowsInserted)

	// The failed file never opened an import run.
	runs, err := st.ListImports(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "santander_likeu", runs[0].BankID)
}

func TestRun_MissingDataFile(t *testing.T) {
	p, _ := newTestPipeline(t)

	_, results := p.Run(context.Background(), []FileSpec{{
		BankID:   "santander_likeu",
		DataPath: filepath.Join(t.TempDir(), "missing.csv"),
	}})
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
}
