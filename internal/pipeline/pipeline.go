// Package pipeline drives one import run: read statement files, reconcile
// against their PDFs, normalize and classify each row, and persist the
// result. Files are isolated from each other; one bad statement never rolls
// back the rest of the run.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cuentas-dev/cuentas/internal/classify"
	"github.com/cuentas-dev/cuentas/internal/config"
	"github.com/cuentas-dev/cuentas/internal/model"
	"github.com/cuentas-dev/cuentas/internal/normalize"
	"github.com/cuentas-dev/cuentas/internal/pdfext"
	"github.com/cuentas-dev/cuentas/internal/reader"
	"github.com/cuentas-dev/cuentas/internal/reconcile"
	"github.com/cuentas-dev/cuentas/internal/store"
)

// FileSpec names one statement to import.
type FileSpec struct {
	BankID    string
	DataPath  string // structured export (xml/xls/csv); may be empty
	PDFPath   string // statement PDF; may be empty
	PDFSource bool   // treat the PDF as the data source instead of a cross-check
	Year      int    // year for PDF dates without one; zero means current
}

// UnknownMerchant aggregates uncategorized spending for one merchant.
type UnknownMerchant struct {
	Merchant string
	Count    int
	Total    decimal.Decimal
	Examples []string
}

// FileResult reports one file's outcome.
type FileResult struct {
	BankID           string
	SourceFile       string
	ImportID         string
	Rows             []model.ClassifiedRow
	RowsSeen         int
	RowsInserted     int
	RowsSkipped      int
	UnknownMerchants []UnknownMerchant
	Reconciliation   *reconcile.Summary
	Metadata         *pdfext.Metadata
	Err              error
}

// Summary totals a whole run.
type Summary struct {
	FilesProcessed int
	FilesFailed    int
	RowsSeen       int
	RowsInserted   int
	RowsBackfilled int
	Warnings       []string
}

// Extractor is the slice of the PDF engine the pipeline needs.
// *pdfext.Engine implements it.
type Extractor interface {
	Transactions(ctx context.Context, path string, year int) ([]model.RawTransaction, error)
	Metadata(ctx context.Context, path string) (pdfext.Metadata, error)
}

// Pipeline wires the readers, classifier, and store together for a run.
type Pipeline struct {
	cfg      *config.Config
	store    *store.Store
	log      *log.Logger
	registry *reader.Registry
	engine   Extractor
	strict   bool
}

// New builds a pipeline over an immutable config snapshot.
func New(cfg *config.Config, st *store.Store, logger *log.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		store:    st,
		log:      logger,
		registry: reader.DefaultRegistry(),
		engine:   pdfext.NewEngine(logger),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Option adjusts pipeline construction.
type Option func(*Pipeline)

// WithStrict makes validation problems abort a file instead of skipping the
// offending row.
func WithStrict(strict bool) Option {
	return func(p *Pipeline) { p.strict = strict }
}

// WithRegistry replaces the parser registry.
func WithRegistry(r *reader.Registry) Option {
	return func(p *Pipeline) { p.registry = r }
}

// WithEngine replaces the PDF extraction engine.
func WithEngine(e Extractor) Option {
	return func(p *Pipeline) { p.engine = e }
}

// Run imports every file, then re-normalizes stored descriptions so older
// imports pick up glossary changes. A failed file is recorded in its
// FileResult and the summary; it never stops later files.
func (p *Pipeline) Run(ctx context.Context, files []FileSpec) (Summary, []FileResult) {
	var summary Summary
	results := make([]FileResult, 0, len(files))

	for _, f := range files {
		result := p.runFile(ctx, f)
		results = append(results, result)
		if result.Err != nil {
			summary.FilesFailed++
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("%s: %v", result.SourceFile, result.Err))
			continue
		}
		summary.FilesProcessed++
		summary.RowsSeen += result.RowsSeen
		summary.RowsInserted += result.RowsInserted
	}

	backfilled, err := p.store.BackfillNormalized(ctx, normalize.Description)
	if err != nil {
		summary.Warnings = append(summary.Warnings, fmt.Sprintf("backfill: %v", err))
	} else {
		summary.RowsBackfilled = backfilled
	}

	return summary, results
}

func (p *Pipeline) runFile(ctx context.Context, f FileSpec) FileResult {
	result := FileResult{BankID: f.BankID, SourceFile: sourceName(f)}

	bank, err := p.cfg.Bank(f.BankID)
	if err != nil {
		result.Err = err
		return result
	}
	inferrer, ok := classify.InferrerFor(bank.KindStrategy)
	if !ok {
		result.Err = fmt.Errorf("bank %s: unknown kind strategy %q", f.BankID, bank.KindStrategy)
		return result
	}

	rows, recon, err := p.loadRows(ctx, f, bank)
	if err != nil {
		result.Err = err
		return result
	}
	result.Reconciliation = recon

	if f.PDFPath != "" {
		if meta, metaErr := p.engine.Metadata(ctx, f.PDFPath); metaErr == nil {
			result.Metadata = &meta
			if meta.CutoffDate != "" || meta.TotalPagar.Valid {
				p.log.Info("statement summary",
					"cutoff", meta.CutoffDate,
					"due", meta.DueDate,
					"total", meta.TotalPagar)
			}
		} else {
			p.log.Warn("statement metadata unavailable", "path", f.PDFPath, "error", metaErr)
		}
	}

	importID := uuid.NewString()
	result.ImportID = importID
	if err := p.store.StartImport(ctx, model.ImportRun{
		ID:          importID,
		BankID:      f.BankID,
		SourceFile:  result.SourceFile,
		ProcessedAt: time.Now(),
		Status:      model.ImportStarted,
	}); err != nil {
		result.Err = err
		return result
	}

	err = p.processRows(ctx, f, bank, inferrer, rows, &result)
	if err != nil {
		result.Err = err
		if finishErr := p.store.FinishImport(ctx, importID, model.ImportFailed,
			result.RowsInserted, err.Error()); finishErr != nil {
			p.log.Error("recording failed import", "import_id", importID, "error", finishErr)
		}
		return result
	}

	if err := p.store.FinishImport(ctx, importID, model.ImportSuccess,
		result.RowsInserted, ""); err != nil {
		result.Err = err
		return result
	}

	if err := p.store.RecordAuditEvent(ctx, importID, "import_completed", map[string]any{
		"bank_id":       f.BankID,
		"source_file":   result.SourceFile,
		"rows_seen":     result.RowsSeen,
		"rows_inserted": result.RowsInserted,
		"rows_skipped":  result.RowsSkipped,
	}); err != nil {
		p.log.Warn("audit event not recorded", "import_id", importID, "error", err)
	}

	p.log.Info("file imported",
		"bank", f.BankID,
		"file", result.SourceFile,
		"seen", result.RowsSeen,
		"inserted", result.RowsInserted)
	return result
}

// loadRows reads the statement's sources and merges them when both exist.
// The PDF is always the reconciliation primary: its rows are authoritative
// and the structured export backfills tax ids and account hints. With
// PDFSource set the PDF must extract; otherwise the structured export must
// parse and a failing PDF only costs the cross-check.
func (p *Pipeline) loadRows(ctx context.Context, f FileSpec, bank config.BankConfig) ([]model.RawTransaction, *reconcile.Summary, error) {
	year := f.Year
	if year == 0 {
		year = time.Now().Year()
	}

	if f.PDFSource {
		if f.PDFPath == "" {
			return nil, nil, fmt.Errorf("bank %s: pdf source requested without a pdf path", f.BankID)
		}
		pdfRows, err := p.engine.Transactions(ctx, f.PDFPath, year)
		if err != nil {
			return nil, nil, fmt.Errorf("extracting %s: %w", f.PDFPath, err)
		}
		if f.DataPath == "" {
			return pdfRows, nil, nil
		}
		dataRows, err := p.readData(f, bank)
		if err != nil {
			return nil, nil, err
		}
		merged, summary := reconcile.Merge(pdfRows, dataRows)
		return merged, &summary, nil
	}

	if f.DataPath == "" {
		return nil, nil, fmt.Errorf("bank %s: no data file given", f.BankID)
	}
	rows, err := p.readData(f, bank)
	if err != nil {
		return nil, nil, err
	}

	if f.PDFPath == "" {
		return rows, nil, nil
	}

	pdfRows, err := p.engine.Transactions(ctx, f.PDFPath, year)
	if err != nil {
		p.log.Warn("pdf cross-check unavailable", "path", f.PDFPath, "error", err)
		return rows, nil, nil
	}
	merged, summary := reconcile.Merge(pdfRows, rows)
	return merged, &summary, nil
}

// readData parses the structured export with the bank's declared parser,
// falling back to the generic reader on a structure mismatch.
func (p *Pipeline) readData(f FileSpec, bank config.BankConfig) ([]model.RawTransaction, error) {
	parser := p.registry.Get(bank.Type)
	if parser == nil {
		return nil, fmt.Errorf("bank %s: no parser for format %q", f.BankID, bank.Type)
	}
	data, err := os.ReadFile(f.DataPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", f.DataPath, err)
	}
	rows, err := parser.Parse(data)
	if err != nil && bank.Type != "csv" {
		if generic := p.registry.Get("csv"); generic != nil {
			if fallbackRows, fbErr := generic.Parse(data); fbErr == nil && len(fallbackRows) > 0 {
				p.log.Warn("declared format failed, generic reader used",
					"file", f.DataPath, "error", err)
				rows, err = fallbackRows, nil
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", f.DataPath, err)
	}
	return rows, nil
}

func (p *Pipeline) processRows(ctx context.Context, f FileSpec, bank config.BankConfig, inferrer classify.KindInferrer, rows []model.RawTransaction, result *FileResult) error {
	accountName, closingDay := p.cfg.Account(bank.AccountKey, bank.FallbackName)
	paymentAsset, _ := p.cfg.Account(bank.PaymentAssetKey, bank.FallbackAsset)

	unknown := map[string]*UnknownMerchant{}
	seenAccounts := map[string]bool{}

	for _, raw := range rows {
		result.RowsSeen++

		normalized := normalize.Description(raw.Description)
		// Rules and aliases are written against real statement text, so
		// they see the raw description, not the normalized rewrite.
		outcome := classify.Apply(raw.Description, p.cfg)
		merchant := classify.Merchant(raw.Description, p.cfg.MerchantAliases)
		kind := inferrer.Infer(raw.Description, raw.Amount, raw.TaxID)

		tags := append([]string{}, outcome.Tags...)
		tags = append(tags, "merchant:"+merchant)
		if bank.CardTag != "" {
			tags = append(tags, bank.CardTag)
		}
		if period, perErr := classify.Period(raw.Date, closingDay); perErr == nil {
			tags = append(tags, "period:"+period)
		}
		if raw.TaxID != "" {
			tags = append(tags, "rfc:"+raw.TaxID)
		}

		row := buildRow(raw, kind, outcome, tags, accountName, paymentAsset, p.cfg.Currency)
		result.Rows = append(result.Rows, row)

		if row.Type == "withdrawal" && outcome.Expense == p.cfg.FallbackExpense {
			agg, ok := unknown[merchant]
			if !ok {
				agg = &UnknownMerchant{Merchant: merchant}
				unknown[merchant] = agg
			}
			agg.Count++
			agg.Total = agg.Total.Add(raw.Amount.Abs())
			if len(agg.Examples) < 5 {
				agg.Examples = append(agg.Examples, raw.Description)
			}
		}

		accountID := raw.AccountHint
		if accountID == "" {
			accountID = accountName
		}
		canonicalID := p.cfg.ResolveCanonicalAccount(f.BankID, accountID)

		if !seenAccounts[canonicalID] {
			seenAccounts[canonicalID] = true
			account := p.accountFor(canonicalID, accountName, f.BankID, closingDay)
			if err := p.store.UpsertAccount(ctx, account); err != nil {
				return err
			}
		}

		txn := model.CanonicalTransaction{
			Date:                  raw.Date,
			RawDescription:        raw.Description,
			NormalizedDescription: normalized,
			Amount:                raw.Amount,
			BankID:                f.BankID,
			AccountID:             accountID,
			CanonicalAccountID:    canonicalID,
			Source:                raw.Source,
			TaxID:                 raw.TaxID,
		}

		// Tag problems are warnings; a malformed row itself is skipped.
		// Strict mode aborts the file on either.
		if tagProblems := model.ValidateTags(tags); len(tagProblems) > 0 {
			if p.strict {
				return fmt.Errorf("row %s %s: %s",
					raw.Date, raw.Description, strings.Join(tagProblems, ", "))
			}
			p.log.Warn("tag problems",
				"date", raw.Date,
				"description", raw.Description,
				"problems", strings.Join(tagProblems, ", "))
		}
		if problems := model.ValidateTransaction(txn); len(problems) > 0 {
			if p.strict {
				return fmt.Errorf("row %s %s: validation failed: %s",
					raw.Date, raw.Description, strings.Join(problems, ", "))
			}
			result.RowsSkipped++
			p.log.Warn("row skipped",
				"date", raw.Date,
				"description", raw.Description,
				"problems", strings.Join(problems, ", "))
			continue
		}

		inserted, err := p.store.InsertTransaction(ctx, txn, result.ImportID)
		if err != nil {
			return err
		}
		if inserted {
			result.RowsInserted++
		}
	}

	result.UnknownMerchants = sortUnknown(unknown)
	return nil
}

// buildRow shapes one classified row. Charges become withdrawals against an
// expense account; payments, refunds, and cashback become transfers with a
// kind tag.
func buildRow(raw model.RawTransaction, kind model.Kind, outcome classify.Outcome, tags []string, accountName, paymentAsset, currency string) model.ClassifiedRow {
	row := model.ClassifiedRow{
		Date:        raw.Date,
		Amount:      raw.Amount.Abs().StringFixed(2),
		Currency:    currency,
		Description: raw.Description,
	}
	switch kind {
	case model.KindCharge:
		row.Type = "withdrawal"
		row.SourceName = accountName
		row.DestinationName = outcome.Expense
		row.Category = classify.Category(outcome.Expense)
		row.Tags = classify.AssembleTags(tags)
	case model.KindPayment:
		row.Type = "transfer"
		row.SourceName = paymentAsset
		row.DestinationName = accountName
		row.Tags = classify.AssembleTags(tags, "pago")
	case model.KindCashback:
		row.Type = "transfer"
		row.SourceName = "Income:Cashback"
		row.DestinationName = accountName
		row.Tags = classify.AssembleTags(tags, string(kind))
	default: // refund
		row.Type = "transfer"
		row.SourceName = "Income:Other"
		row.DestinationName = accountName
		row.Tags = classify.AssembleTags(tags, string(kind))
	}
	return row
}

func (p *Pipeline) accountFor(canonicalID, fallbackName, bankID string, closingDay int) model.Account {
	account := model.Account{
		AccountID:   canonicalID,
		DisplayName: fallbackName,
		Type:        "credit_card",
		BankID:      bankID,
		ClosingDay:  closingDay,
		Currency:    p.cfg.Currency,
	}
	if entry, ok := p.cfg.CanonicalAccounts[canonicalID]; ok {
		if entry.DisplayName != "" {
			account.DisplayName = entry.DisplayName
		}
		if entry.Type != "" {
			account.Type = entry.Type
		}
		if entry.ClosingDay != 0 {
			account.ClosingDay = entry.ClosingDay
		}
		if entry.Currency != "" {
			account.Currency = entry.Currency
		}
	}
	return account
}

func sortUnknown(unknown map[string]*UnknownMerchant) []UnknownMerchant {
	out := make([]UnknownMerchant, 0, len(unknown))
	for _, agg := range unknown {
		sort.Strings(agg.Examples)
		out = append(out, *agg)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Total.Equal(out[j].Total) {
			return out[i].Total.GreaterThan(out[j].Total)
		}
		return out[i].Merchant < out[j].Merchant
	})
	return out
}

func sourceName(f FileSpec) string {
	if f.PDFSource || f.DataPath == "" {
		return f.PDFPath
	}
	return f.DataPath
}
