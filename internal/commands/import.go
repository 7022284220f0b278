package commands

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/cuentas-dev/cuentas/internal/config"
	"github.com/cuentas-dev/cuentas/internal/pdfext"
	"github.com/cuentas-dev/cuentas/internal/pipeline"
	"github.com/cuentas-dev/cuentas/internal/store"
)

func newImportCommand(logger *log.Logger) *cobra.Command {
	var (
		rulesPath string
		dbPath    string
		bankID    string
		dataPath  string
		pdfPath   string
		pdfSource bool
		forceOCR  bool
		year      int
		strict    bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a bank statement into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rulesPath)
			if err != nil {
				return err
			}

			st, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			engine := pdfext.NewEngine(logger)
			engine.ForceOCR = forceOCR

			p := pipeline.New(cfg, st, logger,
				pipeline.WithStrict(strict),
				pipeline.WithEngine(engine))

			summary, results := p.Run(cmd.Context(), []pipeline.FileSpec{{
				BankID:    bankID,
				DataPath:  dataPath,
				PDFPath:   pdfPath,
				PDFSource: pdfSource,
				Year:      year,
			}})

			for _, result := range results {
				if result.Err != nil {
					return result.Err
				}
				printResult(cmd, result)
			}

			cmd.Printf("Seen %d rows, inserted %d new, backfilled %d.\n",
				summary.RowsSeen, summary.RowsInserted, summary.RowsBackfilled)
			return nil
		},
	}

	cmd.Flags().StringVar(&rulesPath, "rules", "rules.yml", "classification rules file")
	cmd.Flags().StringVar(&dbPath, "db", "cuentas.db", "database file")
	cmd.Flags().StringVar(&bankID, "bank", "", "bank id from rules.yml (required)")
	_ = cmd.MarkFlagRequired("bank")
	cmd.Flags().StringVar(&dataPath, "data", "", "statement export (xml/xls/csv)")
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "statement PDF for extraction or cross-check")
	cmd.Flags().BoolVar(&pdfSource, "pdf-source", false, "use the PDF as the data source")
	cmd.Flags().BoolVar(&forceOCR, "force-ocr", false, "OCR every page even when a text layer exists")
	cmd.Flags().IntVar(&year, "year", 0, "statement year for dates without one")
	cmd.Flags().BoolVar(&strict, "strict", false, "abort the file on any validation problem")

	return cmd
}

func printResult(cmd *cobra.Command, result pipeline.FileResult) {
	if meta := result.Metadata; meta != nil && meta.CutoffDate != "" {
		cmd.Printf("Statement cutoff %s", meta.CutoffDate)
		if meta.DueDate != "" {
			cmd.Printf(", due %s", meta.DueDate)
		}
		if meta.TotalPagar.Valid {
			cmd.Printf(", total $%s", meta.TotalPagar.Decimal.StringFixed(2))
		}
		cmd.Println(".")
	}
	if recon := result.Reconciliation; recon != nil {
		cmd.Printf("Reconciled %d/%d PDF rows against the export (%d pdf-only, %d export-only, %d differences).\n",
			recon.Matched, recon.TotalPrimary,
			len(recon.PrimaryOnly), len(recon.SecondaryOnly), len(recon.Differences))
	}
	if len(result.UnknownMerchants) > 0 {
		cmd.Printf("Uncategorized merchants for %s:\n", result.SourceFile)
		for _, um := range result.UnknownMerchants {
			cmd.Printf("  %-30s %3dx  $%s\n", um.Merchant, um.Count, um.Total.StringFixed(2))
			for _, ex := range um.Examples {
				cmd.Printf("      %s\n", ex)
			}
		}
	}
}
