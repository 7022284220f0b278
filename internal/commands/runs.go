package commands

import (
	"github.com/spf13/cobra"

	"github.com/cuentas-dev/cuentas/internal/store"
)

func newRunsCommand() *cobra.Command {
	var dbPath string
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent import runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.ListImports(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				cmd.Println("No imports recorded.")
				return nil
			}
			for _, run := range runs {
				cmd.Printf("%s  %-10s %-8s %4d rows  %s\n",
					run.ProcessedAt.Format("2006-01-02 15:04"),
					run.BankID, run.Status, run.RowCount, run.SourceFile)
				if run.Error != "" {
					cmd.Printf("    error: %s\n", run.Error)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "cuentas.db", "database file")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list")
	return cmd
}
