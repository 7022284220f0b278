package commands

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/cuentas-dev/cuentas/internal/normalize"
	"github.com/cuentas-dev/cuentas/internal/store"
)

func newBackfillCommand(logger *log.Logger) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Re-normalize stored descriptions after glossary changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(dbPath)
			if err != nil {
				return err
			}
			defer st.Close()

			updated, err := st.BackfillNormalized(cmd.Context(), normalize.Description)
			if err != nil {
				return err
			}
			logger.Info("backfill complete", "updated", updated)
			cmd.Printf("Updated %d rows.\n", updated)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "cuentas.db", "database file")
	return cmd
}
