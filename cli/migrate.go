package cli

import (
	"fmt"

	"github.com/mailroom/mailroom/engine/infra/sqlite"
	"github.com/spf13/cobra"
)

// MigrateCmd applies the embedded schema migrations and exits. The other
// commands migrate on startup too; this one exists for provisioning.
func MigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := configFromContext(ctx)
			db, err := sqlite.Open(ctx, &sqlite.Config{Path: cfg.Database.Path})
			if err != nil {
				return err
			}
			defer db.Close()
			if err := sqlite.ApplyMigrations(ctx, db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
