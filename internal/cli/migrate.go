package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/josh-kwaku/potfund-ledger/migrations"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "migrate",
		Short:         "Apply the embedded schema migrations",
		Long:          "Apply every embedded *.up.sql file in order. Migrations are idempotent, so running this against an up-to-date database is a no-op.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := rootOpts.formatter(cmd)

			db, err := rootOpts.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			applied, err := migrations.Apply(ctx, db)
			if err != nil {
				_ = out.Error("MIGRATE_FAILED", err.Error(), nil)
				return WrapExitError(ExitCommandError, "apply migrations", err)
			}

			return out.Success(map[string]any{"applied": applied}, func(w io.Writer) {
				for _, f := range applied {
					fmt.Fprintf(w, "applied %s\n", f)
				}
				fmt.Fprintf(w, "%d migration(s) applied\n", len(applied))
			})
		},
	}
}
