// Package cli implements ledgerctl, the operator tool that runs migrations,
// reconciles fund balances against the ledger and purges expired
// idempotency records.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/josh-kwaku/potfund-ledger/internal/repository"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	Format      string // "json" | "text"
	DatabaseURL string
}

var ValidFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operator tool for the pooled-fund ledger",
		Long:  "ledgerctl applies schema migrations, reconciles group balances against the ledger and purges expired idempotency records.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection string (defaults to $DATABASE_URL)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewPurgeIdempotencyCommand(opts))

	return cmd
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// openDB uses a small pool; every command is a short, sequential batch.
func (o *RootOptions) openDB(ctx context.Context) (*sql.DB, error) {
	if o.DatabaseURL == "" {
		return nil, NewExitError(ExitCommandError, "no database configured: pass --database-url or set DATABASE_URL")
	}
	db, err := repository.NewPostgresDB(ctx, o.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     2,
		MaxIdleConns:     1,
		ConnMaxLifetimeS: 60,
		ConnMaxIdleTimeS: 30,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "connect to database", err)
	}
	return db, nil
}
