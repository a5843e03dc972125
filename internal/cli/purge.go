package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/josh-kwaku/potfund-ledger/internal/idempotency"
	"github.com/josh-kwaku/potfund-ledger/internal/repository"
)

func NewPurgeIdempotencyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "purge-idempotency",
		Short:         "Delete expired idempotency records once",
		Long:          "Run a single sweep of the idempotency purger. The API runs the same sweep on an interval; this is for maintenance windows and cron.",
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

			logger := slog.New(slog.NewTextHandler(out.ErrWriter, nil))
			purger := idempotency.NewPurger(repository.NewIdempotencyRepository(db), logger, 0)
			n, err := purger.PurgeOnce(ctx)
			if err != nil {
				_ = out.Error("PURGE_FAILED", err.Error(), nil)
				return WrapExitError(ExitCommandError, "purge idempotency records", err)
			}

			return out.Success(map[string]int64{"deleted": n}, func(w io.Writer) {
				fmt.Fprintf(w, "deleted %d expired idempotency record(s)\n", n)
			})
		},
	}
}
