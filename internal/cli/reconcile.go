package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
	"github.com/josh-kwaku/potfund-ledger/internal/repository"
)

type reconcileOptions struct {
	GroupID string
}

// GroupReport is the reconciliation outcome for one group. A group is
// consistent when Violations is empty.
type GroupReport struct {
	GroupID    uuid.UUID `json:"group_id"`
	Balance    int64     `json:"balance"`
	LedgerSum  int64     `json:"ledger_sum"`
	Violations []string  `json:"violations"`
}

// groupSnapshot is everything reconciliation reads for a single group.
type groupSnapshot struct {
	Fund    *domain.GroupFund
	Totals  *repository.GroupTotals
	Members []domain.MemberBalance
	Cycle   *domain.RotationCycle
	Roster  []domain.RosterSlot
}

func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &reconcileOptions{}

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Check group balances and rosters against the ledger",
		Long: `Recompute each group's balance from its ledger entries and compare it with
the stored balance, the per-member contribution totals and the open cycle's
roster. Exits 1 when any group is inconsistent.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.GroupID, "group", "g", "", "reconcile a single group (default: all groups)")

	return cmd
}

func runReconcile(cmd *cobra.Command, rootOpts *RootOptions, opts *reconcileOptions) error {
	ctx := cmd.Context()
	out := rootOpts.formatter(cmd)

	var only uuid.UUID
	if opts.GroupID != "" {
		id, err := uuid.Parse(opts.GroupID)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --group", err)
		}
		only = id
	}

	db, err := rootOpts.openDB(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	funds := repository.NewFundRepository(db)
	groups := []uuid.UUID{only}
	if only == uuid.Nil {
		groups, err = funds.ListIDs(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "list groups", err)
		}
	}

	var reports []GroupReport
	failed := 0
	for _, id := range groups {
		out.VerboseLog("reconciling group %s", id)
		snap, err := loadSnapshot(ctx, db, id)
		if err != nil {
			_ = out.Error("RECONCILE_FAILED", err.Error(), map[string]string{"group_id": id.String()})
			return WrapExitError(ExitCommandError, "load group "+id.String(), err)
		}
		r := checkGroup(snap)
		if len(r.Violations) > 0 {
			failed++
		}
		reports = append(reports, r)
	}

	if err := out.Success(reports, func(w io.Writer) { printReports(w, reports) }); err != nil {
		return err
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d group(s) inconsistent", failed, len(reports)))
	}
	return nil
}

// loadSnapshot reads every table for the group inside one read-only
// repeatable-read transaction, so concurrent writes cannot show up as drift
// between the fund row and the ledger sums.
func loadSnapshot(ctx context.Context, db *sql.DB, groupID uuid.UUID) (*groupSnapshot, error) {
	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("loadSnapshot: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	fund, err := repository.NewFundRepository(db).GetByID(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}
	totals, err := repository.NewLedgerRepository(db).Totals(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}
	members, err := repository.NewMemberBalanceRepository(db).ListByGroup(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}

	snap := &groupSnapshot{Fund: fund, Totals: totals, Members: members}
	cycle, err := repository.NewCycleRepository(db).GetOpenByGroup(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}
	if cycle != nil {
		snap.Cycle = cycle
		snap.Roster, err = repository.NewRosterRepository(db).ListByCycle(ctx, tx, cycle.ID)
		if err != nil {
			return nil, err
		}
	}
	return snap, nil
}

// checkGroup compares the denormalized state with what the ledger implies.
// Reversed pairs are both inactive and cancel out, so the balance must equal
// the sum over all entries and over active entries alike.
func checkGroup(s *groupSnapshot) GroupReport {
	r := GroupReport{
		GroupID:    s.Fund.ID,
		Balance:    s.Fund.CurrentBalance,
		LedgerSum:  s.Totals.AllEntries,
		Violations: []string{},
	}
	add := func(format string, args ...any) {
		r.Violations = append(r.Violations, fmt.Sprintf(format, args...))
	}

	if s.Fund.CurrentBalance < 0 {
		add("balance is negative: %d", s.Fund.CurrentBalance)
	}
	if s.Fund.CurrentBalance != s.Totals.AllEntries {
		add("balance %d does not match ledger sum %d", s.Fund.CurrentBalance, s.Totals.AllEntries)
	}
	if s.Totals.ActiveEntries != s.Totals.AllEntries {
		add("active entries sum %d differs from ledger sum %d", s.Totals.ActiveEntries, s.Totals.AllEntries)
	}
	if s.Fund.MemberCount != len(s.Members) {
		add("member count %d but %d member balances", s.Fund.MemberCount, len(s.Members))
	}

	var contributed int64
	for _, m := range s.Members {
		contributed += m.TotalContributed
		if want := s.Totals.ContributionByMember[m.MemberID]; m.TotalContributed != want {
			add("member %s total_contributed %d but active contributions sum %d", m.MemberID, m.TotalContributed, want)
		}
	}
	if contributed != s.Totals.ActiveContributions {
		add("member totals sum %d but active contributions sum %d", contributed, s.Totals.ActiveContributions)
	}

	if s.Cycle != nil {
		for _, v := range checkRoster(s.Cycle.Status, s.Roster) {
			add("cycle %s: %s", s.Cycle.ID, v)
		}
	}
	return r
}

// checkRoster expects slots in position order. Positions run 1..n, PAID slots
// come first, then at most one CURRENT_RECIPIENT, then WAITING.
func checkRoster(status domain.CycleStatus, slots []domain.RosterSlot) []string {
	var out []string
	rank := map[domain.SlotStatus]int{
		domain.SlotStatusPaid:             0,
		domain.SlotStatusCurrentRecipient: 1,
		domain.SlotStatusWaiting:          2,
	}

	current, prev := 0, -1
	for i, s := range slots {
		if s.Position != i+1 {
			out = append(out, fmt.Sprintf("position %d found where %d expected", s.Position, i+1))
		}
		if s.Status == domain.SlotStatusCurrentRecipient {
			current++
		}
		if rank[s.Status] < prev {
			out = append(out, fmt.Sprintf("position %d is %s after a later-stage slot", s.Position, s.Status))
		}
		prev = rank[s.Status]
	}

	switch status {
	case domain.CycleStatusActive:
		if current != 1 {
			out = append(out, fmt.Sprintf("active cycle has %d current recipients", current))
		}
	case domain.CycleStatusPending:
		for _, s := range slots {
			if s.Status != domain.SlotStatusWaiting {
				out = append(out, fmt.Sprintf("pending cycle has %s slot at position %d", s.Status, s.Position))
			}
		}
	}
	return out
}

func printReports(w io.Writer, reports []GroupReport) {
	for _, r := range reports {
		if len(r.Violations) == 0 {
			fmt.Fprintf(w, "OK    %s balance=%d\n", r.GroupID, r.Balance)
			continue
		}
		fmt.Fprintf(w, "FAIL  %s balance=%d ledger=%d\n", r.GroupID, r.Balance, r.LedgerSum)
		for _, v := range r.Violations {
			fmt.Fprintf(w, "      - %s\n", v)
		}
	}
	fmt.Fprintf(w, "%d group(s) checked\n", len(reports))
}
