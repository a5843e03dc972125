package ledger_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
	"github.com/josh-kwaku/potfund-ledger/internal/fingerprint"
	"github.com/josh-kwaku/potfund-ledger/internal/idempotency"
	"github.com/josh-kwaku/potfund-ledger/internal/ledger"
	"github.com/josh-kwaku/potfund-ledger/internal/money"
	"github.com/josh-kwaku/potfund-ledger/internal/repository"
	"github.com/josh-kwaku/potfund-ledger/internal/rotation"
	"github.com/josh-kwaku/potfund-ledger/internal/testutil"
	"github.com/josh-kwaku/potfund-ledger/internal/txn"
)

type harness struct {
	db        *sql.DB
	manager   *ledger.Manager
	scheduler *rotation.Scheduler
}

// forgetfulStore is an idempotency store whose cache and table are both
// unavailable: every lookup misses and nothing is saved.
type forgetfulStore struct{}

func (forgetfulStore) Check(context.Context, string, string) (*idempotency.Record, error) {
	return nil, nil
}

func (forgetfulStore) Save(context.Context, string, string, any) {}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithStore(t, nil)
}

// newHarnessWithStore swaps the idempotency store when store is non-nil.
func newHarnessWithStore(t *testing.T, store interface {
	Check(ctx context.Context, key, requestHash string) (*idempotency.Record, error)
	Save(ctx context.Context, key, requestHash string, response any)
}) *harness {
	t.Helper()
	db := testutil.SetupTestDB(t)

	funds := repository.NewFundRepository(db)
	members := repository.NewMemberBalanceRepository(db)
	entries := repository.NewLedgerRepository(db)
	audit := repository.NewAuditRepository(db)
	runner := txn.NewRunner(db, txn.Config{MaxAttempts: 40, BaseDelay: 5 * time.Millisecond, MaxDelay: 100 * time.Millisecond})

	scheduler := rotation.NewScheduler(
		repository.NewCycleRepository(db),
		repository.NewRosterRepository(db),
		repository.NewSwapRepository(db),
		funds, members, audit, runner, db, 70,
	)
	if store == nil {
		store = idempotency.NewStore(repository.NewIdempotencyRepository(db), nil, time.Hour)
	}
	manager := ledger.NewManager(funds, members, entries, audit, scheduler, store, fingerprint.NewDetector(nil, 0), runner, db)

	return &harness{db: db, manager: manager, scheduler: scheduler}
}

func (h *harness) contribute(t *testing.T, groupID, memberID uuid.UUID, amount int64) *ledger.Receipt {
	t.Helper()
	r, err := h.manager.RecordContribution(context.Background(), ledger.ContributionRequest{
		GroupID:        groupID,
		MemberID:       memberID,
		Amount:         money.Amount(amount),
		PaymentMethod:  "bank_transfer",
		IdempotencyKey: uuid.NewString(),
		Actor:          "user:test",
	})
	require.NoError(t, err)
	return r
}

// activeCycle funds every member once and starts a cycle with the roster in
// the order given.
func (h *harness) activeCycle(t *testing.T, groupID uuid.UUID, members []uuid.UUID, amount int64) *rotation.CycleView {
	t.Helper()
	ctx := context.Background()

	for _, m := range members {
		h.contribute(t, groupID, m, amount)
	}
	view, err := h.scheduler.CreateCycle(ctx, rotation.CreateCycleRequest{
		GroupID:            groupID,
		ContributionAmount: money.Amount(amount),
		Members:            members,
	})
	require.NoError(t, err)
	view, err = h.scheduler.ActivateCycle(ctx, view.Cycle.ID, "user:admin")
	require.NoError(t, err)
	return view
}

func assertBalanced(t *testing.T, db *sql.DB, groupID uuid.UUID) {
	t.Helper()
	assert.Equal(t, testutil.GetFundBalance(t, db, groupID), testutil.SumLedgerEntries(t, db, groupID),
		"fund balance must equal the sum of its ledger entries")
}

func TestRecordContribution_UpdatesBalances(t *testing.T) {
	h := newHarness(t)
	fund := testutil.SeedFund(t, h.db)
	member := testutil.SeedMember(t, h.db, fund.ID, domain.MemberStatusActive)

	r := h.contribute(t, fund.ID, member, 500)

	assert.False(t, r.Replayed)
	assert.Equal(t, int64(500), r.FundBalance)
	assert.Equal(t, int64(500), r.MemberTotal)
	assert.Equal(t, domain.EntryKindContribution, r.Entry.Kind)
	assert.True(t, r.Entry.Active)

	r = h.contribute(t, fund.ID, member, 250)
	assert.Equal(t, int64(750), r.FundBalance)
	assert.Equal(t, int64(750), testutil.GetMemberTotal(t, h.db, fund.ID, member))
	assert.Equal(t, 2, testutil.CountAuditRows(t, h.db, fund.ID, domain.AuditActionContribution))
	assertBalanced(t, h.db, fund.ID)
}

func TestRecordContribution_ConcurrentSameKeyAppliesOnce(t *testing.T) {
	h := newHarness(t)
	fund := testutil.SeedFund(t, h.db)
	member := testutil.SeedMember(t, h.db, fund.ID, domain.MemberStatusActive)

	req := ledger.ContributionRequest{
		GroupID:        fund.ID,
		MemberID:       member,
		Amount:         500,
		PaymentMethod:  "bank_transfer",
		IdempotencyKey: "k1",
	}

	const workers = 8
	var wg sync.WaitGroup
	receipts := make([]*ledger.Receipt, workers)
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			receipts[i], errs[i] = h.manager.RecordContribution(context.Background(), req)
		}(i)
	}
	wg.Wait()

	var entryID uuid.UUID
	for i := range workers {
		require.NoError(t, errs[i])
		if entryID == uuid.Nil {
			entryID = receipts[i].Entry.ID
		}
		assert.Equal(t, entryID, receipts[i].Entry.ID, "every caller sees the same entry")
	}

	assert.Equal(t, 1, testutil.CountLedgerEntries(t, h.db, fund.ID))
	assert.Equal(t, int64(500), testutil.GetFundBalance(t, h.db, fund.ID))
	assertBalanced(t, h.db, fund.ID)
}

func TestRecordContribution_SameKeyDifferentBody(t *testing.T) {
	h := newHarness(t)
	fund := testutil.SeedFund(t, h.db)
	member := testutil.SeedMember(t, h.db, fund.ID, domain.MemberStatusActive)
	ctx := context.Background()

	req := ledger.ContributionRequest{GroupID: fund.ID, MemberID: member, Amount: 500, PaymentMethod: "card", IdempotencyKey: "k2"}
	_, err := h.manager.RecordContribution(ctx, req)
	require.NoError(t, err)

	req.Amount = 900
	_, err = h.manager.RecordContribution(ctx, req)
	require.ErrorIs(t, err, domain.ErrIdempotencyConflict)
	assert.Equal(t, int64(500), testutil.GetFundBalance(t, h.db, fund.ID))
}

func TestRecordContribution_Rejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	t.Run("frozen fund", func(t *testing.T) {
		fund := testutil.SeedFund(t, h.db)
		member := testutil.SeedMember(t, h.db, fund.ID, domain.MemberStatusActive)
		testutil.SetFundStatus(t, h.db, fund.ID, domain.FundStatusFrozen)

		_, err := h.manager.RecordContribution(ctx, ledger.ContributionRequest{
			GroupID: fund.ID, MemberID: member, Amount: 500, PaymentMethod: "card",
		})
		require.ErrorIs(t, err, domain.ErrGroupNotActive)
		assert.Zero(t, testutil.CountLedgerEntries(t, h.db, fund.ID))
	})

	t.Run("inactive member", func(t *testing.T) {
		fund := testutil.SeedFund(t, h.db)
		member := testutil.SeedMember(t, h.db, fund.ID, domain.MemberStatusInactive)

		_, err := h.manager.RecordContribution(ctx, ledger.ContributionRequest{
			GroupID: fund.ID, MemberID: member, Amount: 500, PaymentMethod: "card",
		})
		require.ErrorIs(t, err, domain.ErrMemberNotActive)
	})

	t.Run("unknown member", func(t *testing.T) {
		fund := testutil.SeedFund(t, h.db)

		_, err := h.manager.RecordContribution(ctx, ledger.ContributionRequest{
			GroupID: fund.ID, MemberID: uuid.New(), Amount: 500, PaymentMethod: "card",
		})
		require.ErrorIs(t, err, domain.ErrMemberNotActive)
	})

	t.Run("unknown group", func(t *testing.T) {
		_, err := h.manager.RecordContribution(ctx, ledger.ContributionRequest{
			GroupID: uuid.New(), MemberID: uuid.New(), Amount: 500, PaymentMethod: "card",
		})
		require.ErrorIs(t, err, domain.ErrGroupNotFound)
	})
}

func TestRecordContribution_ConcurrentDistinctKeys(t *testing.T) {
	h := newHarness(t)
	fund := testutil.SeedFund(t, h.db)
	members := testutil.SeedMembers(t, h.db, fund.ID, 4)

	var wg sync.WaitGroup
	for _, m := range members {
		for range 5 {
			wg.Add(1)
			go func(m uuid.UUID) {
				defer wg.Done()
				_, err := h.manager.RecordContribution(context.Background(), ledger.ContributionRequest{
					GroupID: fund.ID, MemberID: m, Amount: 100, PaymentMethod: "card", IdempotencyKey: uuid.NewString(),
				})
				assert.NoError(t, err)
			}(m)
		}
	}
	wg.Wait()

	assert.Equal(t, int64(2000), testutil.GetFundBalance(t, h.db, fund.ID))
	for _, m := range members {
		assert.Equal(t, int64(500), testutil.GetMemberTotal(t, h.db, fund.ID, m))
	}
	assertBalanced(t, h.db, fund.ID)
}

func TestRecordPayout_AdvancesRotationToCompletion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fund := testutil.SeedFund(t, h.db)
	members := testutil.SeedMembers(t, h.db, fund.ID, 3)

	view := h.activeCycle(t, fund.ID, members, 500)
	order := []uuid.UUID{view.Roster[0].MemberID, view.Roster[1].MemberID, view.Roster[2].MemberID}

	// each round refills the pot before paying the next recipient
	for round, want := range order {
		if round > 0 {
			for _, m := range members {
				h.contribute(t, fund.ID, m, 500)
			}
		}
		r, err := h.manager.RecordPayout(ctx, ledger.PayoutRequest{
			CycleID:        view.Cycle.ID,
			MemberID:       &want,
			IdempotencyKey: uuid.NewString(),
			Actor:          "user:admin",
		})
		require.NoError(t, err)
		assert.Equal(t, want, r.Recipient)
		assert.Equal(t, int64(-1500), r.Entry.Amount)
		assert.Equal(t, int64(0), r.FundBalance)
		assert.Equal(t, round == len(order)-1, r.CycleCompleted)
		assertBalanced(t, h.db, fund.ID)
	}

	got, err := h.scheduler.GetRoster(ctx, view.Cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CycleStatusCompleted, got.Cycle.Status)
	for _, s := range got.Roster {
		assert.Equal(t, domain.SlotStatusPaid, s.Status)
		assert.NotNil(t, s.PaidAt)
	}

	_, err = h.manager.RecordPayout(ctx, ledger.PayoutRequest{CycleID: view.Cycle.ID})
	require.ErrorIs(t, err, domain.ErrCycleNotActive)
}

func TestRecordPayout_NotCurrentRecipient(t *testing.T) {
	h := newHarness(t)
	fund := testutil.SeedFund(t, h.db)
	members := testutil.SeedMembers(t, h.db, fund.ID, 3)
	view := h.activeCycle(t, fund.ID, members, 500)

	waiting := view.Roster[1].MemberID
	_, err := h.manager.RecordPayout(context.Background(), ledger.PayoutRequest{
		CycleID:  view.Cycle.ID,
		MemberID: &waiting,
	})
	require.ErrorIs(t, err, domain.ErrNotCurrentRecipient)
	assert.Equal(t, int64(1500), testutil.GetFundBalance(t, h.db, fund.ID))
}

func TestRecordPayout_InsufficientFunds(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fund := testutil.SeedFund(t, h.db)
	members := testutil.SeedMembers(t, h.db, fund.ID, 3)

	h.contribute(t, fund.ID, members[0], 500)
	view, err := h.scheduler.CreateCycle(ctx, rotation.CreateCycleRequest{GroupID: fund.ID, ContributionAmount: 500})
	require.NoError(t, err)
	_, err = h.scheduler.ActivateCycle(ctx, view.Cycle.ID, "")
	require.NoError(t, err)

	_, err = h.manager.RecordPayout(ctx, ledger.PayoutRequest{CycleID: view.Cycle.ID})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	got, err := h.scheduler.GetRoster(ctx, view.Cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SlotStatusCurrentRecipient, got.Roster[0].Status, "a failed payout leaves the rotation untouched")
}

func TestRecordPayout_ConcurrentNoDoubleSpend(t *testing.T) {
	h := newHarness(t)
	fund := testutil.SeedFund(t, h.db)
	members := testutil.SeedMembers(t, h.db, fund.ID, 2)
	view := h.activeCycle(t, fund.ID, members, 500)

	const workers = 6
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.manager.RecordPayout(context.Background(), ledger.PayoutRequest{
				CycleID:        view.Cycle.ID,
				IdempotencyKey: uuid.NewString(),
			})
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, domain.ErrInsufficientFunds) || errors.Is(err, domain.ErrConcurrentModification),
			"unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok, "the pot can be paid out only once")
	assert.Equal(t, int64(0), testutil.GetFundBalance(t, h.db, fund.ID))
	assertBalanced(t, h.db, fund.ID)
}

func TestRecordPayout_ReplayReturnsOriginal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fund := testutil.SeedFund(t, h.db)
	members := testutil.SeedMembers(t, h.db, fund.ID, 2)
	view := h.activeCycle(t, fund.ID, members, 500)

	req := ledger.PayoutRequest{CycleID: view.Cycle.ID, IdempotencyKey: "payout-1"}
	first, err := h.manager.RecordPayout(ctx, req)
	require.NoError(t, err)

	second, err := h.manager.RecordPayout(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Entry.ID, second.Entry.ID)
	assert.Equal(t, 1, testutil.CountAuditRows(t, h.db, fund.ID, domain.AuditActionPayout))
}

func TestRecordContribution_ReplayWithoutStoreMatchesFirstReceipt(t *testing.T) {
	h := newHarnessWithStore(t, forgetfulStore{})
	ctx := context.Background()
	fund := testutil.SeedFund(t, h.db)
	member := testutil.SeedMember(t, h.db, fund.ID, domain.MemberStatusActive)

	req := ledger.ContributionRequest{
		GroupID:        fund.ID,
		MemberID:       member,
		Amount:         500,
		PaymentMethod:  "bank_transfer",
		IdempotencyKey: "k1",
		Actor:          "member:" + member.String(),
	}
	first, err := h.manager.RecordContribution(ctx, req)
	require.NoError(t, err)

	later := req
	later.Amount, later.IdempotencyKey = 300, "k2"
	_, err = h.manager.RecordContribution(ctx, later)
	require.NoError(t, err)

	retried, err := h.manager.RecordContribution(ctx, req)
	require.NoError(t, err)

	assert.True(t, retried.Replayed)
	assert.Equal(t, int64(500), retried.FundBalance)
	assert.Equal(t, int64(500), retried.MemberTotal)
	retried.Replayed = false
	assert.Equal(t, first, retried, "a replay returns the original receipt, not current balances")
	assert.Equal(t, int64(800), testutil.GetFundBalance(t, h.db, fund.ID))
}

func TestRecordPayout_ReplayWithoutStoreMatchesFirstReceipt(t *testing.T) {
	h := newHarnessWithStore(t, forgetfulStore{})
	ctx := context.Background()
	fund := testutil.SeedFund(t, h.db)
	members := testutil.SeedMembers(t, h.db, fund.ID, 3)
	view := h.activeCycle(t, fund.ID, members, 500)

	req := ledger.PayoutRequest{CycleID: view.Cycle.ID, IdempotencyKey: "payout-1", Actor: "member:admin"}
	first, err := h.manager.RecordPayout(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, first.NextRecipient)

	for _, m := range members {
		h.contribute(t, fund.ID, m, 500)
	}
	second, err := h.manager.RecordPayout(ctx, ledger.PayoutRequest{CycleID: view.Cycle.ID, IdempotencyKey: "payout-2"})
	require.NoError(t, err)
	require.NotEqual(t, first.Entry.ID, second.Entry.ID)

	retried, err := h.manager.RecordPayout(ctx, req)
	require.NoError(t, err)

	assert.True(t, retried.Replayed)
	retried.Replayed = false
	assert.Equal(t, first, retried)
	assert.Equal(t, 2, testutil.CountAuditRows(t, h.db, fund.ID, domain.AuditActionPayout))
}

func TestRecordPayout_NormalizesEmptyActor(t *testing.T) {
	h := newHarness(t)
	fund := testutil.SeedFund(t, h.db)
	members := testutil.SeedMembers(t, h.db, fund.ID, 2)
	view := h.activeCycle(t, fund.ID, members, 500)

	r, err := h.manager.RecordPayout(context.Background(), ledger.PayoutRequest{CycleID: view.Cycle.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.SystemActor, r.Entry.RecordedBy)

	var actors []string
	rows, err := h.db.Query(`SELECT actor FROM audit_log WHERE group_id = $1 AND action IN ($2, $3)`,
		fund.ID, domain.AuditActionPayout, domain.AuditActionCycleAdvanced)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var a string
		require.NoError(t, rows.Scan(&a))
		actors = append(actors, a)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{domain.SystemActor, domain.SystemActor}, actors)
}

func TestReverseEntry_Contribution(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fund := testutil.SeedFund(t, h.db)
	member := testutil.SeedMember(t, h.db, fund.ID, domain.MemberStatusActive)

	h.contribute(t, fund.ID, member, 300)
	r := h.contribute(t, fund.ID, member, 500)

	rev, err := h.manager.ReverseEntry(ctx, ledger.ReversalRequest{EntryID: r.Entry.ID, Reason: "bank recall", Actor: "user:admin"})
	require.NoError(t, err)

	assert.Equal(t, int64(300), rev.FundBalance)
	assert.Equal(t, int64(-500), rev.Reversal.Amount)
	assert.Equal(t, domain.EntryKindReversal, rev.Reversal.Kind)
	require.NotNil(t, rev.Reversal.ReversesEntryID)
	assert.Equal(t, r.Entry.ID, *rev.Reversal.ReversesEntryID)
	assert.False(t, rev.Original.Active)
	assert.Equal(t, int64(300), testutil.GetMemberTotal(t, h.db, fund.ID, member))
	assertBalanced(t, h.db, fund.ID)

	_, err = h.manager.ReverseEntry(ctx, ledger.ReversalRequest{EntryID: r.Entry.ID})
	require.ErrorIs(t, err, domain.ErrEntryAlreadyReversed)

	_, err = h.manager.ReverseEntry(ctx, ledger.ReversalRequest{EntryID: rev.Reversal.ID})
	require.ErrorIs(t, err, domain.ErrEntryAlreadyReversed, "reversal entries cannot themselves be reversed")

	_, err = h.manager.ReverseEntry(ctx, ledger.ReversalRequest{EntryID: uuid.New()})
	require.ErrorIs(t, err, domain.ErrEntryNotFound)
}

func TestReverseEntry_ConcurrentReversesOnce(t *testing.T) {
	h := newHarness(t)
	fund := testutil.SeedFund(t, h.db)
	member := testutil.SeedMember(t, h.db, fund.ID, domain.MemberStatusActive)
	r := h.contribute(t, fund.ID, member, 500)

	const workers = 5
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.manager.ReverseEntry(context.Background(), ledger.ReversalRequest{EntryID: r.Entry.ID})
		}(i)
	}
	wg.Wait()

	var ok int
	for _, err := range errs {
		if err == nil {
			ok++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, int64(0), testutil.GetFundBalance(t, h.db, fund.ID))
	assert.Equal(t, 2, testutil.CountLedgerEntries(t, h.db, fund.ID))
	assertBalanced(t, h.db, fund.ID)
}

func TestReverseEntry_ContributionAfterPayoutDrainedFund(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fund := testutil.SeedFund(t, h.db)
	members := testutil.SeedMembers(t, h.db, fund.ID, 2)
	view := h.activeCycle(t, fund.ID, members, 500)

	_, err := h.manager.RecordPayout(ctx, ledger.PayoutRequest{CycleID: view.Cycle.ID})
	require.NoError(t, err)

	entries, _, err := h.manager.ListEntries(ctx, fund.ID, 0, 0)
	require.NoError(t, err)
	var contribution uuid.UUID
	for _, e := range entries {
		if e.Kind == domain.EntryKindContribution {
			contribution = e.ID
			break
		}
	}
	require.NotEqual(t, uuid.Nil, contribution)

	_, err = h.manager.ReverseEntry(ctx, ledger.ReversalRequest{EntryID: contribution})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, int64(0), testutil.GetFundBalance(t, h.db, fund.ID))
}

func TestReverseEntry_PayoutKeepsRotation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fund := testutil.SeedFund(t, h.db)
	members := testutil.SeedMembers(t, h.db, fund.ID, 2)
	view := h.activeCycle(t, fund.ID, members, 500)

	p, err := h.manager.RecordPayout(ctx, ledger.PayoutRequest{CycleID: view.Cycle.ID})
	require.NoError(t, err)

	rev, err := h.manager.ReverseEntry(ctx, ledger.ReversalRequest{EntryID: p.Entry.ID, Reason: "returned by bank"})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), rev.FundBalance)
	assert.Equal(t, int64(1000), rev.Reversal.Amount)
	assertBalanced(t, h.db, fund.ID)

	got, err := h.scheduler.GetRoster(ctx, view.Cycle.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SlotStatusPaid, got.Roster[0].Status)
	assert.Equal(t, domain.SlotStatusCurrentRecipient, got.Roster[1].Status)
}

func TestReverseEntry_FrozenAllowedClosedRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fund := testutil.SeedFund(t, h.db)
	member := testutil.SeedMember(t, h.db, fund.ID, domain.MemberStatusActive)
	first := h.contribute(t, fund.ID, member, 500)
	second := h.contribute(t, fund.ID, member, 500)

	_, err := h.manager.SetFundStatus(ctx, fund.ID, domain.FundStatusFrozen, "user:admin")
	require.NoError(t, err)
	_, err = h.manager.ReverseEntry(ctx, ledger.ReversalRequest{EntryID: first.Entry.ID})
	require.NoError(t, err)

	_, err = h.manager.SetFundStatus(ctx, fund.ID, domain.FundStatusClosed, "user:admin")
	require.NoError(t, err)
	_, err = h.manager.ReverseEntry(ctx, ledger.ReversalRequest{EntryID: second.Entry.ID})
	require.ErrorIs(t, err, domain.ErrGroupNotActive)
}

func TestSetFundStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fund := testutil.SeedFund(t, h.db)
	member := testutil.SeedMember(t, h.db, fund.ID, domain.MemberStatusActive)
	h.contribute(t, fund.ID, member, 500)

	frozen, err := h.manager.SetFundStatus(ctx, fund.ID, domain.FundStatusFrozen, "user:admin")
	require.NoError(t, err)
	assert.Equal(t, domain.FundStatusFrozen, frozen.Status)
	assert.Equal(t, int64(500), frozen.CurrentBalance)

	_, err = h.manager.RecordContribution(ctx, ledger.ContributionRequest{
		GroupID: fund.ID, MemberID: member, Amount: 100, PaymentMethod: "card",
	})
	require.ErrorIs(t, err, domain.ErrGroupNotActive, "a frozen fund takes no contributions")

	// setting the current status again is a no-op
	_, err = h.manager.SetFundStatus(ctx, fund.ID, domain.FundStatusFrozen, "user:admin")
	require.NoError(t, err)
	assert.Equal(t, 1, testutil.CountAuditRows(t, h.db, fund.ID, domain.AuditActionFundStatusChanged))

	active, err := h.manager.SetFundStatus(ctx, fund.ID, domain.FundStatusActive, "user:admin")
	require.NoError(t, err)
	assert.Equal(t, domain.FundStatusActive, active.Status)
	h.contribute(t, fund.ID, member, 100)

	_, err = h.manager.SetFundStatus(ctx, fund.ID, domain.FundStatusClosed, "")
	require.NoError(t, err)
	_, err = h.manager.SetFundStatus(ctx, fund.ID, domain.FundStatusActive, "user:admin")
	require.ErrorIs(t, err, domain.ErrGroupNotActive, "closing is final")

	got, err := h.manager.GetBalance(ctx, fund.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FundStatusClosed, got.Status)
	assert.Equal(t, 3, testutil.CountAuditRows(t, h.db, fund.ID, domain.AuditActionFundStatusChanged))

	_, err = h.manager.SetFundStatus(ctx, fund.ID, "paused", "user:admin")
	require.ErrorIs(t, err, domain.ErrInvalidRequest)
	_, err = h.manager.SetFundStatus(ctx, uuid.New(), domain.FundStatusFrozen, "user:admin")
	require.ErrorIs(t, err, domain.ErrGroupNotFound)
}

func TestFundLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	groupID := uuid.New()

	fund, err := h.manager.OpenFund(ctx, groupID, "user:admin")
	require.NoError(t, err)
	assert.Equal(t, domain.FundStatusActive, fund.Status)
	assert.Zero(t, fund.CurrentBalance)

	_, err = h.manager.OpenFund(ctx, groupID, "user:admin")
	require.ErrorIs(t, err, domain.ErrFundExists)

	memberID := uuid.New()
	mb, err := h.manager.EnrollMember(ctx, groupID, memberID, "user:admin")
	require.NoError(t, err)
	assert.Equal(t, domain.MemberStatusActive, mb.Status)

	_, err = h.manager.EnrollMember(ctx, groupID, memberID, "user:admin")
	require.ErrorIs(t, err, domain.ErrMemberAlreadyEnrolled)

	got, err := h.manager.GetBalance(ctx, groupID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.MemberCount)

	mb, err = h.manager.SetMemberStatus(ctx, groupID, memberID, domain.MemberStatusInactive, "user:admin")
	require.NoError(t, err)
	assert.Equal(t, domain.MemberStatusInactive, mb.Status)

	_, err = h.manager.RecordContribution(ctx, ledger.ContributionRequest{
		GroupID: groupID, MemberID: memberID, Amount: 100, PaymentMethod: "card",
	})
	require.ErrorIs(t, err, domain.ErrMemberNotActive)

	_, err = h.manager.GetMemberBalance(ctx, groupID, uuid.New())
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListEntries_Paginates(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	fund := testutil.SeedFund(t, h.db)
	member := testutil.SeedMember(t, h.db, fund.ID, domain.MemberStatusActive)
	for range 5 {
		h.contribute(t, fund.ID, member, 100)
	}

	page, total, err := h.manager.ListEntries(ctx, fund.ID, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page, 2)

	page, _, err = h.manager.ListEntries(ctx, fund.ID, 2, 4)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}
