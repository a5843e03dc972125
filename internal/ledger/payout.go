package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
	"github.com/josh-kwaku/potfund-ledger/internal/idempotency"
	"github.com/josh-kwaku/potfund-ledger/internal/logging"
	"github.com/josh-kwaku/potfund-ledger/internal/metrics"
	"github.com/josh-kwaku/potfund-ledger/internal/money"
	"github.com/josh-kwaku/potfund-ledger/internal/repository"
)

type PayoutRequest struct {
	CycleID uuid.UUID
	// MemberID, when set, must be the cycle's current recipient.
	MemberID       *uuid.UUID
	IdempotencyKey string
	Actor          string
	RequestID      string
}

// PayoutReceipt is the stored response of a payout. As with Receipt, only
// Replayed differs between the first response and a replay.
type PayoutReceipt struct {
	Entry          domain.LedgerEntry
	FundBalance    int64
	Recipient      uuid.UUID
	NextRecipient  *uuid.UUID
	CycleCompleted bool
	Replayed       bool `json:"-"`
}

// payoutReceipt rebuilds the receipt a committed payout returned from the
// entry's recorded balance and the rotation step it triggered.
func (m *Manager) payoutReceipt(ctx context.Context, q repository.Querier, e *domain.LedgerEntry) (*PayoutReceipt, error) {
	adv, err := m.rotation.AdvanceOutcome(ctx, q, *e.CycleID, e.MemberID)
	if err != nil {
		return nil, err
	}
	r := &PayoutReceipt{
		Entry:          *e,
		FundBalance:    e.BalanceAfter,
		Recipient:      e.MemberID,
		NextRecipient:  adv.NextRecipient,
		CycleCompleted: adv.Completed,
		Replayed:       true,
	}
	r.Entry.Active = true
	return r, nil
}

func payoutHash(req PayoutRequest) string {
	member := ""
	if req.MemberID != nil {
		member = req.MemberID.String()
	}
	return idempotency.HashRequest("payout", req.CycleID, member)
}

// RecordPayout pays the pooled amount (contribution amount times roster size)
// to the cycle's current recipient and advances the rotation in the same
// transaction.
func (m *Manager) RecordPayout(ctx context.Context, req PayoutRequest) (*PayoutReceipt, error) {
	defer metrics.Observe("record_payout")()
	kind := string(domain.EntryKindPayout)

	if req.CycleID == uuid.Nil || (req.MemberID != nil && *req.MemberID == uuid.Nil) {
		metrics.LedgerTransactions.WithLabelValues(kind, metrics.OutcomeRejected).Inc()
		return nil, fmt.Errorf("RecordPayout: %w", domain.ErrInvalidRequest)
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = idempotency.NewKey()
	}
	ctx = logging.With(ctx, "cycle_id", req.CycleID, "idempotency_key", req.IdempotencyKey)
	log := logging.FromContext(ctx)

	hash := payoutHash(req)
	rec, err := m.idem.Check(ctx, req.IdempotencyKey, hash)
	if err != nil {
		metrics.LedgerTransactions.WithLabelValues(kind, metrics.OutcomeRejected).Inc()
		return nil, fmt.Errorf("RecordPayout: %w", err)
	}
	if rec != nil {
		var receipt PayoutReceipt
		if err := rec.Decode(&receipt); err == nil {
			receipt.Replayed = true
			metrics.IdempotentReplays.Inc()
			metrics.LedgerTransactions.WithLabelValues(kind, metrics.OutcomeReplayed).Inc()
			return &receipt, nil
		}
		log.Warn("stored payout response unreadable, continuing", "error", err)
	}

	cycle, err := m.rotation.GetCycle(ctx, req.CycleID)
	if err != nil {
		metrics.LedgerTransactions.WithLabelValues(kind, metrics.OutcomeRejected).Inc()
		return nil, fmt.Errorf("RecordPayout: %w", err)
	}

	var receipt *PayoutReceipt
	err = m.tx.Do(ctx, "record_payout", func(ctx context.Context, tx *sql.Tx) error {
		r, err := m.applyPayout(ctx, tx, cycle.GroupID, req)
		receipt = r
		return err
	})
	if err != nil && errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
		receipt, err = m.loadPayoutWinner(ctx, req)
	}
	if err != nil {
		metrics.LedgerTransactions.WithLabelValues(kind, metrics.OutcomeFailed).Inc()
		return nil, fmt.Errorf("RecordPayout: %w", err)
	}

	if receipt.Replayed {
		metrics.IdempotentReplays.Inc()
		metrics.LedgerTransactions.WithLabelValues(kind, metrics.OutcomeReplayed).Inc()
	} else {
		metrics.LedgerTransactions.WithLabelValues(kind, metrics.OutcomeCommitted).Inc()
	}

	m.idem.Save(ctx, req.IdempotencyKey, hash, receipt)

	log.Info("payout recorded",
		"entry_id", receipt.Entry.ID,
		"recipient", receipt.Recipient,
		"amount", -receipt.Entry.Amount,
		"fund_balance", receipt.FundBalance,
		"cycle_completed", receipt.CycleCompleted,
	)
	return receipt, nil
}

func (m *Manager) applyPayout(ctx context.Context, tx *sql.Tx, groupID uuid.UUID, req PayoutRequest) (*PayoutReceipt, error) {
	fund, err := m.funds.GetForUpdate(ctx, tx, groupID)
	if err != nil {
		return nil, fmt.Errorf("applyPayout: %w", err)
	}

	existing, err := m.ledger.GetByIdempotencyKey(ctx, tx, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("applyPayout: %w", err)
	}
	if existing != nil {
		if !samePayout(existing, req) {
			return nil, fmt.Errorf("applyPayout: %w", domain.ErrIdempotencyConflict)
		}
		r, err := m.payoutReceipt(ctx, tx, existing)
		if err != nil {
			return nil, fmt.Errorf("applyPayout: %w", err)
		}
		return r, nil
	}

	if fund.Status != domain.FundStatusActive {
		return nil, fmt.Errorf("applyPayout: %w", domain.ErrGroupNotActive)
	}

	auth, err := m.rotation.AuthorizePayoutTx(ctx, tx, req.CycleID, req.MemberID)
	if err != nil {
		return nil, fmt.Errorf("applyPayout: %w", err)
	}

	amount, err := money.Multiply(money.Amount(auth.Cycle.ContributionAmount), auth.RosterSize)
	if err != nil {
		return nil, fmt.Errorf("applyPayout: %w", err)
	}
	newBalance, err := money.Subtract(money.Amount(fund.CurrentBalance), amount)
	if err != nil {
		return nil, fmt.Errorf("applyPayout: %w", err)
	}

	actor := actorOrSystem(req.Actor)
	cycleID := req.CycleID
	entry := domain.LedgerEntry{
		ID:             uuid.New(),
		GroupID:        groupID,
		MemberID:       auth.Recipient,
		CycleID:        &cycleID,
		Kind:           domain.EntryKindPayout,
		Amount:         -amount.Int64(),
		IdempotencyKey: req.IdempotencyKey,
		Active:         true,
		RecordedBy:     actor,
		CreatedAt:      m.now(),
		BalanceAfter:   newBalance.Int64(),
	}
	if err := m.ledger.Create(ctx, tx, &entry); err != nil {
		return nil, fmt.Errorf("applyPayout: %w", err)
	}
	if err := m.funds.UpdateBalance(ctx, tx, fund.ID, newBalance.Int64(), fund.Version+1); err != nil {
		return nil, fmt.Errorf("applyPayout: %w", err)
	}

	adv, err := m.rotation.AdvanceTx(ctx, tx, req.CycleID, actor)
	if err != nil {
		return nil, fmt.Errorf("applyPayout: %w", err)
	}

	err = m.writeAudit(ctx, tx, groupID, domain.AuditEntityEntry, entry.ID,
		domain.AuditActionPayout, actor, int64Ptr(entry.Amount), map[string]any{
			"cycle_id":        req.CycleID,
			"recipient":       auth.Recipient,
			"roster_size":     auth.RosterSize,
			"idempotency_key": req.IdempotencyKey,
			"request_id":      req.RequestID,
			"balance_before":  fund.CurrentBalance,
			"balance_after":   newBalance.Int64(),
		})
	if err != nil {
		return nil, fmt.Errorf("applyPayout: audit: %w", err)
	}

	return &PayoutReceipt{
		Entry:          entry,
		FundBalance:    newBalance.Int64(),
		Recipient:      auth.Recipient,
		NextRecipient:  adv.NextRecipient,
		CycleCompleted: adv.Completed,
	}, nil
}

func (m *Manager) loadPayoutWinner(ctx context.Context, req PayoutRequest) (*PayoutReceipt, error) {
	existing, err := m.ledger.GetByIdempotencyKey(ctx, m.db, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("loadPayoutWinner: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("loadPayoutWinner: %w", domain.ErrConcurrentModification)
	}
	if !samePayout(existing, req) {
		return nil, fmt.Errorf("loadPayoutWinner: %w", domain.ErrIdempotencyConflict)
	}
	r, err := m.payoutReceipt(ctx, m.db, existing)
	if err != nil {
		return nil, fmt.Errorf("loadPayoutWinner: %w", err)
	}
	return r, nil
}

func samePayout(e *domain.LedgerEntry, req PayoutRequest) bool {
	if e.Kind != domain.EntryKindPayout || e.CycleID == nil || *e.CycleID != req.CycleID {
		return false
	}
	return req.MemberID == nil || *req.MemberID == e.MemberID
}
