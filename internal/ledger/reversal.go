package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
	"github.com/josh-kwaku/potfund-ledger/internal/logging"
	"github.com/josh-kwaku/potfund-ledger/internal/metrics"
	"github.com/josh-kwaku/potfund-ledger/internal/money"
)

type ReversalRequest struct {
	EntryID   uuid.UUID
	Reason    string
	Actor     string
	RequestID string
}

type ReversalReceipt struct {
	Original    domain.LedgerEntry
	Reversal    domain.LedgerEntry
	FundBalance int64
}

// ReverseEntry compensates a committed contribution or payout with an entry
// of the opposite sign. Both legs are marked inactive; nothing is deleted.
// Reversing a payout does not move the rotation back.
func (m *Manager) ReverseEntry(ctx context.Context, req ReversalRequest) (*ReversalReceipt, error) {
	defer metrics.Observe("reverse_entry")()
	kind := string(domain.EntryKindReversal)

	if req.EntryID == uuid.Nil {
		metrics.LedgerTransactions.WithLabelValues(kind, metrics.OutcomeRejected).Inc()
		return nil, fmt.Errorf("ReverseEntry: %w", domain.ErrInvalidRequest)
	}
	ctx = logging.With(ctx, "entry_id", req.EntryID)

	var receipt *ReversalReceipt
	err := m.tx.Do(ctx, "reverse_entry", func(ctx context.Context, tx *sql.Tx) error {
		r, err := m.applyReversal(ctx, tx, req)
		receipt = r
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
			err = fmt.Errorf("%w: %w", domain.ErrEntryAlreadyReversed, err)
		}
		metrics.LedgerTransactions.WithLabelValues(kind, metrics.OutcomeFailed).Inc()
		return nil, fmt.Errorf("ReverseEntry: %w", err)
	}
	metrics.LedgerTransactions.WithLabelValues(kind, metrics.OutcomeCommitted).Inc()

	logging.FromContext(ctx).Info("entry reversed",
		"reversal_id", receipt.Reversal.ID,
		"group_id", receipt.Original.GroupID,
		"amount", receipt.Reversal.Amount,
		"fund_balance", receipt.FundBalance,
	)
	return receipt, nil
}

func (m *Manager) applyReversal(ctx context.Context, tx *sql.Tx, req ReversalRequest) (*ReversalReceipt, error) {
	peek, err := m.ledger.GetByID(ctx, tx, req.EntryID)
	if err != nil {
		return nil, fmt.Errorf("applyReversal: %w", err)
	}

	fund, err := m.funds.GetForUpdate(ctx, tx, peek.GroupID)
	if err != nil {
		return nil, fmt.Errorf("applyReversal: %w", err)
	}
	if fund.Status == domain.FundStatusClosed {
		return nil, fmt.Errorf("applyReversal: %w", domain.ErrGroupNotActive)
	}

	var member *domain.MemberBalance
	if peek.Kind == domain.EntryKindContribution {
		member, err = m.members.GetForUpdate(ctx, tx, peek.GroupID, peek.MemberID)
		if err != nil {
			return nil, fmt.Errorf("applyReversal: %w", err)
		}
	}

	orig, err := m.ledger.GetForUpdate(ctx, tx, req.EntryID)
	if err != nil {
		return nil, fmt.Errorf("applyReversal: %w", err)
	}
	if orig.Kind == domain.EntryKindReversal || !orig.Active {
		return nil, fmt.Errorf("applyReversal: %w", domain.ErrEntryAlreadyReversed)
	}

	delta := money.Amount(-orig.Amount)
	var newBalance money.Amount
	if delta < 0 {
		newBalance, err = money.Subtract(money.Amount(fund.CurrentBalance), -delta)
	} else {
		newBalance, err = money.Add(money.Amount(fund.CurrentBalance), delta)
	}
	if err != nil {
		return nil, fmt.Errorf("applyReversal: fund: %w", err)
	}

	var memberTotal *int64
	if member != nil {
		newTotal, err := money.Subtract(money.Amount(member.TotalContributed), money.Amount(orig.Amount))
		if err != nil {
			return nil, fmt.Errorf("applyReversal: member: %w", err)
		}
		memberTotal = int64Ptr(newTotal.Int64())
	}

	now := m.now()
	origID := orig.ID
	reversal := domain.LedgerEntry{
		ID:               uuid.New(),
		GroupID:          orig.GroupID,
		MemberID:         orig.MemberID,
		CycleID:          orig.CycleID,
		Kind:             domain.EntryKindReversal,
		Amount:           delta.Int64(),
		PaymentMethod:    orig.PaymentMethod,
		IdempotencyKey:   domain.ReversalKey(orig.ID),
		ReversesEntryID:  &origID,
		Active:           false,
		Reason:           req.Reason,
		RecordedBy:       actorOrSystem(req.Actor),
		CreatedAt:        now,
		BalanceAfter:     newBalance.Int64(),
		MemberTotalAfter: memberTotal,
	}
	if err := m.ledger.Create(ctx, tx, &reversal); err != nil {
		return nil, fmt.Errorf("applyReversal: %w", err)
	}
	if err := m.ledger.Deactivate(ctx, tx, orig.ID); err != nil {
		return nil, fmt.Errorf("applyReversal: %w", err)
	}
	orig.Active = false

	if err := m.funds.UpdateBalance(ctx, tx, fund.ID, newBalance.Int64(), fund.Version+1); err != nil {
		return nil, fmt.Errorf("applyReversal: %w", err)
	}
	if memberTotal != nil {
		if err := m.members.UpdateTotal(ctx, tx, orig.GroupID, orig.MemberID, *memberTotal, now); err != nil {
			return nil, fmt.Errorf("applyReversal: %w", err)
		}
	}

	err = m.writeAudit(ctx, tx, orig.GroupID, domain.AuditEntityEntry, reversal.ID,
		domain.AuditActionReversal, req.Actor, int64Ptr(reversal.Amount), map[string]any{
			"reverses_entry_id": orig.ID,
			"reversed_kind":     orig.Kind,
			"reason":            req.Reason,
			"request_id":        req.RequestID,
			"balance_before":    fund.CurrentBalance,
			"balance_after":     newBalance.Int64(),
		})
	if err != nil {
		return nil, fmt.Errorf("applyReversal: audit: %w", err)
	}

	return &ReversalReceipt{Original: *orig, Reversal: reversal, FundBalance: newBalance.Int64()}, nil
}
