package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
	"github.com/josh-kwaku/potfund-ledger/internal/fingerprint"
	"github.com/josh-kwaku/potfund-ledger/internal/idempotency"
	"github.com/josh-kwaku/potfund-ledger/internal/logging"
	"github.com/josh-kwaku/potfund-ledger/internal/metrics"
	"github.com/josh-kwaku/potfund-ledger/internal/money"
)

type ContributionRequest struct {
	GroupID        uuid.UUID
	MemberID       uuid.UUID
	Amount         money.Amount
	PaymentMethod  string
	IdempotencyKey string
	Actor          string
	RequestID      string
	// SubmittedAt feeds the duplicate fingerprint; zero means now.
	SubmittedAt time.Time
}

// Receipt is the stored response of a contribution. Replays return the same
// snapshot; Replayed only tells the caller which path served it and is never
// persisted.
type Receipt struct {
	Entry       domain.LedgerEntry
	FundBalance int64
	MemberTotal int64
	Replayed    bool `json:"-"`
}

// contributionReceipt rebuilds the receipt a committed contribution
// returned, from the balances recorded on the entry.
func contributionReceipt(e *domain.LedgerEntry) *Receipt {
	r := &Receipt{Entry: *e, FundBalance: e.BalanceAfter, Replayed: true}
	if e.MemberTotalAfter != nil {
		r.MemberTotal = *e.MemberTotalAfter
	}
	// entries are committed active; a later reversal does not change the
	// original response.
	r.Entry.Active = true
	return r
}

func validateContribution(req ContributionRequest) error {
	if req.GroupID == uuid.Nil || req.MemberID == uuid.Nil {
		return fmt.Errorf("group and member are required: %w", domain.ErrInvalidRequest)
	}
	if !req.Amount.IsPositive() {
		return domain.ErrInvalidAmount
	}
	if strings.TrimSpace(req.PaymentMethod) == "" {
		return fmt.Errorf("payment method is required: %w", domain.ErrInvalidRequest)
	}
	return nil
}

func contributionHash(req ContributionRequest) string {
	return idempotency.HashRequest("contribution", req.GroupID, req.MemberID, req.Amount.Int64(), req.PaymentMethod)
}

// RecordContribution credits the group fund and the member's running total.
// A request carrying an idempotency key that already completed returns the
// original receipt instead of applying again.
func (m *Manager) RecordContribution(ctx context.Context, req ContributionRequest) (*Receipt, error) {
	defer metrics.Observe("record_contribution")()
	kind := string(domain.EntryKindContribution)

	if err := validateContribution(req); err != nil {
		metrics.LedgerTransactions.WithLabelValues(kind, metrics.OutcomeRejected).Inc()
		return nil, fmt.Errorf("RecordContribution: %w", err)
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = idempotency.NewKey()
	}
	ctx = logging.With(ctx,
		"group_id", req.GroupID,
		"member_id", req.MemberID,
		"idempotency_key", req.IdempotencyKey,
	)
	log := logging.FromContext(ctx)

	hash := contributionHash(req)
	rec, err := m.idem.Check(ctx, req.IdempotencyKey, hash)
	if err != nil {
		metrics.LedgerTransactions.WithLabelValues(kind, metrics.OutcomeRejected).Inc()
		return nil, fmt.Errorf("RecordContribution: %w", err)
	}
	if rec != nil {
		var receipt Receipt
		if err := rec.Decode(&receipt); err == nil {
			receipt.Replayed = true
			metrics.IdempotentReplays.Inc()
			metrics.LedgerTransactions.WithLabelValues(kind, metrics.OutcomeReplayed).Inc()
			log.Info("contribution replayed from idempotency store", "entry_id", receipt.Entry.ID)
			return &receipt, nil
		}
		log.Warn("stored contribution response unreadable, continuing", "error", err)
	}

	submitted := req.SubmittedAt
	if submitted.IsZero() {
		submitted = m.now()
	}
	fp := fingerprint.Fingerprint(req.GroupID, req.MemberID, req.Amount.Int64(), req.PaymentMethod, submitted)
	if err := m.dupes.Claim(ctx, fp, req.IdempotencyKey); err != nil {
		metrics.LedgerTransactions.WithLabelValues(kind, metrics.OutcomeRejected).Inc()
		log.Warn("contribution rejected as suspected duplicate", "fingerprint", fp)
		return nil, fmt.Errorf("RecordContribution: %w", err)
	}

	var receipt *Receipt
	err = m.tx.Do(ctx, "record_contribution", func(ctx context.Context, tx *sql.Tx) error {
		r, err := m.applyContribution(ctx, tx, req)
		receipt = r
		return err
	})
	if err != nil && errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
		receipt, err = m.loadContributionWinner(ctx, req)
	}
	if err != nil {
		m.dupes.Release(ctx, fp, req.IdempotencyKey)
		metrics.LedgerTransactions.WithLabelValues(kind, metrics.OutcomeFailed).Inc()
		return nil, fmt.Errorf("RecordContribution: %w", err)
	}

	if receipt.Replayed {
		metrics.IdempotentReplays.Inc()
		metrics.LedgerTransactions.WithLabelValues(kind, metrics.OutcomeReplayed).Inc()
	} else {
		metrics.LedgerTransactions.WithLabelValues(kind, metrics.OutcomeCommitted).Inc()
	}

	m.idem.Save(ctx, req.IdempotencyKey, hash, receipt)

	log.Info("contribution recorded",
		"entry_id", receipt.Entry.ID,
		"amount", receipt.Entry.Amount,
		"fund_balance", receipt.FundBalance,
		"replayed", receipt.Replayed,
	)
	return receipt, nil
}

func (m *Manager) applyContribution(ctx context.Context, tx *sql.Tx, req ContributionRequest) (*Receipt, error) {
	fund, err := m.funds.GetForUpdate(ctx, tx, req.GroupID)
	if err != nil {
		return nil, fmt.Errorf("applyContribution: %w", err)
	}
	member, err := m.members.GetForUpdate(ctx, tx, req.GroupID, req.MemberID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("applyContribution: %w", domain.ErrMemberNotActive)
		}
		return nil, fmt.Errorf("applyContribution: %w", err)
	}

	existing, err := m.ledger.GetByIdempotencyKey(ctx, tx, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("applyContribution: %w", err)
	}
	if existing != nil {
		if !sameContribution(existing, req) {
			return nil, fmt.Errorf("applyContribution: %w", domain.ErrIdempotencyConflict)
		}
		return contributionReceipt(existing), nil
	}

	if fund.Status != domain.FundStatusActive {
		return nil, fmt.Errorf("applyContribution: %w", domain.ErrGroupNotActive)
	}
	if member.Status != domain.MemberStatusActive {
		return nil, fmt.Errorf("applyContribution: %w", domain.ErrMemberNotActive)
	}

	newBalance, err := money.Add(money.Amount(fund.CurrentBalance), req.Amount)
	if err != nil {
		return nil, fmt.Errorf("applyContribution: fund: %w", err)
	}
	newTotal, err := money.Add(money.Amount(member.TotalContributed), req.Amount)
	if err != nil {
		return nil, fmt.Errorf("applyContribution: member: %w", err)
	}

	now := m.now()
	entry := domain.LedgerEntry{
		ID:               uuid.New(),
		GroupID:          req.GroupID,
		MemberID:         req.MemberID,
		Kind:             domain.EntryKindContribution,
		Amount:           req.Amount.Int64(),
		PaymentMethod:    req.PaymentMethod,
		IdempotencyKey:   req.IdempotencyKey,
		Active:           true,
		RecordedBy:       actorOrSystem(req.Actor),
		CreatedAt:        now,
		BalanceAfter:     newBalance.Int64(),
		MemberTotalAfter: int64Ptr(newTotal.Int64()),
	}
	if err := m.ledger.Create(ctx, tx, &entry); err != nil {
		return nil, fmt.Errorf("applyContribution: %w", err)
	}
	if err := m.funds.UpdateBalance(ctx, tx, fund.ID, newBalance.Int64(), fund.Version+1); err != nil {
		return nil, fmt.Errorf("applyContribution: %w", err)
	}
	if err := m.members.UpdateTotal(ctx, tx, req.GroupID, req.MemberID, newTotal.Int64(), now); err != nil {
		return nil, fmt.Errorf("applyContribution: %w", err)
	}

	err = m.writeAudit(ctx, tx, req.GroupID, domain.AuditEntityEntry, entry.ID,
		domain.AuditActionContribution, req.Actor, int64Ptr(entry.Amount), map[string]any{
			"member_id":       req.MemberID,
			"payment_method":  req.PaymentMethod,
			"idempotency_key": req.IdempotencyKey,
			"request_id":      req.RequestID,
			"balance_before":  fund.CurrentBalance,
			"balance_after":   newBalance.Int64(),
		})
	if err != nil {
		return nil, fmt.Errorf("applyContribution: audit: %w", err)
	}

	return &Receipt{
		Entry:       entry,
		FundBalance: newBalance.Int64(),
		MemberTotal: newTotal.Int64(),
	}, nil
}

// loadContributionWinner resolves a lost insert race on the idempotency key
// by returning the entry the concurrent request committed.
func (m *Manager) loadContributionWinner(ctx context.Context, req ContributionRequest) (*Receipt, error) {
	existing, err := m.ledger.GetByIdempotencyKey(ctx, m.db, req.IdempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("loadContributionWinner: %w", err)
	}
	if existing == nil {
		return nil, fmt.Errorf("loadContributionWinner: %w", domain.ErrConcurrentModification)
	}
	if !sameContribution(existing, req) {
		return nil, fmt.Errorf("loadContributionWinner: %w", domain.ErrIdempotencyConflict)
	}
	return contributionReceipt(existing), nil
}

func sameContribution(e *domain.LedgerEntry, req ContributionRequest) bool {
	return e.Kind == domain.EntryKindContribution &&
		e.GroupID == req.GroupID &&
		e.MemberID == req.MemberID &&
		e.Amount == req.Amount.Int64() &&
		e.PaymentMethod == req.PaymentMethod
}
