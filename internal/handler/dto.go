package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
	"github.com/josh-kwaku/potfund-ledger/internal/ledger"
	"github.com/josh-kwaku/potfund-ledger/internal/money"
	"github.com/josh-kwaku/potfund-ledger/internal/rotation"
)

// Amounts go out twice: exact minor units for machines and a fixed-point
// string for people.
type amountDTO struct {
	Minor   int64  `json:"minor"`
	Display string `json:"display"`
}

func toAmountDTO(f money.Format, v int64) amountDTO {
	return amountDTO{Minor: v, Display: f.Major(money.Amount(v))}
}

type fundDTO struct {
	GroupID     uuid.UUID `json:"group_id"`
	Status      string    `json:"status"`
	Balance     amountDTO `json:"balance"`
	MemberCount int       `json:"member_count"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
}

func toFundDTO(f money.Format, g *domain.GroupFund) fundDTO {
	return fundDTO{
		GroupID:     g.ID,
		Status:      string(g.Status),
		Balance:     toAmountDTO(f, g.CurrentBalance),
		MemberCount: g.MemberCount,
		Version:     g.Version,
		CreatedAt:   g.CreatedAt,
	}
}

type memberBalanceDTO struct {
	GroupID          uuid.UUID `json:"group_id"`
	MemberID         uuid.UUID `json:"member_id"`
	Status           string    `json:"status"`
	TotalContributed amountDTO `json:"total_contributed"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toMemberBalanceDTO(f money.Format, m *domain.MemberBalance) memberBalanceDTO {
	return memberBalanceDTO{
		GroupID:          m.GroupID,
		MemberID:         m.MemberID,
		Status:           string(m.Status),
		TotalContributed: toAmountDTO(f, m.TotalContributed),
		UpdatedAt:        m.UpdatedAt,
	}
}

type entryDTO struct {
	ID              uuid.UUID  `json:"id"`
	GroupID         uuid.UUID  `json:"group_id"`
	MemberID        uuid.UUID  `json:"member_id"`
	CycleID         *uuid.UUID `json:"cycle_id,omitempty"`
	Kind            string     `json:"kind"`
	Amount          amountDTO  `json:"amount"`
	PaymentMethod   string     `json:"payment_method,omitempty"`
	IdempotencyKey  string     `json:"idempotency_key"`
	ReversesEntryID *uuid.UUID `json:"reverses_entry_id,omitempty"`
	Active          bool       `json:"active"`
	Reason          string     `json:"reason,omitempty"`
	RecordedBy      string     `json:"recorded_by"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toEntryDTO(f money.Format, e *domain.LedgerEntry) entryDTO {
	return entryDTO{
		ID:              e.ID,
		GroupID:         e.GroupID,
		MemberID:        e.MemberID,
		CycleID:         e.CycleID,
		Kind:            string(e.Kind),
		Amount:          toAmountDTO(f, e.Amount),
		PaymentMethod:   e.PaymentMethod,
		IdempotencyKey:  e.IdempotencyKey,
		ReversesEntryID: e.ReversesEntryID,
		Active:          e.Active,
		Reason:          e.Reason,
		RecordedBy:      e.RecordedBy,
		CreatedAt:       e.CreatedAt,
	}
}

type receiptDTO struct {
	Entry       entryDTO  `json:"entry"`
	FundBalance amountDTO `json:"fund_balance"`
	MemberTotal amountDTO `json:"member_total"`
}

func toReceiptDTO(f money.Format, r *ledger.Receipt) receiptDTO {
	return receiptDTO{
		Entry:       toEntryDTO(f, &r.Entry),
		FundBalance: toAmountDTO(f, r.FundBalance),
		MemberTotal: toAmountDTO(f, r.MemberTotal),
	}
}

type payoutReceiptDTO struct {
	Entry          entryDTO   `json:"entry"`
	FundBalance    amountDTO  `json:"fund_balance"`
	Recipient      uuid.UUID  `json:"recipient"`
	NextRecipient  *uuid.UUID `json:"next_recipient"`
	CycleCompleted bool       `json:"cycle_completed"`
}

func toPayoutReceiptDTO(f money.Format, r *ledger.PayoutReceipt) payoutReceiptDTO {
	return payoutReceiptDTO{
		Entry:          toEntryDTO(f, &r.Entry),
		FundBalance:    toAmountDTO(f, r.FundBalance),
		Recipient:      r.Recipient,
		NextRecipient:  r.NextRecipient,
		CycleCompleted: r.CycleCompleted,
	}
}

type reversalReceiptDTO struct {
	Original    entryDTO  `json:"original"`
	Reversal    entryDTO  `json:"reversal"`
	FundBalance amountDTO `json:"fund_balance"`
}

type entryPageDTO struct {
	Entries []entryDTO `json:"entries"`
	Total   int        `json:"total"`
	Limit   int        `json:"limit"`
	Offset  int        `json:"offset"`
}

type slotDTO struct {
	MemberID uuid.UUID  `json:"member_id"`
	Position int        `json:"position"`
	Status   string     `json:"status"`
	PaidAt   *time.Time `json:"paid_at,omitempty"`
}

type cycleDTO struct {
	ID                 uuid.UUID  `json:"id"`
	GroupID            uuid.UUID  `json:"group_id"`
	ContributionAmount amountDTO  `json:"contribution_amount"`
	StartDate          string     `json:"start_date"`
	Status             string     `json:"status"`
	RosterPolicy       string     `json:"roster_policy"`
	CreatedBy          string     `json:"created_by"`
	CreatedAt          time.Time  `json:"created_at"`
	ActivatedAt        *time.Time `json:"activated_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	Roster             []slotDTO  `json:"roster"`
}

func toCycleDTO(f money.Format, v *rotation.CycleView) cycleDTO {
	c := v.Cycle
	dto := cycleDTO{
		ID:                 c.ID,
		GroupID:            c.GroupID,
		ContributionAmount: toAmountDTO(f, c.ContributionAmount),
		StartDate:          c.StartDate.Format(time.DateOnly),
		Status:             string(c.Status),
		RosterPolicy:       c.RosterPolicy,
		CreatedBy:          c.CreatedBy,
		CreatedAt:          c.CreatedAt,
		ActivatedAt:        c.ActivatedAt,
		CompletedAt:        c.CompletedAt,
		Roster:             make([]slotDTO, len(v.Roster)),
	}
	for i, s := range v.Roster {
		dto.Roster[i] = slotDTO{
			MemberID: s.MemberID,
			Position: s.Position,
			Status:   string(s.Status),
			PaidAt:   s.PaidAt,
		}
	}
	return dto
}

type advanceDTO struct {
	CycleID       uuid.UUID  `json:"cycle_id"`
	PaidMember    uuid.UUID  `json:"paid_member"`
	NextRecipient *uuid.UUID `json:"next_recipient"`
	Completed     bool       `json:"completed"`
}

type swapDTO struct {
	ID          uuid.UUID  `json:"id"`
	CycleID     uuid.UUID  `json:"cycle_id"`
	RequesterID uuid.UUID  `json:"requester_id"`
	TargetID    uuid.UUID  `json:"target_id"`
	Status      string     `json:"status"`
	Reason      string     `json:"reason,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

func toSwapDTO(s *domain.SwapRequest) swapDTO {
	return swapDTO{
		ID:          s.ID,
		CycleID:     s.CycleID,
		RequesterID: s.RequesterID,
		TargetID:    s.TargetID,
		Status:      string(s.Status),
		Reason:      s.Reason,
		CreatedAt:   s.CreatedAt,
		ResolvedAt:  s.ResolvedAt,
	}
}
