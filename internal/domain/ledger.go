package domain

import (
	"time"

	"github.com/google/uuid"
)

type EntryKind string

const (
	EntryKindContribution EntryKind = "CONTRIBUTION"
	EntryKindPayout       EntryKind = "PAYOUT"
	EntryKindReversal     EntryKind = "REVERSAL"
)

// LedgerEntry is an immutable money movement against a group fund. Amount is
// signed: contributions are positive, payouts negative, and a reversal
// carries the negation of the entry it compensates. Only Active changes
// after insert.
//
// BalanceAfter and MemberTotalAfter record the fund balance and the member's
// running contribution total as of this entry's commit, so a replayed
// request can rebuild the original receipt. MemberTotalAfter is nil when the
// entry does not touch a member's contributions.
type LedgerEntry struct {
	ID              uuid.UUID
	GroupID         uuid.UUID
	MemberID        uuid.UUID
	CycleID         *uuid.UUID
	Kind            EntryKind
	Amount          int64
	PaymentMethod   string
	IdempotencyKey  string
	ReversesEntryID *uuid.UUID
	Active          bool
	Reason          string
	RecordedBy      string
	CreatedAt       time.Time

	BalanceAfter     int64
	MemberTotalAfter *int64
}

// ReversalKey is the idempotency key of the compensating entry for id, which
// also makes a second reversal of the same entry collide.
func ReversalKey(id uuid.UUID) string {
	return "reversal:" + id.String()
}
