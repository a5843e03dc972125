package domain

import "errors"

var (
	ErrNotFound                = errors.New("not found")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrInvalidAmount           = errors.New("amount must be greater than zero")
	ErrInvalidRequest          = errors.New("invalid request")
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	ErrGroupNotFound  = errors.New("group fund not found")
	ErrGroupNotActive = errors.New("group fund not active")
	ErrFundExists     = errors.New("group fund already exists")

	ErrMemberNotActive       = errors.New("member not enrolled or not active")
	ErrMemberAlreadyEnrolled = errors.New("member already enrolled")

	ErrDuplicateSuspected     = errors.New("suspected duplicate transaction")
	ErrIdempotencyConflict    = errors.New("idempotency key reused with a different request")
	ErrConcurrentModification = errors.New("concurrent modification, retry the request")
	ErrVersionConflict        = errors.New("optimistic lock conflict")

	ErrEntryNotFound        = errors.New("ledger entry not found")
	ErrEntryAlreadyReversed = errors.New("ledger entry already reversed")

	ErrCycleNotFound       = errors.New("rotation cycle not found")
	ErrCycleNotActive      = errors.New("rotation cycle not active")
	ErrCycleNotPending     = errors.New("rotation cycle not pending")
	ErrCycleAlreadyOpen    = errors.New("group already has an open rotation cycle")
	ErrNotCurrentRecipient = errors.New("member is not the current recipient")

	ErrSwapNotFound       = errors.New("swap request not found")
	ErrInvalidSwapTarget  = errors.New("both members must hold distinct waiting slots")
	ErrSwapAlreadyPending = errors.New("requester already has a pending swap request")
	ErrNotSwapTarget      = errors.New("only the swap target may respond")
	ErrSwapNotPending     = errors.New("swap request already resolved")
)

// IsRetryable reports whether the caller may resubmit the same request
// unchanged and expect it to eventually succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}
