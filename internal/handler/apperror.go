package handler

import "net/http"

type AppError struct {
	Status    int
	Code      string
	Message   string
	Retryable bool
}

func (e *AppError) Error() string { return e.Message }

var (
	ErrMissingToken     = &AppError{Status: http.StatusUnauthorized, Code: "MISSING_TOKEN", Message: "Authorization header required"}
	ErrInvalidToken     = &AppError{Status: http.StatusUnauthorized, Code: "INVALID_TOKEN", Message: "Token is invalid or expired"}
	ErrInvalidRequest   = &AppError{Status: http.StatusBadRequest, Code: "INVALID_REQUEST", Message: "Invalid request body"}
	ErrValidationFailed = &AppError{Status: http.StatusBadRequest, Code: "VALIDATION_FAILED", Message: "Validation failed"}
	ErrResourceNotFound = &AppError{Status: http.StatusNotFound, Code: "RESOURCE_NOT_FOUND", Message: "Resource not found"}
	ErrInternalError    = &AppError{Status: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: "An unexpected error occurred"}

	ErrInvalidAmount       = &AppError{Status: http.StatusBadRequest, Code: "INVALID_AMOUNT", Message: "Amount must be a positive value in the fund currency"}
	ErrInsufficientFunds   = &AppError{Status: http.StatusUnprocessableEntity, Code: "INSUFFICIENT_FUNDS", Message: "Fund balance is too low for this operation"}
	ErrGroupNotFound       = &AppError{Status: http.StatusNotFound, Code: "GROUP_NOT_FOUND", Message: "Group fund not found"}
	ErrGroupNotActive      = &AppError{Status: http.StatusUnprocessableEntity, Code: "GROUP_NOT_ACTIVE", Message: "Group fund is frozen or closed"}
	ErrFundExists          = &AppError{Status: http.StatusConflict, Code: "FUND_ALREADY_EXISTS", Message: "Group already has a fund"}
	ErrMemberNotActive     = &AppError{Status: http.StatusUnprocessableEntity, Code: "MEMBER_NOT_ACTIVE", Message: "Member is not enrolled or not active"}
	ErrMemberEnrolled      = &AppError{Status: http.StatusConflict, Code: "MEMBER_ALREADY_ENROLLED", Message: "Member is already enrolled"}
	ErrDuplicateSuspected  = &AppError{Status: http.StatusConflict, Code: "DUPLICATE_SUSPECTED", Message: "A matching transaction was submitted moments ago"}
	ErrIdempotencyConflict = &AppError{Status: http.StatusConflict, Code: "IDEMPOTENCY_CONFLICT", Message: "Idempotency key already used with a different request"}
	ErrConcurrentModified  = &AppError{Status: http.StatusConflict, Code: "CONCURRENT_MODIFICATION", Message: "Resource was modified concurrently, please retry", Retryable: true}
	ErrEntryNotFound       = &AppError{Status: http.StatusNotFound, Code: "ENTRY_NOT_FOUND", Message: "Ledger entry not found"}
	ErrEntryReversed       = &AppError{Status: http.StatusConflict, Code: "ENTRY_ALREADY_REVERSED", Message: "Ledger entry was already reversed"}

	ErrCycleNotFound       = &AppError{Status: http.StatusNotFound, Code: "CYCLE_NOT_FOUND", Message: "Rotation cycle not found"}
	ErrCycleNotActive      = &AppError{Status: http.StatusUnprocessableEntity, Code: "CYCLE_NOT_ACTIVE", Message: "Rotation cycle is not active"}
	ErrCycleNotPending     = &AppError{Status: http.StatusConflict, Code: "CYCLE_NOT_PENDING", Message: "Rotation cycle was already activated"}
	ErrCycleAlreadyOpen    = &AppError{Status: http.StatusConflict, Code: "CYCLE_ALREADY_OPEN", Message: "Group already has an open rotation cycle"}
	ErrNotCurrentRecipient = &AppError{Status: http.StatusUnprocessableEntity, Code: "NOT_CURRENT_RECIPIENT", Message: "Member is not the current recipient"}

	ErrSwapNotFound       = &AppError{Status: http.StatusNotFound, Code: "SWAP_NOT_FOUND", Message: "Swap request not found"}
	ErrInvalidSwapTarget  = &AppError{Status: http.StatusUnprocessableEntity, Code: "INVALID_SWAP_TARGET", Message: "Both members must hold distinct waiting slots"}
	ErrSwapAlreadyPending = &AppError{Status: http.StatusConflict, Code: "SWAP_ALREADY_PENDING", Message: "You already have a pending swap request in this cycle"}
	ErrNotSwapTarget      = &AppError{Status: http.StatusForbidden, Code: "NOT_SWAP_TARGET", Message: "Only the requested member may respond"}
	ErrSwapNotPending     = &AppError{Status: http.StatusConflict, Code: "SWAP_NOT_PENDING", Message: "Swap request was already resolved"}
)
