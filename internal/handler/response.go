package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
)

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data"`
	Error   *APIError `json:"error"`
}

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	Details   any    `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func RespondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func RespondSuccess(w http.ResponseWriter, status int, data any) {
	RespondJSON(w, status, APIResponse{
		Success: true,
		Data:    data,
		Error:   nil,
	})
}

func RespondAppError(w http.ResponseWriter, appErr *AppError, details any) {
	RespondJSON(w, appErr.Status, APIResponse{
		Success: false,
		Data:    nil,
		Error: &APIError{
			Code:      appErr.Code,
			Message:   appErr.Message,
			Retryable: appErr.Retryable,
			Details:   details,
		},
	})
}

func RespondValidationError(w http.ResponseWriter, fields []FieldError) {
	RespondAppError(w, ErrValidationFailed, fields)
}

// domainErrors is checked in order; more specific sentinels come before the
// generic ones they may wrap alongside.
var domainErrors = []struct {
	err    error
	appErr *AppError
}{
	{domain.ErrConcurrentModification, ErrConcurrentModified},
	{domain.ErrIdempotencyConflict, ErrIdempotencyConflict},
	{domain.ErrDuplicateSuspected, ErrDuplicateSuspected},
	{domain.ErrEntryAlreadyReversed, ErrEntryReversed},
	{domain.ErrInsufficientFunds, ErrInsufficientFunds},
	{domain.ErrInvalidAmount, ErrInvalidAmount},
	{domain.ErrGroupNotFound, ErrGroupNotFound},
	{domain.ErrGroupNotActive, ErrGroupNotActive},
	{domain.ErrFundExists, ErrFundExists},
	{domain.ErrMemberNotActive, ErrMemberNotActive},
	{domain.ErrMemberAlreadyEnrolled, ErrMemberEnrolled},
	{domain.ErrEntryNotFound, ErrEntryNotFound},
	{domain.ErrCycleNotFound, ErrCycleNotFound},
	{domain.ErrCycleNotActive, ErrCycleNotActive},
	{domain.ErrCycleNotPending, ErrCycleNotPending},
	{domain.ErrCycleAlreadyOpen, ErrCycleAlreadyOpen},
	{domain.ErrNotCurrentRecipient, ErrNotCurrentRecipient},
	{domain.ErrSwapNotFound, ErrSwapNotFound},
	{domain.ErrInvalidSwapTarget, ErrInvalidSwapTarget},
	{domain.ErrSwapAlreadyPending, ErrSwapAlreadyPending},
	{domain.ErrNotSwapTarget, ErrNotSwapTarget},
	{domain.ErrSwapNotPending, ErrSwapNotPending},
	{domain.ErrVersionConflict, ErrConcurrentModified},
	{domain.ErrNotFound, ErrResourceNotFound},
	{domain.ErrInvalidRequest, ErrInvalidRequest},
}

func RespondDomainError(w http.ResponseWriter, err error) {
	for _, m := range domainErrors {
		if errors.Is(err, m.err) {
			RespondAppError(w, m.appErr, nil)
			return
		}
	}
	slog.Error("unhandled domain error", "error", err)
	RespondAppError(w, ErrInternalError, nil)
}
