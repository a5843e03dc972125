package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
	"github.com/josh-kwaku/potfund-ledger/internal/idempotency"
	"github.com/josh-kwaku/potfund-ledger/internal/ledger"
	"github.com/josh-kwaku/potfund-ledger/internal/logging"
	"github.com/josh-kwaku/potfund-ledger/internal/money"
)

type ledgerService interface {
	OpenFund(ctx context.Context, groupID uuid.UUID, actor string) (*domain.GroupFund, error)
	SetFundStatus(ctx context.Context, groupID uuid.UUID, status domain.FundStatus, actor string) (*domain.GroupFund, error)
	EnrollMember(ctx context.Context, groupID, memberID uuid.UUID, actor string) (*domain.MemberBalance, error)
	SetMemberStatus(ctx context.Context, groupID, memberID uuid.UUID, status domain.MemberStatus, actor string) (*domain.MemberBalance, error)
	RecordContribution(ctx context.Context, req ledger.ContributionRequest) (*ledger.Receipt, error)
	RecordPayout(ctx context.Context, req ledger.PayoutRequest) (*ledger.PayoutReceipt, error)
	ReverseEntry(ctx context.Context, req ledger.ReversalRequest) (*ledger.ReversalReceipt, error)
	GetBalance(ctx context.Context, groupID uuid.UUID) (*domain.GroupFund, error)
	GetMemberBalance(ctx context.Context, groupID, memberID uuid.UUID) (*domain.MemberBalance, error)
	ListEntries(ctx context.Context, groupID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error)
}

type LedgerHandler struct {
	ledger ledgerService
	format money.Format
}

func NewLedgerHandler(ledger ledgerService, format money.Format) *LedgerHandler {
	return &LedgerHandler{ledger: ledger, format: format}
}

type enrollMemberRequest struct {
	MemberID string `json:"member_id"`
}

type memberStatusRequest struct {
	Status string `json:"status"`
}

type fundStatusRequest struct {
	Status string `json:"status"`
}

type contributionRequest struct {
	MemberID      string     `json:"member_id"`
	Amount        string     `json:"amount"`
	PaymentMethod string     `json:"payment_method"`
	SubmittedAt   *time.Time `json:"submitted_at"`
}

func (r contributionRequest) Validate(f money.Format) (money.Amount, *uuid.UUID, []FieldError) {
	var errs []FieldError

	member := optionalUUID("member_id", r.MemberID, &errs)

	var amount money.Amount
	if r.Amount == "" {
		errs = append(errs, FieldError{Field: "amount", Message: "required"})
	} else if a, err := f.ParseMajor(r.Amount); err != nil {
		errs = append(errs, FieldError{Field: "amount", Message: fmt.Sprintf("must be a decimal with at most %d fractional digits", f.MinorDigits)})
	} else if !a.IsPositive() {
		errs = append(errs, FieldError{Field: "amount", Message: "must be greater than 0"})
	} else {
		amount = a
	}

	if strings.TrimSpace(r.PaymentMethod) == "" {
		errs = append(errs, FieldError{Field: "payment_method", Message: "required"})
	}
	return amount, member, errs
}

type payoutRequest struct {
	MemberID string `json:"member_id"`
}

type reversalRequest struct {
	Reason string `json:"reason"`
}

func (h *LedgerHandler) OpenFund(w http.ResponseWriter, r *http.Request) {
	_, actor, appErr := callerFrom(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	groupID, appErr := pathUUID(r, "groupID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	fund, err := h.ledger.OpenFund(r.Context(), groupID, actor)
	if err != nil {
		logging.FromContext(r.Context()).Warn("open fund failed", "group_id", groupID, "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/groups/%s/balance", groupID))
	RespondSuccess(w, http.StatusCreated, toFundDTO(h.format, fund))
}

func (h *LedgerHandler) EnrollMember(w http.ResponseWriter, r *http.Request) {
	_, actor, appErr := callerFrom(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	groupID, appErr := pathUUID(r, "groupID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req enrollMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	memberID, err := uuid.Parse(req.MemberID)
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "member_id", Message: "must be a valid UUID"}})
		return
	}

	mb, err := h.ledger.EnrollMember(r.Context(), groupID, memberID, actor)
	if err != nil {
		logging.FromContext(r.Context()).Warn("enroll member failed", "group_id", groupID, "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toMemberBalanceDTO(h.format, mb))
}

func (h *LedgerHandler) SetFundStatus(w http.ResponseWriter, r *http.Request) {
	_, actor, appErr := callerFrom(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	groupID, appErr := pathUUID(r, "groupID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req fundStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	status := domain.FundStatus(req.Status)
	if !status.IsValid() {
		RespondValidationError(w, []FieldError{{Field: "status", Message: "must be active, frozen or closed"}})
		return
	}

	fund, err := h.ledger.SetFundStatus(r.Context(), groupID, status, actor)
	if err != nil {
		logging.FromContext(r.Context()).Warn("fund status change failed", "group_id", groupID, "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toFundDTO(h.format, fund))
}

func (h *LedgerHandler) SetMemberStatus(w http.ResponseWriter, r *http.Request) {
	_, actor, appErr := callerFrom(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	groupID, appErr := pathUUID(r, "groupID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	memberID, appErr := pathUUID(r, "memberID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req memberStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	status := domain.MemberStatus(req.Status)
	if !status.IsValid() {
		RespondValidationError(w, []FieldError{{Field: "status", Message: "must be active or inactive"}})
		return
	}

	mb, err := h.ledger.SetMemberStatus(r.Context(), groupID, memberID, status, actor)
	if err != nil {
		logging.FromContext(r.Context()).Warn("member status change failed", "group_id", groupID, "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toMemberBalanceDTO(h.format, mb))
}

func (h *LedgerHandler) RecordContribution(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	userID, actor, appErr := callerFrom(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	groupID, appErr := pathUUID(r, "groupID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req contributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	amount, member, fields := req.Validate(h.format)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	memberID := userID
	if member != nil {
		memberID = *member
	}
	key := idempotencyKey(r)
	if key == "" {
		key = idempotency.NewKey()
	}
	var submitted time.Time
	if req.SubmittedAt != nil {
		submitted = *req.SubmittedAt
	}

	receipt, err := h.ledger.RecordContribution(r.Context(), ledger.ContributionRequest{
		GroupID:        groupID,
		MemberID:       memberID,
		Amount:         amount,
		PaymentMethod:  strings.TrimSpace(req.PaymentMethod),
		IdempotencyKey: key,
		Actor:          actor,
		RequestID:      logging.RequestID(r.Context()),
		SubmittedAt:    submitted,
	})
	if err != nil {
		log.Warn("contribution failed", "group_id", groupID, "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set(idempotencyHeader, key)
	if receipt.Replayed {
		w.Header().Set(replayedHeader, "true")
	}
	RespondSuccess(w, http.StatusCreated, toReceiptDTO(h.format, receipt))
}

func (h *LedgerHandler) RecordPayout(w http.ResponseWriter, r *http.Request) {
	_, actor, appErr := callerFrom(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	cycleID, appErr := pathUUID(r, "cycleID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req payoutRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			RespondAppError(w, ErrInvalidRequest, nil)
			return
		}
	}
	var fields []FieldError
	member := optionalUUID("member_id", req.MemberID, &fields)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	key := idempotencyKey(r)
	if key == "" {
		key = idempotency.NewKey()
	}

	receipt, err := h.ledger.RecordPayout(r.Context(), ledger.PayoutRequest{
		CycleID:        cycleID,
		MemberID:       member,
		IdempotencyKey: key,
		Actor:          actor,
		RequestID:      logging.RequestID(r.Context()),
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("payout failed", "cycle_id", cycleID, "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set(idempotencyHeader, key)
	if receipt.Replayed {
		w.Header().Set(replayedHeader, "true")
	}
	RespondSuccess(w, http.StatusCreated, toPayoutReceiptDTO(h.format, receipt))
}

func (h *LedgerHandler) ReverseEntry(w http.ResponseWriter, r *http.Request) {
	_, actor, appErr := callerFrom(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	entryID, appErr := pathUUID(r, "entryID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req reversalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		RespondValidationError(w, []FieldError{{Field: "reason", Message: "required"}})
		return
	}

	receipt, err := h.ledger.ReverseEntry(r.Context(), ledger.ReversalRequest{
		EntryID:   entryID,
		Reason:    strings.TrimSpace(req.Reason),
		Actor:     actor,
		RequestID: logging.RequestID(r.Context()),
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("reversal failed", "entry_id", entryID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, reversalReceiptDTO{
		Original:    toEntryDTO(h.format, &receipt.Original),
		Reversal:    toEntryDTO(h.format, &receipt.Reversal),
		FundBalance: toAmountDTO(h.format, receipt.FundBalance),
	})
}

func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	groupID, appErr := pathUUID(r, "groupID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	fund, err := h.ledger.GetBalance(r.Context(), groupID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toFundDTO(h.format, fund))
}

func (h *LedgerHandler) GetMemberBalance(w http.ResponseWriter, r *http.Request) {
	groupID, appErr := pathUUID(r, "groupID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	memberID, appErr := pathUUID(r, "memberID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	mb, err := h.ledger.GetMemberBalance(r.Context(), groupID, memberID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toMemberBalanceDTO(h.format, mb))
}

func (h *LedgerHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	groupID, appErr := pathUUID(r, "groupID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var fields []FieldError
	limit, ok := queryInt(r, "limit", 0)
	if !ok {
		fields = append(fields, FieldError{Field: "limit", Message: "must be a non-negative integer"})
	}
	offset, ok := queryInt(r, "offset", 0)
	if !ok {
		fields = append(fields, FieldError{Field: "offset", Message: "must be a non-negative integer"})
	}
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	entries, total, err := h.ledger.ListEntries(r.Context(), groupID, limit, offset)
	if err != nil {
		logging.FromContext(r.Context()).Error("list entries failed", "group_id", groupID, "error", err)
		RespondDomainError(w, err)
		return
	}

	page := entryPageDTO{Entries: make([]entryDTO, len(entries)), Total: total, Limit: limit, Offset: offset}
	for i := range entries {
		page.Entries[i] = toEntryDTO(h.format, &entries[i])
	}
	RespondSuccess(w, http.StatusOK, page)
}
