package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
	"github.com/josh-kwaku/potfund-ledger/internal/logging"
	"github.com/josh-kwaku/potfund-ledger/internal/money"
	"github.com/josh-kwaku/potfund-ledger/internal/rotation"
)

type rotationService interface {
	CreateCycle(ctx context.Context, req rotation.CreateCycleRequest) (*rotation.CycleView, error)
	ActivateCycle(ctx context.Context, cycleID uuid.UUID, actor string) (*rotation.CycleView, error)
	Advance(ctx context.Context, cycleID uuid.UUID, actor string) (*rotation.AdvanceResult, error)
	GetRoster(ctx context.Context, cycleID uuid.UUID) (*rotation.CycleView, error)
	RequestSwap(ctx context.Context, in rotation.SwapRequestInput) (*domain.SwapRequest, error)
	RespondToSwap(ctx context.Context, in rotation.SwapResponse) (*domain.SwapRequest, error)
}

type RotationHandler struct {
	rotation rotationService
	format   money.Format
}

func NewRotationHandler(rotation rotationService, format money.Format) *RotationHandler {
	return &RotationHandler{rotation: rotation, format: format}
}

type createCycleRequest struct {
	ContributionAmount string         `json:"contribution_amount"`
	StartDate          string         `json:"start_date"`
	Policy             string         `json:"policy"`
	Members            []string       `json:"members"`
	TrustScores        map[string]int `json:"trust_scores"`
}

func (r createCycleRequest) toDomain(groupID uuid.UUID, f money.Format) (rotation.CreateCycleRequest, []FieldError) {
	var errs []FieldError
	out := rotation.CreateCycleRequest{GroupID: groupID, Policy: r.Policy}

	if r.ContributionAmount == "" {
		errs = append(errs, FieldError{Field: "contribution_amount", Message: "required"})
	} else if a, err := f.ParseMajor(r.ContributionAmount); err != nil || !a.IsPositive() {
		errs = append(errs, FieldError{Field: "contribution_amount", Message: "must be a positive decimal amount"})
	} else {
		out.ContributionAmount = a
	}

	if r.StartDate != "" {
		d, err := time.Parse(time.DateOnly, r.StartDate)
		if err != nil {
			errs = append(errs, FieldError{Field: "start_date", Message: "must be YYYY-MM-DD"})
		}
		out.StartDate = d
	}

	if r.Policy != "" && r.Policy != rotation.PolicyRandom && r.Policy != rotation.PolicyTrustWeighted {
		errs = append(errs, FieldError{Field: "policy", Message: "must be random or trust_weighted"})
	}

	for i, raw := range r.Members {
		id, err := uuid.Parse(raw)
		if err != nil {
			errs = append(errs, FieldError{Field: fmt.Sprintf("members[%d]", i), Message: "must be a valid UUID"})
			continue
		}
		out.Members = append(out.Members, id)
	}

	if len(r.TrustScores) > 0 {
		out.TrustScores = make(map[uuid.UUID]int, len(r.TrustScores))
		for raw, score := range r.TrustScores {
			id, err := uuid.Parse(raw)
			if err != nil {
				errs = append(errs, FieldError{Field: "trust_scores", Message: fmt.Sprintf("%q is not a valid UUID", raw)})
				continue
			}
			if score < 0 || score > 100 {
				errs = append(errs, FieldError{Field: "trust_scores", Message: "scores must be between 0 and 100"})
				continue
			}
			out.TrustScores[id] = score
		}
	}
	return out, errs
}

type swapCreateRequest struct {
	TargetID string `json:"target_id"`
	Reason   string `json:"reason"`
}

type swapDecisionRequest struct {
	Approve *bool `json:"approve"`
}

func (h *RotationHandler) CreateCycle(w http.ResponseWriter, r *http.Request) {
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

	var req createCycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	in, fields := req.toDomain(groupID, h.format)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}
	in.Actor = actor

	view, err := h.rotation.CreateCycle(r.Context(), in)
	if err != nil {
		logging.FromContext(r.Context()).Warn("create cycle failed", "group_id", groupID, "error", err)
		RespondDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/v1/cycles/%s/roster", view.Cycle.ID))
	RespondSuccess(w, http.StatusCreated, toCycleDTO(h.format, view))
}

func (h *RotationHandler) ActivateCycle(w http.ResponseWriter, r *http.Request) {
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

	view, err := h.rotation.ActivateCycle(r.Context(), cycleID, actor)
	if err != nil {
		logging.FromContext(r.Context()).Warn("activate cycle failed", "cycle_id", cycleID, "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toCycleDTO(h.format, view))
}

func (h *RotationHandler) Advance(w http.ResponseWriter, r *http.Request) {
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

	res, err := h.rotation.Advance(r.Context(), cycleID, actor)
	if err != nil {
		logging.FromContext(r.Context()).Warn("advance cycle failed", "cycle_id", cycleID, "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, advanceDTO{
		CycleID:       res.CycleID,
		PaidMember:    res.PaidMember,
		NextRecipient: res.NextRecipient,
		Completed:     res.Completed,
	})
}

func (h *RotationHandler) GetRoster(w http.ResponseWriter, r *http.Request) {
	cycleID, appErr := pathUUID(r, "cycleID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	view, err := h.rotation.GetRoster(r.Context(), cycleID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toCycleDTO(h.format, view))
}

func (h *RotationHandler) RequestSwap(w http.ResponseWriter, r *http.Request) {
	userID, _, appErr := callerFrom(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	cycleID, appErr := pathUUID(r, "cycleID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req swapCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	targetID, err := uuid.Parse(req.TargetID)
	if err != nil {
		RespondValidationError(w, []FieldError{{Field: "target_id", Message: "must be a valid UUID"}})
		return
	}

	swap, err := h.rotation.RequestSwap(r.Context(), rotation.SwapRequestInput{
		CycleID:     cycleID,
		RequesterID: userID,
		TargetID:    targetID,
		Reason:      req.Reason,
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("swap request failed", "cycle_id", cycleID, "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusCreated, toSwapDTO(swap))
}

func (h *RotationHandler) RespondToSwap(w http.ResponseWriter, r *http.Request) {
	userID, _, appErr := callerFrom(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}
	requestID, appErr := pathUUID(r, "requestID")
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req swapDecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	if req.Approve == nil {
		RespondValidationError(w, []FieldError{{Field: "approve", Message: "required"}})
		return
	}

	swap, err := h.rotation.RespondToSwap(r.Context(), rotation.SwapResponse{
		RequestID:   requestID,
		ResponderID: userID,
		Approve:     *req.Approve,
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("swap response failed", "swap_request_id", requestID, "error", err)
		RespondDomainError(w, err)
		return
	}
	RespondSuccess(w, http.StatusOK, toSwapDTO(swap))
}
