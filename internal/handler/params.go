package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/josh-kwaku/potfund-ledger/internal/auth"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayedHeader    = "X-Idempotent-Replayed"
)

func pathUUID(r *http.Request, name string) (uuid.UUID, *AppError) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, ErrResourceNotFound
	}
	return id, nil
}

// callerFrom returns the authenticated member and the actor label recorded
// against their writes.
func callerFrom(r *http.Request) (uuid.UUID, string, *AppError) {
	memberID, ok := auth.MemberIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, "", ErrMissingToken
	}
	return memberID, auth.Actor(r.Context()), nil
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(idempotencyHeader))
}

func queryInt(r *http.Request, name string, fallback int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

func optionalUUID(field, raw string, errs *[]FieldError) *uuid.UUID {
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		*errs = append(*errs, FieldError{Field: field, Message: "must be a valid UUID"})
		return nil
	}
	return &id
}
