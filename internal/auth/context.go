package auth

import (
	"context"

	"github.com/google/uuid"
)

type memberIDKey struct{}

func ContextWithMemberID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, memberIDKey{}, id)
}

func MemberIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(memberIDKey{}).(uuid.UUID)
	return id, ok
}

// Actor labels the authenticated caller on ledger entries and audit rows.
// It is "" for unauthenticated contexts, which storage records as the
// system actor.
func Actor(ctx context.Context) string {
	id, ok := MemberIDFromContext(ctx)
	if !ok {
		return ""
	}
	return "member:" + id.String()
}
