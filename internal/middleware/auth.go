package middleware

import (
	"net/http"
	"strings"

	"github.com/josh-kwaku/potfund-ledger/internal/auth"
	"github.com/josh-kwaku/potfund-ledger/internal/handler"
	"github.com/josh-kwaku/potfund-ledger/internal/logging"
)

// Auth requires a bearer token naming the calling member. The member id is
// put on the context for handlers and on the request logger as "actor".
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, appErr := bearerToken(r)
			if appErr != nil {
				handler.RespondAppError(w, appErr, nil)
				return
			}

			claims, err := auth.ValidateToken(token, secret)
			if err != nil {
				logging.FromContext(r.Context()).Debug("rejected bearer token", "error", err)
				handler.RespondAppError(w, handler.ErrInvalidToken, nil)
				return
			}

			ctx := auth.ContextWithMemberID(r.Context(), claims.MemberID)
			ctx = logging.With(ctx, "actor", auth.Actor(ctx))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken accepts the scheme in any case.
func bearerToken(r *http.Request) (string, *handler.AppError) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", handler.ErrMissingToken
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", handler.ErrInvalidToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", handler.ErrInvalidToken
	}
	return token, nil
}
