package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/josh-kwaku/potfund-ledger/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// maxRequestIDLen caps caller-supplied ids before they reach logs and audit
// rows.
const maxRequestIDLen = 128

func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLen {
			requestID = uuid.New().String()
		}

		w.Header().Set(requestIDHeader, requestID)
		ctx := logging.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
