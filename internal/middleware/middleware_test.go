package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/potfund-ledger/internal/auth"
	"github.com/josh-kwaku/potfund-ledger/internal/logging"
)

const testSecret = "middleware-secret"

func TestAuth(t *testing.T) {
	userID := uuid.New()
	valid, err := auth.GenerateToken(userID, testSecret, time.Hour)
	require.NoError(t, err)
	foreign, err := auth.GenerateToken(userID, "another-secret", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{name: "valid", header: "Bearer " + valid, wantStatus: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + valid, wantStatus: http.StatusOK},
		{name: "empty bearer", header: "Bearer   ", wantStatus: http.StatusUnauthorized, wantCode: "INVALID_TOKEN"},
		{name: "wrong secret", header: "Bearer " + foreign, wantStatus: http.StatusUnauthorized, wantCode: "INVALID_TOKEN"},
		{name: "missing", header: "", wantStatus: http.StatusUnauthorized, wantCode: "MISSING_TOKEN"},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized, wantCode: "INVALID_TOKEN"},
		{name: "garbage", header: "Bearer abc.def.ghi", wantStatus: http.StatusUnauthorized, wantCode: "INVALID_TOKEN"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen uuid.UUID
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = auth.MemberIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			Auth(testSecret)(next).ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantCode != "" {
				assert.Contains(t, rec.Body.String(), tc.wantCode)
				return
			}
			assert.Equal(t, userID, seen)
		})
	}
}

func TestTracing(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestID(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	Tracing(next).ServeHTTP(rec, req)
	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rec.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, strings.Repeat("x", maxRequestIDLen+1))
	rec = httptest.NewRecorder()
	Tracing(next).ServeHTTP(rec, req)
	_, err := uuid.Parse(seen)
	assert.NoError(t, err, "oversized ids are replaced")
}

func TestRecovery(t *testing.T) {
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	Recovery(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")
}

func TestRecovery_ReraisesAbortHandler(t *testing.T) {
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	})

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		Recovery(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestLogging_PassesRequestLogger(t *testing.T) {
	mux := http.NewServeMux()
	var sawLogger bool
	mux.HandleFunc("GET /api/v1/groups/{groupID}/balance", func(w http.ResponseWriter, r *http.Request) {
		sawLogger = logging.FromContext(r.Context()) != slog.Default()
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	Logging(mux).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/groups/g1/balance", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.True(t, sawLogger)
}

func TestLogging_QuietPathsSkipLogger(t *testing.T) {
	var sawDefault bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawDefault = logging.FromContext(r.Context()) == slog.Default()
	})

	for _, path := range []string{"/health", "/ready", "/metrics"} {
		sawDefault = false
		Logging(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
		assert.True(t, sawDefault, path)
	}
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, levelFor(http.StatusCreated))
	assert.Equal(t, slog.LevelWarn, levelFor(http.StatusConflict))
	assert.Equal(t, slog.LevelError, levelFor(http.StatusServiceUnavailable))
}
