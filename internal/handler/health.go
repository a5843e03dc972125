package handler

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"
)

// pinger reports whether the optional cache is reachable.
type pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db    *sql.DB
	cache pinger
}

// NewHealthHandler takes a nil cache when Redis is not configured.
func NewHealthHandler(db *sql.DB, cache pinger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok"}
	httpStatus := http.StatusOK

	if err := h.db.PingContext(r.Context()); err != nil {
		slog.Warn("readiness check failed: database unreachable", "error", err)
		checks["database"] = "down"
		httpStatus = http.StatusServiceUnavailable
	}

	// the cache fails open, so it degrades readiness without failing it
	if h.cache != nil {
		checks["cache"] = "ok"
		if err := h.cache.Ping(r.Context()); err != nil {
			slog.Warn("readiness check: cache unreachable", "error", err)
			checks["cache"] = "degraded"
		}
	}

	overallStatus := "ok"
	if httpStatus != http.StatusOK {
		overallStatus = "down"
	}

	RespondJSON(w, httpStatus, map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
