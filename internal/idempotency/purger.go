package idempotency

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/josh-kwaku/potfund-ledger/internal/metrics"
)

type expiredCleaner interface {
	CleanExpired(ctx context.Context) (int64, error)
}

// Purger deletes expired idempotency records on an interval.
type Purger struct {
	records  expiredCleaner
	logger   *slog.Logger
	interval time.Duration
}

func NewPurger(records expiredCleaner, logger *slog.Logger, interval time.Duration) *Purger {
	return &Purger{records: records, logger: logger, interval: interval}
}

func (p *Purger) Start(ctx context.Context) {
	p.logger.Info("idempotency purger started", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("idempotency purger stopped")
			return
		case <-ticker.C:
			if _, err := p.PurgeOnce(ctx); err != nil {
				p.logger.Error("failed to purge expired idempotency records", "error", err)
			}
		}
	}
}

// PurgeOnce runs a single sweep and returns how many records were deleted.
func (p *Purger) PurgeOnce(ctx context.Context) (int64, error) {
	n, err := p.records.CleanExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("PurgeOnce: %w", err)
	}
	if n > 0 {
		metrics.IdempotencyPurged.Add(float64(n))
		p.logger.Info("purged expired idempotency records", "count", n)
	}
	return n, nil
}
