// Package txn runs money-mutating units of work in serializable Postgres
// transactions and retries them when Postgres reports a serialization
// failure or deadlock.
package txn

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
	"github.com/josh-kwaku/potfund-ledger/internal/logging"
	"github.com/josh-kwaku/potfund-ledger/internal/metrics"
	"github.com/josh-kwaku/potfund-ledger/internal/repository"
)

type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: 25 * time.Millisecond, MaxDelay: 250 * time.Millisecond}
}

type Runner struct {
	db  *sql.DB
	cfg Config
}

// NewRunner fills zero fields of cfg from DefaultConfig.
func NewRunner(db *sql.DB, cfg Config) *Runner {
	def := DefaultConfig()
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = max(def.MaxDelay, cfg.BaseDelay)
	}
	return &Runner{db: db, cfg: cfg}
}

// Do runs fn inside a serializable transaction. A context that is already
// done is returned without touching the database; after that the caller's
// cancellation no longer applies, so the unit runs to commit, rollback or
// retry exhaustion. Exhausted retries surface as
// domain.ErrConcurrentModification.
func (r *Runner) Do(ctx context.Context, op string, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("Do: %s: %w", op, err)
	}
	ctx = context.WithoutCancel(ctx)

	return r.retry(ctx, op, func(ctx context.Context) error {
		return r.runOnce(ctx, fn)
	})
}

func (r *Runner) runOnce(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *Runner) retry(ctx context.Context, op string, attempt func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.BaseDelay
	b.MaxInterval = r.cfg.MaxDelay
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0

	attempts := 0
	operation := func() error {
		attempts++
		err := attempt(ctx)
		if err == nil {
			return nil
		}
		if repository.IsSerializationFailure(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		metrics.TxRetries.WithLabelValues(op).Inc()
		logging.FromContext(ctx).Warn("retrying transaction",
			"operation", op, "attempt", attempts, "wait", wait, "error", err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.cfg.MaxAttempts-1)), ctx)
	err := backoff.RetryNotify(operation, policy, notify)
	if err == nil {
		return nil
	}
	if repository.IsSerializationFailure(err) {
		return fmt.Errorf("Do: %s gave up after %d attempts: %w (last: %v)",
			op, attempts, domain.ErrConcurrentModification, err)
	}
	return err
}
