// Package fingerprint flags contributions that repeat the same member,
// amount and payment method within a short window under a different
// idempotency key, which is what a double-tapped submit looks like.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
	"github.com/josh-kwaku/potfund-ledger/internal/logging"
	"github.com/josh-kwaku/potfund-ledger/internal/metrics"
)

const (
	DefaultWindow = 5 * time.Minute
	keyPrefix     = "fingerprint:"
)

// releaseScript deletes the claim only while it still belongs to the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// Fingerprint hashes the contribution shape with the timestamp rounded to the
// nearest minute.
func Fingerprint(groupID, memberID uuid.UUID, amount int64, method string, at time.Time) string {
	rounded := at.UTC().Round(time.Minute)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%s|%d",
		groupID, memberID, amount, method, rounded.Unix())))
	return hex.EncodeToString(sum[:])
}

type Detector struct {
	client redis.Cmdable
	window time.Duration
}

// NewDetector returns a detector backed by client. A nil client disables
// detection and every claim passes.
func NewDetector(client redis.Cmdable, window time.Duration) *Detector {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Detector{client: client, window: window}
}

func (d *Detector) Enabled() bool {
	return d != nil && d.client != nil
}

// Claim records fp for the window. A fingerprint already claimed by a
// different idempotency key fails with domain.ErrDuplicateSuspected; the
// same key is a retry and passes. Store failures pass as well.
func (d *Detector) Claim(ctx context.Context, fp, idempotencyKey string) error {
	if !d.Enabled() {
		return nil
	}
	logger := logging.FromContext(ctx)

	ok, err := d.client.SetNX(ctx, keyPrefix+fp, idempotencyKey, d.window).Result()
	if err != nil {
		metrics.CacheFailures.WithLabelValues("fingerprint").Inc()
		logger.Warn("fingerprint claim failed, skipping duplicate check", "fingerprint", fp, "error", err)
		return nil
	}
	if ok {
		return nil
	}

	owner, err := d.client.Get(ctx, keyPrefix+fp).Result()
	if err == redis.Nil {
		// expired between SETNX and GET
		return nil
	}
	if err != nil {
		metrics.CacheFailures.WithLabelValues("fingerprint").Inc()
		logger.Warn("fingerprint lookup failed, skipping duplicate check", "fingerprint", fp, "error", err)
		return nil
	}
	if owner == idempotencyKey {
		return nil
	}

	metrics.DuplicateRejections.Inc()
	return fmt.Errorf("Claim: %w", domain.ErrDuplicateSuspected)
}

// Release drops a claim held by idempotencyKey so a corrected resubmission
// after a failed transaction is not reported as a duplicate.
func (d *Detector) Release(ctx context.Context, fp, idempotencyKey string) {
	if !d.Enabled() {
		return
	}
	if err := releaseScript.Run(ctx, d.client, []string{keyPrefix + fp}, idempotencyKey).Err(); err != nil && err != redis.Nil {
		metrics.CacheFailures.WithLabelValues("fingerprint").Inc()
		logging.FromContext(ctx).Warn("fingerprint release failed", "fingerprint", fp, "error", err)
	}
}
