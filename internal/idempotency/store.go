// Package idempotency stores the response of a completed ledger operation
// under the caller's idempotency key so retries replay it instead of moving
// money twice.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
	"github.com/josh-kwaku/potfund-ledger/internal/logging"
	"github.com/josh-kwaku/potfund-ledger/internal/metrics"
	"github.com/josh-kwaku/potfund-ledger/internal/repository"
)

const DefaultTTL = 24 * time.Hour

type Record struct {
	Key         string          `json:"key"`
	RequestHash string          `json:"request_hash"`
	Response    json.RawMessage `json:"response"`
	CreatedAt   time.Time       `json:"created_at"`
	ExpiresAt   time.Time       `json:"expires_at"`
}

type durableRepo interface {
	Get(ctx context.Context, key string) (*repository.IdempotencyRecord, error)
	Set(ctx context.Context, rec *repository.IdempotencyRecord) error
}

// Cache is an optional fast path in front of the durable records.
type Cache interface {
	Get(ctx context.Context, key string) (*Record, error)
	Set(ctx context.Context, rec *Record) error
}

type Store struct {
	durable durableRepo
	cache   Cache
	ttl     time.Duration
	now     func() time.Time
}

// NewStore builds a store over the durable repository. cache may be nil.
func NewStore(durable durableRepo, cache Cache, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{durable: durable, cache: cache, ttl: ttl, now: time.Now}
}

// Check looks the key up without side effects. A miss, an expired record and
// a backend failure all return nil, nil. A stored record whose request hash
// differs from requestHash fails with domain.ErrIdempotencyConflict.
func (s *Store) Check(ctx context.Context, key, requestHash string) (*Record, error) {
	rec := s.lookup(ctx, key)
	if rec == nil {
		return nil, nil
	}
	if rec.RequestHash != requestHash {
		return nil, fmt.Errorf("Check: key %q: %w", key, domain.ErrIdempotencyConflict)
	}
	return rec, nil
}

func (s *Store) lookup(ctx context.Context, key string) *Record {
	logger := logging.FromContext(ctx)

	if s.cache != nil {
		rec, err := s.cache.Get(ctx, key)
		if err != nil {
			metrics.CacheFailures.WithLabelValues("idempotency").Inc()
			logger.Warn("idempotency cache read failed", "idempotency_key", key, "error", err)
		} else if rec != nil && s.now().Before(rec.ExpiresAt) {
			return rec
		}
	}

	row, err := s.durable.Get(ctx, key)
	if err != nil {
		metrics.CacheFailures.WithLabelValues("idempotency").Inc()
		logger.Warn("idempotency store read failed, treating as miss", "idempotency_key", key, "error", err)
		return nil
	}
	if row == nil {
		return nil
	}

	rec := &Record{
		Key:         row.Key,
		RequestHash: row.RequestHash,
		Response:    row.Response,
		CreatedAt:   row.CreatedAt,
		ExpiresAt:   row.ExpiresAt,
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, rec); err != nil {
			metrics.CacheFailures.WithLabelValues("idempotency").Inc()
			logger.Warn("idempotency cache backfill failed", "idempotency_key", key, "error", err)
		}
	}
	return rec
}

// Save records the response snapshot. Storage failures are logged and
// swallowed; the operation they describe has already committed.
func (s *Store) Save(ctx context.Context, key, requestHash string, response any) {
	logger := logging.FromContext(ctx)

	body, err := json.Marshal(response)
	if err != nil {
		logger.Error("idempotency response not serializable", "idempotency_key", key, "error", err)
		return
	}

	now := s.now()
	rec := &Record{
		Key:         key,
		RequestHash: requestHash,
		Response:    body,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	}

	err = s.durable.Set(ctx, &repository.IdempotencyRecord{
		Key:         rec.Key,
		RequestHash: rec.RequestHash,
		Response:    rec.Response,
		CreatedAt:   rec.CreatedAt,
		ExpiresAt:   rec.ExpiresAt,
	})
	if err != nil {
		metrics.CacheFailures.WithLabelValues("idempotency").Inc()
		logger.Warn("idempotency store write failed", "idempotency_key", key, "error", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, rec); err != nil {
			metrics.CacheFailures.WithLabelValues("idempotency").Inc()
			logger.Warn("idempotency cache write failed", "idempotency_key", key, "error", err)
		}
	}
}

// Decode unmarshals the stored response into v.
func (r *Record) Decode(v any) error {
	if err := json.Unmarshal(r.Response, v); err != nil {
		return fmt.Errorf("Decode: %w", err)
	}
	return nil
}

// NewKey generates a server-side key for callers that did not supply one.
// Such keys only protect against retries inside this process.
func NewKey() string {
	return uuid.NewString()
}

// HashRequest fingerprints the request fields that must match for a key to be
// reused.
func HashRequest(fields ...any) string {
	h := sha256.New()
	for _, f := range fields {
		fmt.Fprintf(h, "%v|", f)
	}
	return hex.EncodeToString(h.Sum(nil))
}
