package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type IdempotencyRecord struct {
	Key         string
	RequestHash string
	Response    []byte
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

type IdempotencyRepository struct {
	db *sql.DB
}

func NewIdempotencyRepository(db *sql.DB) *IdempotencyRepository {
	return &IdempotencyRepository{db: db}
}

// Get returns nil, nil for unknown or expired keys.
func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*IdempotencyRecord, error) {
	var e IdempotencyRecord
	err := r.db.QueryRowContext(ctx,
		`SELECT idempotency_key, request_hash, response, created_at, expires_at
		FROM idempotency_records
		WHERE idempotency_key = $1 AND expires_at > now()`,
		key,
	).Scan(&e.Key, &e.RequestHash, &e.Response, &e.CreatedAt, &e.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}
	return &e, nil
}

// Set keeps the first snapshot stored under a key.
func (r *IdempotencyRepository) Set(ctx context.Context, rec *IdempotencyRecord) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO idempotency_records (idempotency_key, request_hash, response, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		rec.Key, rec.RequestHash, string(rec.Response), rec.CreatedAt, rec.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("Set: %w", err)
	}
	return nil
}

func (r *IdempotencyRepository) CleanExpired(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM idempotency_records WHERE expires_at < now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("CleanExpired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("CleanExpired: rows affected: %w", err)
	}
	return n, nil
}
