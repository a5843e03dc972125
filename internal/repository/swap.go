package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
)

const swapColumns = `id, cycle_id, requester_id, target_id, status, reason, created_at, resolved_at`

type SwapRepository struct {
	db *sql.DB
}

func NewSwapRepository(db *sql.DB) *SwapRepository {
	return &SwapRepository{db: db}
}

func (r *SwapRepository) Create(ctx context.Context, tx *sql.Tx, s *domain.SwapRequest) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO swap_requests (id, cycle_id, requester_id, target_id, status, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		s.ID, s.CycleID, s.RequesterID, s.TargetID, s.Status, s.Reason, s.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err, "swap_requests_one_pending_per_requester") {
			return fmt.Errorf("Create: %w", domain.ErrSwapAlreadyPending)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *SwapRepository) GetByID(ctx context.Context, q Querier, id uuid.UUID) (*domain.SwapRequest, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+swapColumns+` FROM swap_requests WHERE id = $1`, id,
	)
	s, err := scanSwap(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrSwapNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return s, nil
}

func (r *SwapRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.SwapRequest, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+swapColumns+` FROM swap_requests WHERE id = $1 FOR UPDATE`, id,
	)
	s, err := scanSwap(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrSwapNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return s, nil
}

func (r *SwapRepository) HasPending(ctx context.Context, tx *sql.Tx, cycleID, requesterID uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM swap_requests
		WHERE cycle_id = $1 AND requester_id = $2 AND status = 'PENDING')`,
		cycleID, requesterID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("HasPending: %w", err)
	}
	return exists, nil
}

func (r *SwapRepository) Resolve(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.SwapStatus, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE swap_requests SET status = $1, resolved_at = $2 WHERE id = $3 AND status = 'PENDING'`,
		status, at, id,
	)
	if err != nil {
		return fmt.Errorf("Resolve: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("Resolve: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("Resolve: %w", domain.ErrSwapNotPending)
	}
	return nil
}

func scanSwap(s scanner) (*domain.SwapRequest, error) {
	var sr domain.SwapRequest
	var resolvedAt sql.NullTime
	err := s.Scan(
		&sr.ID, &sr.CycleID, &sr.RequesterID, &sr.TargetID, &sr.Status, &sr.Reason,
		&sr.CreatedAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}
	if resolvedAt.Valid {
		sr.ResolvedAt = &resolvedAt.Time
	}
	return &sr, nil
}
