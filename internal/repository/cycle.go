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

const cycleColumns = `id, group_id, contribution_amount, start_date, status, roster_policy,
	created_by, created_at, activated_at, completed_at`

type CycleRepository struct {
	db *sql.DB
}

func NewCycleRepository(db *sql.DB) *CycleRepository {
	return &CycleRepository{db: db}
}

func (r *CycleRepository) Create(ctx context.Context, tx *sql.Tx, c *domain.RotationCycle) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO rotation_cycles (
			id, group_id, contribution_amount, start_date, status, roster_policy,
			created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.GroupID, c.ContributionAmount, c.StartDate, c.Status, c.RosterPolicy,
		c.CreatedBy, c.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err, "rotation_cycles_one_open_per_group") {
			return fmt.Errorf("Create: %w", domain.ErrCycleAlreadyOpen)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *CycleRepository) GetByID(ctx context.Context, q Querier, id uuid.UUID) (*domain.RotationCycle, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+cycleColumns+` FROM rotation_cycles WHERE id = $1`, id,
	)
	c, err := scanCycle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrCycleNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return c, nil
}

func (r *CycleRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.RotationCycle, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+cycleColumns+` FROM rotation_cycles WHERE id = $1 FOR UPDATE`, id,
	)
	c, err := scanCycle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrCycleNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return c, nil
}

// GetOpenByGroup returns the PENDING or ACTIVE cycle of a group, or nil.
func (r *CycleRepository) GetOpenByGroup(ctx context.Context, q Querier, groupID uuid.UUID) (*domain.RotationCycle, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+cycleColumns+` FROM rotation_cycles
		WHERE group_id = $1 AND status IN ('PENDING', 'ACTIVE')`, groupID,
	)
	c, err := scanCycle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetOpenByGroup: %w", err)
	}
	return c, nil
}

func (r *CycleRepository) Activate(ctx context.Context, tx *sql.Tx, id uuid.UUID, at time.Time) error {
	return r.transition(ctx, tx, id, domain.CycleStatusPending, domain.CycleStatusActive,
		`UPDATE rotation_cycles SET status = $1, activated_at = $2 WHERE id = $3 AND status = $4`, at)
}

func (r *CycleRepository) Complete(ctx context.Context, tx *sql.Tx, id uuid.UUID, at time.Time) error {
	return r.transition(ctx, tx, id, domain.CycleStatusActive, domain.CycleStatusCompleted,
		`UPDATE rotation_cycles SET status = $1, completed_at = $2 WHERE id = $3 AND status = $4`, at)
}

func (r *CycleRepository) transition(ctx context.Context, tx *sql.Tx, id uuid.UUID, from, to domain.CycleStatus, query string, at time.Time) error {
	res, err := tx.ExecContext(ctx, query, to, at, id, from)
	if err != nil {
		return fmt.Errorf("transition %s->%s: %w", from, to, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition %s->%s: rows affected: %w", from, to, err)
	}
	if rows == 0 {
		return fmt.Errorf("transition %s->%s: %w", from, to, domain.ErrVersionConflict)
	}
	return nil
}

func scanCycle(s scanner) (*domain.RotationCycle, error) {
	var c domain.RotationCycle
	var activatedAt, completedAt sql.NullTime
	err := s.Scan(
		&c.ID, &c.GroupID, &c.ContributionAmount, &c.StartDate, &c.Status, &c.RosterPolicy,
		&c.CreatedBy, &c.CreatedAt, &activatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	if activatedAt.Valid {
		c.ActivatedAt = &activatedAt.Time
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.Time
	}
	return &c, nil
}
