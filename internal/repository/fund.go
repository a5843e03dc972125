package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
)

const fundColumns = `id, status, current_balance, member_count, version, created_at`

type FundRepository struct {
	db *sql.DB
}

func NewFundRepository(db *sql.DB) *FundRepository {
	return &FundRepository{db: db}
}

func (r *FundRepository) Create(ctx context.Context, tx *sql.Tx, fund *domain.GroupFund) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO group_funds (id, status, current_balance, member_count, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		fund.ID, fund.Status, fund.CurrentBalance, fund.MemberCount, fund.Version, fund.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err, "group_funds_pkey") {
			return fmt.Errorf("Create: %w", domain.ErrFundExists)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *FundRepository) GetByID(ctx context.Context, q Querier, id uuid.UUID) (*domain.GroupFund, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+fundColumns+` FROM group_funds WHERE id = $1`, id,
	)
	f, err := scanFund(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrGroupNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return f, nil
}

func (r *FundRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.GroupFund, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+fundColumns+` FROM group_funds WHERE id = $1 FOR UPDATE`, id,
	)
	f, err := scanFund(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrGroupNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return f, nil
}

// UpdateBalance writes the new balance guarded by the version the caller read
// under lock.
func (r *FundRepository) UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, newBalance int64, newVersion int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE group_funds SET current_balance = $1, version = $2 WHERE id = $3 AND version = $4`,
		newBalance, newVersion, id, newVersion-1,
	)
	if err != nil {
		return fmt.Errorf("UpdateBalance: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("UpdateBalance: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("UpdateBalance: %w", domain.ErrVersionConflict)
	}
	return nil
}

func (r *FundRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.FundStatus) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE group_funds SET status = $1, version = version + 1 WHERE id = $2`, status, id,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	return nil
}

func (r *FundRepository) IncrementMemberCount(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE group_funds SET member_count = member_count + 1, version = version + 1 WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("IncrementMemberCount: %w", err)
	}
	return nil
}

func (r *FundRepository) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM group_funds ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("ListIDs: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ListIDs: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListIDs: rows: %w", err)
	}
	return ids, nil
}

func scanFund(s scanner) (*domain.GroupFund, error) {
	var f domain.GroupFund
	err := s.Scan(
		&f.ID, &f.Status, &f.CurrentBalance, &f.MemberCount, &f.Version, &f.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}
