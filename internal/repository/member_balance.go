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

const memberBalanceColumns = `group_id, member_id, status, total_contributed, created_at, updated_at`

type MemberBalanceRepository struct {
	db *sql.DB
}

func NewMemberBalanceRepository(db *sql.DB) *MemberBalanceRepository {
	return &MemberBalanceRepository{db: db}
}

func (r *MemberBalanceRepository) Create(ctx context.Context, tx *sql.Tx, mb *domain.MemberBalance) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO member_balances (group_id, member_id, status, total_contributed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		mb.GroupID, mb.MemberID, mb.Status, mb.TotalContributed, mb.CreatedAt, mb.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err, "member_balances_pkey") {
			return fmt.Errorf("Create: %w", domain.ErrMemberAlreadyEnrolled)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *MemberBalanceRepository) Get(ctx context.Context, groupID, memberID uuid.UUID) (*domain.MemberBalance, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+memberBalanceColumns+` FROM member_balances WHERE group_id = $1 AND member_id = $2`,
		groupID, memberID,
	)
	mb, err := scanMemberBalance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("Get: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("Get: %w", err)
	}
	return mb, nil
}

func (r *MemberBalanceRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, groupID, memberID uuid.UUID) (*domain.MemberBalance, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+memberBalanceColumns+` FROM member_balances
		WHERE group_id = $1 AND member_id = $2 FOR UPDATE`,
		groupID, memberID,
	)
	mb, err := scanMemberBalance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return mb, nil
}

func (r *MemberBalanceRepository) UpdateTotal(ctx context.Context, tx *sql.Tx, groupID, memberID uuid.UUID, total int64, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE member_balances SET total_contributed = $1, updated_at = $2
		WHERE group_id = $3 AND member_id = $4`,
		total, at, groupID, memberID,
	)
	if err != nil {
		return fmt.Errorf("UpdateTotal: %w", err)
	}
	return nil
}

func (r *MemberBalanceRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, groupID, memberID uuid.UUID, status domain.MemberStatus, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE member_balances SET status = $1, updated_at = $2
		WHERE group_id = $3 AND member_id = $4`,
		status, at, groupID, memberID,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	return nil
}

// ListByGroup returns every enrolled member of the group in enrollment order.
func (r *MemberBalanceRepository) ListByGroup(ctx context.Context, q Querier, groupID uuid.UUID) ([]domain.MemberBalance, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+memberBalanceColumns+` FROM member_balances
		WHERE group_id = $1 ORDER BY created_at, member_id`, groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByGroup: %w", err)
	}
	defer rows.Close()

	var members []domain.MemberBalance
	for rows.Next() {
		mb, err := scanMemberBalance(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByGroup: scan: %w", err)
		}
		members = append(members, *mb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByGroup: rows: %w", err)
	}
	return members, nil
}

func scanMemberBalance(s scanner) (*domain.MemberBalance, error) {
	var mb domain.MemberBalance
	err := s.Scan(
		&mb.GroupID, &mb.MemberID, &mb.Status, &mb.TotalContributed, &mb.CreatedAt, &mb.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &mb, nil
}
