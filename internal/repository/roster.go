package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
)

const rosterColumns = `cycle_id, member_id, position, status, paid_at`

type RosterRepository struct {
	db *sql.DB
}

func NewRosterRepository(db *sql.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

func (r *RosterRepository) CreateSlots(ctx context.Context, tx *sql.Tx, slots []domain.RosterSlot) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO roster_slots (cycle_id, member_id, position, status, paid_at)
		VALUES ($1, $2, $3, $4, $5)`,
	)
	if err != nil {
		return fmt.Errorf("CreateSlots: prepare: %w", err)
	}
	defer stmt.Close()

	for _, s := range slots {
		if _, err := stmt.ExecContext(ctx, s.CycleID, s.MemberID, s.Position, s.Status, s.PaidAt); err != nil {
			return fmt.Errorf("CreateSlots: position %d: %w", s.Position, err)
		}
	}
	return nil
}

// ListByCycle returns the roster ordered by position.
func (r *RosterRepository) ListByCycle(ctx context.Context, q Querier, cycleID uuid.UUID) ([]domain.RosterSlot, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+rosterColumns+` FROM roster_slots WHERE cycle_id = $1 ORDER BY position`, cycleID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByCycle: %w", err)
	}
	defer rows.Close()
	return collectSlots(rows, "ListByCycle")
}

// LockByCycle locks every slot of the cycle in position order.
func (r *RosterRepository) LockByCycle(ctx context.Context, tx *sql.Tx, cycleID uuid.UUID) ([]domain.RosterSlot, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+rosterColumns+` FROM roster_slots WHERE cycle_id = $1 ORDER BY position FOR UPDATE`, cycleID,
	)
	if err != nil {
		return nil, fmt.Errorf("LockByCycle: %w", err)
	}
	defer rows.Close()
	return collectSlots(rows, "LockByCycle")
}

// LockMembers locks the slots of the given members in position order so two
// swaps touching the same pair never deadlock.
func (r *RosterRepository) LockMembers(ctx context.Context, tx *sql.Tx, cycleID uuid.UUID, memberIDs ...uuid.UUID) ([]domain.RosterSlot, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+rosterColumns+` FROM roster_slots
		WHERE cycle_id = $1 AND member_id = ANY($2::uuid[])
		ORDER BY position FOR UPDATE`,
		cycleID, uuidArray(memberIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("LockMembers: %w", err)
	}
	defer rows.Close()
	return collectSlots(rows, "LockMembers")
}

func (r *RosterRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, cycleID, memberID uuid.UUID, status domain.SlotStatus, paidAt *time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE roster_slots SET status = $1, paid_at = $2 WHERE cycle_id = $3 AND member_id = $4`,
		status, paidAt, cycleID, memberID,
	)
	if err != nil {
		return fmt.Errorf("UpdateStatus: %w", err)
	}
	return nil
}

// SetPosition relies on the (cycle_id, position) constraint being deferred
// until commit, so two slots can trade positions one statement at a time.
func (r *RosterRepository) SetPosition(ctx context.Context, tx *sql.Tx, cycleID, memberID uuid.UUID, position int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE roster_slots SET position = $1 WHERE cycle_id = $2 AND member_id = $3`,
		position, cycleID, memberID,
	)
	if err != nil {
		return fmt.Errorf("SetPosition: %w", err)
	}
	return nil
}

func collectSlots(rows *sql.Rows, op string) ([]domain.RosterSlot, error) {
	var slots []domain.RosterSlot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		slots = append(slots, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", op, err)
	}
	return slots, nil
}

func scanSlot(s scanner) (*domain.RosterSlot, error) {
	var slot domain.RosterSlot
	var paidAt sql.NullTime
	if err := s.Scan(&slot.CycleID, &slot.MemberID, &slot.Position, &slot.Status, &paidAt); err != nil {
		return nil, err
	}
	if paidAt.Valid {
		slot.PaidAt = &paidAt.Time
	}
	return &slot, nil
}
