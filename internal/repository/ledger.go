package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
)

const ledgerColumns = `id, group_id, member_id, cycle_id, kind, amount, payment_method,
	idempotency_key, reverses_entry_id, active, reason, recorded_by, created_at,
	balance_after, member_total_after`

type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Create(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_entries (
			id, group_id, member_id, cycle_id, kind, amount, payment_method,
			idempotency_key, reverses_entry_id, active, reason, recorded_by, created_at,
			balance_after, member_total_after
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		entry.ID, entry.GroupID, entry.MemberID, entry.CycleID, entry.Kind,
		entry.Amount, entry.PaymentMethod, entry.IdempotencyKey, entry.ReversesEntryID,
		entry.Active, entry.Reason, entry.RecordedBy, entry.CreatedAt,
		entry.BalanceAfter, entry.MemberTotalAfter,
	)
	if err != nil {
		switch {
		case IsUniqueViolation(err, "ledger_entries_idempotency_key_key"):
			return fmt.Errorf("Create: %w", domain.ErrDuplicateIdempotencyKey)
		case IsUniqueViolation(err, "ledger_entries_reverses_entry_id_key"):
			return fmt.Errorf("Create: %w", domain.ErrEntryAlreadyReversed)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// GetByIdempotencyKey returns nil, nil when no entry carries the key.
func (r *LedgerRepository) GetByIdempotencyKey(ctx context.Context, q Querier, key string) (*domain.LedgerEntry, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE idempotency_key = $1`, key,
	)
	e, err := scanLedgerEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetByIdempotencyKey: %w", err)
	}
	return e, nil
}

func (r *LedgerRepository) GetByID(ctx context.Context, q Querier, id uuid.UUID) (*domain.LedgerEntry, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE id = $1`, id,
	)
	e, err := scanLedgerEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrEntryNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return e, nil
}

func (r *LedgerRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.LedgerEntry, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries WHERE id = $1 FOR UPDATE`, id,
	)
	e, err := scanLedgerEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetForUpdate: %w", domain.ErrEntryNotFound)
		}
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return e, nil
}

func (r *LedgerRepository) Deactivate(ctx context.Context, tx *sql.Tx, ids ...uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE ledger_entries SET active = FALSE WHERE id = ANY($1::uuid[])`, uuidArray(ids),
	)
	if err != nil {
		return fmt.Errorf("Deactivate: %w", err)
	}
	return nil
}

func (r *LedgerRepository) ListByGroup(ctx context.Context, groupID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_entries WHERE group_id = $1`, groupID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByGroup: count: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ledgerColumns+` FROM ledger_entries
		WHERE group_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		groupID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListByGroup: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListByGroup: scan: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListByGroup: rows: %w", err)
	}
	return entries, total, nil
}

// GroupTotals are the aggregates reconciliation compares against the
// denormalized balances.
type GroupTotals struct {
	AllEntries           int64
	ActiveEntries        int64
	ActiveContributions  int64
	ContributionByMember map[uuid.UUID]int64
}

func (r *LedgerRepository) Totals(ctx context.Context, q Querier, groupID uuid.UUID) (*GroupTotals, error) {
	t := &GroupTotals{ContributionByMember: make(map[uuid.UUID]int64)}
	err := q.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(amount), 0),
			COALESCE(SUM(amount) FILTER (WHERE active), 0),
			COALESCE(SUM(amount) FILTER (WHERE active AND kind = 'CONTRIBUTION'), 0)
		FROM ledger_entries WHERE group_id = $1`, groupID,
	).Scan(&t.AllEntries, &t.ActiveEntries, &t.ActiveContributions)
	if err != nil {
		return nil, fmt.Errorf("Totals: %w", err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT member_id, SUM(amount) FROM ledger_entries
		WHERE group_id = $1 AND active AND kind = 'CONTRIBUTION'
		GROUP BY member_id`, groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("Totals: by member: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var memberID uuid.UUID
		var sum int64
		if err := rows.Scan(&memberID, &sum); err != nil {
			return nil, fmt.Errorf("Totals: scan: %w", err)
		}
		t.ContributionByMember[memberID] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Totals: rows: %w", err)
	}
	return t, nil
}

func scanLedgerEntry(s scanner) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	var cycleID, reverses uuid.NullUUID
	var memberTotal sql.NullInt64
	err := s.Scan(
		&e.ID, &e.GroupID, &e.MemberID, &cycleID, &e.Kind, &e.Amount, &e.PaymentMethod,
		&e.IdempotencyKey, &reverses, &e.Active, &e.Reason, &e.RecordedBy, &e.CreatedAt,
		&e.BalanceAfter, &memberTotal,
	)
	if err != nil {
		return nil, err
	}
	e.CreatedAt = e.CreatedAt.UTC()
	if cycleID.Valid {
		e.CycleID = &cycleID.UUID
	}
	if reverses.Valid {
		e.ReversesEntryID = &reverses.UUID
	}
	if memberTotal.Valid {
		e.MemberTotalAfter = &memberTotal.Int64
	}
	return &e, nil
}

func uuidArray(ids []uuid.UUID) any {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return pq.Array(out)
}
