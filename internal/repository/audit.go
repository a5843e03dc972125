package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
)

const auditColumns = `id, group_id, entity_type, entity_id, action, actor, amount, metadata, created_at`

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Create takes a transaction on purpose: audit rows only exist for changes
// that commit.
func (r *AuditRepository) Create(ctx context.Context, tx *sql.Tx, entry *domain.AuditEntry) error {
	var metadata any
	if len(entry.Metadata) > 0 {
		metadata = string(entry.Metadata)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO audit_log (id, group_id, entity_type, entity_id, action, actor, amount, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.GroupID, entry.EntityType, entry.EntityID, entry.Action,
		entry.Actor, entry.Amount, metadata, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]domain.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audit_log
		WHERE group_id = $1 ORDER BY created_at, id`, groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByGroup: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByGroup: scan: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByGroup: rows: %w", err)
	}
	return entries, nil
}

func scanAuditEntry(s scanner) (*domain.AuditEntry, error) {
	var e domain.AuditEntry
	var amount sql.NullInt64
	var metadata []byte
	err := s.Scan(
		&e.ID, &e.GroupID, &e.EntityType, &e.EntityID, &e.Action,
		&e.Actor, &amount, &metadata, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if amount.Valid {
		e.Amount = &amount.Int64
	}
	e.Metadata = metadata
	return &e, nil
}
