package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// GetBalance reads the fund without locking.
func (m *Manager) GetBalance(ctx context.Context, groupID uuid.UUID) (*domain.GroupFund, error) {
	f, err := m.funds.GetByID(ctx, m.db, groupID)
	if err != nil {
		return nil, fmt.Errorf("GetBalance: %w", err)
	}
	return f, nil
}

func (m *Manager) GetMemberBalance(ctx context.Context, groupID, memberID uuid.UUID) (*domain.MemberBalance, error) {
	mb, err := m.members.Get(ctx, groupID, memberID)
	if err != nil {
		return nil, fmt.Errorf("GetMemberBalance: %w", err)
	}
	return mb, nil
}

// ListEntries pages through a group's entries, newest first.
func (m *Manager) ListEntries(ctx context.Context, groupID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error) {
	limit, offset = clampPage(limit, offset)
	entries, total, err := m.ledger.ListByGroup(ctx, groupID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ListEntries: %w", err)
	}
	return entries, total, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
