package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
	"github.com/josh-kwaku/potfund-ledger/internal/logging"
)

// OpenFund creates the empty fund for a group the directory already knows
// about.
func (m *Manager) OpenFund(ctx context.Context, groupID uuid.UUID, actor string) (*domain.GroupFund, error) {
	if groupID == uuid.Nil {
		return nil, fmt.Errorf("OpenFund: %w", domain.ErrInvalidRequest)
	}

	fund := &domain.GroupFund{
		ID:        groupID,
		Status:    domain.FundStatusActive,
		CreatedAt: m.now(),
	}
	err := m.tx.Do(ctx, "open_fund", func(ctx context.Context, tx *sql.Tx) error {
		if err := m.funds.Create(ctx, tx, fund); err != nil {
			return err
		}
		return m.writeAudit(ctx, tx, groupID, domain.AuditEntityFund, groupID,
			domain.AuditActionFundOpened, actor, nil, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("OpenFund: %w", err)
	}

	logging.FromContext(ctx).Info("group fund opened", "group_id", groupID)
	return fund, nil
}

// SetFundStatus freezes, reactivates or closes a fund. Frozen and closed
// funds accept no contributions or payouts; closing is final.
func (m *Manager) SetFundStatus(ctx context.Context, groupID uuid.UUID, status domain.FundStatus, actor string) (*domain.GroupFund, error) {
	if groupID == uuid.Nil || !status.IsValid() {
		return nil, fmt.Errorf("SetFundStatus: status %q: %w", status, domain.ErrInvalidRequest)
	}

	var fund *domain.GroupFund
	err := m.tx.Do(ctx, "set_fund_status", func(ctx context.Context, tx *sql.Tx) error {
		current, err := m.funds.GetForUpdate(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if current.Status == status {
			fund = current
			return nil
		}
		if current.Status == domain.FundStatusClosed {
			return domain.ErrGroupNotActive
		}

		if err := m.funds.UpdateStatus(ctx, tx, groupID, status); err != nil {
			return err
		}
		err = m.writeAudit(ctx, tx, groupID, domain.AuditEntityFund, groupID,
			domain.AuditActionFundStatusChanged, actorOrSystem(actor), nil, map[string]any{
				"from":    current.Status,
				"to":      status,
				"balance": current.CurrentBalance,
			})
		if err != nil {
			return err
		}

		current.Status = status
		current.Version++
		fund = current
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("SetFundStatus: %w", err)
	}

	logging.FromContext(ctx).Info("group fund status changed", "group_id", groupID, "status", status)
	return fund, nil
}

func (m *Manager) EnrollMember(ctx context.Context, groupID, memberID uuid.UUID, actor string) (*domain.MemberBalance, error) {
	if groupID == uuid.Nil || memberID == uuid.Nil {
		return nil, fmt.Errorf("EnrollMember: %w", domain.ErrInvalidRequest)
	}

	var mb *domain.MemberBalance
	err := m.tx.Do(ctx, "enroll_member", func(ctx context.Context, tx *sql.Tx) error {
		fund, err := m.funds.GetForUpdate(ctx, tx, groupID)
		if err != nil {
			return err
		}
		if fund.Status != domain.FundStatusActive {
			return domain.ErrGroupNotActive
		}

		now := m.now()
		mb = &domain.MemberBalance{
			GroupID:   groupID,
			MemberID:  memberID,
			Status:    domain.MemberStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := m.members.Create(ctx, tx, mb); err != nil {
			return err
		}
		if err := m.funds.IncrementMemberCount(ctx, tx, groupID); err != nil {
			return err
		}
		return m.writeAudit(ctx, tx, groupID, domain.AuditEntityMember, memberID,
			domain.AuditActionMemberEnrolled, actor, nil, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("EnrollMember: %w", err)
	}

	logging.FromContext(ctx).Info("member enrolled", "group_id", groupID, "member_id", memberID)
	return mb, nil
}

// SetMemberStatus deactivates or reactivates a member. Contributions already
// recorded are untouched.
func (m *Manager) SetMemberStatus(ctx context.Context, groupID, memberID uuid.UUID, status domain.MemberStatus, actor string) (*domain.MemberBalance, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("SetMemberStatus: status %q: %w", status, domain.ErrInvalidRequest)
	}

	var mb *domain.MemberBalance
	err := m.tx.Do(ctx, "set_member_status", func(ctx context.Context, tx *sql.Tx) error {
		if _, err := m.funds.GetForUpdate(ctx, tx, groupID); err != nil {
			return err
		}
		current, err := m.members.GetForUpdate(ctx, tx, groupID, memberID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrMemberNotActive
			}
			return err
		}
		if current.Status == status {
			mb = current
			return nil
		}

		now := m.now()
		if err := m.members.UpdateStatus(ctx, tx, groupID, memberID, status, now); err != nil {
			return err
		}
		err = m.writeAudit(ctx, tx, groupID, domain.AuditEntityMember, memberID,
			domain.AuditActionMemberStatusChanged, actor, nil, map[string]any{
				"from": current.Status,
				"to":   status,
			})
		if err != nil {
			return err
		}

		current.Status = status
		current.UpdatedAt = now
		mb = current
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("SetMemberStatus: %w", err)
	}
	return mb, nil
}
