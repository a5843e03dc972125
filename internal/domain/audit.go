package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type AuditEntityType string

const (
	AuditEntityFund   AuditEntityType = "group_fund"
	AuditEntityMember AuditEntityType = "member_balance"
	AuditEntityEntry  AuditEntityType = "ledger_entry"
	AuditEntityCycle  AuditEntityType = "rotation_cycle"
	AuditEntitySwap   AuditEntityType = "swap_request"
)

type AuditAction string

const (
	AuditActionFundOpened          AuditAction = "fund.opened"
	AuditActionFundStatusChanged   AuditAction = "fund.status_changed"
	AuditActionMemberEnrolled      AuditAction = "member.enrolled"
	AuditActionMemberStatusChanged AuditAction = "member.status_changed"
	AuditActionContribution        AuditAction = "entry.contribution"
	AuditActionPayout              AuditAction = "entry.payout"
	AuditActionReversal            AuditAction = "entry.reversal"
	AuditActionCycleCreated        AuditAction = "cycle.created"
	AuditActionCycleActivated      AuditAction = "cycle.activated"
	AuditActionCycleAdvanced       AuditAction = "cycle.advanced"
	AuditActionCycleCompleted      AuditAction = "cycle.completed"
	AuditActionSwapRequested       AuditAction = "swap.requested"
	AuditActionSwapApproved        AuditAction = "swap.approved"
	AuditActionSwapRejected        AuditAction = "swap.rejected"
)

// AuditEntry is append-only. It is written inside the same transaction as
// the change it records, so a rolled back change leaves no audit row.
type AuditEntry struct {
	ID         uuid.UUID
	GroupID    uuid.UUID
	EntityType AuditEntityType
	EntityID   uuid.UUID
	Action     AuditAction
	Actor      string
	Amount     *int64
	Metadata   json.RawMessage
	CreatedAt  time.Time
}

const SystemActor = "system"

// NewAuditEntry stamps a new audit row. An empty actor is recorded as
// SystemActor.
func NewAuditEntry(groupID uuid.UUID, entity AuditEntityType, entityID uuid.UUID, action AuditAction, actor string, amount *int64, metadata map[string]any) (*AuditEntry, error) {
	if actor == "" {
		actor = SystemActor
	}
	var raw json.RawMessage
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("NewAuditEntry: metadata: %w", err)
		}
		raw = b
	}
	return &AuditEntry{
		ID:         uuid.New(),
		GroupID:    groupID,
		EntityType: entity,
		EntityID:   entityID,
		Action:     action,
		Actor:      actor,
		Amount:     amount,
		Metadata:   raw,
		CreatedAt:  time.Now().UTC(),
	}, nil
}
