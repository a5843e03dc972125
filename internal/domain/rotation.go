package domain

import (
	"time"

	"github.com/google/uuid"
)

type CycleStatus string

const (
	CycleStatusPending   CycleStatus = "PENDING"
	CycleStatusActive    CycleStatus = "ACTIVE"
	CycleStatusCompleted CycleStatus = "COMPLETED"
)

type RotationCycle struct {
	ID                 uuid.UUID
	GroupID            uuid.UUID
	ContributionAmount int64
	StartDate          time.Time
	Status             CycleStatus
	RosterPolicy       string
	CreatedBy          string
	CreatedAt          time.Time
	ActivatedAt        *time.Time
	CompletedAt        *time.Time
}

type SlotStatus string

const (
	SlotStatusWaiting          SlotStatus = "WAITING"
	SlotStatusCurrentRecipient SlotStatus = "CURRENT_RECIPIENT"
	SlotStatusPaid             SlotStatus = "PAID"
)

type RosterSlot struct {
	CycleID  uuid.UUID
	MemberID uuid.UUID
	Position int
	Status   SlotStatus
	PaidAt   *time.Time
}

type SwapStatus string

const (
	SwapStatusPending  SwapStatus = "PENDING"
	SwapStatusApproved SwapStatus = "APPROVED"
	SwapStatusRejected SwapStatus = "REJECTED"
)

type SwapRequest struct {
	ID          uuid.UUID
	CycleID     uuid.UUID
	RequesterID uuid.UUID
	TargetID    uuid.UUID
	Status      SwapStatus
	Reason      string
	CreatedAt   time.Time
	ResolvedAt  *time.Time
}
