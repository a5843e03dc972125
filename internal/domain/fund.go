package domain

import (
	"time"

	"github.com/google/uuid"
)

type FundStatus string

const (
	FundStatusActive FundStatus = "active"
	FundStatusFrozen FundStatus = "frozen"
	FundStatusClosed FundStatus = "closed"
)

func (s FundStatus) IsValid() bool {
	return s == FundStatusActive || s == FundStatusFrozen || s == FundStatusClosed
}

// GroupFund is the pooled balance of one savings group. ID is the group id.
type GroupFund struct {
	ID             uuid.UUID
	Status         FundStatus
	CurrentBalance int64
	MemberCount    int
	Version        int64
	CreatedAt      time.Time
}

type MemberStatus string

const (
	MemberStatusActive   MemberStatus = "active"
	MemberStatusInactive MemberStatus = "inactive"
)

func (s MemberStatus) IsValid() bool {
	return s == MemberStatusActive || s == MemberStatusInactive
}

type MemberBalance struct {
	GroupID          uuid.UUID
	MemberID         uuid.UUID
	Status           MemberStatus
	TotalContributed int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
