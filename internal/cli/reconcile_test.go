package cli

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
	"github.com/josh-kwaku/potfund-ledger/internal/repository"
)

func consistentSnapshot() *groupSnapshot {
	a, b := uuid.New(), uuid.New()
	cycleID := uuid.New()
	return &groupSnapshot{
		Fund: &domain.GroupFund{ID: uuid.New(), Status: domain.FundStatusActive, CurrentBalance: 500, MemberCount: 2},
		Totals: &repository.GroupTotals{
			AllEntries:          500,
			ActiveEntries:       500,
			ActiveContributions: 1000,
			ContributionByMember: map[uuid.UUID]int64{
				a: 500,
				b: 500,
			},
		},
		Members: []domain.MemberBalance{
			{MemberID: a, Status: domain.MemberStatusActive, TotalContributed: 500},
			{MemberID: b, Status: domain.MemberStatusActive, TotalContributed: 500},
		},
		Cycle: &domain.RotationCycle{ID: cycleID, Status: domain.CycleStatusActive},
		Roster: []domain.RosterSlot{
			{CycleID: cycleID, MemberID: a, Position: 1, Status: domain.SlotStatusPaid},
			{CycleID: cycleID, MemberID: b, Position: 2, Status: domain.SlotStatusCurrentRecipient},
		},
	}
}

func TestCheckGroup(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *groupSnapshot)
		want   []string
	}{
		{
			name:   "consistent",
			mutate: func(*groupSnapshot) {},
		},
		{
			name:   "balance drifted from ledger",
			mutate: func(s *groupSnapshot) { s.Fund.CurrentBalance = 600 },
			want:   []string{"balance 600 does not match ledger sum 500"},
		},
		{
			name: "negative balance",
			mutate: func(s *groupSnapshot) {
				s.Fund.CurrentBalance = -1
				s.Totals.AllEntries, s.Totals.ActiveEntries = -1, -1
			},
			want: []string{"balance is negative: -1"},
		},
		{
			name:   "unpaired reversal",
			mutate: func(s *groupSnapshot) { s.Totals.ActiveEntries = 300 },
			want:   []string{"active entries sum 300 differs from ledger sum 500"},
		},
		{
			name: "member total drifted",
			mutate: func(s *groupSnapshot) {
				s.Members[0].TotalContributed = 400
			},
			want: []string{
				"total_contributed 400 but active contributions sum 500",
				"member totals sum 900 but active contributions sum 1000",
			},
		},
		{
			name:   "member count mismatch",
			mutate: func(s *groupSnapshot) { s.Fund.MemberCount = 3 },
			want:   []string{"member count 3 but 2 member balances"},
		},
		{
			name:   "two current recipients",
			mutate: func(s *groupSnapshot) { s.Roster[0].Status = domain.SlotStatusCurrentRecipient },
			want:   []string{"active cycle has 2 current recipients"},
		},
		{
			name:   "no cycle open",
			mutate: func(s *groupSnapshot) { s.Cycle, s.Roster = nil, nil },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := consistentSnapshot()
			tc.mutate(s)

			r := checkGroup(s)
			assert.Equal(t, s.Fund.ID, r.GroupID)
			require.Len(t, r.Violations, len(tc.want), "violations: %v", r.Violations)
			for i, w := range tc.want {
				assert.Contains(t, r.Violations[i], w)
			}
		})
	}
}

func TestCheckRoster(t *testing.T) {
	slot := func(pos int, st domain.SlotStatus) domain.RosterSlot {
		return domain.RosterSlot{MemberID: uuid.New(), Position: pos, Status: st}
	}

	tests := []struct {
		name   string
		status domain.CycleStatus
		slots  []domain.RosterSlot
		bad    int
	}{
		{
			name:   "pending all waiting",
			status: domain.CycleStatusPending,
			slots:  []domain.RosterSlot{slot(1, domain.SlotStatusWaiting), slot(2, domain.SlotStatusWaiting)},
		},
		{
			name:   "active mid rotation",
			status: domain.CycleStatusActive,
			slots: []domain.RosterSlot{
				slot(1, domain.SlotStatusPaid),
				slot(2, domain.SlotStatusCurrentRecipient),
				slot(3, domain.SlotStatusWaiting),
			},
		},
		{
			name:   "pending with a paid slot",
			status: domain.CycleStatusPending,
			slots:  []domain.RosterSlot{slot(1, domain.SlotStatusPaid), slot(2, domain.SlotStatusWaiting)},
			bad:    1,
		},
		{
			name:   "gap in positions",
			status: domain.CycleStatusActive,
			slots:  []domain.RosterSlot{slot(1, domain.SlotStatusCurrentRecipient), slot(3, domain.SlotStatusWaiting)},
			bad:    1,
		},
		{
			name:   "paid after waiting",
			status: domain.CycleStatusActive,
			slots: []domain.RosterSlot{
				slot(1, domain.SlotStatusCurrentRecipient),
				slot(2, domain.SlotStatusWaiting),
				slot(3, domain.SlotStatusPaid),
			},
			bad: 1,
		},
		{
			name:   "active without recipient",
			status: domain.CycleStatusActive,
			slots:  []domain.RosterSlot{slot(1, domain.SlotStatusPaid), slot(2, domain.SlotStatusWaiting)},
			bad:    1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Len(t, checkRoster(tc.status, tc.slots), tc.bad)
		})
	}
}
