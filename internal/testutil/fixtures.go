package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
)

// SeedFund inserts an active group fund with a zero balance.
func SeedFund(t *testing.T, db *sql.DB) *domain.GroupFund {
	t.Helper()

	f := &domain.GroupFund{
		ID:        uuid.New(),
		Status:    domain.FundStatusActive,
		CreatedAt: time.Now().UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO group_funds (id, status, current_balance, member_count, version, created_at)
		 VALUES ($1, $2, 0, 0, 0, $3)`,
		f.ID, f.Status, f.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed fund: %v", err)
	}
	return f
}

func SeedMember(t *testing.T, db *sql.DB, groupID uuid.UUID, status domain.MemberStatus) uuid.UUID {
	t.Helper()

	memberID := uuid.New()
	_, err := db.Exec(
		`INSERT INTO member_balances (group_id, member_id, status, total_contributed)
		 VALUES ($1, $2, $3, 0)`,
		groupID, memberID, status,
	)
	if err != nil {
		t.Fatalf("seed member for group %s: %v", groupID, err)
	}
	_, err = db.Exec(`UPDATE group_funds SET member_count = member_count + 1 WHERE id = $1`, groupID)
	if err != nil {
		t.Fatalf("bump member count for group %s: %v", groupID, err)
	}
	return memberID
}

func SeedMembers(t *testing.T, db *sql.DB, groupID uuid.UUID, n int) []uuid.UUID {
	t.Helper()

	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = SeedMember(t, db, groupID, domain.MemberStatusActive)
	}
	return ids
}

func SetFundStatus(t *testing.T, db *sql.DB, groupID uuid.UUID, status domain.FundStatus) {
	t.Helper()

	if _, err := db.Exec(`UPDATE group_funds SET status = $1 WHERE id = $2`, status, groupID); err != nil {
		t.Fatalf("set fund status %s: %v", groupID, err)
	}
}

func GetFundBalance(t *testing.T, db *sql.DB, groupID uuid.UUID) int64 {
	t.Helper()

	var balance int64
	err := db.QueryRow(`SELECT current_balance FROM group_funds WHERE id = $1`, groupID).Scan(&balance)
	if err != nil {
		t.Fatalf("get fund balance %s: %v", groupID, err)
	}
	return balance
}

func GetMemberTotal(t *testing.T, db *sql.DB, groupID, memberID uuid.UUID) int64 {
	t.Helper()

	var total int64
	err := db.QueryRow(
		`SELECT total_contributed FROM member_balances WHERE group_id = $1 AND member_id = $2`,
		groupID, memberID,
	).Scan(&total)
	if err != nil {
		t.Fatalf("get member total %s/%s: %v", groupID, memberID, err)
	}
	return total
}

func SumLedgerEntries(t *testing.T, db *sql.DB, groupID uuid.UUID) int64 {
	t.Helper()

	var sum int64
	err := db.QueryRow(`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE group_id = $1`, groupID).Scan(&sum)
	if err != nil {
		t.Fatalf("sum ledger entries for group %s: %v", groupID, err)
	}
	return sum
}

func CountLedgerEntries(t *testing.T, db *sql.DB, groupID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM ledger_entries WHERE group_id = $1`, groupID).Scan(&count)
	if err != nil {
		t.Fatalf("count ledger entries for group %s: %v", groupID, err)
	}
	return count
}

func CountAuditRows(t *testing.T, db *sql.DB, groupID uuid.UUID, action domain.AuditAction) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM audit_log WHERE group_id = $1 AND action = $2`, groupID, action,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count audit rows for group %s: %v", groupID, err)
	}
	return count
}
