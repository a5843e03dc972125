// Package ledger records money movements against group funds exactly once.
// Every mutation runs in a serializable transaction that locks the fund row
// first, then the member balance, then (for payouts) the rotation cycle and
// its roster.
package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
	"github.com/josh-kwaku/potfund-ledger/internal/idempotency"
	"github.com/josh-kwaku/potfund-ledger/internal/logging"
	"github.com/josh-kwaku/potfund-ledger/internal/repository"
	"github.com/josh-kwaku/potfund-ledger/internal/rotation"
)

type fundRepo interface {
	Create(ctx context.Context, tx *sql.Tx, fund *domain.GroupFund) error
	GetByID(ctx context.Context, q repository.Querier, id uuid.UUID) (*domain.GroupFund, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.GroupFund, error)
	UpdateBalance(ctx context.Context, tx *sql.Tx, id uuid.UUID, newBalance int64, newVersion int64) error
	UpdateStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.FundStatus) error
	IncrementMemberCount(ctx context.Context, tx *sql.Tx, id uuid.UUID) error
}

type memberRepo interface {
	Create(ctx context.Context, tx *sql.Tx, mb *domain.MemberBalance) error
	Get(ctx context.Context, groupID, memberID uuid.UUID) (*domain.MemberBalance, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, groupID, memberID uuid.UUID) (*domain.MemberBalance, error)
	UpdateTotal(ctx context.Context, tx *sql.Tx, groupID, memberID uuid.UUID, total int64, at time.Time) error
	UpdateStatus(ctx context.Context, tx *sql.Tx, groupID, memberID uuid.UUID, status domain.MemberStatus, at time.Time) error
}

type ledgerRepo interface {
	Create(ctx context.Context, tx *sql.Tx, entry *domain.LedgerEntry) error
	GetByIdempotencyKey(ctx context.Context, q repository.Querier, key string) (*domain.LedgerEntry, error)
	GetByID(ctx context.Context, q repository.Querier, id uuid.UUID) (*domain.LedgerEntry, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.LedgerEntry, error)
	Deactivate(ctx context.Context, tx *sql.Tx, ids ...uuid.UUID) error
	ListByGroup(ctx context.Context, groupID uuid.UUID, limit, offset int) ([]domain.LedgerEntry, int, error)
}

type auditRepo interface {
	Create(ctx context.Context, tx *sql.Tx, entry *domain.AuditEntry) error
}

// payoutScheduler is the slice of the rotation scheduler a payout needs. The
// Tx calls run inside the payout's transaction; AdvanceOutcome rebuilds a
// committed payout's rotation step for a replay.
type payoutScheduler interface {
	GetCycle(ctx context.Context, cycleID uuid.UUID) (*domain.RotationCycle, error)
	AuthorizePayoutTx(ctx context.Context, tx *sql.Tx, cycleID uuid.UUID, expected *uuid.UUID) (*rotation.PayoutAuthorization, error)
	AdvanceTx(ctx context.Context, tx *sql.Tx, cycleID uuid.UUID, actor string) (*rotation.AdvanceResult, error)
	AdvanceOutcome(ctx context.Context, q repository.Querier, cycleID, member uuid.UUID) (*rotation.AdvanceResult, error)
}

type idempotencyStore interface {
	Check(ctx context.Context, key, requestHash string) (*idempotency.Record, error)
	Save(ctx context.Context, key, requestHash string, response any)
}

type duplicateDetector interface {
	Claim(ctx context.Context, fp, idempotencyKey string) error
	Release(ctx context.Context, fp, idempotencyKey string)
}

type txRunner interface {
	Do(ctx context.Context, op string, fn func(ctx context.Context, tx *sql.Tx) error) error
}

type Manager struct {
	funds    fundRepo
	members  memberRepo
	ledger   ledgerRepo
	audit    auditRepo
	rotation payoutScheduler
	idem     idempotencyStore
	dupes    duplicateDetector
	tx       txRunner
	db       repository.Querier
	now      func() time.Time
}

func NewManager(
	funds fundRepo,
	members memberRepo,
	ledger ledgerRepo,
	audit auditRepo,
	rotation payoutScheduler,
	idem idempotencyStore,
	dupes duplicateDetector,
	tx txRunner,
	db repository.Querier,
) *Manager {
	return &Manager{
		funds:    funds,
		members:  members,
		ledger:   ledger,
		audit:    audit,
		rotation: rotation,
		idem:     idem,
		dupes:    dupes,
		tx:       tx,
		db:       db,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

func (m *Manager) writeAudit(ctx context.Context, tx *sql.Tx, groupID uuid.UUID, entity domain.AuditEntityType, entityID uuid.UUID, action domain.AuditAction, actor string, amount *int64, meta map[string]any) error {
	if _, ok := meta["request_id"]; !ok {
		if reqID := logging.RequestID(ctx); reqID != "" {
			if meta == nil {
				meta = make(map[string]any)
			}
			meta["request_id"] = reqID
		}
	}
	entry, err := domain.NewAuditEntry(groupID, entity, entityID, action, actor, amount, meta)
	if err != nil {
		return err
	}
	return m.audit.Create(ctx, tx, entry)
}

func actorOrSystem(actor string) string {
	if actor == "" {
		return domain.SystemActor
	}
	return actor
}

func int64Ptr(v int64) *int64 { return &v }
