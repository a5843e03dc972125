// Package rotation runs the payout order of a rotating savings cycle:
// PENDING -> ACTIVE -> COMPLETED for the cycle, and
// WAITING -> CURRENT_RECIPIENT -> PAID for each roster slot.
package rotation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/potfund-ledger/internal/domain"
	"github.com/josh-kwaku/potfund-ledger/internal/logging"
	"github.com/josh-kwaku/potfund-ledger/internal/metrics"
	"github.com/josh-kwaku/potfund-ledger/internal/money"
	"github.com/josh-kwaku/potfund-ledger/internal/repository"
)

type cycleRepo interface {
	Create(ctx context.Context, tx *sql.Tx, c *domain.RotationCycle) error
	GetByID(ctx context.Context, q repository.Querier, id uuid.UUID) (*domain.RotationCycle, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.RotationCycle, error)
	GetOpenByGroup(ctx context.Context, q repository.Querier, groupID uuid.UUID) (*domain.RotationCycle, error)
	Activate(ctx context.Context, tx *sql.Tx, id uuid.UUID, at time.Time) error
	Complete(ctx context.Context, tx *sql.Tx, id uuid.UUID, at time.Time) error
}

type rosterRepo interface {
	CreateSlots(ctx context.Context, tx *sql.Tx, slots []domain.RosterSlot) error
	ListByCycle(ctx context.Context, q repository.Querier, cycleID uuid.UUID) ([]domain.RosterSlot, error)
	LockByCycle(ctx context.Context, tx *sql.Tx, cycleID uuid.UUID) ([]domain.RosterSlot, error)
	LockMembers(ctx context.Context, tx *sql.Tx, cycleID uuid.UUID, memberIDs ...uuid.UUID) ([]domain.RosterSlot, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, cycleID, memberID uuid.UUID, status domain.SlotStatus, paidAt *time.Time) error
	SetPosition(ctx context.Context, tx *sql.Tx, cycleID, memberID uuid.UUID, position int) error
}

type swapRepo interface {
	Create(ctx context.Context, tx *sql.Tx, s *domain.SwapRequest) error
	GetByID(ctx context.Context, q repository.Querier, id uuid.UUID) (*domain.SwapRequest, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.SwapRequest, error)
	HasPending(ctx context.Context, tx *sql.Tx, cycleID, requesterID uuid.UUID) (bool, error)
	Resolve(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.SwapStatus, at time.Time) error
}

type fundLocker interface {
	GetForUpdate(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*domain.GroupFund, error)
}

type memberLister interface {
	ListByGroup(ctx context.Context, q repository.Querier, groupID uuid.UUID) ([]domain.MemberBalance, error)
}

type auditRepo interface {
	Create(ctx context.Context, tx *sql.Tx, entry *domain.AuditEntry) error
}

type txRunner interface {
	Do(ctx context.Context, op string, fn func(ctx context.Context, tx *sql.Tx) error) error
}

type Scheduler struct {
	cycles  cycleRepo
	roster  rosterRepo
	swaps   swapRepo
	funds   fundLocker
	members memberLister
	audit   auditRepo
	tx      txRunner
	db      repository.Querier

	trustThreshold int
}

func NewScheduler(
	cycles cycleRepo,
	roster rosterRepo,
	swaps swapRepo,
	funds fundLocker,
	members memberLister,
	audit auditRepo,
	tx txRunner,
	db repository.Querier,
	trustThreshold int,
) *Scheduler {
	return &Scheduler{
		cycles:         cycles,
		roster:         roster,
		swaps:          swaps,
		funds:          funds,
		members:        members,
		audit:          audit,
		tx:             tx,
		db:             db,
		trustThreshold: trustThreshold,
	}
}

type CreateCycleRequest struct {
	GroupID            uuid.UUID
	ContributionAmount money.Amount
	StartDate          time.Time
	Policy             string
	Members            []uuid.UUID
	TrustScores        map[uuid.UUID]int
	Actor              string
}

// CycleView is a cycle together with its roster in position order.
type CycleView struct {
	Cycle  domain.RotationCycle
	Roster []domain.RosterSlot
}

// AdvanceResult describes one step of the rotation.
type AdvanceResult struct {
	CycleID       uuid.UUID
	PaidMember    uuid.UUID
	NextRecipient *uuid.UUID
	Completed     bool
}

// PayoutAuthorization is what the ledger needs to pay the current recipient.
type PayoutAuthorization struct {
	Cycle      domain.RotationCycle
	Recipient  uuid.UUID
	RosterSize int
}

func validateCreateCycle(req CreateCycleRequest) error {
	if req.GroupID == uuid.Nil {
		return fmt.Errorf("group id is required: %w", domain.ErrInvalidRequest)
	}
	if !req.ContributionAmount.IsPositive() {
		return domain.ErrInvalidAmount
	}
	if len(req.Members) == 1 {
		return fmt.Errorf("a cycle needs at least two members: %w", domain.ErrInvalidRequest)
	}
	seen := make(map[uuid.UUID]struct{}, len(req.Members))
	for _, m := range req.Members {
		if m == uuid.Nil {
			return fmt.Errorf("member id is required: %w", domain.ErrInvalidRequest)
		}
		if _, dup := seen[m]; dup {
			return fmt.Errorf("member %s listed twice: %w", m, domain.ErrInvalidRequest)
		}
		seen[m] = struct{}{}
	}
	for m, score := range req.TrustScores {
		if score < 0 || score > 100 {
			return fmt.Errorf("trust score for %s out of range: %w", m, domain.ErrInvalidRequest)
		}
	}
	return nil
}

// CreateCycle opens a PENDING cycle with a WAITING roster ordered by the
// requested policy. With no explicit members every active enrolled member of
// the fund takes part.
func (s *Scheduler) CreateCycle(ctx context.Context, req CreateCycleRequest) (*CycleView, error) {
	defer metrics.Observe("create_cycle")()

	if err := validateCreateCycle(req); err != nil {
		return nil, fmt.Errorf("CreateCycle: %w", err)
	}
	policy, err := PolicyByName(req.Policy, s.trustThreshold, nil)
	if err != nil {
		return nil, fmt.Errorf("CreateCycle: %w", err)
	}

	var view *CycleView
	err = s.tx.Do(ctx, "create_cycle", func(ctx context.Context, tx *sql.Tx) error {
		fund, err := s.funds.GetForUpdate(ctx, tx, req.GroupID)
		if err != nil {
			return err
		}
		if fund.Status != domain.FundStatusActive {
			return domain.ErrGroupNotActive
		}

		open, err := s.cycles.GetOpenByGroup(ctx, tx, req.GroupID)
		if err != nil {
			return err
		}
		if open != nil {
			return domain.ErrCycleAlreadyOpen
		}

		participants, err := s.participants(ctx, tx, req.GroupID, req.Members)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		start := req.StartDate
		if start.IsZero() {
			start = now
		}
		cycle := domain.RotationCycle{
			ID:                 uuid.New(),
			GroupID:            req.GroupID,
			ContributionAmount: req.ContributionAmount.Int64(),
			StartDate:          start.Truncate(24 * time.Hour),
			Status:             domain.CycleStatusPending,
			RosterPolicy:       policy.Name(),
			CreatedBy:          actorOrSystem(req.Actor),
			CreatedAt:          now,
		}
		if err := s.cycles.Create(ctx, tx, &cycle); err != nil {
			return err
		}

		order := policy.Order(participants, req.TrustScores)
		slots := make([]domain.RosterSlot, len(order))
		for i, m := range order {
			slots[i] = domain.RosterSlot{
				CycleID:  cycle.ID,
				MemberID: m,
				Position: i + 1,
				Status:   domain.SlotStatusWaiting,
			}
		}
		if err := s.roster.CreateSlots(ctx, tx, slots); err != nil {
			return err
		}

		amount := cycle.ContributionAmount
		if err := s.writeAudit(ctx, tx, cycle.GroupID, domain.AuditEntityCycle, cycle.ID,
			domain.AuditActionCycleCreated, req.Actor, &amount, map[string]any{
				"policy":       cycle.RosterPolicy,
				"roster_size":  len(slots),
				"start_date":   cycle.StartDate.Format(time.DateOnly),
				"member_order": order,
			}); err != nil {
			return err
		}

		view = &CycleView{Cycle: cycle, Roster: slots}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("CreateCycle: %w", err)
	}

	logging.FromContext(ctx).Info("rotation cycle created",
		"cycle_id", view.Cycle.ID,
		"group_id", view.Cycle.GroupID,
		"policy", view.Cycle.RosterPolicy,
		"roster_size", len(view.Roster),
	)
	return view, nil
}

func (s *Scheduler) participants(ctx context.Context, tx *sql.Tx, groupID uuid.UUID, requested []uuid.UUID) ([]uuid.UUID, error) {
	enrolled, err := s.members.ListByGroup(ctx, tx, groupID)
	if err != nil {
		return nil, err
	}
	active := make(map[uuid.UUID]bool, len(enrolled))
	var all []uuid.UUID
	for _, m := range enrolled {
		if m.Status == domain.MemberStatusActive {
			active[m.MemberID] = true
			all = append(all, m.MemberID)
		}
	}

	out := requested
	if len(out) == 0 {
		out = all
	}
	for _, m := range out {
		if !active[m] {
			return nil, fmt.Errorf("member %s: %w", m, domain.ErrMemberNotActive)
		}
	}
	if len(out) < 2 {
		return nil, fmt.Errorf("a cycle needs at least two active members: %w", domain.ErrInvalidRequest)
	}
	return out, nil
}

// ActivateCycle starts the rotation with position 1 as the current
// recipient.
func (s *Scheduler) ActivateCycle(ctx context.Context, cycleID uuid.UUID, actor string) (*CycleView, error) {
	defer metrics.Observe("activate_cycle")()

	var view *CycleView
	err := s.tx.Do(ctx, "activate_cycle", func(ctx context.Context, tx *sql.Tx) error {
		cycle, err := s.cycles.GetForUpdate(ctx, tx, cycleID)
		if err != nil {
			return err
		}
		if cycle.Status != domain.CycleStatusPending {
			return domain.ErrCycleNotPending
		}

		slots, err := s.roster.LockByCycle(ctx, tx, cycleID)
		if err != nil {
			return err
		}
		if len(slots) == 0 {
			return fmt.Errorf("cycle has an empty roster: %w", domain.ErrInvalidRequest)
		}

		now := time.Now().UTC()
		if err := s.cycles.Activate(ctx, tx, cycleID, now); err != nil {
			return err
		}
		first := slots[0]
		if err := s.roster.UpdateStatus(ctx, tx, cycleID, first.MemberID, domain.SlotStatusCurrentRecipient, nil); err != nil {
			return err
		}

		cycle.Status = domain.CycleStatusActive
		cycle.ActivatedAt = &now
		slots[0].Status = domain.SlotStatusCurrentRecipient

		if err := s.writeAudit(ctx, tx, cycle.GroupID, domain.AuditEntityCycle, cycle.ID,
			domain.AuditActionCycleActivated, actor, nil, map[string]any{
				"current_recipient": first.MemberID,
			}); err != nil {
			return err
		}

		view = &CycleView{Cycle: *cycle, Roster: slots}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ActivateCycle: %w", err)
	}

	logging.FromContext(ctx).Info("rotation cycle activated",
		"cycle_id", cycleID,
		"current_recipient", view.Roster[0].MemberID,
	)
	return view, nil
}

// Advance marks the current recipient PAID and promotes the next waiting
// slot, completing the cycle after the last one. It never moves backwards.
func (s *Scheduler) Advance(ctx context.Context, cycleID uuid.UUID, actor string) (*AdvanceResult, error) {
	defer metrics.Observe("advance_cycle")()

	var res *AdvanceResult
	err := s.tx.Do(ctx, "advance_cycle", func(ctx context.Context, tx *sql.Tx) error {
		r, err := s.AdvanceTx(ctx, tx, cycleID, actor)
		res = r
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("Advance: %w", err)
	}
	return res, nil
}

// AdvanceTx is Advance inside a transaction the caller owns.
func (s *Scheduler) AdvanceTx(ctx context.Context, tx *sql.Tx, cycleID uuid.UUID, actor string) (*AdvanceResult, error) {
	cycle, slots, current, err := s.lockActive(ctx, tx, cycleID)
	if err != nil {
		return nil, fmt.Errorf("AdvanceTx: %w", err)
	}

	now := time.Now().UTC()
	paid := slots[current]
	if err := s.roster.UpdateStatus(ctx, tx, cycleID, paid.MemberID, domain.SlotStatusPaid, &now); err != nil {
		return nil, fmt.Errorf("AdvanceTx: %w", err)
	}

	res := &AdvanceResult{CycleID: cycleID, PaidMember: paid.MemberID}

	next := nextWaiting(slots)
	if next >= 0 {
		nextID := slots[next].MemberID
		if err := s.roster.UpdateStatus(ctx, tx, cycleID, nextID, domain.SlotStatusCurrentRecipient, nil); err != nil {
			return nil, fmt.Errorf("AdvanceTx: %w", err)
		}
		res.NextRecipient = &nextID
		err = s.writeAudit(ctx, tx, cycle.GroupID, domain.AuditEntityCycle, cycleID,
			domain.AuditActionCycleAdvanced, actor, nil, map[string]any{
				"paid_member":       paid.MemberID,
				"current_recipient": nextID,
				"position":          slots[next].Position,
			})
	} else {
		if err := s.cycles.Complete(ctx, tx, cycleID, now); err != nil {
			return nil, fmt.Errorf("AdvanceTx: %w", err)
		}
		res.Completed = true
		err = s.writeAudit(ctx, tx, cycle.GroupID, domain.AuditEntityCycle, cycleID,
			domain.AuditActionCycleCompleted, actor, nil, map[string]any{
				"paid_member": paid.MemberID,
			})
	}
	if err != nil {
		return nil, fmt.Errorf("AdvanceTx: %w", err)
	}

	logging.FromContext(ctx).Info("rotation advanced",
		"cycle_id", cycleID,
		"paid_member", paid.MemberID,
		"completed", res.Completed,
	)
	return res, nil
}

// AdvanceOutcome reconstructs the AdvanceResult of the step that paid
// member. Slots leave WAITING in position order and are never swapped once
// promoted, so the slot after the paid one is the recipient that step
// promoted, or there is none and the step completed the cycle.
func (s *Scheduler) AdvanceOutcome(ctx context.Context, q repository.Querier, cycleID, member uuid.UUID) (*AdvanceResult, error) {
	slots, err := s.roster.ListByCycle(ctx, q, cycleID)
	if err != nil {
		return nil, fmt.Errorf("AdvanceOutcome: %w", err)
	}

	paid := -1
	for i, slot := range slots {
		if slot.MemberID == member {
			paid = i
			break
		}
	}
	if paid < 0 {
		return nil, fmt.Errorf("AdvanceOutcome: member %s: %w", member, domain.ErrNotFound)
	}
	if slots[paid].Status != domain.SlotStatusPaid {
		return nil, fmt.Errorf("AdvanceOutcome: member %s has not been paid", member)
	}

	res := &AdvanceResult{CycleID: cycleID, PaidMember: member}
	if paid+1 < len(slots) {
		next := slots[paid+1].MemberID
		res.NextRecipient = &next
	} else {
		res.Completed = true
	}
	return res, nil
}

// AuthorizePayoutTx locks the cycle and its roster and returns the current
// recipient. expected, when set, must be that recipient.
func (s *Scheduler) AuthorizePayoutTx(ctx context.Context, tx *sql.Tx, cycleID uuid.UUID, expected *uuid.UUID) (*PayoutAuthorization, error) {
	cycle, slots, current, err := s.lockActive(ctx, tx, cycleID)
	if err != nil {
		return nil, fmt.Errorf("AuthorizePayoutTx: %w", err)
	}

	recipient := slots[current].MemberID
	if expected != nil && *expected != recipient {
		return nil, fmt.Errorf("AuthorizePayoutTx: member %s: %w", *expected, domain.ErrNotCurrentRecipient)
	}

	return &PayoutAuthorization{Cycle: *cycle, Recipient: recipient, RosterSize: len(slots)}, nil
}

func (s *Scheduler) lockActive(ctx context.Context, tx *sql.Tx, cycleID uuid.UUID) (*domain.RotationCycle, []domain.RosterSlot, int, error) {
	cycle, err := s.cycles.GetForUpdate(ctx, tx, cycleID)
	if err != nil {
		return nil, nil, 0, err
	}
	if cycle.Status != domain.CycleStatusActive {
		return nil, nil, 0, domain.ErrCycleNotActive
	}

	slots, err := s.roster.LockByCycle(ctx, tx, cycleID)
	if err != nil {
		return nil, nil, 0, err
	}
	current := currentRecipient(slots)
	if current < 0 {
		return nil, nil, 0, fmt.Errorf("active cycle %s has no current recipient", cycleID)
	}
	return cycle, slots, current, nil
}

func (s *Scheduler) GetCycle(ctx context.Context, cycleID uuid.UUID) (*domain.RotationCycle, error) {
	c, err := s.cycles.GetByID(ctx, s.db, cycleID)
	if err != nil {
		return nil, fmt.Errorf("GetCycle: %w", err)
	}
	return c, nil
}

// GetRoster reads without locking.
func (s *Scheduler) GetRoster(ctx context.Context, cycleID uuid.UUID) (*CycleView, error) {
	c, err := s.cycles.GetByID(ctx, s.db, cycleID)
	if err != nil {
		return nil, fmt.Errorf("GetRoster: %w", err)
	}
	slots, err := s.roster.ListByCycle(ctx, s.db, cycleID)
	if err != nil {
		return nil, fmt.Errorf("GetRoster: %w", err)
	}
	return &CycleView{Cycle: *c, Roster: slots}, nil
}

func (s *Scheduler) writeAudit(ctx context.Context, tx *sql.Tx, groupID uuid.UUID, entity domain.AuditEntityType, entityID uuid.UUID, action domain.AuditAction, actor string, amount *int64, meta map[string]any) error {
	if reqID := logging.RequestID(ctx); reqID != "" {
		if meta == nil {
			meta = make(map[string]any)
		}
		meta["request_id"] = reqID
	}
	entry, err := domain.NewAuditEntry(groupID, entity, entityID, action, actor, amount, meta)
	if err != nil {
		return err
	}
	return s.audit.Create(ctx, tx, entry)
}

func currentRecipient(slots []domain.RosterSlot) int {
	for i, s := range slots {
		if s.Status == domain.SlotStatusCurrentRecipient {
			return i
		}
	}
	return -1
}

// nextWaiting returns the lowest-position WAITING slot. slots are sorted by
// position.
func nextWaiting(slots []domain.RosterSlot) int {
	for i, s := range slots {
		if s.Status == domain.SlotStatusWaiting {
			return i
		}
	}
	return -1
}

func actorOrSystem(actor string) string {
	if actor == "" {
		return domain.SystemActor
	}
	return actor
}
