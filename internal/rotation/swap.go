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
)

type SwapRequestInput struct {
	CycleID     uuid.UUID
	RequesterID uuid.UUID
	TargetID    uuid.UUID
	Reason      string
}

type SwapResponse struct {
	RequestID   uuid.UUID
	ResponderID uuid.UUID
	Approve     bool
}

// RequestSwap asks the target to trade roster positions. Both members must
// hold distinct WAITING slots in a cycle that has not completed.
func (s *Scheduler) RequestSwap(ctx context.Context, in SwapRequestInput) (*domain.SwapRequest, error) {
	defer metrics.Observe("request_swap")()

	if in.CycleID == uuid.Nil || in.RequesterID == uuid.Nil || in.TargetID == uuid.Nil {
		return nil, fmt.Errorf("RequestSwap: %w", domain.ErrInvalidRequest)
	}
	if in.RequesterID == in.TargetID {
		return nil, fmt.Errorf("RequestSwap: cannot swap with yourself: %w", domain.ErrInvalidSwapTarget)
	}

	var req *domain.SwapRequest
	err := s.tx.Do(ctx, "request_swap", func(ctx context.Context, tx *sql.Tx) error {
		cycle, err := s.cycles.GetForUpdate(ctx, tx, in.CycleID)
		if err != nil {
			return err
		}
		if cycle.Status == domain.CycleStatusCompleted {
			return domain.ErrCycleNotActive
		}

		if err := s.lockWaitingPair(ctx, tx, in.CycleID, in.RequesterID, in.TargetID); err != nil {
			return err
		}

		pending, err := s.swaps.HasPending(ctx, tx, in.CycleID, in.RequesterID)
		if err != nil {
			return err
		}
		if pending {
			return domain.ErrSwapAlreadyPending
		}

		req = &domain.SwapRequest{
			ID:          uuid.New(),
			CycleID:     in.CycleID,
			RequesterID: in.RequesterID,
			TargetID:    in.TargetID,
			Status:      domain.SwapStatusPending,
			Reason:      in.Reason,
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.swaps.Create(ctx, tx, req); err != nil {
			return err
		}

		return s.writeAudit(ctx, tx, cycle.GroupID, domain.AuditEntitySwap, req.ID,
			domain.AuditActionSwapRequested, in.RequesterID.String(), nil, map[string]any{
				"cycle_id":  in.CycleID,
				"target_id": in.TargetID,
				"reason":    in.Reason,
			})
	})
	if err != nil {
		return nil, fmt.Errorf("RequestSwap: %w", err)
	}

	logging.FromContext(ctx).Info("swap requested",
		"swap_request_id", req.ID,
		"cycle_id", req.CycleID,
		"requester_id", req.RequesterID,
		"target_id", req.TargetID,
	)
	return req, nil
}

// RespondToSwap lets the target approve or reject. Approval re-checks both
// slots under lock and exchanges their positions in the same transaction.
func (s *Scheduler) RespondToSwap(ctx context.Context, in SwapResponse) (*domain.SwapRequest, error) {
	defer metrics.Observe("respond_swap")()

	if in.RequestID == uuid.Nil || in.ResponderID == uuid.Nil {
		return nil, fmt.Errorf("RespondToSwap: %w", domain.ErrInvalidRequest)
	}

	var resolved *domain.SwapRequest
	err := s.tx.Do(ctx, "respond_swap", func(ctx context.Context, tx *sql.Tx) error {
		peek, err := s.swaps.GetByID(ctx, tx, in.RequestID)
		if err != nil {
			return err
		}
		if peek.TargetID != in.ResponderID {
			return domain.ErrNotSwapTarget
		}

		cycle, err := s.cycles.GetForUpdate(ctx, tx, peek.CycleID)
		if err != nil {
			return err
		}
		req, err := s.swaps.GetForUpdate(ctx, tx, in.RequestID)
		if err != nil {
			return err
		}
		if req.Status != domain.SwapStatusPending {
			return domain.ErrSwapNotPending
		}

		now := time.Now().UTC()
		if !in.Approve {
			if err := s.swaps.Resolve(ctx, tx, req.ID, domain.SwapStatusRejected, now); err != nil {
				return err
			}
			req.Status = domain.SwapStatusRejected
			req.ResolvedAt = &now
			resolved = req
			return s.writeAudit(ctx, tx, cycle.GroupID, domain.AuditEntitySwap, req.ID,
				domain.AuditActionSwapRejected, in.ResponderID.String(), nil, nil)
		}

		if cycle.Status == domain.CycleStatusCompleted {
			return domain.ErrCycleNotActive
		}
		slots, err := s.roster.LockMembers(ctx, tx, req.CycleID, req.RequesterID, req.TargetID)
		if err != nil {
			return err
		}
		if err := requireWaitingPair(slots); err != nil {
			return err
		}

		a, b := slots[0], slots[1]
		if err := s.roster.SetPosition(ctx, tx, req.CycleID, a.MemberID, b.Position); err != nil {
			return err
		}
		if err := s.roster.SetPosition(ctx, tx, req.CycleID, b.MemberID, a.Position); err != nil {
			return err
		}
		if err := s.swaps.Resolve(ctx, tx, req.ID, domain.SwapStatusApproved, now); err != nil {
			return err
		}

		req.Status = domain.SwapStatusApproved
		req.ResolvedAt = &now
		resolved = req
		return s.writeAudit(ctx, tx, cycle.GroupID, domain.AuditEntitySwap, req.ID,
			domain.AuditActionSwapApproved, in.ResponderID.String(), nil, map[string]any{
				"cycle_id": req.CycleID,
				"positions": map[string]int{
					a.MemberID.String(): b.Position,
					b.MemberID.String(): a.Position,
				},
			})
	})
	if err != nil {
		return nil, fmt.Errorf("RespondToSwap: %w", err)
	}

	logging.FromContext(ctx).Info("swap resolved",
		"swap_request_id", resolved.ID,
		"cycle_id", resolved.CycleID,
		"status", resolved.Status,
	)
	return resolved, nil
}

func (s *Scheduler) lockWaitingPair(ctx context.Context, tx *sql.Tx, cycleID, a, b uuid.UUID) error {
	slots, err := s.roster.LockMembers(ctx, tx, cycleID, a, b)
	if err != nil {
		return err
	}
	return requireWaitingPair(slots)
}

func requireWaitingPair(slots []domain.RosterSlot) error {
	if len(slots) != 2 {
		return fmt.Errorf("both members must be on the roster: %w", domain.ErrInvalidSwapTarget)
	}
	for _, s := range slots {
		if s.Status != domain.SlotStatusWaiting {
			return fmt.Errorf("member %s is %s: %w", s.MemberID, s.Status, domain.ErrInvalidSwapTarget)
		}
	}
	return nil
}
