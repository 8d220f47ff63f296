package contract

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"procure/db"
	"procure/internal/evaluation"
	"procure/internal/gateway"
	"procure/internal/lifecycle"
)

// Work order kinds.
const (
	OrderKindWork   = "work"
	OrderKindSupply = "supply"
)

// Store is the persistence surface the manager needs.
type Store interface {
	GetWorkItem(ctx context.Context, id int) (*db.WorkItem, error)
	GetNIT(ctx context.Context, id int) (*db.NIT, error)
	ListBidsForEvaluation(ctx context.Context, workItemID int) ([]evaluation.Bid, error)
	UpdateWorkItemStatus(ctx context.Context, w *db.WorkItem) error
	CreateAward(ctx context.Context, aoc *db.AwardOfContract, orders []db.WorkOrderDetails, item *db.WorkItem) error
	DeriveWorkItemIDForOrder(ctx context.Context, workOrderID int) (int, error)
	CreateCancellation(ctx context.Context, c *db.WorkOrderCancellation) error
	GetPendingCancellation(ctx context.Context, workOrderID int) (*db.WorkOrderCancellation, error)
	SetCancellationWorkItem(ctx context.Context, cancellationID, workItemID int) error
	MarkCancellationCompleted(ctx context.Context, cancellationID int) error
	ReverseAward(ctx context.Context, workOrderID, workItemID int) error
}

// Manager materializes awards and runs the cancellation protocol. All
// operations on one work item are serialized through the shared lock
// registry.
type Manager struct {
	store  Store
	notify gateway.Notifier
	locks  *lifecycle.Locks
	log    *zap.Logger
}

func NewManager(store Store, notify gateway.Notifier, locks *lifecycle.Locks, log *zap.Logger) *Manager {
	return &Manager{store: store, notify: notify, locks: locks, log: log}
}

// AwardInput carries the operator's award decision.
type AwardInput struct {
	WorkItemID int
	BidID      int
	MemoNumber string
	MemoDate   time.Time
	OrderKinds []string // empty: derived from the NIT's supply flag
	ActorID    string
}

// Award validates that the work item is in financial evaluation and that
// the chosen bid tops the ranking, then creates the contract, its order
// lines, and the status move in one shot.
func (m *Manager) Award(ctx context.Context, in AwardInput) (*db.AwardOfContract, []db.WorkOrderDetails, error) {
	release := m.locks.Acquire(in.WorkItemID)
	defer release()

	item, err := m.store.GetWorkItem(ctx, in.WorkItemID)
	if err != nil {
		return nil, nil, err
	}
	if err := lifecycle.ReadyForAward(item.TenderStatus); err != nil {
		return nil, nil, err
	}

	bids, err := m.store.ListBidsForEvaluation(ctx, in.WorkItemID)
	if err != nil {
		return nil, nil, err
	}
	ranked := evaluation.Rank(bids)
	if len(ranked) == 0 {
		return nil, nil, lifecycle.NewError(lifecycle.CodeNoQualifiedBidders,
			"no qualified bidders on work item %d, re-tender instead", in.WorkItemID)
	}
	if ranked[0].BidID != in.BidID {
		return nil, nil, lifecycle.NewError(lifecycle.CodeInvalidTransition,
			"bid %d is not the lowest qualified bid (expected bid %d at %s)",
			in.BidID, ranked[0].BidID, ranked[0].Amount)
	}

	kinds, err := m.orderKinds(ctx, item, in.OrderKinds)
	if err != nil {
		return nil, nil, err
	}

	aoc := &db.AwardOfContract{
		WorkItemID: in.WorkItemID,
		BidID:      in.BidID,
		MemoNumber: in.MemoNumber,
		MemoDate:   in.MemoDate,
	}
	orders := make([]db.WorkOrderDetails, len(kinds))
	for i, kind := range kinds {
		orders[i] = db.WorkOrderDetails{
			OrderNumber: fmt.Sprintf("%s/WO-%d", in.MemoNumber, i+1),
			OrderDate:   in.MemoDate,
			Kind:        kind,
		}
	}

	item.TenderStatus = lifecycle.StatusAOC
	item.WorkStatus = lifecycle.WorkInProgress
	if err := m.store.CreateAward(ctx, aoc, orders, item); err != nil {
		return nil, nil, err
	}

	m.log.Info("contract awarded",
		zap.Int("work_item_id", item.ID),
		zap.Int("bid_id", in.BidID),
		zap.String("memo_number", in.MemoNumber),
		zap.String("actor_id", in.ActorID))
	m.notify.OnAwarded(*item, *aoc)
	return aoc, orders, nil
}

func (m *Manager) orderKinds(ctx context.Context, item *db.WorkItem, requested []string) ([]string, error) {
	if len(requested) == 0 {
		nit, err := m.store.GetNIT(ctx, item.NITID)
		if err != nil {
			return nil, err
		}
		if nit.IsSupply {
			return []string{OrderKindSupply}, nil
		}
		return []string{OrderKindWork}, nil
	}
	for _, k := range requested {
		if k != OrderKindWork && k != OrderKindSupply {
			return nil, lifecycle.NewError(lifecycle.CodeConflict,
				"unknown work order kind %q", k)
		}
	}
	return requested, nil
}

// ApproveWork records that the awarded work is complete and approved,
// making the work item billable.
func (m *Manager) ApproveWork(ctx context.Context, workItemID int, completionDate time.Time, actorID string) (*db.WorkItem, error) {
	release := m.locks.Acquire(workItemID)
	defer release()

	item, err := m.store.GetWorkItem(ctx, workItemID)
	if err != nil {
		return nil, err
	}
	next, err := lifecycle.ApproveWork(item.TenderStatus, item.WorkStatus)
	if err != nil {
		return nil, err
	}
	item.WorkStatus = next
	item.CompletionDate = &completionDate
	if err := m.store.UpdateWorkItemStatus(ctx, item); err != nil {
		return nil, err
	}

	m.log.Info("work approved",
		zap.Int("work_item_id", workItemID),
		zap.String("actor_id", actorID))
	return item, nil
}

// CancelInput carries the operator's cancellation request.
type CancelInput struct {
	WorkOrderID int
	Reason      string
	ActorID     string
	DocumentRef *string
}

// Cancel runs the cancellation protocol:
//
//  1. write the audit record (kept even when later steps fail)
//  2. derive the owning work item from the order relations, never from
//     caller input, and pin it onto the record
//  3. revert the work item to FinancialEvaluation/Approved
//  4. remove the order line and, when empty, its contract
//  5. emit the cancellation event
//
// A failure after step 1 surfaces as PARTIAL_CANCELLATION; calling Cancel
// again with the same work order id resumes from the pinned record and
// completes the remaining steps.
func (m *Manager) Cancel(ctx context.Context, in CancelInput) error {
	rec, err := m.store.GetPendingCancellation(ctx, in.WorkOrderID)
	if err != nil {
		return err
	}
	if rec == nil {
		rec = &db.WorkOrderCancellation{
			Reference:   uuid.New(),
			WorkOrderID: in.WorkOrderID,
			Reason:      in.Reason,
			DocumentRef: in.DocumentRef,
			ActorID:     in.ActorID,
			Status:      db.CancellationPending,
		}
		if err := m.store.CreateCancellation(ctx, rec); err != nil {
			if !lifecycle.IsCode(err, lifecycle.CodeConflict) {
				return err
			}
			// A concurrent cancel won the insert; resume its record.
			rec, err = m.store.GetPendingCancellation(ctx, in.WorkOrderID)
			if err != nil {
				return err
			}
			if rec == nil {
				// The winner already completed the whole protocol.
				return nil
			}
		}
	} else {
		m.log.Info("resuming incomplete cancellation",
			zap.Int("work_order_id", in.WorkOrderID),
			zap.String("reference", rec.Reference.String()))
	}

	if rec.WorkItemID == nil {
		workItemID, err := m.store.DeriveWorkItemIDForOrder(ctx, in.WorkOrderID)
		if err != nil {
			return err
		}
		if err := m.store.SetCancellationWorkItem(ctx, rec.ID, workItemID); err != nil {
			return lifecycle.WrapError(lifecycle.CodePartialCancellation, err,
				"cancellation of work order %d recorded but not applied, retry to finish", in.WorkOrderID)
		}
		rec.WorkItemID = &workItemID
	}

	release := m.locks.Acquire(*rec.WorkItemID)
	defer release()

	if err := m.store.ReverseAward(ctx, in.WorkOrderID, *rec.WorkItemID); err != nil {
		return lifecycle.WrapError(lifecycle.CodePartialCancellation, err,
			"cancellation of work order %d is incomplete, retry to finish", in.WorkOrderID)
	}
	if err := m.store.MarkCancellationCompleted(ctx, rec.ID); err != nil {
		return lifecycle.WrapError(lifecycle.CodePartialCancellation, err,
			"work order %d reverted but the cancellation record is still open, retry to finish", in.WorkOrderID)
	}

	m.log.Info("work order cancelled",
		zap.Int("work_order_id", in.WorkOrderID),
		zap.Int("work_item_id", *rec.WorkItemID),
		zap.String("reason", rec.Reason),
		zap.String("actor_id", rec.ActorID))
	m.notify.OnCancelled(in.WorkOrderID, rec.Reason)
	return nil
}
