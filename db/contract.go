package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"procure/internal/lifecycle"
)

// AwardOfContract is created exactly once per work item when a bid is
// selected as winner. Unique constraints on work_item_id and bid_id back up
// the manager's single-winner rule.
type AwardOfContract struct {
	ID         int       `db:"id" json:"id"`
	WorkItemID int       `db:"work_item_id" json:"workItemId"`
	BidID      int       `db:"bid_id" json:"bidId"`
	MemoNumber string    `db:"memo_number" json:"memoNumber"`
	MemoDate   time.Time `db:"memo_date" json:"memoDate"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// WorkOrderDetails is one order line under an award; an award carries at
// least one and may be split into work and supply lines.
type WorkOrderDetails struct {
	ID          int       `db:"id" json:"id"`
	AOCID       int       `db:"aoc_id" json:"aocId"`
	OrderNumber string    `db:"order_number" json:"orderNumber"`
	OrderDate   time.Time `db:"order_date" json:"orderDate"`
	Kind        string    `db:"kind" json:"kind"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// Cancellation record statuses. PENDING doubles as the resume marker when a
// cancellation crashed mid-protocol.
const (
	CancellationPending   = "PENDING"
	CancellationCompleted = "COMPLETED"
)

// WorkOrderCancellation records why a work order was cancelled. It never
// reverses state itself and it survives even when the reversal fails, so
// there is always a trace of the attempt.
type WorkOrderCancellation struct {
	ID          int       `db:"id" json:"id"`
	Reference   uuid.UUID `db:"reference" json:"reference"`
	WorkOrderID int       `db:"work_order_id" json:"workOrderId"`
	WorkItemID  *int      `db:"work_item_id" json:"workItemId,omitempty"`
	Reason      string    `db:"reason" json:"reason"`
	DocumentRef *string   `db:"document_ref" json:"documentRef,omitempty"`
	ActorID     string    `db:"actor_id" json:"actorId"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"-"`
}

// CreateAward materializes the award: the contract row, its order lines,
// and the work item's move to AOC happen in one transaction.
func (s *Storage) CreateAward(ctx context.Context, aoc *AwardOfContract, orders []WorkOrderDetails, item *WorkItem) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
            INSERT INTO award_of_contract (work_item_id, bid_id, memo_number, memo_date)
            VALUES ($1, $2, $3, $4)
            RETURNING id, created_at`
		err := tx.QueryRowContext(ctx, query,
			aoc.WorkItemID, aoc.BidID, aoc.MemoNumber, aoc.MemoDate).
			Scan(&aoc.ID, &aoc.CreatedAt)
		if err != nil {
			return mapConflict(err, "work item %d is already awarded", aoc.WorkItemID)
		}

		for i := range orders {
			orders[i].AOCID = aoc.ID
			query := `
                INSERT INTO work_order_details (aoc_id, order_number, order_date, kind)
                VALUES ($1, $2, $3, $4)
                RETURNING id, created_at`
			err := tx.QueryRowContext(ctx, query,
				orders[i].AOCID, orders[i].OrderNumber, orders[i].OrderDate, orders[i].Kind).
				Scan(&orders[i].ID, &orders[i].CreatedAt)
			if err != nil {
				return err
			}
		}

		return s.updateStatus(ctx, tx, item)
	})
}

func (s *Storage) GetAward(ctx context.Context, id int) (*AwardOfContract, error) {
	aoc := &AwardOfContract{}
	err := s.readWithRetry(ctx, func(ctx context.Context) error {
		return s.db.GetContext(ctx, aoc, `SELECT * FROM award_of_contract WHERE id=$1`, id)
	})
	if err != nil {
		return nil, mapNotFound(err, "award of contract", id)
	}
	return aoc, nil
}

func (s *Storage) GetAwardForWorkItem(ctx context.Context, workItemID int) (*AwardOfContract, error) {
	aoc := &AwardOfContract{}
	err := s.readWithRetry(ctx, func(ctx context.Context) error {
		return s.db.GetContext(ctx, aoc,
			`SELECT * FROM award_of_contract WHERE work_item_id=$1`, workItemID)
	})
	if err != nil {
		return nil, mapNotFound(err, "award for work item", workItemID)
	}
	return aoc, nil
}

func (s *Storage) ListWorkOrdersForAward(ctx context.Context, aocID int) ([]WorkOrderDetails, error) {
	orders := []WorkOrderDetails{}
	err := s.readWithRetry(ctx, func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &orders,
			`SELECT * FROM work_order_details WHERE aoc_id=$1 ORDER BY id ASC`, aocID)
	})
	return orders, err
}

// DeriveWorkItemIDForOrder resolves the owning work item through the
// order -> award -> bid -> work item relation chain. Caller-supplied work
// item ids are never trusted for cancellation.
func (s *Storage) DeriveWorkItemIDForOrder(ctx context.Context, workOrderID int) (int, error) {
	var workItemID int
	err := s.readWithRetry(ctx, func(ctx context.Context) error {
		query := `
            SELECT wi.id
            FROM work_order_details wod
            JOIN award_of_contract aoc ON aoc.id = wod.aoc_id
            JOIN bid b ON b.id = aoc.bid_id
            JOIN work_item wi ON wi.id = b.work_item_id
            WHERE wod.id = $1`
		return s.db.GetContext(ctx, &workItemID, query, workOrderID)
	})
	if err != nil {
		return 0, mapNotFound(err, "work order", workOrderID)
	}
	return workItemID, nil
}

// CreateCancellation writes the audit record (protocol step 1). It commits
// on its own, before any reversal, so the attempt is always traceable.
func (s *Storage) CreateCancellation(ctx context.Context, c *WorkOrderCancellation) error {
	query := `
        INSERT INTO work_order_cancellation
            (reference, work_order_id, reason, document_ref, actor_id, status)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at`
	err := s.db.QueryRowContext(ctx, query,
		c.Reference, c.WorkOrderID, c.Reason, c.DocumentRef, c.ActorID, c.Status).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return mapConflict(err, "cancellation of work order %d is already pending", c.WorkOrderID)
}

// GetPendingCancellation returns the unfinished cancellation for a work
// order, or nil when none exists.
func (s *Storage) GetPendingCancellation(ctx context.Context, workOrderID int) (*WorkOrderCancellation, error) {
	c := &WorkOrderCancellation{}
	err := s.readWithRetry(ctx, func(ctx context.Context) error {
		query := `
            SELECT * FROM work_order_cancellation
            WHERE work_order_id=$1 AND status=$2
            ORDER BY id DESC LIMIT 1`
		return s.db.GetContext(ctx, c, query, workOrderID, CancellationPending)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SetCancellationWorkItem pins the derived work item onto the audit record
// so a resumed cancellation can finish after the order rows are gone.
func (s *Storage) SetCancellationWorkItem(ctx context.Context, cancellationID, workItemID int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE work_order_cancellation SET work_item_id=$1, updated_at=NOW() WHERE id=$2`,
		workItemID, cancellationID)
	return err
}

// MarkCancellationCompleted closes the audit record (protocol step 5).
func (s *Storage) MarkCancellationCompleted(ctx context.Context, cancellationID int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE work_order_cancellation SET status=$1, updated_at=NOW() WHERE id=$2`,
		CancellationCompleted, cancellationID)
	return err
}

// ReverseAward undoes the materialization of an award in one transaction:
// the work item returns to FinancialEvaluation/Approved, the order line is
// removed, and the contract row is dropped once no order lines remain.
// Every statement is idempotent so the reversal can be re-run after a
// crash.
func (s *Storage) ReverseAward(ctx context.Context, workOrderID, workItemID int) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
            UPDATE work_item
            SET tender_status=$1, work_status=$2, version=version+1, updated_at=NOW()
            WHERE id=$3 AND (tender_status <> $1 OR work_status <> $2)`,
			lifecycle.StatusFinancialEvaluation, lifecycle.WorkApproved, workItemID)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM work_order_details WHERE id=$1`, workOrderID); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
            DELETE FROM award_of_contract aoc
            WHERE aoc.work_item_id=$1
              AND NOT EXISTS (SELECT 1 FROM work_order_details wod WHERE wod.aoc_id = aoc.id)`,
			workItemID)
		return err
	})
}
