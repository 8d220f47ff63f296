package db

import (
	"context"
	"database/sql"
	"time"

	"procure/internal/lifecycle"
)

// WorkItem is one biddable line of work under a NIT. TenderStatus and
// WorkStatus are explicit columns guarded by an optimistic version counter;
// all status writes go through compare-and-swap updates.
type WorkItem struct {
	ID                  int                    `db:"id" json:"id"`
	NITID               int                    `db:"nit_id" json:"nitId"`
	SerialNumber        int                    `db:"serial_number" json:"serialNumber"`
	ActivityDescription string                 `db:"activity_description" json:"activityDescription"`
	TenderStatus        lifecycle.TenderStatus `db:"tender_status" json:"tenderStatus"`
	WorkStatus          lifecycle.WorkStatus   `db:"work_status" json:"workStatus"`
	CompletionDate      *time.Time             `db:"completion_date" json:"completionDate,omitempty"`
	Version             int                    `db:"version" json:"version"`
	CreatedAt           time.Time              `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time              `db:"updated_at" json:"-"`
}

func (s *Storage) CreateWorkItem(ctx context.Context, w *WorkItem) error {
	query := `
        INSERT INTO work_item
            (nit_id, serial_number, activity_description, tender_status, work_status)
        VALUES
            ($1, $2, $3, $4, $5)
        RETURNING id, version, created_at, updated_at`
	err := s.db.QueryRowContext(ctx, query,
		w.NITID, w.SerialNumber, w.ActivityDescription,
		lifecycle.StatusPublished, lifecycle.WorkApproved).
		Scan(&w.ID, &w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return mapConflict(err, "serial number %d already exists on NIT %d", w.SerialNumber, w.NITID)
	}
	w.TenderStatus = lifecycle.StatusPublished
	w.WorkStatus = lifecycle.WorkApproved
	return nil
}

func (s *Storage) GetWorkItem(ctx context.Context, id int) (*WorkItem, error) {
	w := &WorkItem{}
	err := s.readWithRetry(ctx, func(ctx context.Context) error {
		return s.db.GetContext(ctx, w, `SELECT * FROM work_item WHERE id=$1`, id)
	})
	if err != nil {
		return nil, mapNotFound(err, "work item", id)
	}
	return w, nil
}

func (s *Storage) ListWorkItemsForNIT(ctx context.Context, nitID int) ([]WorkItem, error) {
	items := []WorkItem{}
	err := s.readWithRetry(ctx, func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &items,
			`SELECT * FROM work_item WHERE nit_id=$1 ORDER BY serial_number ASC`, nitID)
	})
	return items, err
}

// UpdateWorkItemStatus persists a status transition with a version CAS.
// A zero-row update means another operator moved the item first.
func (s *Storage) UpdateWorkItemStatus(ctx context.Context, w *WorkItem) error {
	return s.updateStatus(ctx, s.db, w)
}

// sqlxExecer is satisfied by both *sqlx.DB and *sqlx.Tx so status updates
// can participate in larger transactions.
type sqlxExecer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (s *Storage) updateStatus(ctx context.Context, e sqlxExecer, w *WorkItem) error {
	query := `
        UPDATE work_item
        SET tender_status=$1, work_status=$2, completion_date=$3,
            version=version+1, updated_at=NOW()
        WHERE id=$4 AND version=$5`
	res, err := e.ExecContext(ctx, query,
		w.TenderStatus, w.WorkStatus, w.CompletionDate, w.ID, w.Version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return lifecycle.NewConflict("work item %d was modified concurrently, reload and retry", w.ID)
	}
	w.Version++
	return nil
}
