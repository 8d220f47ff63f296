package db

import (
	"context"
	"time"
)

// NIT is a published Notice Inviting Tender grouping one or more work
// items. Once published it is immutable except for administrative deletion
// while no work items are attached.
type NIT struct {
	ID                      int        `db:"id" json:"id"`
	MemoNumber              int        `db:"memo_number" json:"memoNumber"`
	MemoYear                int        `db:"memo_year" json:"memoYear"`
	MemoDate                time.Time  `db:"memo_date" json:"memoDate"`
	TechnicalBidOpeningDate time.Time  `db:"technical_bid_opening_date" json:"technicalBidOpeningDate"`
	FinancialBidOpeningDate time.Time  `db:"financial_bid_opening_date" json:"financialBidOpeningDate"`
	IsSupply                bool       `db:"is_supply" json:"isSupply"`
	IsPublished             bool       `db:"is_published" json:"isPublished"`
	DocumentRef             *string    `db:"document_ref" json:"documentRef,omitempty"`
	CreatedAt               time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt               time.Time  `db:"updated_at" json:"-"`
}

func (s *Storage) CreateNIT(ctx context.Context, n *NIT) error {
	query := `
        INSERT INTO nit
            (memo_number, memo_year, memo_date, technical_bid_opening_date,
             financial_bid_opening_date, is_supply, document_ref)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at`
	err := s.db.QueryRowContext(ctx, query,
		n.MemoNumber, n.MemoYear, n.MemoDate, n.TechnicalBidOpeningDate,
		n.FinancialBidOpeningDate, n.IsSupply, n.DocumentRef).
		Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	return mapConflict(err, "memo number %d already exists for year %d", n.MemoNumber, n.MemoYear)
}

func (s *Storage) GetNIT(ctx context.Context, id int) (*NIT, error) {
	n := &NIT{}
	err := s.readWithRetry(ctx, func(ctx context.Context) error {
		return s.db.GetContext(ctx, n, `SELECT * FROM nit WHERE id=$1`, id)
	})
	if err != nil {
		return nil, mapNotFound(err, "NIT", id)
	}
	return n, nil
}

func (s *Storage) ListNITs(ctx context.Context, limit, offset int) ([]NIT, error) {
	nits := []NIT{}
	err := s.readWithRetry(ctx, func(ctx context.Context) error {
		query := `
            SELECT * FROM nit
            ORDER BY memo_year DESC, memo_number DESC
            LIMIT $1 OFFSET $2`
		return s.db.SelectContext(ctx, &nits, query, limit, offset)
	})
	return nits, err
}

// PublishNIT flips the publication flag; a published NIT no longer accepts
// attribute edits.
func (s *Storage) PublishNIT(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE nit SET is_published=TRUE, updated_at=NOW() WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapNotFound(errNoRows, "NIT", id)
	}
	return nil
}

// DeleteNIT removes a NIT. Callers must verify the NIT has zero attached
// work items first; the foreign key backs that check up.
func (s *Storage) DeleteNIT(ctx context.Context, id int) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM nit WHERE id=$1`, id)
	if err != nil {
		// A work item attached between the caller's check and the delete
		// trips the foreign key.
		return mapRestricted(err, "NIT %d still has work items attached", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return mapNotFound(errNoRows, "NIT", id)
	}
	return nil
}

func (s *Storage) CountWorkItemsForNIT(ctx context.Context, nitID int) (int, error) {
	var count int
	err := s.readWithRetry(ctx, func(ctx context.Context) error {
		return s.db.GetContext(ctx, &count,
			`SELECT COUNT(1) FROM work_item WHERE nit_id=$1`, nitID)
	})
	return count, err
}
