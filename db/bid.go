package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"procure/internal/evaluation"
	"procure/internal/lifecycle"
	"procure/internal/money"
)

// Bid is one agency's submission against a work item. The amount stays
// null until the financial bid is opened.
type Bid struct {
	ID          int          `db:"id" json:"id"`
	WorkItemID  int          `db:"work_item_id" json:"workItemId"`
	AgencyName  string       `db:"agency_name" json:"agencyName"`
	Amount      *money.Paise `db:"amount_paise" json:"amount,omitempty"`
	SubmittedAt time.Time    `db:"submitted_at" json:"submittedAt"`
	CreatedAt   time.Time    `db:"created_at" json:"createdAt"`
}

// TechnicalEvaluation stores the document checklist for a bid. The qualify
// column is always recomputed from the checklist on write; it exists in one
// row per bid, created when the evaluation is first recorded.
type TechnicalEvaluation struct {
	ID        int       `db:"id" json:"id"`
	BidID     int       `db:"bid_id" json:"bidId"`
	evaluation.Checklist
	Qualify   bool      `db:"qualify" json:"qualify"`
	Remarks   string    `db:"remarks" json:"remarks"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"-"`
}

func (s *Storage) CreateBid(ctx context.Context, b *Bid) error {
	query := `
        INSERT INTO bid (work_item_id, agency_name, submitted_at)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`
	err := s.db.QueryRowContext(ctx, query, b.WorkItemID, b.AgencyName, b.SubmittedAt).
		Scan(&b.ID, &b.CreatedAt)
	return mapConflict(err, "agency %q already bid on work item %d", b.AgencyName, b.WorkItemID)
}

func (s *Storage) GetBid(ctx context.Context, id int) (*Bid, error) {
	b := &Bid{}
	err := s.readWithRetry(ctx, func(ctx context.Context) error {
		return s.db.GetContext(ctx, b, `SELECT * FROM bid WHERE id=$1`, id)
	})
	if err != nil {
		return nil, mapNotFound(err, "bid", id)
	}
	return b, nil
}

// SetBidAmount records the financial bid once it is opened.
func (s *Storage) SetBidAmount(ctx context.Context, bidID int, amount money.Paise) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE bid SET amount_paise=$1 WHERE id=$2`, amount, bidID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return lifecycle.NewNotFound("bid", bidID)
	}
	return nil
}

// SaveTechnicalEvaluation upserts the checklist for a bid together with its
// recomputed qualify value, so the stored verdict can never go stale.
func (s *Storage) SaveTechnicalEvaluation(ctx context.Context, te *TechnicalEvaluation) error {
	te.Qualify = evaluation.Qualify(te.Checklist)
	query := `
        INSERT INTO technical_evaluation
            (bid_id, byelaw_compliance, pf_chalan, declaration, machinery_proof,
             sixty_percent_credential, prior_work_order, payment_certificate,
             completion_certificate, it_return_valid, gst_valid,
             trade_licence_valid, professional_tax_valid, qualify, remarks)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        ON CONFLICT (bid_id) DO UPDATE SET
            byelaw_compliance=EXCLUDED.byelaw_compliance,
            pf_chalan=EXCLUDED.pf_chalan,
            declaration=EXCLUDED.declaration,
            machinery_proof=EXCLUDED.machinery_proof,
            sixty_percent_credential=EXCLUDED.sixty_percent_credential,
            prior_work_order=EXCLUDED.prior_work_order,
            payment_certificate=EXCLUDED.payment_certificate,
            completion_certificate=EXCLUDED.completion_certificate,
            it_return_valid=EXCLUDED.it_return_valid,
            gst_valid=EXCLUDED.gst_valid,
            trade_licence_valid=EXCLUDED.trade_licence_valid,
            professional_tax_valid=EXCLUDED.professional_tax_valid,
            qualify=EXCLUDED.qualify,
            remarks=EXCLUDED.remarks,
            updated_at=NOW()
        RETURNING id, created_at, updated_at`
	c := te.Checklist
	return s.db.QueryRowContext(ctx, query,
		te.BidID, c.ByelawCompliance, c.PFChalan, c.Declaration, c.MachineryProof,
		c.SixtyPercentCredential, c.PriorWorkOrder, c.PaymentCertificate,
		c.CompletionCertificate, c.ITReturnValid, c.GSTValid,
		c.TradeLicenceValid, c.ProfessionalTaxValid, te.Qualify, te.Remarks).
		Scan(&te.ID, &te.CreatedAt, &te.UpdatedAt)
}

func (s *Storage) GetTechnicalEvaluation(ctx context.Context, bidID int) (*TechnicalEvaluation, error) {
	te := &TechnicalEvaluation{}
	err := s.readWithRetry(ctx, func(ctx context.Context) error {
		return s.db.GetContext(ctx, te,
			`SELECT * FROM technical_evaluation WHERE bid_id=$1`, bidID)
	})
	if err != nil {
		return nil, mapNotFound(err, "technical evaluation for bid", bidID)
	}
	return te, nil
}

// bidRow is the joined view of a bid and its optional evaluation used to
// feed the evaluation engine.
type bidRow struct {
	ID          int          `db:"id"`
	AgencyName  string       `db:"agency_name"`
	Amount      *money.Paise `db:"amount_paise"`
	SubmittedAt time.Time    `db:"submitted_at"`
	Qualify     *bool        `db:"qualify"`
}

// ListBidsForEvaluation returns the work item's bid set in the evaluation
// engine's shape: Qualified is nil while no evaluation row exists.
func (s *Storage) ListBidsForEvaluation(ctx context.Context, workItemID int) ([]evaluation.Bid, error) {
	rows := []bidRow{}
	err := s.readWithRetry(ctx, func(ctx context.Context) error {
		query := `
            SELECT b.id, b.agency_name, b.amount_paise, b.submitted_at, te.qualify
            FROM bid b
            LEFT JOIN technical_evaluation te ON te.bid_id = b.id
            WHERE b.work_item_id = $1
            ORDER BY b.submitted_at ASC, b.id ASC`
		return s.db.SelectContext(ctx, &rows, query, workItemID)
	})
	if err != nil {
		return nil, err
	}

	bids := make([]evaluation.Bid, len(rows))
	for i, r := range rows {
		bids[i] = evaluation.Bid{
			ID:          r.ID,
			Agency:      r.AgencyName,
			Amount:      r.Amount,
			Qualified:   r.Qualify,
			SubmittedAt: r.SubmittedAt,
		}
	}
	return bids, nil
}

func (s *Storage) ListBidsForWorkItem(ctx context.Context, workItemID int) ([]Bid, error) {
	bids := []Bid{}
	err := s.readWithRetry(ctx, func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &bids,
			`SELECT * FROM bid WHERE work_item_id=$1 ORDER BY submitted_at ASC, id ASC`, workItemID)
	})
	return bids, err
}

// HasEvaluation reports whether an evaluation row exists for the bid.
func (s *Storage) HasEvaluation(ctx context.Context, bidID int) (bool, error) {
	var count int
	err := s.readWithRetry(ctx, func(ctx context.Context) error {
		return s.db.GetContext(ctx, &count,
			`SELECT COUNT(1) FROM technical_evaluation WHERE bid_id=$1`, bidID)
	})
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}
	return count > 0, nil
}
