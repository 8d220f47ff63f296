package db

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"procure/internal/lifecycle"
	"procure/internal/money"
)

// Statutory deduction kinds. Each certified bill carries exactly one
// sub-ledger row per kind.
const (
	DeductionIncomeTax         = "income_tax"
	DeductionLabourWelfareCess = "labour_welfare_cess"
	DeductionTDSCGST           = "tds_cgst"
	DeductionTDSSGST           = "tds_sgst"
)

// Bill types.
const (
	BillTypeInterim = "Interim Bill"
	BillTypeFinal   = "Final Bill"
)

// PaymentRecord is one certified bill against a work item.
type PaymentRecord struct {
	ID                 int         `db:"id" json:"id"`
	WorkItemID         int         `db:"work_item_id" json:"workItemId"`
	BillType           string      `db:"bill_type" json:"billType"`
	BillDate           time.Time   `db:"bill_date" json:"billDate"`
	GrossAmount        money.Paise `db:"gross_amount_paise" json:"grossAmount"`
	NetAmount          money.Paise `db:"net_amount_paise" json:"netAmount"`
	WorkCompletionDate *time.Time  `db:"work_completion_date" json:"workCompletionDate,omitempty"`
	ActorID            string      `db:"actor_id" json:"actorId"`
	CreatedAt          time.Time   `db:"created_at" json:"createdAt"`
}

// StatutoryDeduction is one statutory sub-ledger row of a payment record.
type StatutoryDeduction struct {
	ID              int         `db:"id" json:"id"`
	PaymentRecordID int         `db:"payment_record_id" json:"paymentRecordId"`
	Kind            string      `db:"kind" json:"kind"`
	Amount          money.Paise `db:"amount_paise" json:"amount"`
	Paid            bool        `db:"paid" json:"paid"`
}

// SecurityDeposit is the withheld-deposit sub-ledger of a payment record.
// The amount is released after the maturity date, not forfeited.
type SecurityDeposit struct {
	ID              int         `db:"id" json:"id"`
	PaymentRecordID int         `db:"payment_record_id" json:"paymentRecordId"`
	Amount          money.Paise `db:"amount_paise" json:"amount"`
	MaturityDate    time.Time   `db:"maturity_date" json:"maturityDate"`
	Paid            bool        `db:"paid" json:"paid"`
}

// CreatePaymentRecord writes the payment record, its four statutory
// sub-ledgers, the security deposit, and the work item's status move in a
// single transaction. Either everything lands or nothing does; a partially
// created ledger never stays attached to the work item.
func (s *Storage) CreatePaymentRecord(ctx context.Context, rec *PaymentRecord, deductions []StatutoryDeduction, deposit *SecurityDeposit, item *WorkItem) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
            INSERT INTO payment_record
                (work_item_id, bill_type, bill_date, gross_amount_paise,
                 net_amount_paise, work_completion_date, actor_id)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
            RETURNING id, created_at`
		err := tx.QueryRowContext(ctx, query,
			rec.WorkItemID, rec.BillType, rec.BillDate, rec.GrossAmount,
			rec.NetAmount, rec.WorkCompletionDate, rec.ActorID).
			Scan(&rec.ID, &rec.CreatedAt)
		if err != nil {
			return lifecycle.WrapError(lifecycle.CodeLedgerInconsistency, err,
				"payment record for work item %d could not be created", rec.WorkItemID)
		}

		for i := range deductions {
			deductions[i].PaymentRecordID = rec.ID
			query := `
                INSERT INTO statutory_deduction (payment_record_id, kind, amount_paise, paid)
                VALUES ($1, $2, $3, $4)
                RETURNING id`
			err := tx.QueryRowContext(ctx, query,
				deductions[i].PaymentRecordID, deductions[i].Kind,
				deductions[i].Amount, deductions[i].Paid).
				Scan(&deductions[i].ID)
			if err != nil {
				return lifecycle.WrapError(lifecycle.CodeLedgerInconsistency, err,
					"%s sub-ledger could not be created", deductions[i].Kind)
			}
		}

		deposit.PaymentRecordID = rec.ID
		err = tx.QueryRowContext(ctx, `
            INSERT INTO security_deposit (payment_record_id, amount_paise, maturity_date, paid)
            VALUES ($1, $2, $3, $4)
            RETURNING id`,
			deposit.PaymentRecordID, deposit.Amount, deposit.MaturityDate, deposit.Paid).
			Scan(&deposit.ID)
		if err != nil {
			return lifecycle.WrapError(lifecycle.CodeLedgerInconsistency, err,
				"security deposit sub-ledger could not be created")
		}

		return s.updateStatus(ctx, tx, item)
	})
}

func (s *Storage) GetPaymentRecord(ctx context.Context, id int) (*PaymentRecord, error) {
	rec := &PaymentRecord{}
	err := s.readWithRetry(ctx, func(ctx context.Context) error {
		return s.db.GetContext(ctx, rec, `SELECT * FROM payment_record WHERE id=$1`, id)
	})
	if err != nil {
		return nil, mapNotFound(err, "payment record", id)
	}
	return rec, nil
}

// LatestPaymentForWorkItem returns the most recent certified bill for the
// work item, or nil when none exists.
func (s *Storage) LatestPaymentForWorkItem(ctx context.Context, workItemID int) (*PaymentRecord, error) {
	recs := []PaymentRecord{}
	err := s.readWithRetry(ctx, func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &recs, `
            SELECT * FROM payment_record
            WHERE work_item_id=$1
            ORDER BY id DESC LIMIT 1`, workItemID)
	})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

func (s *Storage) ListDeductions(ctx context.Context, paymentRecordID int) ([]StatutoryDeduction, error) {
	deds := []StatutoryDeduction{}
	err := s.readWithRetry(ctx, func(ctx context.Context) error {
		return s.db.SelectContext(ctx, &deds,
			`SELECT * FROM statutory_deduction WHERE payment_record_id=$1 ORDER BY kind ASC`, paymentRecordID)
	})
	return deds, err
}

func (s *Storage) GetSecurityDeposit(ctx context.Context, paymentRecordID int) (*SecurityDeposit, error) {
	sd := &SecurityDeposit{}
	err := s.readWithRetry(ctx, func(ctx context.Context) error {
		return s.db.GetContext(ctx, sd,
			`SELECT * FROM security_deposit WHERE payment_record_id=$1`, paymentRecordID)
	})
	if err != nil {
		return nil, mapNotFound(err, "security deposit for payment record", paymentRecordID)
	}
	return sd, nil
}
