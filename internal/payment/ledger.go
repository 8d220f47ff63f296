package payment

import (
	"context"
	"time"

	"go.uber.org/zap"

	"procure/db"
	"procure/internal/gateway"
	"procure/internal/lifecycle"
	"procure/internal/money"
)

// securityDepositMonths is the statutory holding period after work
// completion before the withheld deposit matures.
const securityDepositMonths = 6

// Store is the persistence surface the ledger needs.
type Store interface {
	GetWorkItem(ctx context.Context, id int) (*db.WorkItem, error)
	CreatePaymentRecord(ctx context.Context, rec *db.PaymentRecord, deductions []db.StatutoryDeduction, deposit *db.SecurityDeposit, item *db.WorkItem) error
}

// Ledger certifies bills: it computes statutory deductions, the net
// payable amount, and the security-deposit maturity date, and persists all
// sub-ledgers atomically with the payment record.
type Ledger struct {
	store  Store
	notify gateway.Notifier
	locks  *lifecycle.Locks
	log    *zap.Logger
}

func NewLedger(store Store, notify gateway.Notifier, locks *lifecycle.Locks, log *zap.Logger) *Ledger {
	return &Ledger{store: store, notify: notify, locks: locks, log: log}
}

// BillInput is one certified bill as entered by the operator. Deduction
// amounts come certified from the bill; the ledger validates them and
// computes the net.
type BillInput struct {
	BillType           string
	BillDate           time.Time
	Gross              money.Paise
	IncomeTax          money.Paise
	LabourWelfareCess  money.Paise
	TDSCGST            money.Paise
	TDSSGST            money.Paise
	SecurityDeposit    money.Paise
	WorkCompletionDate *time.Time
	ActorID            string
}

// MaturityDate adds the statutory holding period in calendar months,
// clamping to the last day when the target month is shorter: six months
// after 31 January is 31 July, six months after 31 August is the last day
// of February.
func MaturityDate(from time.Time) time.Time {
	firstOfTarget := time.Date(from.Year(), from.Month()+securityDepositMonths, 1,
		0, 0, 0, 0, from.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	day := from.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day,
		0, 0, 0, 0, from.Location())
}

// CertifyBill validates and persists one bill against a billable work
// item. A final bill records the completion date and moves the work item
// to BillPaid; an interim bill leaves it billable.
func (l *Ledger) CertifyBill(ctx context.Context, workItemID int, in BillInput) (*db.PaymentRecord, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	release := l.locks.Acquire(workItemID)
	defer release()

	item, err := l.store.GetWorkItem(ctx, workItemID)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.CanCertifyBill(item.TenderStatus, item.WorkStatus); err != nil {
		return nil, err
	}

	// Maturity runs from work completion; fall back to the bill payment
	// date when no completion has been recorded yet.
	completion := in.WorkCompletionDate
	if completion == nil {
		completion = item.CompletionDate
	}
	maturityFrom := in.BillDate
	if completion != nil {
		maturityFrom = *completion
	}

	net := in.Gross - in.IncomeTax - in.LabourWelfareCess - in.TDSCGST - in.TDSSGST - in.SecurityDeposit

	rec := &db.PaymentRecord{
		WorkItemID:         workItemID,
		BillType:           in.BillType,
		BillDate:           in.BillDate,
		GrossAmount:        in.Gross,
		NetAmount:          net,
		WorkCompletionDate: completion,
		ActorID:            in.ActorID,
	}
	deductions := []db.StatutoryDeduction{
		{Kind: db.DeductionIncomeTax, Amount: in.IncomeTax},
		{Kind: db.DeductionLabourWelfareCess, Amount: in.LabourWelfareCess},
		{Kind: db.DeductionTDSCGST, Amount: in.TDSCGST},
		{Kind: db.DeductionTDSSGST, Amount: in.TDSSGST},
	}
	deposit := &db.SecurityDeposit{
		Amount:       in.SecurityDeposit,
		MaturityDate: MaturityDate(maturityFrom),
	}

	if in.BillType == db.BillTypeFinal {
		done := maturityFrom
		item.CompletionDate = &done
		item.WorkStatus = lifecycle.WorkBillPaid
	}

	if err := l.store.CreatePaymentRecord(ctx, rec, deductions, deposit, item); err != nil {
		return nil, err
	}

	l.log.Info("bill certified",
		zap.Int("work_item_id", workItemID),
		zap.String("bill_type", in.BillType),
		zap.String("gross", in.Gross.String()),
		zap.String("net", net.String()),
		zap.String("actor_id", in.ActorID))
	l.notify.OnBillCertified(*item, *rec)
	return rec, nil
}

func validate(in BillInput) error {
	if in.BillType != db.BillTypeInterim && in.BillType != db.BillTypeFinal {
		return lifecycle.NewError(lifecycle.CodeConflict,
			"bill type must be %q or %q", db.BillTypeInterim, db.BillTypeFinal)
	}
	deducted := money.Paise(0)
	for _, p := range []money.Paise{in.Gross, in.IncomeTax, in.LabourWelfareCess,
		in.TDSCGST, in.TDSSGST, in.SecurityDeposit} {
		if p.IsNegative() {
			return lifecycle.NewError(lifecycle.CodeLedgerInconsistency,
				"bill amounts cannot be negative")
		}
	}
	for _, p := range []money.Paise{in.IncomeTax, in.LabourWelfareCess,
		in.TDSCGST, in.TDSSGST, in.SecurityDeposit} {
		deducted += p
	}
	if deducted > in.Gross {
		return lifecycle.NewError(lifecycle.CodeLedgerInconsistency,
			"deductions %s exceed the gross bill amount %s", deducted, in.Gross)
	}
	return nil
}
