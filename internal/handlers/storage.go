package handlers

import (
	"context"

	"procure/db"
	"procure/internal/evaluation"
	"procure/internal/money"
)

// StorageInterface is everything the handlers read and write directly.
// Award, cancellation and bill certification go through the managers
// instead, which carry their own narrower ports.
type StorageInterface interface {
	CreateNIT(ctx context.Context, n *db.NIT) error
	GetNIT(ctx context.Context, id int) (*db.NIT, error)
	ListNITs(ctx context.Context, limit, offset int) ([]db.NIT, error)
	PublishNIT(ctx context.Context, id int) error
	DeleteNIT(ctx context.Context, id int) error
	CountWorkItemsForNIT(ctx context.Context, nitID int) (int, error)

	CreateWorkItem(ctx context.Context, w *db.WorkItem) error
	GetWorkItem(ctx context.Context, id int) (*db.WorkItem, error)
	ListWorkItemsForNIT(ctx context.Context, nitID int) ([]db.WorkItem, error)
	UpdateWorkItemStatus(ctx context.Context, w *db.WorkItem) error
	GetWorkItemSnapshot(ctx context.Context, workItemID int) (*db.WorkItemSnapshot, error)

	CreateBid(ctx context.Context, b *db.Bid) error
	GetBid(ctx context.Context, id int) (*db.Bid, error)
	SetBidAmount(ctx context.Context, bidID int, amount money.Paise) error
	SaveTechnicalEvaluation(ctx context.Context, te *db.TechnicalEvaluation) error
	GetTechnicalEvaluation(ctx context.Context, bidID int) (*db.TechnicalEvaluation, error)
	ListBidsForWorkItem(ctx context.Context, workItemID int) ([]db.Bid, error)
	ListBidsForEvaluation(ctx context.Context, workItemID int) ([]evaluation.Bid, error)

	GetAwardForWorkItem(ctx context.Context, workItemID int) (*db.AwardOfContract, error)
	ListWorkOrdersForAward(ctx context.Context, aocID int) ([]db.WorkOrderDetails, error)

	GetPaymentRecord(ctx context.Context, id int) (*db.PaymentRecord, error)
	LatestPaymentForWorkItem(ctx context.Context, workItemID int) (*db.PaymentRecord, error)
	ListDeductions(ctx context.Context, paymentRecordID int) ([]db.StatutoryDeduction, error)
	GetSecurityDeposit(ctx context.Context, paymentRecordID int) (*db.SecurityDeposit, error)
}
