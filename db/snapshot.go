package db

import (
	"context"

	"procure/internal/lifecycle"
)

// WorkItemSnapshot is the read-only joined view handed to external document
// renderers (completion certificates, work-order printouts). The core never
// formats printable output itself.
type WorkItemSnapshot struct {
	WorkItem   WorkItem             `json:"workItem"`
	NIT        NIT                  `json:"nit"`
	Bids       []Bid                `json:"bids"`
	Award      *AwardOfContract     `json:"award,omitempty"`
	WorkOrders []WorkOrderDetails   `json:"workOrders,omitempty"`
	Payment    *PaymentRecord       `json:"payment,omitempty"`
	Deductions []StatutoryDeduction `json:"deductions,omitempty"`
	Deposit    *SecurityDeposit     `json:"securityDeposit,omitempty"`
}

// GetWorkItemSnapshot assembles the renderer view. Missing child entities
// are simply absent; only the work item itself is required.
func (s *Storage) GetWorkItemSnapshot(ctx context.Context, workItemID int) (*WorkItemSnapshot, error) {
	item, err := s.GetWorkItem(ctx, workItemID)
	if err != nil {
		return nil, err
	}
	nit, err := s.GetNIT(ctx, item.NITID)
	if err != nil {
		return nil, err
	}
	bids, err := s.ListBidsForWorkItem(ctx, workItemID)
	if err != nil {
		return nil, err
	}

	snap := &WorkItemSnapshot{WorkItem: *item, NIT: *nit, Bids: bids}

	aoc, err := s.GetAwardForWorkItem(ctx, workItemID)
	switch {
	case err == nil:
		snap.Award = aoc
		orders, err := s.ListWorkOrdersForAward(ctx, aoc.ID)
		if err != nil {
			return nil, err
		}
		snap.WorkOrders = orders
	case !lifecycle.IsCode(err, lifecycle.CodeNotFound):
		return nil, err
	}

	payment, err := s.LatestPaymentForWorkItem(ctx, workItemID)
	if err != nil {
		return nil, err
	}
	if payment != nil {
		snap.Payment = payment
		deds, err := s.ListDeductions(ctx, payment.ID)
		if err != nil {
			return nil, err
		}
		snap.Deductions = deds
		sd, err := s.GetSecurityDeposit(ctx, payment.ID)
		if err != nil {
			if !lifecycle.IsCode(err, lifecycle.CodeNotFound) {
				return nil, err
			}
		} else {
			snap.Deposit = sd
		}
	}
	return snap, nil
}
