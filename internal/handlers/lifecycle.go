package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"procure/db"
	"procure/internal/evaluation"
	"procure/internal/lifecycle"
)

// transition runs one tender status move under the work item lock: load,
// decide with the pure function, persist with the version CAS.
func (h *Handler) transition(ctx context.Context, workItemID int, event string,
	decide func(item *db.WorkItem, bids []evaluation.Bid) (lifecycle.TenderStatus, error)) (*db.WorkItem, error) {

	release := h.Locks.Acquire(workItemID)
	defer release()

	item, err := h.Store.GetWorkItem(ctx, workItemID)
	if err != nil {
		return nil, err
	}
	bids, err := h.Store.ListBidsForEvaluation(ctx, workItemID)
	if err != nil {
		return nil, err
	}
	next, err := decide(item, bids)
	if err != nil {
		return nil, err
	}
	item.TenderStatus = next
	if err := h.Store.UpdateWorkItemStatus(ctx, item); err != nil {
		return nil, err
	}

	h.Log.Info("tender status moved",
		zap.Int("work_item_id", workItemID),
		zap.String("event", event),
		zap.String("status", string(next)))
	return item, nil
}

// OpenTechnicalBidsHandler handles POST /api/work-items/{workItemId}/open-technical-bids.
func (h *Handler) OpenTechnicalBidsHandler(w http.ResponseWriter, r *http.Request) {
	workItemID, ok := pathID(r, "workItemId")
	if !ok {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "invalid workItemId")
		return
	}
	item, err := h.transition(r.Context(), workItemID, "open-technical-bids",
		func(item *db.WorkItem, _ []evaluation.Bid) (lifecycle.TenderStatus, error) {
			nit, err := h.Store.GetNIT(r.Context(), item.NITID)
			if err != nil {
				return item.TenderStatus, err
			}
			return lifecycle.OpenTechnicalBids(item.TenderStatus,
				nit.TechnicalBidOpeningDate, time.Now().UTC())
		})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, item)
}

// CloseTechnicalEvaluationHandler handles POST /api/work-items/{workItemId}/close-technical-evaluation.
// Every bid must carry an evaluation before the financial bids open.
func (h *Handler) CloseTechnicalEvaluationHandler(w http.ResponseWriter, r *http.Request) {
	workItemID, ok := pathID(r, "workItemId")
	if !ok {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "invalid workItemId")
		return
	}
	item, err := h.transition(r.Context(), workItemID, "close-technical-evaluation",
		func(item *db.WorkItem, bids []evaluation.Bid) (lifecycle.TenderStatus, error) {
			return lifecycle.CloseTechnicalEvaluation(item.TenderStatus, bids)
		})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, item)
}

// OpenFinancialEvaluationHandler handles POST /api/work-items/{workItemId}/open-financial-evaluation.
func (h *Handler) OpenFinancialEvaluationHandler(w http.ResponseWriter, r *http.Request) {
	workItemID, ok := pathID(r, "workItemId")
	if !ok {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "invalid workItemId")
		return
	}
	item, err := h.transition(r.Context(), workItemID, "open-financial-evaluation",
		func(item *db.WorkItem, bids []evaluation.Bid) (lifecycle.TenderStatus, error) {
			return lifecycle.OpenFinancialEvaluation(item.TenderStatus, bids)
		})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, item)
}

// RetenderHandler handles POST /api/work-items/{workItemId}/retender. Only
// a work item left without qualified bidders goes back out to tender.
func (h *Handler) RetenderHandler(w http.ResponseWriter, r *http.Request) {
	workItemID, ok := pathID(r, "workItemId")
	if !ok {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "invalid workItemId")
		return
	}
	item, err := h.transition(r.Context(), workItemID, "retender",
		func(item *db.WorkItem, bids []evaluation.Bid) (lifecycle.TenderStatus, error) {
			return lifecycle.Retender(item.TenderStatus, bids)
		})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, item)
}
