package handlers

import (
	"net/http"
	"time"

	"procure/db"
	"procure/internal/contract"
)

type awardRequest struct {
	BidID      int       `json:"bidId" validate:"required,gt=0"`
	MemoNumber string    `json:"memoNumber" validate:"required,max=100"`
	MemoDate   time.Time `json:"memoDate" validate:"required"`
	OrderKinds []string  `json:"orderKinds,omitempty" validate:"omitempty,dive,oneof=work supply"`
}

type awardResponse struct {
	Award      *db.AwardOfContract   `json:"award"`
	WorkOrders []db.WorkOrderDetails `json:"workOrders"`
}

// AwardHandler handles POST /api/work-items/{workItemId}/award. The bid
// must top the comparative statement; the manager enforces that.
func (h *Handler) AwardHandler(w http.ResponseWriter, r *http.Request) {
	workItemID, ok := pathID(r, "workItemId")
	if !ok {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "invalid workItemId")
		return
	}
	var req awardRequest
	if !h.decode(w, r, &req) {
		return
	}

	aoc, orders, err := h.Contracts.Award(r.Context(), contract.AwardInput{
		WorkItemID: workItemID,
		BidID:      req.BidID,
		MemoNumber: req.MemoNumber,
		MemoDate:   req.MemoDate,
		OrderKinds: req.OrderKinds,
		ActorID:    actorID(r),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, awardResponse{Award: aoc, WorkOrders: orders})
}

// GetAwardHandler handles GET /api/work-items/{workItemId}/award.
func (h *Handler) GetAwardHandler(w http.ResponseWriter, r *http.Request) {
	workItemID, ok := pathID(r, "workItemId")
	if !ok {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "invalid workItemId")
		return
	}
	aoc, err := h.Store.GetAwardForWorkItem(r.Context(), workItemID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	orders, err := h.Store.ListWorkOrdersForAward(r.Context(), aoc.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, awardResponse{Award: aoc, WorkOrders: orders})
}

type approveWorkRequest struct {
	CompletionDate time.Time `json:"completionDate" validate:"required"`
}

// ApproveWorkHandler handles POST /api/work-items/{workItemId}/approve-work.
func (h *Handler) ApproveWorkHandler(w http.ResponseWriter, r *http.Request) {
	workItemID, ok := pathID(r, "workItemId")
	if !ok {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "invalid workItemId")
		return
	}
	var req approveWorkRequest
	if !h.decode(w, r, &req) {
		return
	}

	item, err := h.Contracts.ApproveWork(r.Context(), workItemID, req.CompletionDate, actorID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, item)
}

type cancelWorkOrderRequest struct {
	Reason      string  `json:"reason" validate:"required,max=2000"`
	DocumentRef *string `json:"documentRef,omitempty"`
}

// CancelWorkOrderHandler handles POST /api/work-orders/{workOrderId}/cancel.
// A failed cancellation leaves a pending record; retrying the same request
// finishes it.
func (h *Handler) CancelWorkOrderHandler(w http.ResponseWriter, r *http.Request) {
	workOrderID, ok := pathID(r, "workOrderId")
	if !ok {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "invalid workOrderId")
		return
	}
	var req cancelWorkOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.Contracts.Cancel(r.Context(), contract.CancelInput{
		WorkOrderID: workOrderID,
		Reason:      req.Reason,
		DocumentRef: req.DocumentRef,
		ActorID:     actorID(r),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": db.CancellationCompleted})
}
