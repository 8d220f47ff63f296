package handlers

import (
	"net/http"
	"time"

	"procure/db"
	"procure/internal/evaluation"
	"procure/internal/lifecycle"
	"procure/internal/money"
)

type submitBidRequest struct {
	AgencyName  string     `json:"agencyName" validate:"required,max=200"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
}

// SubmitBidHandler handles POST /api/work-items/{workItemId}/bids. Bids
// are accepted only while the tender is still published, before the
// technical bids have been opened.
func (h *Handler) SubmitBidHandler(w http.ResponseWriter, r *http.Request) {
	workItemID, ok := pathID(r, "workItemId")
	if !ok {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "invalid workItemId")
		return
	}
	var req submitBidRequest
	if !h.decode(w, r, &req) {
		return
	}

	item, err := h.Store.GetWorkItem(r.Context(), workItemID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if item.TenderStatus != lifecycle.StatusPublished {
		h.writeError(w, lifecycle.NewInvalidTransition(item.TenderStatus, "submit bid"))
		return
	}

	submittedAt := time.Now().UTC()
	if req.SubmittedAt != nil {
		submittedAt = *req.SubmittedAt
	}
	bid := &db.Bid{
		WorkItemID:  workItemID,
		AgencyName:  req.AgencyName,
		SubmittedAt: submittedAt,
	}
	if err := h.Store.CreateBid(r.Context(), bid); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, bid)
}

// ListBidsHandler handles GET /api/work-items/{workItemId}/bids.
func (h *Handler) ListBidsHandler(w http.ResponseWriter, r *http.Request) {
	workItemID, ok := pathID(r, "workItemId")
	if !ok {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "invalid workItemId")
		return
	}
	bids, err := h.Store.ListBidsForWorkItem(r.Context(), workItemID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, bids)
}

type saveEvaluationRequest struct {
	evaluation.Checklist
	Remarks string `json:"remarks" validate:"max=2000"`
}

type evaluationResponse struct {
	*db.TechnicalEvaluation
	MissingItems []string `json:"missingItems,omitempty"`
}

// SaveEvaluationHandler handles PUT /api/bids/{bidId}/evaluation. The
// checklist can be re-saved until the evaluation phase is closed; the
// qualify verdict is always derived from the checklist, never accepted
// from the client.
func (h *Handler) SaveEvaluationHandler(w http.ResponseWriter, r *http.Request) {
	bidID, ok := pathID(r, "bidId")
	if !ok {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "invalid bidId")
		return
	}
	var req saveEvaluationRequest
	if !h.decode(w, r, &req) {
		return
	}

	bid, err := h.Store.GetBid(r.Context(), bidID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	item, err := h.Store.GetWorkItem(r.Context(), bid.WorkItemID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if item.TenderStatus != lifecycle.StatusTechnicalBidOpening {
		h.writeError(w, lifecycle.NewInvalidTransition(item.TenderStatus, "save technical evaluation"))
		return
	}

	te := &db.TechnicalEvaluation{
		BidID:     bidID,
		Checklist: req.Checklist,
		Remarks:   req.Remarks,
	}
	if err := h.Store.SaveTechnicalEvaluation(r.Context(), te); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, evaluationResponse{
		TechnicalEvaluation: te,
		MissingItems:        evaluation.MissingItems(te.Checklist),
	})
}

// GetEvaluationHandler handles GET /api/bids/{bidId}/evaluation.
func (h *Handler) GetEvaluationHandler(w http.ResponseWriter, r *http.Request) {
	bidID, ok := pathID(r, "bidId")
	if !ok {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "invalid bidId")
		return
	}
	te, err := h.Store.GetTechnicalEvaluation(r.Context(), bidID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, evaluationResponse{
		TechnicalEvaluation: te,
		MissingItems:        evaluation.MissingItems(te.Checklist),
	})
}

type setAmountRequest struct {
	Amount money.Paise `json:"amount" validate:"required"`
}

// SetBidAmountHandler handles PUT /api/bids/{bidId}/amount. Amounts are
// entered as the sealed financial bids are opened; a bid that failed the
// technical evaluation stays sealed.
func (h *Handler) SetBidAmountHandler(w http.ResponseWriter, r *http.Request) {
	bidID, ok := pathID(r, "bidId")
	if !ok {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "invalid bidId")
		return
	}
	var req setAmountRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Amount.IsNegative() {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "amount cannot be negative")
		return
	}

	bid, err := h.Store.GetBid(r.Context(), bidID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	item, err := h.Store.GetWorkItem(r.Context(), bid.WorkItemID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	// FinancialEvaluation still accepts writes so a mis-keyed amount can be
	// corrected before the award; the award path re-checks the ranking.
	if item.TenderStatus != lifecycle.StatusFinancialBidOpening &&
		item.TenderStatus != lifecycle.StatusFinancialEvaluation {
		h.writeError(w, lifecycle.NewInvalidTransition(item.TenderStatus, "record financial bid"))
		return
	}
	te, err := h.Store.GetTechnicalEvaluation(r.Context(), bidID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !te.Qualify {
		h.writeError(w, lifecycle.NewConflict(
			"bid %d did not qualify technically, its financial bid stays sealed", bidID))
		return
	}

	if err := h.Store.SetBidAmount(r.Context(), bidID, req.Amount); err != nil {
		h.writeError(w, err)
		return
	}
	bid.Amount = &req.Amount
	h.writeJSON(w, http.StatusOK, bid)
}

// ComparativeStatementHandler handles GET /api/work-items/{workItemId}/comparative-statement.
// It returns the qualified bids ranked by amount, the basis for the award.
func (h *Handler) ComparativeStatementHandler(w http.ResponseWriter, r *http.Request) {
	workItemID, ok := pathID(r, "workItemId")
	if !ok {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "invalid workItemId")
		return
	}
	bids, err := h.Store.ListBidsForEvaluation(r.Context(), workItemID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, evaluation.Rank(bids))
}
