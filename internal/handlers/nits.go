package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"procure/db"
	"procure/internal/lifecycle"
)

func parsePagination(r *http.Request) (limit, offset int) {
	limit, offset = 20, 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if l, err := strconv.Atoi(s); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if o, err := strconv.Atoi(s); err == nil && o >= 0 {
			offset = o
		}
	}
	return limit, offset
}

func pathID(r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	return id, err == nil && id > 0
}

type createNITRequest struct {
	MemoNumber              int       `json:"memoNumber" validate:"required,gt=0"`
	MemoYear                int       `json:"memoYear" validate:"required,gte=1990,lte=2100"`
	MemoDate                time.Time `json:"memoDate" validate:"required"`
	TechnicalBidOpeningDate time.Time `json:"technicalBidOpeningDate" validate:"required"`
	FinancialBidOpeningDate time.Time `json:"financialBidOpeningDate" validate:"required"`
	IsSupply                bool      `json:"isSupply"`
	DocumentRef             *string   `json:"documentRef,omitempty"`
}

// CreateNITHandler handles POST /api/nits.
func (h *Handler) CreateNITHandler(w http.ResponseWriter, r *http.Request) {
	var req createNITRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.FinancialBidOpeningDate.Before(req.TechnicalBidOpeningDate) {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY",
			"financial bid opening cannot precede technical bid opening")
		return
	}

	nit := &db.NIT{
		MemoNumber:              req.MemoNumber,
		MemoYear:                req.MemoYear,
		MemoDate:                req.MemoDate,
		TechnicalBidOpeningDate: req.TechnicalBidOpeningDate,
		FinancialBidOpeningDate: req.FinancialBidOpeningDate,
		IsSupply:                req.IsSupply,
		DocumentRef:             req.DocumentRef,
	}
	if err := h.Store.CreateNIT(r.Context(), nit); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, nit)
}

// GetNITHandler handles GET /api/nits/{nitId}.
func (h *Handler) GetNITHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "nitId")
	if !ok {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "invalid nitId")
		return
	}
	nit, err := h.Store.GetNIT(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, nit)
}

// ListNITsHandler handles GET /api/nits.
func (h *Handler) ListNITsHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	nits, err := h.Store.ListNITs(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, nits)
}

// PublishNITHandler handles POST /api/nits/{nitId}/publish.
func (h *Handler) PublishNITHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "nitId")
	if !ok {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "invalid nitId")
		return
	}
	if err := h.Store.PublishNIT(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	nit, err := h.Store.GetNIT(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, nit)
}

// DeleteNITHandler handles DELETE /api/nits/{nitId}. A NIT with attached
// work items cannot be removed.
func (h *Handler) DeleteNITHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "nitId")
	if !ok {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "invalid nitId")
		return
	}
	count, err := h.Store.CountWorkItemsForNIT(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if count > 0 {
		h.writeError(w, lifecycle.NewConflict(
			"NIT %d still has %d work items attached", id, count))
		return
	}
	if err := h.Store.DeleteNIT(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createWorkItemRequest struct {
	SerialNumber        int    `json:"serialNumber" validate:"required,gt=0"`
	ActivityDescription string `json:"activityDescription" validate:"required,max=2000"`
}

// CreateWorkItemHandler handles POST /api/nits/{nitId}/work-items. New
// work items start in Published with the work not yet in progress.
func (h *Handler) CreateWorkItemHandler(w http.ResponseWriter, r *http.Request) {
	nitID, ok := pathID(r, "nitId")
	if !ok {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "invalid nitId")
		return
	}
	var req createWorkItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	if _, err := h.Store.GetNIT(r.Context(), nitID); err != nil {
		h.writeError(w, err)
		return
	}

	item := &db.WorkItem{
		NITID:               nitID,
		SerialNumber:        req.SerialNumber,
		ActivityDescription: req.ActivityDescription,
	}
	if err := h.Store.CreateWorkItem(r.Context(), item); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, item)
}

// ListWorkItemsHandler handles GET /api/nits/{nitId}/work-items.
func (h *Handler) ListWorkItemsHandler(w http.ResponseWriter, r *http.Request) {
	nitID, ok := pathID(r, "nitId")
	if !ok {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "invalid nitId")
		return
	}
	items, err := h.Store.ListWorkItemsForNIT(r.Context(), nitID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, items)
}

// GetWorkItemHandler handles GET /api/work-items/{workItemId}.
func (h *Handler) GetWorkItemHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "workItemId")
	if !ok {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "invalid workItemId")
		return
	}
	item, err := h.Store.GetWorkItem(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, item)
}

// GetWorkItemSnapshotHandler handles GET /api/work-items/{workItemId}/snapshot.
// The snapshot is the joined view external document renderers consume.
func (h *Handler) GetWorkItemSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "workItemId")
	if !ok {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "invalid workItemId")
		return
	}
	snap, err := h.Store.GetWorkItemSnapshot(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}
