package handlers

import (
	"net/http"
	"time"

	"procure/db"
	"procure/internal/money"
	"procure/internal/payment"
)

type certifyBillRequest struct {
	BillType           string      `json:"billType" validate:"required,oneof='Interim Bill' 'Final Bill'"`
	BillDate           time.Time   `json:"billDate" validate:"required"`
	Gross              money.Paise `json:"gross" validate:"required"`
	IncomeTax          money.Paise `json:"incomeTax"`
	LabourWelfareCess  money.Paise `json:"labourWelfareCess"`
	TDSCGST            money.Paise `json:"tdsCgst"`
	TDSSGST            money.Paise `json:"tdsSgst"`
	SecurityDeposit    money.Paise `json:"securityDeposit"`
	WorkCompletionDate *time.Time  `json:"workCompletionDate,omitempty"`
}

// CertifyBillHandler handles POST /api/work-items/{workItemId}/bills. The
// ledger computes the net and the deposit maturity and persists everything
// in one transaction.
func (h *Handler) CertifyBillHandler(w http.ResponseWriter, r *http.Request) {
	workItemID, ok := pathID(r, "workItemId")
	if !ok {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "invalid workItemId")
		return
	}
	var req certifyBillRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.Payments.CertifyBill(r.Context(), workItemID, payment.BillInput{
		BillType:           req.BillType,
		BillDate:           req.BillDate,
		Gross:              req.Gross,
		IncomeTax:          req.IncomeTax,
		LabourWelfareCess:  req.LabourWelfareCess,
		TDSCGST:            req.TDSCGST,
		TDSSGST:            req.TDSSGST,
		SecurityDeposit:    req.SecurityDeposit,
		WorkCompletionDate: req.WorkCompletionDate,
		ActorID:            actorID(r),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, rec)
}

type paymentView struct {
	Record     *db.PaymentRecord       `json:"record"`
	Deductions []db.StatutoryDeduction `json:"deductions"`
	Deposit    *db.SecurityDeposit     `json:"securityDeposit,omitempty"`
}

// GetPaymentHandler handles GET /api/work-items/{workItemId}/payment: the
// latest certified bill with its deduction sub-ledgers.
func (h *Handler) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	workItemID, ok := pathID(r, "workItemId")
	if !ok {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "invalid workItemId")
		return
	}
	rec, err := h.Store.LatestPaymentForWorkItem(r.Context(), workItemID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if rec == nil {
		h.writeErrorMessage(w, http.StatusNotFound, "NOT_FOUND",
			"no certified bill on this work item yet")
		return
	}

	deductions, err := h.Store.ListDeductions(r.Context(), rec.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	deposit, err := h.Store.GetSecurityDeposit(r.Context(), rec.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, paymentView{Record: rec, Deductions: deductions, Deposit: deposit})
}
