package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"procure/db"
	"procure/internal/contract"
	"procure/internal/evaluation"
	"procure/internal/gateway"
	"procure/internal/handlers"
	"procure/internal/handlers/testutils"
	"procure/internal/lifecycle"
	"procure/internal/money"
	"procure/internal/payment"
)

// MockStorage implements StorageInterface plus the manager ports, backed
// by fixture fields with per-test overrides.
type MockStorage struct {
	nit  *db.NIT
	item *db.WorkItem
	bid  *db.Bid
	te   *db.TechnicalEvaluation

	createNITErr error
	deleteNITErr error

	ListBidsForEvaluationFunc func(ctx context.Context, workItemID int) ([]evaluation.Bid, error)

	createdPayment *db.PaymentRecord
}

func (m *MockStorage) CreateNIT(ctx context.Context, n *db.NIT) error {
	if m.createNITErr != nil {
		return m.createNITErr
	}
	n.ID = 1
	return nil
}

func (m *MockStorage) GetNIT(ctx context.Context, id int) (*db.NIT, error) {
	if m.nit == nil {
		return nil, lifecycle.NewNotFound("NIT", id)
	}
	cp := *m.nit
	return &cp, nil
}

func (m *MockStorage) ListNITs(ctx context.Context, limit, offset int) ([]db.NIT, error) {
	if m.nit == nil {
		return []db.NIT{}, nil
	}
	return []db.NIT{*m.nit}, nil
}

func (m *MockStorage) PublishNIT(ctx context.Context, id int) error {
	m.nit.IsPublished = true
	return nil
}

func (m *MockStorage) DeleteNIT(ctx context.Context, id int) error { return m.deleteNITErr }

func (m *MockStorage) CountWorkItemsForNIT(ctx context.Context, nitID int) (int, error) {
	if m.item != nil && m.item.NITID == nitID {
		return 1, nil
	}
	return 0, nil
}

func (m *MockStorage) CreateWorkItem(ctx context.Context, w *db.WorkItem) error {
	w.ID = 10
	w.TenderStatus = lifecycle.StatusPublished
	w.WorkStatus = lifecycle.WorkApproved
	w.Version = 1
	return nil
}

func (m *MockStorage) GetWorkItem(ctx context.Context, id int) (*db.WorkItem, error) {
	if m.item == nil || m.item.ID != id {
		return nil, lifecycle.NewNotFound("work item", id)
	}
	cp := *m.item
	return &cp, nil
}

func (m *MockStorage) ListWorkItemsForNIT(ctx context.Context, nitID int) ([]db.WorkItem, error) {
	if m.item == nil {
		return []db.WorkItem{}, nil
	}
	return []db.WorkItem{*m.item}, nil
}

func (m *MockStorage) UpdateWorkItemStatus(ctx context.Context, w *db.WorkItem) error {
	w.Version++
	cp := *w
	m.item = &cp
	return nil
}

func (m *MockStorage) GetWorkItemSnapshot(ctx context.Context, workItemID int) (*db.WorkItemSnapshot, error) {
	item, err := m.GetWorkItem(ctx, workItemID)
	if err != nil {
		return nil, err
	}
	return &db.WorkItemSnapshot{WorkItem: *item, NIT: *m.nit}, nil
}

func (m *MockStorage) CreateBid(ctx context.Context, b *db.Bid) error {
	b.ID = 21
	return nil
}

func (m *MockStorage) GetBid(ctx context.Context, id int) (*db.Bid, error) {
	if m.bid == nil || m.bid.ID != id {
		return nil, lifecycle.NewNotFound("bid", id)
	}
	cp := *m.bid
	return &cp, nil
}

func (m *MockStorage) SetBidAmount(ctx context.Context, bidID int, amount money.Paise) error {
	m.bid.Amount = &amount
	return nil
}

func (m *MockStorage) SaveTechnicalEvaluation(ctx context.Context, te *db.TechnicalEvaluation) error {
	te.ID = 31
	te.Qualify = evaluation.Qualify(te.Checklist)
	m.te = te
	return nil
}

func (m *MockStorage) GetTechnicalEvaluation(ctx context.Context, bidID int) (*db.TechnicalEvaluation, error) {
	if m.te == nil {
		return nil, lifecycle.NewNotFound("technical evaluation for bid", bidID)
	}
	return m.te, nil
}

func (m *MockStorage) ListBidsForWorkItem(ctx context.Context, workItemID int) ([]db.Bid, error) {
	if m.bid == nil {
		return []db.Bid{}, nil
	}
	return []db.Bid{*m.bid}, nil
}

func (m *MockStorage) ListBidsForEvaluation(ctx context.Context, workItemID int) ([]evaluation.Bid, error) {
	if m.ListBidsForEvaluationFunc != nil {
		return m.ListBidsForEvaluationFunc(ctx, workItemID)
	}
	return []evaluation.Bid{}, nil
}

func (m *MockStorage) GetAwardForWorkItem(ctx context.Context, workItemID int) (*db.AwardOfContract, error) {
	return nil, lifecycle.NewNotFound("award for work item", workItemID)
}

func (m *MockStorage) ListWorkOrdersForAward(ctx context.Context, aocID int) ([]db.WorkOrderDetails, error) {
	return []db.WorkOrderDetails{}, nil
}

func (m *MockStorage) GetPaymentRecord(ctx context.Context, id int) (*db.PaymentRecord, error) {
	return nil, lifecycle.NewNotFound("payment record", id)
}

func (m *MockStorage) LatestPaymentForWorkItem(ctx context.Context, workItemID int) (*db.PaymentRecord, error) {
	return m.createdPayment, nil
}

func (m *MockStorage) ListDeductions(ctx context.Context, paymentRecordID int) ([]db.StatutoryDeduction, error) {
	return []db.StatutoryDeduction{}, nil
}

func (m *MockStorage) GetSecurityDeposit(ctx context.Context, paymentRecordID int) (*db.SecurityDeposit, error) {
	return nil, lifecycle.NewNotFound("security deposit for payment", paymentRecordID)
}

// Manager ports.

func (m *MockStorage) CreateAward(ctx context.Context, aoc *db.AwardOfContract, orders []db.WorkOrderDetails, item *db.WorkItem) error {
	aoc.ID = 41
	for i := range orders {
		orders[i].ID = 51 + i
		orders[i].AOCID = aoc.ID
	}
	return m.UpdateWorkItemStatus(ctx, item)
}

func (m *MockStorage) DeriveWorkItemIDForOrder(ctx context.Context, workOrderID int) (int, error) {
	return m.item.ID, nil
}

func (m *MockStorage) CreateCancellation(ctx context.Context, c *db.WorkOrderCancellation) error {
	c.ID = 61
	return nil
}

func (m *MockStorage) GetPendingCancellation(ctx context.Context, workOrderID int) (*db.WorkOrderCancellation, error) {
	return nil, nil
}

func (m *MockStorage) SetCancellationWorkItem(ctx context.Context, cancellationID, workItemID int) error {
	return nil
}

func (m *MockStorage) MarkCancellationCompleted(ctx context.Context, cancellationID int) error {
	return nil
}

func (m *MockStorage) ReverseAward(ctx context.Context, workOrderID, workItemID int) error {
	m.item.TenderStatus = lifecycle.StatusFinancialEvaluation
	m.item.WorkStatus = lifecycle.WorkApproved
	return nil
}

func (m *MockStorage) CreatePaymentRecord(ctx context.Context, rec *db.PaymentRecord, deductions []db.StatutoryDeduction, deposit *db.SecurityDeposit, item *db.WorkItem) error {
	rec.ID = 71
	m.createdPayment = rec
	return m.UpdateWorkItemStatus(ctx, item)
}

func newTestHandler(store *MockStorage) *handlers.Handler {
	log := zap.NewNop()
	locks := lifecycle.NewLocks()
	notify := gateway.Nop{}
	contracts := contract.NewManager(store, notify, locks, log)
	payments := payment.NewLedger(store, notify, locks, log)
	return handlers.NewHandler(store, contracts, payments, locks, log)
}

func fixtureStorage() *MockStorage {
	return &MockStorage{
		nit: &db.NIT{
			ID:                      1,
			MemoNumber:              12,
			MemoYear:                2025,
			MemoDate:                time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
			TechnicalBidOpeningDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			FinancialBidOpeningDate: time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
			IsPublished:             true,
		},
		item: &db.WorkItem{
			ID:           10,
			NITID:        1,
			SerialNumber: 1,
			TenderStatus: lifecycle.StatusPublished,
			WorkStatus:   lifecycle.WorkApproved,
			Version:      1,
		},
		bid: &db.Bid{
			ID:         21,
			WorkItemID: 10,
			AgencyName: "Sharma Constructions",
		},
	}
}

func TestPingHandler(t *testing.T) {
	h := newTestHandler(fixtureStorage())
	rr := httptest.NewRecorder()
	h.PingHandler(rr, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "ok", rr.Body.String())
}

func TestCreateNITHandler(t *testing.T) {
	h := newTestHandler(fixtureStorage())

	body := `{"memoNumber":12,"memoYear":2025,"memoDate":"2025-02-01T00:00:00Z",
		"technicalBidOpeningDate":"2025-03-01T00:00:00Z",
		"financialBidOpeningDate":"2025-03-15T00:00:00Z"}`
	rr := httptest.NewRecorder()
	h.CreateNITHandler(rr, httptest.NewRequest(http.MethodPost, "/api/nits", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rr.Code)

	var nit db.NIT
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &nit))
	require.Equal(t, 1, nit.ID)
}

func TestCreateNITHandlerRejectsBadDates(t *testing.T) {
	h := newTestHandler(fixtureStorage())

	body := `{"memoNumber":12,"memoYear":2025,"memoDate":"2025-02-01T00:00:00Z",
		"technicalBidOpeningDate":"2025-03-15T00:00:00Z",
		"financialBidOpeningDate":"2025-03-01T00:00:00Z"}`
	rr := httptest.NewRecorder()
	h.CreateNITHandler(rr, httptest.NewRequest(http.MethodPost, "/api/nits", strings.NewReader(body)))
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateNITHandlerDuplicateMemo(t *testing.T) {
	store := fixtureStorage()
	store.createNITErr = lifecycle.NewConflict("memo number 12 already exists for year 2025")
	h := newTestHandler(store)

	body := `{"memoNumber":12,"memoYear":2025,"memoDate":"2025-02-01T00:00:00Z",
		"technicalBidOpeningDate":"2025-03-01T00:00:00Z",
		"financialBidOpeningDate":"2025-03-15T00:00:00Z"}`
	rr := httptest.NewRecorder()
	h.CreateNITHandler(rr, httptest.NewRequest(http.MethodPost, "/api/nits", strings.NewReader(body)))
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "CONFLICT")
}

func TestDeleteNITHandlerWithWorkItems(t *testing.T) {
	h := newTestHandler(fixtureStorage())

	req := testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodDelete, "/api/nits/1", nil),
		map[string]string{"nitId": "1"})
	rr := httptest.NewRecorder()
	h.DeleteNITHandler(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestDeleteNITHandlerAttachRace(t *testing.T) {
	// The count check passes but a work item is attached before the
	// delete lands; the foreign key rejection must come back as a 409,
	// not a bare 500.
	store := fixtureStorage()
	store.item = nil
	store.deleteNITErr = lifecycle.NewConflict("NIT 1 still has work items attached")
	h := newTestHandler(store)

	req := testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodDelete, "/api/nits/1", nil),
		map[string]string{"nitId": "1"})
	rr := httptest.NewRecorder()
	h.DeleteNITHandler(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "CONFLICT")
}

func TestSubmitBidHandler(t *testing.T) {
	h := newTestHandler(fixtureStorage())

	req := testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodPost, "/api/work-items/10/bids",
			strings.NewReader(`{"agencyName":"Verma Infra"}`)),
		map[string]string{"workItemId": "10"})
	rr := httptest.NewRecorder()
	h.SubmitBidHandler(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)
}

func TestSubmitBidHandlerAfterOpening(t *testing.T) {
	store := fixtureStorage()
	store.item.TenderStatus = lifecycle.StatusTechnicalBidOpening
	h := newTestHandler(store)

	req := testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodPost, "/api/work-items/10/bids",
			strings.NewReader(`{"agencyName":"Verma Infra"}`)),
		map[string]string{"workItemId": "10"})
	rr := httptest.NewRecorder()
	h.SubmitBidHandler(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "INVALID_TRANSITION")
}

func TestSaveEvaluationHandler(t *testing.T) {
	store := fixtureStorage()
	store.item.TenderStatus = lifecycle.StatusTechnicalBidOpening
	h := newTestHandler(store)

	// Everything present except the trade licence.
	body := `{"byelawCompliance":true,"pfChalan":true,"declaration":true,
		"machineryProof":true,"sixtyPercentCredential":true,"priorWorkOrder":true,
		"paymentCertificate":true,"completionCertificate":true,"itReturnValid":true,
		"gstValid":true,"tradeLicenceValid":false,"professionalTaxValid":true,
		"remarks":"licence expired"}`
	req := testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodPut, "/api/bids/21/evaluation", strings.NewReader(body)),
		map[string]string{"bidId": "21"})
	rr := httptest.NewRecorder()
	h.SaveEvaluationHandler(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Qualify      bool     `json:"qualify"`
		MissingItems []string `json:"missingItems"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.False(t, resp.Qualify)
	require.Equal(t, []string{"trade licence validity"}, resp.MissingItems)
}

func TestSetBidAmountHandlerSealedWhenUnqualified(t *testing.T) {
	store := fixtureStorage()
	store.item.TenderStatus = lifecycle.StatusFinancialBidOpening
	store.te = &db.TechnicalEvaluation{BidID: 21, Qualify: false}
	h := newTestHandler(store)

	req := testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodPut, "/api/bids/21/amount",
			strings.NewReader(`{"amount":"95000.00"}`)),
		map[string]string{"bidId": "21"})
	rr := httptest.NewRecorder()
	h.SetBidAmountHandler(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "stays sealed")
}

func TestSetBidAmountHandler(t *testing.T) {
	store := fixtureStorage()
	store.item.TenderStatus = lifecycle.StatusFinancialBidOpening
	store.te = &db.TechnicalEvaluation{BidID: 21, Qualify: true}
	h := newTestHandler(store)

	req := testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodPut, "/api/bids/21/amount",
			strings.NewReader(`{"amount":"95000.00"}`)),
		map[string]string{"bidId": "21"})
	rr := httptest.NewRecorder()
	h.SetBidAmountHandler(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, money.Paise(9500000), *store.bid.Amount)
}

func TestSetBidAmountHandlerCorrectionBeforeAward(t *testing.T) {
	store := fixtureStorage()
	store.item.TenderStatus = lifecycle.StatusFinancialEvaluation
	wrong := money.Paise(10500000)
	store.bid.Amount = &wrong
	store.te = &db.TechnicalEvaluation{BidID: 21, Qualify: true}
	h := newTestHandler(store)

	// A mis-keyed amount can still be fixed until the contract is awarded.
	req := testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodPut, "/api/bids/21/amount",
			strings.NewReader(`{"amount":"95000.00"}`)),
		map[string]string{"bidId": "21"})
	rr := httptest.NewRecorder()
	h.SetBidAmountHandler(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, money.Paise(9500000), *store.bid.Amount)

	// After the award the amounts are frozen.
	store.item.TenderStatus = lifecycle.StatusAOC
	req = testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodPut, "/api/bids/21/amount",
			strings.NewReader(`{"amount":"90000.00"}`)),
		map[string]string{"bidId": "21"})
	rr = httptest.NewRecorder()
	h.SetBidAmountHandler(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "INVALID_TRANSITION")
}

func TestOpenTechnicalBidsHandler(t *testing.T) {
	h := newTestHandler(fixtureStorage())

	req := testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodPost, "/api/work-items/10/open-technical-bids", nil),
		map[string]string{"workItemId": "10"})
	rr := httptest.NewRecorder()
	h.OpenTechnicalBidsHandler(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var item db.WorkItem
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &item))
	require.Equal(t, lifecycle.StatusTechnicalBidOpening, item.TenderStatus)
}

func TestOpenTechnicalBidsHandlerBeforeDate(t *testing.T) {
	store := fixtureStorage()
	store.nit.TechnicalBidOpeningDate = time.Now().UTC().Add(48 * time.Hour)
	h := newTestHandler(store)

	req := testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodPost, "/api/work-items/10/open-technical-bids", nil),
		map[string]string{"workItemId": "10"})
	rr := httptest.NewRecorder()
	h.OpenTechnicalBidsHandler(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
	require.Contains(t, rr.Body.String(), "has not been reached")
}

func TestCloseTechnicalEvaluationHandlerIncomplete(t *testing.T) {
	store := fixtureStorage()
	store.item.TenderStatus = lifecycle.StatusTechnicalBidOpening
	store.ListBidsForEvaluationFunc = func(ctx context.Context, workItemID int) ([]evaluation.Bid, error) {
		return []evaluation.Bid{{ID: 21, Agency: "Sharma Constructions"}}, nil
	}
	h := newTestHandler(store)

	req := testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodPost, "/api/work-items/10/close-technical-evaluation", nil),
		map[string]string{"workItemId": "10"})
	rr := httptest.NewRecorder()
	h.CloseTechnicalEvaluationHandler(rr, req)
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	require.Contains(t, rr.Body.String(), "INCOMPLETE_EVALUATION")
}

func TestComparativeStatementHandler(t *testing.T) {
	store := fixtureStorage()
	q := true
	lo, hi := money.Paise(9500000), money.Paise(10000000)
	store.ListBidsForEvaluationFunc = func(ctx context.Context, workItemID int) ([]evaluation.Bid, error) {
		return []evaluation.Bid{
			{ID: 21, Agency: "Sharma Constructions", Amount: &hi, Qualified: &q},
			{ID: 22, Agency: "Verma Infra", Amount: &lo, Qualified: &q},
		}, nil
	}
	h := newTestHandler(store)

	req := testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodGet, "/api/work-items/10/comparative-statement", nil),
		map[string]string{"workItemId": "10"})
	rr := httptest.NewRecorder()
	h.ComparativeStatementHandler(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var ranked []evaluation.RankedBid
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ranked))
	require.Len(t, ranked, 2)
	require.Equal(t, 22, ranked[0].BidID)
	require.Equal(t, 1, ranked[0].Position)
}

func TestAwardHandler(t *testing.T) {
	store := fixtureStorage()
	store.item.TenderStatus = lifecycle.StatusFinancialEvaluation
	q := true
	lo := money.Paise(9500000)
	store.ListBidsForEvaluationFunc = func(ctx context.Context, workItemID int) ([]evaluation.Bid, error) {
		return []evaluation.Bid{{ID: 21, Agency: "Sharma Constructions", Amount: &lo, Qualified: &q}}, nil
	}
	h := newTestHandler(store)

	body := `{"bidId":21,"memoNumber":"AOC/2025/7","memoDate":"2025-04-01T00:00:00Z"}`
	req := testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodPost, "/api/work-items/10/award", strings.NewReader(body)),
		map[string]string{"workItemId": "10"})
	req.Header.Set("X-Actor-ID", "officer-1")
	rr := httptest.NewRecorder()
	h.AwardHandler(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)
	require.Equal(t, lifecycle.StatusAOC, store.item.TenderStatus)
	require.Equal(t, lifecycle.WorkInProgress, store.item.WorkStatus)
}

func TestCertifyBillHandler(t *testing.T) {
	store := fixtureStorage()
	store.item.TenderStatus = lifecycle.StatusAOC
	store.item.WorkStatus = lifecycle.WorkApproved
	h := newTestHandler(store)

	body := `{"billType":"Final Bill","billDate":"2025-09-05T00:00:00Z",
		"gross":"95000.00","incomeTax":"1900.00","securityDeposit":"4750.00",
		"workCompletionDate":"2025-08-31T00:00:00Z"}`
	req := testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodPost, "/api/work-items/10/bills", strings.NewReader(body)),
		map[string]string{"workItemId": "10"})
	rr := httptest.NewRecorder()
	h.CertifyBillHandler(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code)

	var rec db.PaymentRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	require.Equal(t, money.Paise(8835000), rec.NetAmount)
	require.Equal(t, lifecycle.WorkBillPaid, store.item.WorkStatus)
}

func TestCertifyBillHandlerBeforeAward(t *testing.T) {
	h := newTestHandler(fixtureStorage())

	body := `{"billType":"Final Bill","billDate":"2025-09-05T00:00:00Z","gross":"95000.00"}`
	req := testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodPost, "/api/work-items/10/bills", strings.NewReader(body)),
		map[string]string{"workItemId": "10"})
	rr := httptest.NewRecorder()
	h.CertifyBillHandler(rr, req)
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestGetPaymentHandlerWithoutBill(t *testing.T) {
	h := newTestHandler(fixtureStorage())

	req := testutils.WithChiURLParams(
		httptest.NewRequest(http.MethodGet, "/api/work-items/10/payment", nil),
		map[string]string{"workItemId": "10"})
	rr := httptest.NewRecorder()
	h.GetPaymentHandler(rr, req)
	require.Equal(t, http.StatusNotFound, rr.Code)
}
