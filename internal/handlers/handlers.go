package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"procure/internal/contract"
	"procure/internal/lifecycle"
	"procure/internal/payment"
)

const maxBodyBytes = 1 << 20

// Handler wires the HTTP surface to storage and the two domain managers.
type Handler struct {
	Store     StorageInterface
	Contracts *contract.Manager
	Payments  *payment.Ledger
	Locks     *lifecycle.Locks
	Log       *zap.Logger

	validate *validator.Validate
}

func NewHandler(store StorageInterface, contracts *contract.Manager, payments *payment.Ledger, locks *lifecycle.Locks, log *zap.Logger) *Handler {
	return &Handler{
		Store:     store,
		Contracts: contracts,
		Payments:  payments,
		Locks:     locks,
		Log:       log,
		validate:  validator.New(),
	}
}

func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// actorID identifies the operator for audit fields. There is no user
// management here; the identity arrives from the reverse proxy.
func actorID(r *http.Request) string {
	if id := r.Header.Get("X-Actor-ID"); id != "" {
		return id
	}
	return "unknown"
}

// decode reads, unmarshals and validates the request body into dst.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body: "+err.Error())
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.writeErrorMessage(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.Error("encoding response", zap.Error(err))
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps domain error codes onto HTTP statuses. Unknown errors
// are logged and reported as a plain 500 without leaking internals.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var derr *lifecycle.Error
	if !errors.As(err, &derr) {
		h.Log.Error("internal error", zap.Error(err))
		h.writeErrorMessage(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	h.writeErrorMessage(w, statusForCode(derr.Code), derr.Code, derr.Message)
}

func (h *Handler) writeErrorMessage(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Code: code, Message: message})
}

func statusForCode(code string) int {
	switch code {
	case lifecycle.CodeNotFound:
		return http.StatusNotFound
	case lifecycle.CodeConflict, lifecycle.CodeInvalidTransition:
		return http.StatusConflict
	case lifecycle.CodeIncompleteEvaluation, lifecycle.CodeNoQualifiedBidders,
		lifecycle.CodeLedgerInconsistency:
		return http.StatusUnprocessableEntity
	case lifecycle.CodePartialCancellation:
		// The caller is expected to retry the same request.
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
