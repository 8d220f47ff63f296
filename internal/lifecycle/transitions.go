package lifecycle

import (
	"time"

	"procure/internal/evaluation"
)

// The functions in this file are pure decision functions: they inspect the
// current state and the bid set and either return the next status or a
// typed error naming the failed precondition. Persistence, locking, and
// event emission are the caller's job.

// OpenTechnicalBids validates Published -> TechnicalBidOpening. The NIT's
// technical bid opening date must have been reached.
func OpenTechnicalBids(current TenderStatus, technicalOpeningDate, now time.Time) (TenderStatus, error) {
	if current != StatusPublished {
		return current, NewInvalidTransition(current, "open technical bids")
	}
	if now.Before(technicalOpeningDate) {
		return current, NewError(CodeInvalidTransition,
			"technical bid opening date %s has not been reached", technicalOpeningDate.Format("2006-01-02"))
	}
	return StatusTechnicalBidOpening, nil
}

// CloseTechnicalEvaluation validates TechnicalBidOpening ->
// FinancialBidOpening. Every bid on the work item must have a recorded
// technical evaluation.
func CloseTechnicalEvaluation(current TenderStatus, bids []evaluation.Bid) (TenderStatus, error) {
	if current != StatusTechnicalBidOpening {
		return current, NewInvalidTransition(current, "close technical evaluation")
	}
	pending := 0
	for _, b := range bids {
		if !b.Evaluated() {
			pending++
		}
	}
	if pending > 0 {
		return current, NewError(CodeIncompleteEvaluation,
			"%d of %d bids still lack a technical evaluation", pending, len(bids))
	}
	return StatusFinancialBidOpening, nil
}

// OpenFinancialEvaluation validates FinancialBidOpening ->
// FinancialEvaluation. Every qualified bid must have a financial amount.
func OpenFinancialEvaluation(current TenderStatus, bids []evaluation.Bid) (TenderStatus, error) {
	if current != StatusFinancialBidOpening {
		return current, NewInvalidTransition(current, "open financial evaluation")
	}
	qualified, missing := 0, 0
	for _, b := range bids {
		if !b.IsQualified() {
			continue
		}
		qualified++
		if b.Amount == nil {
			missing++
		}
	}
	if missing > 0 {
		return current, NewError(CodeIncompleteEvaluation,
			"%d of %d qualified bids still lack a financial amount", missing, qualified)
	}
	return StatusFinancialEvaluation, nil
}

// Retender validates FinancialEvaluation -> Published. It is only legal
// when the ranking is empty, i.e. no qualified bidders remain.
func Retender(current TenderStatus, bids []evaluation.Bid) (TenderStatus, error) {
	if current != StatusFinancialEvaluation {
		return current, NewInvalidTransition(current, "re-tender")
	}
	if len(evaluation.Rank(bids)) > 0 {
		return current, NewError(CodeConflict,
			"cannot re-tender: qualified bidders are available, award or cancel instead")
	}
	return StatusPublished, nil
}

// ReadyForAward validates that an award may be made from the current state.
func ReadyForAward(current TenderStatus) error {
	if current != StatusFinancialEvaluation {
		return NewInvalidTransition(current, "award the contract")
	}
	return nil
}

// ApproveWork validates recording work completion: only an in-progress
// awarded work item can be approved.
func ApproveWork(ts TenderStatus, ws WorkStatus) (WorkStatus, error) {
	if ts != StatusAOC {
		return ws, NewInvalidTransition(ts, "approve work")
	}
	if ws != WorkInProgress {
		return ws, NewError(CodeInvalidTransition,
			"cannot approve work while work status is %s", ws)
	}
	return WorkApproved, nil
}

// CanCertifyBill validates that a bill may be certified against the work
// item: the contract must be awarded and the work approved (interim bills
// may follow a first paid bill).
func CanCertifyBill(ts TenderStatus, ws WorkStatus) error {
	if ts != StatusAOC {
		return NewInvalidTransition(ts, "certify a bill")
	}
	if ws != WorkApproved && ws != WorkBillPaid {
		return NewError(CodeInvalidTransition,
			"cannot certify a bill while work status is %s", ws)
	}
	return nil
}
