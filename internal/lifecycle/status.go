package lifecycle

// TenderStatus is the tender-side lifecycle state of a work item. It is the
// single source of truth: child entities (bids, award, payment) may only
// exist as a consequence of the status, never as a substitute for it.
type TenderStatus string

const (
	StatusPublished           TenderStatus = "Published"
	StatusTechnicalBidOpening TenderStatus = "TechnicalBidOpening"
	StatusFinancialBidOpening TenderStatus = "FinancialBidOpening"
	StatusFinancialEvaluation TenderStatus = "FinancialEvaluation"
	StatusAOC                 TenderStatus = "AOC"
)

// IsValid checks if the status is a known TenderStatus.
func (s TenderStatus) IsValid() bool {
	switch s {
	case StatusPublished, StatusTechnicalBidOpening, StatusFinancialBidOpening,
		StatusFinancialEvaluation, StatusAOC:
		return true
	}
	return false
}

func (s TenderStatus) String() string { return string(s) }

// WorkStatus is the execution-side status of a work item. It only carries
// meaning once TenderStatus has reached AOC; before that it stays at its
// default, WorkApproved (approved action plan, work not started).
type WorkStatus string

const (
	WorkApproved   WorkStatus = "Approved"
	WorkInProgress WorkStatus = "WorkInProgress"
	WorkBillPaid   WorkStatus = "BillPaid"
)

// IsValid checks if the status is a known WorkStatus.
func (s WorkStatus) IsValid() bool {
	switch s {
	case WorkApproved, WorkInProgress, WorkBillPaid:
		return true
	}
	return false
}

func (s WorkStatus) String() string { return string(s) }
