package evaluation

import (
	"sort"
	"strings"
	"time"

	"procure/internal/money"
)

// Bid is the evaluation engine's view of a submitted bid. Qualified is nil
// until a technical evaluation has been recorded; Amount is nil until the
// financial bid is opened.
type Bid struct {
	ID          int
	Agency      string
	Amount      *money.Paise
	Qualified   *bool
	SubmittedAt time.Time
}

// Evaluated reports whether a technical evaluation has been recorded.
func (b Bid) Evaluated() bool { return b.Qualified != nil }

// IsQualified reports whether the bid passed technical evaluation.
func (b Bid) IsQualified() bool { return b.Qualified != nil && *b.Qualified }

// RankedBid is one row of the comparative statement.
type RankedBid struct {
	Position int         `json:"position"`
	BidID    int         `json:"bidId"`
	Agency   string      `json:"agency"`
	Amount   money.Paise `json:"amount"`
}

// Rank orders the qualified, financially-opened bids for award: lowest
// amount first (works procurement), ties broken by earliest submission,
// then by case-insensitive agency name so the order is deterministic.
//
// Bids that are unqualified or still lack an amount are excluded. An empty
// result is not an error: it signals that no qualified bidders remain and
// the work item should be re-tendered.
func Rank(bids []Bid) []RankedBid {
	eligible := make([]Bid, 0, len(bids))
	for _, b := range bids {
		if b.IsQualified() && b.Amount != nil {
			eligible = append(eligible, b)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		bi, bj := eligible[i], eligible[j]
		if *bi.Amount != *bj.Amount {
			return *bi.Amount < *bj.Amount
		}
		if !bi.SubmittedAt.Equal(bj.SubmittedAt) {
			return bi.SubmittedAt.Before(bj.SubmittedAt)
		}
		return strings.ToLower(bi.Agency) < strings.ToLower(bj.Agency)
	})

	ranked := make([]RankedBid, len(eligible))
	for i, b := range eligible {
		ranked[i] = RankedBid{
			Position: i + 1,
			BidID:    b.ID,
			Agency:   b.Agency,
			Amount:   *b.Amount,
		}
	}
	return ranked
}
