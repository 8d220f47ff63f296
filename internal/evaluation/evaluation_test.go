package evaluation_test

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"procure/internal/evaluation"
	"procure/internal/money"
)

func fullChecklist() evaluation.Checklist {
	var c evaluation.Checklist
	v := reflect.ValueOf(&c).Elem()
	for i := 0; i < v.NumField(); i++ {
		v.Field(i).SetBool(true)
	}
	return c
}

func TestQualifyRequiresEveryItem(t *testing.T) {
	c := fullChecklist()
	require.True(t, evaluation.Qualify(c))
	require.Empty(t, evaluation.MissingItems(c))

	// Flipping any single field must flip the result.
	typ := reflect.TypeOf(c)
	for i := 0; i < typ.NumField(); i++ {
		flipped := c
		reflect.ValueOf(&flipped).Elem().Field(i).SetBool(false)
		require.False(t, evaluation.Qualify(flipped), typ.Field(i).Name)
		require.Len(t, evaluation.MissingItems(flipped), 1, typ.Field(i).Name)
	}
}

func TestQualifyEmptyChecklist(t *testing.T) {
	var c evaluation.Checklist
	require.False(t, evaluation.Qualify(c))
	require.Len(t, evaluation.MissingItems(c), reflect.TypeOf(c).NumField())
}

func amt(p money.Paise) *money.Paise { return &p }

func qualified(v bool) *bool { return &v }

func TestRankLowestAmountWins(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	bids := []evaluation.Bid{
		{ID: 1, Agency: "Alpha Constructions", Amount: amt(10000000), Qualified: qualified(true), SubmittedAt: base},
		{ID: 2, Agency: "Beta Builders", Amount: amt(9500000), Qualified: qualified(true), SubmittedAt: base.Add(time.Hour)},
	}

	ranked := evaluation.Rank(bids)
	require.Len(t, ranked, 2)
	require.Equal(t, 2, ranked[0].BidID)
	require.Equal(t, money.Paise(9500000), ranked[0].Amount)
	require.Equal(t, 1, ranked[0].Position)
	require.Equal(t, 1, ranked[1].BidID)
	require.Equal(t, 2, ranked[1].Position)
}

func TestRankExcludesUnqualifiedAndUnopened(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	bids := []evaluation.Bid{
		// Lowest bid, but failed a checklist item.
		{ID: 1, Agency: "Lowball", Amount: amt(1000), Qualified: qualified(false), SubmittedAt: base},
		// Qualified, but financial bid not opened yet.
		{ID: 2, Agency: "Unopened", Qualified: qualified(true), SubmittedAt: base},
		// Not yet evaluated.
		{ID: 3, Agency: "Pending", Amount: amt(2000), SubmittedAt: base},
		{ID: 4, Agency: "Valid", Amount: amt(3000), Qualified: qualified(true), SubmittedAt: base},
	}

	ranked := evaluation.Rank(bids)
	require.Len(t, ranked, 1)
	require.Equal(t, 4, ranked[0].BidID)
}

func TestRankTieBreaks(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	bids := []evaluation.Bid{
		{ID: 1, Agency: "Zeta", Amount: amt(5000), Qualified: qualified(true), SubmittedAt: base.Add(time.Minute)},
		{ID: 2, Agency: "Alpha", Amount: amt(5000), Qualified: qualified(true), SubmittedAt: base},
		{ID: 3, Agency: "beta", Amount: amt(5000), Qualified: qualified(true), SubmittedAt: base.Add(time.Minute)},
	}

	// Earlier submission wins the tie; equal timestamps fall back to the
	// case-insensitive agency name.
	ranked := evaluation.Rank(bids)
	require.Equal(t, []int{2, 3, 1}, []int{ranked[0].BidID, ranked[1].BidID, ranked[2].BidID})
}

func TestRankIsDeterministic(t *testing.T) {
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	bids := []evaluation.Bid{
		{ID: 1, Agency: "A", Amount: amt(5000), Qualified: qualified(true), SubmittedAt: base},
		{ID: 2, Agency: "B", Amount: amt(5000), Qualified: qualified(true), SubmittedAt: base},
		{ID: 3, Agency: "C", Amount: amt(4000), Qualified: qualified(true), SubmittedAt: base},
	}

	first := evaluation.Rank(bids)
	for range 50 {
		require.Equal(t, first, evaluation.Rank(bids))
	}
}

func TestRankEmptyQualifiedSet(t *testing.T) {
	bids := []evaluation.Bid{
		{ID: 1, Agency: "A", Amount: amt(5000), Qualified: qualified(false)},
	}
	require.Empty(t, evaluation.Rank(bids))
	require.Empty(t, evaluation.Rank(nil))
}
