package invariant

import (
	"testing"

	"agrimarket/internal/core"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listing(total, available string) core.Listing {
	return core.Listing{
		ID:                "lst-1",
		Status:            core.ListingStatusListed,
		TotalQuantity:     decimal.RequireFromString(total),
		AvailableQuantity: decimal.RequireFromString(available),
	}
}

func bid(qty string, status core.BidStatus) core.Bid {
	return core.Bid{
		ID:        "bid",
		ListingID: "lst-1",
		Quantity:  decimal.RequireFromString(qty),
		Status:    status,
	}
}

func TestCheckQuantityBound(t *testing.T) {
	l := listing("100", "40")

	ok := []core.Bid{bid("30", core.BidStatusAccepted), bid("30", core.BidStatusAccepted), bid("90", core.BidStatusPending)}
	assert.Nil(t, CheckQuantityBound(l, ok), "pending bids must not count toward the bound")

	over := []core.Bid{bid("60", core.BidStatusAccepted), bid("50", core.BidStatusAccepted)}
	v := CheckQuantityBound(l, over)
	require.NotNil(t, v)
	assert.Equal(t, KindQuantityBound, v.Kind)
	assert.Equal(t, "lst-1", v.ListingID)
}

func TestCheckQuantityBound_ExactFillIsLegal(t *testing.T) {
	l := listing("100", "0")
	bids := []core.Bid{bid("100", core.BidStatusAccepted)}
	assert.Nil(t, CheckQuantityBound(l, bids))
}

func TestCheckAvailableQuantity(t *testing.T) {
	l := listing("100", "70")

	bids := []core.Bid{bid("30", core.BidStatusAccepted)}
	assert.Nil(t, CheckAvailableQuantity(l, bids))

	// Within the 0.01 rounding tolerance
	l.AvailableQuantity = decimal.RequireFromString("70.01")
	assert.Nil(t, CheckAvailableQuantity(l, bids))

	// Beyond tolerance: the mirror has diverged
	l.AvailableQuantity = decimal.RequireFromString("70.02")
	v := CheckAvailableQuantity(l, bids)
	require.NotNil(t, v)
	assert.Equal(t, KindAvailableMismatch, v.Kind)
}

func TestCheckListingMutable(t *testing.T) {
	l := listing("100", "100")
	assert.Nil(t, CheckListingMutable(l))

	l.Status = core.ListingStatusCancelled
	v := CheckListingMutable(l)
	require.NotNil(t, v)
	assert.Equal(t, KindCancelledMutation, v.Kind)
}

func TestCheckAll_CollectsEveryViolation(t *testing.T) {
	l := listing("100", "90")
	bids := []core.Bid{bid("110", core.BidStatusAccepted)}

	violations := CheckAll(l, bids)
	require.Len(t, violations, 2)
	assert.Equal(t, KindQuantityBound, violations[0].Kind)
	assert.Equal(t, KindAvailableMismatch, violations[1].Kind)
}
