package store

import (
	"errors"
	"testing"

	"agrimarket/internal/core"
	apperrors "agrimarket/pkg/errors"

	"github.com/shopspring/decimal"
)

func testBid(id, listingID string, qty int64, status core.BidStatus) core.Bid {
	return core.Bid{
		ID:           id,
		ListingID:    listingID,
		BuyerID:      "b1",
		Quantity:     decimal.NewFromInt(qty),
		PricePerUnit: decimal.RequireFromString("19.50"),
		Status:       status,
	}
}

func TestBidIndex_ReplaceForListing(t *testing.T) {
	idx := NewBidIndex()
	err := idx.ReplaceForListing("lst-1", []core.Bid{
		testBid("bid-1", "lst-1", 30, core.BidStatusPending),
		testBid("bid-2", "lst-1", 20, core.BidStatusPending),
	})
	if err != nil {
		t.Fatalf("ReplaceForListing failed: %v", err)
	}

	// Wholesale replace drops entries missing from the new set
	err = idx.ReplaceForListing("lst-1", []core.Bid{
		testBid("bid-2", "lst-1", 20, core.BidStatusPending),
	})
	if err != nil {
		t.Fatalf("ReplaceForListing failed: %v", err)
	}
	if _, ok := idx.Get("lst-1", "bid-1"); ok {
		t.Error("Stale bid survived a wholesale replace")
	}
}

func TestBidIndex_ReplaceRejectsForeignBids(t *testing.T) {
	idx := NewBidIndex()
	err := idx.ReplaceForListing("lst-1", []core.Bid{
		testBid("bid-1", "lst-2", 30, core.BidStatusPending),
	})
	if !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition for foreign bid, got %v", err)
	}
}

func TestBidIndex_BidNeverChangesListing(t *testing.T) {
	idx := NewBidIndex()
	if err := idx.Apply(testBid("bid-1", "lst-1", 30, core.BidStatusPending)); err != nil {
		t.Fatalf("Apply failed: %v", err)
	}

	err := idx.Apply(testBid("bid-1", "lst-2", 30, core.BidStatusPending))
	if !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition when listing id changes, got %v", err)
	}
}

func TestBidIndex_TerminalTransitions(t *testing.T) {
	idx := NewBidIndex()
	_ = idx.Apply(testBid("bid-1", "lst-1", 30, core.BidStatusPending))

	if _, err := idx.ApplyStatus("lst-1", "bid-1", core.BidStatusAccepted); err != nil {
		t.Fatalf("pending -> accepted failed: %v", err)
	}

	// Re-applying the same terminal status is a no-op
	if _, err := idx.ApplyStatus("lst-1", "bid-1", core.BidStatusAccepted); err != nil {
		t.Errorf("Re-applying current status should succeed, got %v", err)
	}

	// accepted -> rejected is forbidden and leaves the bid unchanged
	_, err := idx.ApplyStatus("lst-1", "bid-1", core.BidStatusRejected)
	if !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Errorf("Expected ErrInvalidTransition, got %v", err)
	}
	bid, _ := idx.Get("lst-1", "bid-1")
	if bid.Status != core.BidStatusAccepted {
		t.Errorf("Bid mutated by failed transition: %s", bid.Status)
	}
}

func TestBidIndex_UnknownBid(t *testing.T) {
	idx := NewBidIndex()
	_ = idx.ReplaceForListing("lst-1", nil)

	if _, err := idx.ApplyStatus("lst-1", "bid-404", core.BidStatusAccepted); !errors.Is(err, apperrors.ErrUnknownBid) {
		t.Errorf("Expected ErrUnknownBid, got %v", err)
	}
	if _, err := idx.ApplyStatus("lst-404", "bid-1", core.BidStatusAccepted); !errors.Is(err, apperrors.ErrUnknownBid) {
		t.Errorf("Expected ErrUnknownBid for unknown listing, got %v", err)
	}
}

func TestBidIndex_QuantityAccepted(t *testing.T) {
	idx := NewBidIndex()
	_ = idx.ReplaceForListing("lst-1", []core.Bid{
		testBid("bid-1", "lst-1", 30, core.BidStatusAccepted),
		testBid("bid-2", "lst-1", 20, core.BidStatusAccepted),
		testBid("bid-3", "lst-1", 50, core.BidStatusPending),
		testBid("bid-4", "lst-1", 10, core.BidStatusRejected),
	})

	got := idx.QuantityAccepted("lst-1")
	if !got.Equal(decimal.NewFromInt(50)) {
		t.Errorf("Expected accepted total 50, got %s", got)
	}
	if n := idx.CountPending("lst-1"); n != 1 {
		t.Errorf("Expected 1 pending, got %d", n)
	}
	if !idx.QuantityAccepted("lst-unknown").IsZero() {
		t.Error("Unknown listing should sum to zero")
	}
}
