package store

import (
	"fmt"
	"sort"
	"sync"

	"agrimarket/internal/core"
	apperrors "agrimarket/pkg/errors"

	"github.com/shopspring/decimal"
)

// BidIndex groups bids by listing identifier. Each listing's bid set is
// loaded lazily and replaced wholesale, never merged, so stale entries
// cannot be resurrected by a partial fetch.
type BidIndex struct {
	mu        sync.RWMutex
	byListing map[string]map[string]core.Bid
	homes     map[string]string // bid id -> listing id, pinned for the bid's lifetime
}

// NewBidIndex creates an empty index.
func NewBidIndex() *BidIndex {
	return &BidIndex{
		byListing: make(map[string]map[string]core.Bid),
		homes:     make(map[string]string),
	}
}

// ReplaceForListing swaps the whole bid set for one listing.
func (b *BidIndex) ReplaceForListing(listingID string, bids []core.Bid) error {
	next := make(map[string]core.Bid, len(bids))
	for _, bid := range bids {
		if bid.ListingID != listingID {
			return fmt.Errorf("%w: bid %s belongs to listing %s, not %s",
				apperrors.ErrInvalidTransition, bid.ID, bid.ListingID, listingID)
		}
		next[bid.ID] = bid
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for id := range b.byListing[listingID] {
		delete(b.homes, id)
	}
	b.byListing[listingID] = next
	for id := range next {
		b.homes[id] = listingID
	}
	return nil
}

// Apply replaces a single bid with a server-acknowledged document. A bid
// may never move between listings.
func (b *BidIndex) Apply(bid core.Bid) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if home, ok := b.homes[bid.ID]; ok && home != bid.ListingID {
		return fmt.Errorf("%w: bid %s pinned to listing %s, got %s",
			apperrors.ErrInvalidTransition, bid.ID, home, bid.ListingID)
	}

	set, ok := b.byListing[bid.ListingID]
	if !ok {
		set = make(map[string]core.Bid)
		b.byListing[bid.ListingID] = set
	}
	set[bid.ID] = bid
	b.homes[bid.ID] = bid.ListingID
	return nil
}

// ApplyStatus transitions a bid's status. Re-applying the current status
// is a no-op; any other transition out of a terminal state fails and
// leaves the bid unchanged.
func (b *BidIndex) ApplyStatus(listingID, bidID string, status core.BidStatus) (core.Bid, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.byListing[listingID]
	if !ok {
		return core.Bid{}, fmt.Errorf("%w: listing %s", apperrors.ErrUnknownBid, listingID)
	}
	bid, ok := set[bidID]
	if !ok {
		return core.Bid{}, fmt.Errorf("%w: %s", apperrors.ErrUnknownBid, bidID)
	}

	if bid.Status == status {
		return bid, nil
	}
	if bid.Status.Terminal() {
		return core.Bid{}, fmt.Errorf("%w: bid %s is %s, cannot become %s",
			apperrors.ErrInvalidTransition, bidID, bid.Status, status)
	}

	bid.Status = status
	set[bidID] = bid
	return bid, nil
}

// Get returns a copy of one bid.
func (b *BidIndex) Get(listingID, bidID string) (core.Bid, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	bid, ok := b.byListing[listingID][bidID]
	return bid, ok
}

// BidsFor returns copies of the bids for one listing, oldest first.
func (b *BidIndex) BidsFor(listingID string) []core.Bid {
	b.mu.RLock()
	out := make([]core.Bid, 0, len(b.byListing[listingID]))
	for _, bid := range b.byListing[listingID] {
		out = append(out, bid)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// QuantityAccepted sums the quantities of accepted bids for one listing.
func (b *BidIndex) QuantityAccepted(listingID string) decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := decimal.Zero
	for _, bid := range b.byListing[listingID] {
		if bid.Status == core.BidStatusAccepted {
			total = total.Add(bid.Quantity)
		}
	}
	return total
}

// CountPending returns the number of pending bids for one listing.
func (b *BidIndex) CountPending(listingID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, bid := range b.byListing[listingID] {
		if bid.Status == core.BidStatusPending {
			n++
		}
	}
	return n
}
