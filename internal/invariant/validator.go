// Package invariant provides the pure consistency checks run after
// every reconciliation. Violations are reported, never auto-corrected:
// a breach means the local mirror has diverged from the server and the
// caller must resynchronize with a fresh fetch.
package invariant

import (
	"fmt"

	"agrimarket/internal/core"

	"github.com/shopspring/decimal"
)

// Kind identifies which invariant a violation breaches.
type Kind string

const (
	KindQuantityBound     Kind = "quantity_bound"
	KindAvailableMismatch Kind = "available_mismatch"
	KindCancelledMutation Kind = "cancelled_mutation"
)

// QuantityTolerance absorbs rounding in the available-quantity equality
// check; the service preserves two decimal places.
var QuantityTolerance = decimal.RequireFromString("0.01")

// Violation describes a detected breach of a marketplace invariant.
type Violation struct {
	Kind      Kind
	ListingID string
	Detail    string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s on listing %s: %s", v.Kind, v.ListingID, v.Detail)
}

// CheckQuantityBound verifies that the accepted bid quantities for a
// listing never exceed its total quantity.
func CheckQuantityBound(listing core.Listing, bids []core.Bid) *Violation {
	accepted := acceptedTotal(bids)
	if accepted.GreaterThan(listing.TotalQuantity) {
		return &Violation{
			Kind:      KindQuantityBound,
			ListingID: listing.ID,
			Detail: fmt.Sprintf("accepted quantity %s exceeds total %s",
				accepted, listing.TotalQuantity),
		}
	}
	return nil
}

// CheckAvailableQuantity verifies availableQuantity == totalQuantity -
// sum(accepted bid quantities) within the rounding tolerance. The server
// value is trusted but asserted; a mismatch is an integration defect.
func CheckAvailableQuantity(listing core.Listing, bids []core.Bid) *Violation {
	expected := listing.TotalQuantity.Sub(acceptedTotal(bids))
	diff := listing.AvailableQuantity.Sub(expected).Abs()
	if diff.GreaterThan(QuantityTolerance) {
		return &Violation{
			Kind:      KindAvailableMismatch,
			ListingID: listing.ID,
			Detail: fmt.Sprintf("available %s, expected %s (diff %s)",
				listing.AvailableQuantity, expected, diff),
		}
	}
	return nil
}

// CheckListingMutable guards mutation of a cancelled listing. Used as a
// precondition before any request is sent, so the attempt fails fast and
// never reaches the network.
func CheckListingMutable(listing core.Listing) *Violation {
	if listing.Status == core.ListingStatusCancelled {
		return &Violation{
			Kind:      KindCancelledMutation,
			ListingID: listing.ID,
			Detail:    "listing is cancelled; no further transitions permitted",
		}
	}
	return nil
}

// CheckAll runs the post-reconciliation checks for one listing and its
// bids, returning every violation found.
func CheckAll(listing core.Listing, bids []core.Bid) []Violation {
	var out []Violation
	if v := CheckQuantityBound(listing, bids); v != nil {
		out = append(out, *v)
	}
	if v := CheckAvailableQuantity(listing, bids); v != nil {
		out = append(out, *v)
	}
	return out
}

func acceptedTotal(bids []core.Bid) decimal.Decimal {
	total := decimal.Zero
	for _, b := range bids {
		if b.Status == core.BidStatusAccepted {
			total = total.Add(b.Quantity)
		}
	}
	return total
}
