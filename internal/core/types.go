package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// ListingStatus is the lifecycle state of a crop listing.
type ListingStatus string

const (
	ListingStatusListed    ListingStatus = "listed"
	ListingStatusCancelled ListingStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed from this status.
func (s ListingStatus) Terminal() bool {
	return s == ListingStatusCancelled
}

// Valid reports whether the status is one the service is allowed to emit.
func (s ListingStatus) Valid() bool {
	return s == ListingStatusListed || s == ListingStatusCancelled
}

// BidStatus is the lifecycle state of a bid. Pending is the only
// non-terminal state.
type BidStatus string

const (
	BidStatusPending  BidStatus = "pending"
	BidStatusAccepted BidStatus = "accepted"
	BidStatusRejected BidStatus = "rejected"
)

// Terminal reports whether no further transitions are allowed from this status.
func (s BidStatus) Terminal() bool {
	return s == BidStatusAccepted || s == BidStatusRejected
}

// Valid reports whether the status is one the service is allowed to emit.
func (s BidStatus) Valid() bool {
	return s == BidStatusPending || s == BidStatusAccepted || s == BidStatusRejected
}

// Listing is a farmer's offer to sell a fixed quantity of a crop at a
// given price. All fields are server-authoritative; the client never
// invents identifiers or quantities.
type Listing struct {
	ID                string
	OwnerID           string
	CropType          string
	PricePerUnit      decimal.Decimal
	TotalQuantity     decimal.Decimal
	AvailableQuantity decimal.Decimal
	Status            ListingStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Bid is a buyer's offer to purchase some quantity from a specific
// listing at a buyer-chosen price. ListingID never changes for the
// lifetime of the bid.
type Bid struct {
	ID           string
	ListingID    string
	BuyerID      string
	Quantity     decimal.Decimal
	PricePerUnit decimal.Decimal
	Status       BidStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ListingDraft carries the caller-supplied fields for a create request.
// The service assigns the identifier, status and available quantity.
type ListingDraft struct {
	CropType      string
	PricePerUnit  decimal.Decimal
	TotalQuantity decimal.Decimal
}

// AcceptResult is the outcome of an accept call. The service sometimes
// inlines the updated listing (reduced available quantity) and sometimes
// does not; Listing is nil in the latter case and the caller must
// re-fetch before trusting local quantities.
type AcceptResult struct {
	Bid     Bid
	Listing *Listing
}
