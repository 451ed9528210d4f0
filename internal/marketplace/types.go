package marketplace

import (
	"encoding/json"
	"fmt"
	"time"

	"agrimarket/internal/core"

	"github.com/shopspring/decimal"
)

// The service stores listings and bids as Appwrite-style documents:
// metadata fields are prefixed with '$', business fields are snake_case,
// and list responses arrive wrapped in a "documents" envelope.

type listingDocument struct {
	ID                string      `json:"$id"`
	CropType          string      `json:"crop_type"`
	PricePerUnit      json.Number `json:"price_per_kg"`
	TotalQuantity     json.Number `json:"total_quantity"`
	AvailableQuantity json.Number `json:"available_quantity"`
	Status            string      `json:"status"`
	FarmerID          string      `json:"farmer_id"`
	CreatedAt         string      `json:"$createdAt"`
	UpdatedAt         string      `json:"$updatedAt"`
}

type bidDocument struct {
	ID           string      `json:"$id"`
	ListingID    string      `json:"listing_id"`
	BuyerID      string      `json:"buyer_id"`
	Quantity     json.Number `json:"quantity"`
	PricePerUnit json.Number `json:"price_per_kg"`
	Status       string      `json:"status"`
	CreatedAt    string      `json:"$createdAt"`
	UpdatedAt    string      `json:"$updatedAt"`
}

type listingList struct {
	Documents []listingDocument `json:"documents"`
}

type bidList struct {
	Documents []bidDocument `json:"documents"`
}

// acceptDocument is the accept response: the updated bid document with,
// on some service versions, the updated listing inlined alongside it.
type acceptDocument struct {
	bidDocument
	Listing *listingDocument `json:"listing"`
}

type errorBody struct {
	Message string `json:"message"`
}

// createListingRequest is the POST /listing payload. Quantities travel
// as JSON numbers with the decimal places preserved.
type createListingRequest struct {
	CropType      string      `json:"crop_type"`
	PricePerUnit  json.Number `json:"price_per_kg"`
	TotalQuantity json.Number `json:"total_quantity"`
}

func toListing(doc listingDocument) (core.Listing, error) {
	if doc.ID == "" {
		return core.Listing{}, fmt.Errorf("listing document without $id")
	}

	status := core.ListingStatus(doc.Status)
	if !status.Valid() {
		return core.Listing{}, fmt.Errorf("listing %s: unknown status %q", doc.ID, doc.Status)
	}

	price, err := parseDecimal("price_per_kg", doc.PricePerUnit)
	if err != nil {
		return core.Listing{}, fmt.Errorf("listing %s: %w", doc.ID, err)
	}
	total, err := parseDecimal("total_quantity", doc.TotalQuantity)
	if err != nil {
		return core.Listing{}, fmt.Errorf("listing %s: %w", doc.ID, err)
	}
	available, err := parseDecimal("available_quantity", doc.AvailableQuantity)
	if err != nil {
		return core.Listing{}, fmt.Errorf("listing %s: %w", doc.ID, err)
	}

	return core.Listing{
		ID:                doc.ID,
		OwnerID:           doc.FarmerID,
		CropType:          doc.CropType,
		PricePerUnit:      price,
		TotalQuantity:     total,
		AvailableQuantity: available,
		Status:            status,
		CreatedAt:         parseTimestamp(doc.CreatedAt),
		UpdatedAt:         parseTimestamp(doc.UpdatedAt),
	}, nil
}

func toBid(doc bidDocument) (core.Bid, error) {
	if doc.ID == "" {
		return core.Bid{}, fmt.Errorf("bid document without $id")
	}
	if doc.ListingID == "" {
		return core.Bid{}, fmt.Errorf("bid %s: missing listing_id", doc.ID)
	}

	status := core.BidStatus(doc.Status)
	if !status.Valid() {
		return core.Bid{}, fmt.Errorf("bid %s: unknown status %q", doc.ID, doc.Status)
	}

	quantity, err := parseDecimal("quantity", doc.Quantity)
	if err != nil {
		return core.Bid{}, fmt.Errorf("bid %s: %w", doc.ID, err)
	}
	price, err := parseDecimal("price_per_kg", doc.PricePerUnit)
	if err != nil {
		return core.Bid{}, fmt.Errorf("bid %s: %w", doc.ID, err)
	}

	return core.Bid{
		ID:           doc.ID,
		ListingID:    doc.ListingID,
		BuyerID:      doc.BuyerID,
		Quantity:     quantity,
		PricePerUnit: price,
		Status:       status,
		CreatedAt:    parseTimestamp(doc.CreatedAt),
		UpdatedAt:    parseTimestamp(doc.UpdatedAt),
	}, nil
}

func parseDecimal(field string, n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Decimal{}, fmt.Errorf("missing %s", field)
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("malformed %s %q: %w", field, n.String(), err)
	}
	return d, nil
}

// parseTimestamp tolerates absent timestamps; they are display metadata,
// not part of any invariant.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
