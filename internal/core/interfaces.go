// Package core defines the domain types and collaborator interfaces for
// the marketplace lifecycle client.
package core

import "context"

// IMarketplace is the boundary to the remote marketplace service, the
// source of truth for listings and bids. Every method maps to a single
// HTTP request; implementations must not retry mutating calls.
type IMarketplace interface {
	// ListListings fetches all listings owned by ownerID that are still listed.
	ListListings(ctx context.Context, ownerID string) ([]Listing, error)

	// CreateListing submits a new listing and returns the created document.
	CreateListing(ctx context.Context, ownerID string, draft ListingDraft) (Listing, error)

	// CancelListing cancels a listing and returns the acknowledged document.
	CancelListing(ctx context.Context, ownerID, listingID string) (Listing, error)

	// ListBids fetches all bids placed against one listing.
	ListBids(ctx context.Context, ownerID, listingID string) ([]Bid, error)

	// AcceptBid accepts a pending bid as the listing owner.
	AcceptBid(ctx context.Context, ownerID, bidID string) (AcceptResult, error)

	// RejectBid rejects a pending bid as the listing owner.
	RejectBid(ctx context.Context, ownerID, bidID string) (Bid, error)
}

// ILogger defines the interface for structured logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
