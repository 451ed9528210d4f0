// Package store holds the local mirrors of server-authoritative
// marketplace state. Mutation happens only through the lifecycle
// controller; reads may happen concurrently and always observe whole
// records, never partially-applied ones.
package store

import (
	"fmt"
	"sort"
	"sync"

	"agrimarket/internal/core"
	apperrors "agrimarket/pkg/errors"
)

// ListingRepository mirrors the signed-in farmer's listings, keyed by
// server-assigned identifier. Records are stored by value so readers get
// stable copies.
type ListingRepository struct {
	mu       sync.RWMutex
	listings map[string]core.Listing
}

// NewListingRepository creates an empty repository.
func NewListingRepository() *ListingRepository {
	return &ListingRepository{
		listings: make(map[string]core.Listing),
	}
}

// ReplaceAll swaps the whole snapshot for the given listings. Used after
// a successful load; a failed load must never call this, so the prior
// snapshot survives fetch failures untouched.
func (r *ListingRepository) ReplaceAll(listings []core.Listing) {
	next := make(map[string]core.Listing, len(listings))
	for _, l := range listings {
		next[l.ID] = l
	}

	r.mu.Lock()
	r.listings = next
	r.mu.Unlock()
}

// Insert adds a listing returned by a successful create call.
func (r *ListingRepository) Insert(l core.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.listings[l.ID]; exists {
		return fmt.Errorf("%w: listing %s", apperrors.ErrDuplicateID, l.ID)
	}
	r.listings[l.ID] = l
	return nil
}

// Apply replaces a single record with a server-acknowledged document,
// adding it if absent.
func (r *ListingRepository) Apply(l core.Listing) {
	r.mu.Lock()
	r.listings[l.ID] = l
	r.mu.Unlock()
}

// MarkCancelled transitions a listing to cancelled. It is idempotent:
// a listing that is already cancelled stays cancelled.
func (r *ListingRepository) MarkCancelled(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.listings[id]
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrUnknownListing, id)
	}
	if l.Status == core.ListingStatusCancelled {
		return nil
	}
	l.Status = core.ListingStatusCancelled
	r.listings[id] = l
	return nil
}

// Get returns a copy of one listing.
func (r *ListingRepository) Get(id string) (core.Listing, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.listings[id]
	return l, ok
}

// All returns copies of every known listing, ordered by creation time
// then id for stable presentation.
func (r *ListingRepository) All() []core.Listing {
	r.mu.RLock()
	out := make([]core.Listing, 0, len(r.listings))
	for _, l := range r.listings {
		out = append(out, l)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// CountListed returns how many listings are currently in listed state.
func (r *ListingRepository) CountListed() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, l := range r.listings {
		if l.Status == core.ListingStatusListed {
			n++
		}
	}
	return n
}
