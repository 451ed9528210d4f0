// Package mock provides an in-memory marketplace used by the lifecycle
// tests. It behaves like the remote service: it owns the authoritative
// documents, assigns identifiers, and reduces available quantity when a
// bid is accepted. Failure injection and response shaping hooks let the
// tests exercise the reconciliation paths.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"agrimarket/internal/core"
	apperrors "agrimarket/pkg/errors"

	"github.com/shopspring/decimal"
)

// Marketplace is an in-memory core.IMarketplace.
type Marketplace struct {
	mu       sync.Mutex
	listings map[string]core.Listing
	bids     map[string]core.Bid
	nextID   int

	// failures maps an operation name to an error returned on the next
	// call; one-shot unless Sticky is set via FailAlways.
	failures map[string]failure

	// InlineListing controls whether AcceptBid embeds the updated
	// listing document in its response. When false the client must
	// fetch the listing again itself.
	InlineListing bool

	// MutateAccept, when set, rewrites the accept response before it is
	// returned. Tests use it to simulate a misbehaving service.
	MutateAccept func(res *core.AcceptResult)

	// Calls counts requests per operation name.
	Calls map[string]int
}

type failure struct {
	err    error
	sticky bool
}

// NewMarketplace returns an empty marketplace with listing inlining on,
// matching the production service's accept response.
func NewMarketplace() *Marketplace {
	return &Marketplace{
		listings:      make(map[string]core.Listing),
		bids:          make(map[string]core.Bid),
		failures:      make(map[string]failure),
		InlineListing: true,
		Calls:         make(map[string]int),
	}
}

// FailWith makes the next call to op fail with err.
func (m *Marketplace) FailWith(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = failure{err: err}
}

// FailAlways makes every call to op fail with err until cleared.
func (m *Marketplace) FailAlways(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[op] = failure{err: err, sticky: true}
}

// ClearFailures removes all injected failures.
func (m *Marketplace) ClearFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = make(map[string]failure)
}

// SeedListing stores a listing document directly, bypassing CreateListing.
func (m *Marketplace) SeedListing(l core.Listing) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[l.ID] = l
}

// SeedBid stores a bid document directly.
func (m *Marketplace) SeedBid(b core.Bid) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bids[b.ID] = b
}

// Listing returns the server-side copy of a listing.
func (m *Marketplace) Listing(id string) (core.Listing, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	return l, ok
}

func (m *Marketplace) gate(op string) error {
	m.Calls[op]++
	f, ok := m.failures[op]
	if !ok {
		return nil
	}
	if !f.sticky {
		delete(m.failures, op)
	}
	return f.err
}

func (m *Marketplace) ListListings(_ context.Context, ownerID string) ([]core.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.gate("ListListings"); err != nil {
		return nil, err
	}

	var out []core.Listing
	for _, l := range m.listings {
		if l.OwnerID == ownerID && l.Status == core.ListingStatusListed {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *Marketplace) CreateListing(_ context.Context, ownerID string, draft core.ListingDraft) (core.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.gate("CreateListing"); err != nil {
		return core.Listing{}, err
	}

	m.nextID++
	now := time.Now().UTC()
	l := core.Listing{
		ID:                fmt.Sprintf("srv-lst-%d", m.nextID),
		OwnerID:           ownerID,
		CropType:          draft.CropType,
		PricePerUnit:      draft.PricePerUnit,
		TotalQuantity:     draft.TotalQuantity,
		AvailableQuantity: draft.TotalQuantity,
		Status:            core.ListingStatusListed,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	m.listings[l.ID] = l
	return l, nil
}

func (m *Marketplace) CancelListing(_ context.Context, ownerID, listingID string) (core.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.gate("CancelListing"); err != nil {
		return core.Listing{}, err
	}

	l, ok := m.listings[listingID]
	if !ok {
		return core.Listing{}, fmt.Errorf("%w: status 404: listing not found", apperrors.ErrRemote)
	}
	if l.OwnerID != ownerID {
		return core.Listing{}, fmt.Errorf("%w: status 403: not the listing owner", apperrors.ErrRemote)
	}
	l.Status = core.ListingStatusCancelled
	l.UpdatedAt = time.Now().UTC()
	m.listings[listingID] = l
	return l, nil
}

func (m *Marketplace) ListBids(_ context.Context, _ string, listingID string) ([]core.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.gate("ListBids"); err != nil {
		return nil, err
	}

	var out []core.Bid
	for _, b := range m.bids {
		if b.ListingID == listingID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *Marketplace) AcceptBid(_ context.Context, ownerID, bidID string) (core.AcceptResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.gate("AcceptBid"); err != nil {
		return core.AcceptResult{}, err
	}

	b, ok := m.bids[bidID]
	if !ok {
		return core.AcceptResult{}, fmt.Errorf("%w: status 404: bid not found", apperrors.ErrRemote)
	}
	l, ok := m.listings[b.ListingID]
	if !ok || l.OwnerID != ownerID {
		return core.AcceptResult{}, fmt.Errorf("%w: status 403: not the listing owner", apperrors.ErrRemote)
	}
	if b.Status != core.BidStatusPending {
		return core.AcceptResult{}, fmt.Errorf("%w: status 409: bid already %s", apperrors.ErrRemote, b.Status)
	}
	if b.Quantity.GreaterThan(l.AvailableQuantity) {
		return core.AcceptResult{}, fmt.Errorf("%w: status 409: bid exceeds available quantity", apperrors.ErrRemote)
	}

	now := time.Now().UTC()
	b.Status = core.BidStatusAccepted
	b.UpdatedAt = now
	m.bids[bidID] = b

	l.AvailableQuantity = l.AvailableQuantity.Sub(b.Quantity).Round(2)
	if l.AvailableQuantity.LessThan(decimal.Zero) {
		l.AvailableQuantity = decimal.Zero
	}
	l.UpdatedAt = now
	m.listings[l.ID] = l

	res := core.AcceptResult{Bid: b}
	if m.InlineListing {
		copied := l
		res.Listing = &copied
	}
	if m.MutateAccept != nil {
		m.MutateAccept(&res)
	}
	return res, nil
}

func (m *Marketplace) RejectBid(_ context.Context, ownerID, bidID string) (core.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.gate("RejectBid"); err != nil {
		return core.Bid{}, err
	}

	b, ok := m.bids[bidID]
	if !ok {
		return core.Bid{}, fmt.Errorf("%w: status 404: bid not found", apperrors.ErrRemote)
	}
	l, ok := m.listings[b.ListingID]
	if !ok || l.OwnerID != ownerID {
		return core.Bid{}, fmt.Errorf("%w: status 403: not the listing owner", apperrors.ErrRemote)
	}
	if b.Status != core.BidStatusPending {
		return core.Bid{}, fmt.Errorf("%w: status 409: bid already %s", apperrors.ErrRemote, b.Status)
	}

	b.Status = core.BidStatusRejected
	b.UpdatedAt = time.Now().UTC()
	m.bids[bidID] = b
	return b, nil
}
