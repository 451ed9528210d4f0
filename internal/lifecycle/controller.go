// Package lifecycle orchestrates the marketplace state transitions. The
// Controller is the only component that issues mutating requests to the
// remote service: every operation runs local validation first, then the
// request, then reconciles the acknowledged response into the local
// mirrors and re-checks the quantity invariants. There is no optimistic
// mutation; listings and bids are financial commitments and local state
// changes only on the server's word.
package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"agrimarket/internal/core"
	"agrimarket/internal/invariant"
	"agrimarket/internal/store"
	apperrors "agrimarket/pkg/errors"
	"agrimarket/pkg/telemetry"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Operation names used for in-flight reporting and metrics.
const (
	OpLoad          = "load"
	OpLoadBids      = "load_bids"
	OpCreateListing = "create_listing"
	OpCancelListing = "cancel_listing"
	OpAcceptBid     = "accept_bid"
	OpRejectBid     = "reject_bid"
)

// Config carries controller settings.
type Config struct {
	OwnerID      string
	BidLoadLimit int // max concurrent per-listing bid fetches during Refresh
}

// Controller owns the listing repository and bid index for one signed-in
// farmer and serializes mutating operations per listing.
type Controller struct {
	ownerID      string
	market       core.IMarketplace
	listings     *store.ListingRepository
	bids         *store.BidIndex
	logger       core.ILogger
	metrics      *telemetry.MetricsHolder
	bidLoadLimit int

	mu       sync.Mutex
	inflight map[string]inflightOp // gate key -> operation
}

type inflightOp struct {
	Name  string
	Token string
}

// NewController creates a controller for one owner. The repositories are
// created empty; call Load to populate them.
func NewController(cfg Config, market core.IMarketplace, logger core.ILogger) *Controller {
	if cfg.BidLoadLimit <= 0 {
		cfg.BidLoadLimit = 4
	}
	return &Controller{
		ownerID:      cfg.OwnerID,
		market:       market,
		listings:     store.NewListingRepository(),
		bids:         store.NewBidIndex(),
		logger:       logger.WithField("component", "lifecycle_controller").WithField("owner", cfg.OwnerID),
		metrics:      telemetry.GetGlobalMetrics(),
		bidLoadLimit: cfg.BidLoadLimit,
	}
}

// Listings exposes the listing repository for presentation reads.
func (c *Controller) Listings() *store.ListingRepository { return c.listings }

// Bids exposes the bid index for presentation reads.
func (c *Controller) Bids() *store.BidIndex { return c.bids }

// InFlight reports whether a mutating operation is outstanding for the
// given listing, and which one. The presentation layer uses this to
// disable redundant actions while a request is pending.
func (c *Controller) InFlight(listingID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	op, ok := c.inflight[listingID]
	return op.Name, ok
}

// begin claims the mutation gate for a key. A second mutating call for
// the same listing while one is outstanding is rejected locally so two
// racing requests can never produce an undefined merge order.
func (c *Controller) begin(key, name string) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.inflight[key]; ok {
		return nil, fmt.Errorf("%w: %s busy with %s", apperrors.ErrOperationInProgress, key, cur.Name)
	}
	c.inflight[key] = inflightOp{Name: name, Token: uuid.NewString()}
	return func() {
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
	}, nil
}

func (c *Controller) ensureInflightMap() {
	c.mu.Lock()
	if c.inflight == nil {
		c.inflight = make(map[string]inflightOp)
	}
	c.mu.Unlock()
}

// Load fetches the owner's listed listings and replaces the local
// snapshot wholesale. On failure the prior snapshot is left untouched.
// Safe to call any number of times; it is an idempotent read.
func (c *Controller) Load(ctx context.Context) error {
	listings, err := c.market.ListListings(ctx, c.ownerID)
	if err != nil {
		c.metrics.RecordOperation(ctx, OpLoad, "failure")
		return fmt.Errorf("%w: %w", apperrors.ErrFetchFailed, err)
	}

	c.listings.ReplaceAll(listings)
	c.metrics.SetActiveListings(c.ownerID, int64(c.listings.CountListed()))
	c.metrics.RecordOperation(ctx, OpLoad, "success")
	c.logger.Debug("Listings reloaded", "count", len(listings))
	return nil
}

// LoadBids fetches the bids for one listing and replaces that listing's
// bid set wholesale. The listing must already be known locally.
func (c *Controller) LoadBids(ctx context.Context, listingID string) error {
	if _, ok := c.listings.Get(listingID); !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrUnknownListing, listingID)
	}

	bids, err := c.market.ListBids(ctx, c.ownerID, listingID)
	if err != nil {
		c.metrics.RecordOperation(ctx, OpLoadBids, "failure")
		return fmt.Errorf("%w: %w", apperrors.ErrFetchFailed, err)
	}

	if err := c.bids.ReplaceForListing(listingID, bids); err != nil {
		// The service returned bids claiming a different listing; the
		// set is discarded rather than applied.
		c.metrics.RecordOperation(ctx, OpLoadBids, "failure")
		return fmt.Errorf("%w: %v", apperrors.ErrIntegrityViolation, err)
	}

	c.metrics.SetPendingBids(listingID, int64(c.bids.CountPending(listingID)))
	c.metrics.RecordOperation(ctx, OpLoadBids, "success")
	return nil
}

// Refresh reloads the listings snapshot and then the bid sets of every
// known listing, fanning the per-listing fetches out concurrently.
// Independent listings are independent units of consistency, so no
// coordination between them is needed.
func (c *Controller) Refresh(ctx context.Context) error {
	if err := c.Load(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.bidLoadLimit)
	for _, l := range c.listings.All() {
		g.Go(func() error {
			return c.LoadBids(gctx, l.ID)
		})
	}
	return g.Wait()
}

// CreateListing validates the draft locally, submits it, and inserts the
// server-returned document. No identifier exists for the listing until
// the response arrives; on any failure the repository is unchanged.
func (c *Controller) CreateListing(ctx context.Context, cropType string, pricePerUnit, totalQuantity decimal.Decimal) (core.Listing, error) {
	c.ensureInflightMap()

	if strings.TrimSpace(cropType) == "" {
		return core.Listing{}, fmt.Errorf("%w: crop type is required", apperrors.ErrValidation)
	}
	if !pricePerUnit.IsPositive() {
		return core.Listing{}, fmt.Errorf("%w: price must be positive, got %s", apperrors.ErrValidation, pricePerUnit)
	}
	if !totalQuantity.IsPositive() {
		return core.Listing{}, fmt.Errorf("%w: quantity must be positive, got %s", apperrors.ErrValidation, totalQuantity)
	}

	done, err := c.begin("create:"+c.ownerID, OpCreateListing)
	if err != nil {
		return core.Listing{}, err
	}
	defer done()

	draft := core.ListingDraft{
		CropType:      strings.TrimSpace(cropType),
		PricePerUnit:  pricePerUnit,
		TotalQuantity: totalQuantity,
	}
	listing, err := c.market.CreateListing(ctx, c.ownerID, draft)
	if err != nil {
		c.metrics.RecordOperation(ctx, OpCreateListing, "failure")
		return core.Listing{}, err
	}

	if listing.Status != core.ListingStatusListed || !listing.AvailableQuantity.Equal(listing.TotalQuantity) {
		c.logger.Warn("Create response deviates from contract",
			"listing", listing.ID, "status", listing.Status,
			"available", listing.AvailableQuantity.String(), "total", listing.TotalQuantity.String())
	}

	if err := c.listings.Insert(listing); err != nil {
		c.metrics.RecordOperation(ctx, OpCreateListing, "failure")
		return core.Listing{}, err
	}

	c.metrics.SetActiveListings(c.ownerID, int64(c.listings.CountListed()))
	c.metrics.RecordOperation(ctx, OpCreateListing, "success")
	c.logger.Info("Listing created", "listing", listing.ID, "crop", listing.CropType)
	return listing, nil
}

// CancelListing cancels a listing the owner holds. Cancelling an already
// cancelled listing is a local no-op that issues no request. Local state
// moves to cancelled only on the server's acknowledgment.
func (c *Controller) CancelListing(ctx context.Context, listingID string) error {
	c.ensureInflightMap()

	listing, ok := c.listings.Get(listingID)
	if !ok {
		return fmt.Errorf("%w: %w: %s", apperrors.ErrValidation, apperrors.ErrUnknownListing, listingID)
	}
	if listing.OwnerID != c.ownerID {
		return fmt.Errorf("%w: %w: listing %s", apperrors.ErrValidation, apperrors.ErrNotOwner, listingID)
	}
	if listing.Status == core.ListingStatusCancelled {
		return nil
	}

	done, err := c.begin(listingID, OpCancelListing)
	if err != nil {
		return err
	}
	defer done()

	updated, err := c.market.CancelListing(ctx, c.ownerID, listingID)
	if err != nil {
		c.metrics.RecordOperation(ctx, OpCancelListing, "failure")
		return err
	}

	if updated.ID != listingID || updated.Status != core.ListingStatusCancelled {
		return c.integrityViolation(ctx, OpCancelListing, invariant.Violation{
			Kind:      invariant.KindCancelledMutation,
			ListingID: listingID,
			Detail:    fmt.Sprintf("cancel acknowledged with id=%s status=%s", updated.ID, updated.Status),
		})
	}

	c.listings.Apply(updated)
	c.metrics.SetActiveListings(c.ownerID, int64(c.listings.CountListed()))
	c.metrics.RecordOperation(ctx, OpCancelListing, "success")
	c.logger.Info("Listing cancelled", "listing", listingID)
	return nil
}

// AcceptBid accepts a pending bid against one of the owner's listings.
// The bid and, when inlined, the listing are reconciled from the
// acknowledged response; the quantity invariants are then re-checked and
// any breach surfaces as an integrity violation plus a forced refresh.
func (c *Controller) AcceptBid(ctx context.Context, listingID, bidID string) (core.Bid, error) {
	c.ensureInflightMap()

	if err := c.guardBidMutation(listingID, bidID); err != nil {
		return core.Bid{}, err
	}

	done, err := c.begin(listingID, OpAcceptBid)
	if err != nil {
		return core.Bid{}, err
	}
	defer done()

	result, err := c.market.AcceptBid(ctx, c.ownerID, bidID)
	if err != nil {
		// Bid stays pending, listing quantities untouched.
		c.metrics.RecordOperation(ctx, OpAcceptBid, "failure")
		return core.Bid{}, err
	}

	if err := c.bids.Apply(result.Bid); err != nil {
		return core.Bid{}, c.integrityViolation(ctx, OpAcceptBid, invariant.Violation{
			Kind:      invariant.KindQuantityBound,
			ListingID: listingID,
			Detail:    err.Error(),
		})
	}

	if result.Listing != nil {
		c.listings.Apply(*result.Listing)
	} else if err := c.Load(ctx); err != nil {
		// The service did not inline the updated listing and the
		// follow-up fetch failed; the invariant check below runs
		// against the last known listing state.
		c.logger.Warn("Post-accept listing refresh failed", "listing", listingID, "error", err)
	}

	if violations := c.checkListing(listingID); len(violations) > 0 {
		return core.Bid{}, c.integrityViolation(ctx, OpAcceptBid, violations[0])
	}

	c.metrics.SetPendingBids(listingID, int64(c.bids.CountPending(listingID)))
	c.metrics.RecordOperation(ctx, OpAcceptBid, "success")
	c.logger.Info("Bid accepted", "listing", listingID, "bid", bidID)
	return result.Bid, nil
}

// RejectBid rejects a pending bid. Rejection does not touch quantities,
// but the post-reconciliation checks run all the same.
func (c *Controller) RejectBid(ctx context.Context, listingID, bidID string) (core.Bid, error) {
	c.ensureInflightMap()

	if err := c.guardBidMutation(listingID, bidID); err != nil {
		return core.Bid{}, err
	}

	done, err := c.begin(listingID, OpRejectBid)
	if err != nil {
		return core.Bid{}, err
	}
	defer done()

	bid, err := c.market.RejectBid(ctx, c.ownerID, bidID)
	if err != nil {
		c.metrics.RecordOperation(ctx, OpRejectBid, "failure")
		return core.Bid{}, err
	}

	if err := c.bids.Apply(bid); err != nil {
		return core.Bid{}, c.integrityViolation(ctx, OpRejectBid, invariant.Violation{
			Kind:      invariant.KindQuantityBound,
			ListingID: listingID,
			Detail:    err.Error(),
		})
	}

	if violations := c.checkListing(listingID); len(violations) > 0 {
		return core.Bid{}, c.integrityViolation(ctx, OpRejectBid, violations[0])
	}

	c.metrics.SetPendingBids(listingID, int64(c.bids.CountPending(listingID)))
	c.metrics.RecordOperation(ctx, OpRejectBid, "success")
	c.logger.Info("Bid rejected", "listing", listingID, "bid", bidID)
	return bid, nil
}

// guardBidMutation runs the shared accept/reject preconditions. All of
// them fail locally, before any request is sent.
func (c *Controller) guardBidMutation(listingID, bidID string) error {
	listing, ok := c.listings.Get(listingID)
	if !ok {
		return fmt.Errorf("%w: %w: %s", apperrors.ErrValidation, apperrors.ErrUnknownListing, listingID)
	}
	if listing.OwnerID != c.ownerID {
		return fmt.Errorf("%w: %w: listing %s", apperrors.ErrValidation, apperrors.ErrNotOwner, listingID)
	}
	if v := invariant.CheckListingMutable(listing); v != nil {
		return fmt.Errorf("%w: %w: %s", apperrors.ErrValidation, apperrors.ErrListingCancelled, listingID)
	}

	bid, ok := c.bids.Get(listingID, bidID)
	if !ok {
		return fmt.Errorf("%w: %w: %s", apperrors.ErrValidation, apperrors.ErrUnknownBid, bidID)
	}
	if bid.Status.Terminal() {
		return fmt.Errorf("%w: %w: bid %s is %s", apperrors.ErrValidation, apperrors.ErrInvalidTransition, bidID, bid.Status)
	}
	return nil
}

func (c *Controller) checkListing(listingID string) []invariant.Violation {
	listing, ok := c.listings.Get(listingID)
	if !ok {
		return nil
	}
	return invariant.CheckAll(listing, c.bids.BidsFor(listingID))
}

// integrityViolation reports a detected local/remote divergence and
// triggers the resynchronizing refresh. The inconsistency is never
// patched heuristically; the server's view wins.
func (c *Controller) integrityViolation(ctx context.Context, op string, v invariant.Violation) error {
	c.logger.Error("Integrity violation detected", "operation", op, "listing", v.ListingID, "violation", v.String())
	if c.metrics.IntegrityViolationsTotal != nil {
		c.metrics.IntegrityViolationsTotal.Add(ctx, 1)
	}
	c.metrics.RecordOperation(ctx, op, "integrity_violation")

	c.forceRefresh(ctx, v.ListingID)

	return fmt.Errorf("%w: %s", apperrors.ErrIntegrityViolation, v.String())
}

func (c *Controller) forceRefresh(ctx context.Context, listingID string) {
	if c.metrics.ForcedRefreshesTotal != nil {
		c.metrics.ForcedRefreshesTotal.Add(ctx, 1)
	}
	if err := c.Load(ctx); err != nil {
		c.logger.Warn("Forced listing refresh failed", "error", err)
		return
	}
	if listingID == "" {
		return
	}
	if err := c.LoadBids(ctx, listingID); err != nil {
		c.logger.Warn("Forced bid refresh failed", "listing", listingID, "error", err)
	}
}
