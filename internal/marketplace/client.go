// Package marketplace implements the HTTP adapter to the remote
// marketplace service, the source of truth for listings and bids.
package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"agrimarket/internal/core"
	apperrors "agrimarket/pkg/errors"
	"agrimarket/pkg/httpclient"
)

// Client implements core.IMarketplace over the service's JSON API.
type Client struct {
	http   *httpclient.Client
	logger core.ILogger
}

// NewClient creates a marketplace client for the given endpoint.
func NewClient(baseURL string, timeout time.Duration, rps float64, logger core.ILogger) *Client {
	return &Client{
		http:   httpclient.NewClient(baseURL, timeout, rps),
		logger: logger.WithField("component", "marketplace_client"),
	}
}

// ListListings fetches the owner's still-listed listings.
func (c *Client) ListListings(ctx context.Context, ownerID string) ([]core.Listing, error) {
	body, err := c.http.Get(ctx, "/listing", map[string]string{
		"owner":  ownerID,
		"status": string(core.ListingStatusListed),
	})
	if err != nil {
		return nil, wireErr("list listings", err)
	}

	var list listingList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, malformed("list listings", err)
	}

	listings := make([]core.Listing, 0, len(list.Documents))
	for _, doc := range list.Documents {
		listing, err := toListing(doc)
		if err != nil {
			return nil, malformed("list listings", err)
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

// CreateListing submits a new listing as the owner.
func (c *Client) CreateListing(ctx context.Context, ownerID string, draft core.ListingDraft) (core.Listing, error) {
	req := createListingRequest{
		CropType:      draft.CropType,
		PricePerUnit:  json.Number(draft.PricePerUnit.String()),
		TotalQuantity: json.Number(draft.TotalQuantity.String()),
	}

	body, err := c.http.Post(ctx, "/listing", map[string]string{"owner": ownerID}, req)
	if err != nil {
		return core.Listing{}, wireErr("create listing", err)
	}

	var doc listingDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return core.Listing{}, malformed("create listing", err)
	}
	listing, err := toListing(doc)
	if err != nil {
		return core.Listing{}, malformed("create listing", err)
	}
	return listing, nil
}

// CancelListing cancels a listing and returns the acknowledged document.
func (c *Client) CancelListing(ctx context.Context, ownerID, listingID string) (core.Listing, error) {
	path := "/listing/" + url.PathEscape(listingID)
	body, err := c.http.Delete(ctx, path, map[string]string{"owner": ownerID})
	if err != nil {
		return core.Listing{}, wireErr("cancel listing", err)
	}

	var doc listingDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return core.Listing{}, malformed("cancel listing", err)
	}
	listing, err := toListing(doc)
	if err != nil {
		return core.Listing{}, malformed("cancel listing", err)
	}
	return listing, nil
}

// ListBids fetches the bids placed against one listing.
func (c *Client) ListBids(ctx context.Context, ownerID, listingID string) ([]core.Bid, error) {
	body, err := c.http.Get(ctx, "/bids", map[string]string{
		"owner":   ownerID,
		"listing": listingID,
	})
	if err != nil {
		return nil, wireErr("list bids", err)
	}

	var list bidList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, malformed("list bids", err)
	}

	bids := make([]core.Bid, 0, len(list.Documents))
	for _, doc := range list.Documents {
		bid, err := toBid(doc)
		if err != nil {
			return nil, malformed("list bids", err)
		}
		bids = append(bids, bid)
	}
	return bids, nil
}

// AcceptBid accepts a pending bid as the listing owner. When the service
// inlines the updated listing it is surfaced on the result; otherwise
// the caller must re-fetch before trusting local quantities.
func (c *Client) AcceptBid(ctx context.Context, ownerID, bidID string) (core.AcceptResult, error) {
	path := "/bids/" + url.PathEscape(bidID) + "/accept"
	body, err := c.http.Patch(ctx, path, map[string]string{"owner": ownerID})
	if err != nil {
		return core.AcceptResult{}, wireErr("accept bid", err)
	}

	var doc acceptDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return core.AcceptResult{}, malformed("accept bid", err)
	}

	bid, err := toBid(doc.bidDocument)
	if err != nil {
		return core.AcceptResult{}, malformed("accept bid", err)
	}

	result := core.AcceptResult{Bid: bid}
	if doc.Listing != nil {
		listing, err := toListing(*doc.Listing)
		if err != nil {
			return core.AcceptResult{}, malformed("accept bid", err)
		}
		result.Listing = &listing
	}
	return result, nil
}

// RejectBid rejects a pending bid as the listing owner.
func (c *Client) RejectBid(ctx context.Context, ownerID, bidID string) (core.Bid, error) {
	path := "/bids/" + url.PathEscape(bidID) + "/reject"
	body, err := c.http.Patch(ctx, path, map[string]string{"owner": ownerID})
	if err != nil {
		return core.Bid{}, wireErr("reject bid", err)
	}

	var doc bidDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return core.Bid{}, malformed("reject bid", err)
	}
	bid, err := toBid(doc)
	if err != nil {
		return core.Bid{}, malformed("reject bid", err)
	}
	return bid, nil
}

// wireErr maps transport-level failures onto the error taxonomy: a
// non-success status becomes ErrRemote with its message, anything that
// never produced a response becomes ErrNetwork.
func wireErr(op string, err error) error {
	var apiErr *httpclient.APIError
	if errors.As(err, &apiErr) {
		msg := serviceMessage(apiErr.Body)
		if msg == "" {
			msg = fmt.Sprintf("HTTP error %d", apiErr.StatusCode)
		}
		return fmt.Errorf("%s: %w: status=%d: %s", op, apperrors.ErrRemote, apiErr.StatusCode, msg)
	}
	return fmt.Errorf("%s: %w: %v", op, apperrors.ErrNetwork, err)
}

// malformed covers responses that parsed as success but violate the
// document contract; treated as a remote fault, never applied locally.
func malformed(op string, err error) error {
	return fmt.Errorf("%s: %w: malformed response: %v", op, apperrors.ErrRemote, err)
}

func serviceMessage(body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return ""
	}
	return eb.Message
}
