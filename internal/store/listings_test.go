package store

import (
	"errors"
	"testing"
	"time"

	"agrimarket/internal/core"
	apperrors "agrimarket/pkg/errors"

	"github.com/shopspring/decimal"
)

func testListing(id string, status core.ListingStatus) core.Listing {
	return core.Listing{
		ID:                id,
		OwnerID:           "f1",
		CropType:          "Wheat",
		PricePerUnit:      decimal.RequireFromString("20.00"),
		TotalQuantity:     decimal.NewFromInt(100),
		AvailableQuantity: decimal.NewFromInt(100),
		Status:            status,
		CreatedAt:         time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestListingRepository_InsertDuplicate(t *testing.T) {
	repo := NewListingRepository()

	if err := repo.Insert(testListing("lst-1", core.ListingStatusListed)); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	err := repo.Insert(testListing("lst-1", core.ListingStatusListed))
	if !errors.Is(err, apperrors.ErrDuplicateID) {
		t.Errorf("Expected ErrDuplicateID, got %v", err)
	}
}

func TestListingRepository_ReplaceAllSwapsSnapshot(t *testing.T) {
	repo := NewListingRepository()
	_ = repo.Insert(testListing("lst-old", core.ListingStatusListed))

	repo.ReplaceAll([]core.Listing{testListing("lst-new", core.ListingStatusListed)})

	if _, ok := repo.Get("lst-old"); ok {
		t.Error("Stale listing survived a wholesale replace")
	}
	if _, ok := repo.Get("lst-new"); !ok {
		t.Error("New listing missing after replace")
	}
}

func TestListingRepository_MarkCancelled(t *testing.T) {
	repo := NewListingRepository()
	_ = repo.Insert(testListing("lst-1", core.ListingStatusListed))

	if err := repo.MarkCancelled("lst-1"); err != nil {
		t.Fatalf("MarkCancelled failed: %v", err)
	}
	l, _ := repo.Get("lst-1")
	if l.Status != core.ListingStatusCancelled {
		t.Errorf("Expected cancelled, got %s", l.Status)
	}

	// Second call is a no-op, not an error
	if err := repo.MarkCancelled("lst-1"); err != nil {
		t.Errorf("Repeated MarkCancelled should be idempotent, got %v", err)
	}

	if err := repo.MarkCancelled("lst-missing"); !errors.Is(err, apperrors.ErrUnknownListing) {
		t.Errorf("Expected ErrUnknownListing, got %v", err)
	}
}

func TestListingRepository_AllIsOrdered(t *testing.T) {
	repo := NewListingRepository()
	early := testListing("lst-b", core.ListingStatusListed)
	late := testListing("lst-a", core.ListingStatusListed)
	late.CreatedAt = early.CreatedAt.Add(time.Hour)
	_ = repo.Insert(late)
	_ = repo.Insert(early)

	all := repo.All()
	if len(all) != 2 || all[0].ID != "lst-b" || all[1].ID != "lst-a" {
		t.Errorf("Expected creation-time order [lst-b lst-a], got %v", []string{all[0].ID, all[1].ID})
	}
}

func TestListingRepository_CountListed(t *testing.T) {
	repo := NewListingRepository()
	_ = repo.Insert(testListing("lst-1", core.ListingStatusListed))
	_ = repo.Insert(testListing("lst-2", core.ListingStatusCancelled))

	if n := repo.CountListed(); n != 1 {
		t.Errorf("Expected 1 listed, got %d", n)
	}
}
