package apperrors

import "errors"

// Standardized Marketplace Errors
//
// The four broad kinds map to the error taxonomy the presentation layer
// branches on: ErrValidation never reaches the network, ErrRemote and
// ErrNetwork leave local state unchanged, and ErrIntegrityViolation
// signals local/remote divergence and forces a resynchronizing fetch.
var (
	ErrValidation          = errors.New("validation failed")
	ErrRemote              = errors.New("remote service error")
	ErrNetwork             = errors.New("network error")
	ErrIntegrityViolation  = errors.New("integrity violation")
	ErrFetchFailed         = errors.New("fetch failed")
	ErrUnknownListing      = errors.New("unknown listing")
	ErrUnknownBid          = errors.New("unknown bid")
	ErrDuplicateID         = errors.New("duplicate identifier")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrOperationInProgress = errors.New("operation already in progress")
	ErrNotOwner            = errors.New("not the listing owner")
	ErrListingCancelled    = errors.New("listing is cancelled")
)
