package domain

import "errors"

var (
	ErrMissingCartIdentifier = errors.New("missing cart identifier")
	ErrInvalidGuestSession   = errors.New("invalid guest session")
	ErrInvalidItem           = errors.New("invalid cart item")
	ErrItemNotFound          = errors.New("item not found in cart")
	ErrMergeInProgress       = errors.New("cart merge already in progress")
	ErrConcurrentUpdate      = errors.New("cart was modified concurrently")

	// ErrGuestCartCleanup means the merged cart was written but the guest cart
	// could not be deleted. The merge is not lost.
	ErrGuestCartCleanup = errors.New("merged cart saved but guest cart was not deleted")
)
