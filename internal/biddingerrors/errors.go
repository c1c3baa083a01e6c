package biddingerrors

import (
	"errors"
	"fmt"
)

// Repository-level errors
var (
	ErrItemNotFound     = errors.New("item not found")
	ErrNoBids           = errors.New("no bids found for item")
	ErrUserNoBids       = errors.New("user has not placed any bids")
	ErrDuplicateTitle   = errors.New("listing title already exists")
	ErrConcurrentUpdate = errors.New("listing was modified concurrently")
)

// business logic errors
var (
	ErrInvalidBid     = errors.New("invalid bid")
	ErrBidRejected    = errors.New("bid rejected")
	ErrInvalidListing = errors.New("invalid listing")
	ErrForbidden      = errors.New("forbidden")
)

// infrastructure errors
var (
	ErrInfrastructure  = errors.New("infrastructure failure")
	ErrLockUnavailable = errors.New("listing lock unavailable")
)

// Reason identifies which bidding rule rejected a bid.
type Reason string

const (
	ReasonMalformedAmount   Reason = "malformed_amount"
	ReasonNonPositiveAmount Reason = "non_positive_amount"
	ReasonUnauthenticated   Reason = "unauthenticated"
	ReasonOwnListing        Reason = "own_listing"
	ReasonAuctionInactive   Reason = "auction_inactive"
	ReasonBelowCurrentPrice Reason = "below_current_price"
	ReasonBelowMinIncrement Reason = "below_min_increment"
)

// RejectionError is a user-correctable business rule failure.
// Message is safe to show to the bidder as-is.
type RejectionError struct {
	Reason  Reason
	Message string
}

func (e *RejectionError) Error() string {
	return e.Message
}

// Is makes every rejection match ErrBidRejected; malformed amounts also match ErrInvalidBid.
func (e *RejectionError) Is(target error) bool {
	if target == ErrBidRejected {
		return true
	}
	return target == ErrInvalidBid && e.Reason == ReasonMalformedAmount
}

// Reject builds a RejectionError with a formatted display message.
func Reject(reason Reason, format string, args ...any) *RejectionError {
	return &RejectionError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// AsRejection extracts the RejectionError from an error chain.
func AsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// Infrastructure marks err as a storage or coordination failure of operation op.
func Infrastructure(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrInfrastructure, err)
}

// ListingError reports a listing field that failed validation.
// Message is safe to show to the owner as-is.
type ListingError struct {
	Field   string
	Message string
}

func (e *ListingError) Error() string {
	return e.Message
}

func (e *ListingError) Is(target error) bool {
	return target == ErrInvalidListing
}

// InvalidListing builds a ListingError for field.
func InvalidListing(field, message string) *ListingError {
	return &ListingError{Field: field, Message: message}
}
