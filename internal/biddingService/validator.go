package bidding

import (
	"time"

	"github.com/shopspring/decimal"

	"auction-core/internal/biddingerrors"
	"auction-core/internal/models"
)

// Validate decides whether bidderID may bid amount on listing at now.
// Rules are checked in a fixed order and the first failure is returned
// as a *biddingerrors.RejectionError. An empty bidderID is anonymous.
func Validate(listing models.Listing, bidderID string, amount decimal.Decimal, now time.Time) error {
	if !amount.IsPositive() {
		return biddingerrors.Reject(biddingerrors.ReasonNonPositiveAmount, "Bid amount must be greater than 0.")
	}
	if bidderID == "" {
		return biddingerrors.Reject(biddingerrors.ReasonUnauthenticated, "You must be logged in to bid.")
	}
	if bidderID == listing.OwnerID {
		return biddingerrors.Reject(biddingerrors.ReasonOwnListing, "You cannot bid on your own listing.")
	}
	if !listing.IsAuctionActive(now) {
		return biddingerrors.Reject(biddingerrors.ReasonAuctionInactive, "This auction is no longer active.")
	}

	current := listing.GetCurrentPrice()
	if amount.LessThanOrEqual(current) {
		return biddingerrors.Reject(biddingerrors.ReasonBelowCurrentPrice,
			"Bid must be higher than the current price of %s.", models.FormatMoney(current))
	}
	if amount.LessThan(current.Add(models.MinIncrement)) {
		return biddingerrors.Reject(biddingerrors.ReasonBelowMinIncrement,
			"Bid must be at least %s higher than the current price of %s.",
			models.FormatMoney(models.MinIncrement), models.FormatMoney(current))
	}
	return nil
}
