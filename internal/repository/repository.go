//go:generate mockgen -package=repository -destination=mock_repository.go -source=repository.go

package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	model "auction-core/internal/models"
)

// AuctionDB defines the listing and bid storage interface for the auction system
type AuctionDB interface {
	CreateListing(ctx context.Context, listing model.Listing) error
	GetListing(ctx context.Context, listingID string) (model.Listing, error)
	GetBidsByItem(ctx context.Context, itemID string) ([]model.Bid, error)
	GetBidHistory(ctx context.Context, itemID string) ([]model.Bid, error)
	GetWinningBid(ctx context.Context, itemID string) (model.Bid, error)
	GetItemsByUser(ctx context.Context, userID string) ([]model.Listing, error)
	ListExpiredListings(ctx context.Context, now time.Time) ([]model.Listing, error)
	// ListActiveListings returns every active listing, newest first.
	ListActiveListings(ctx context.Context) ([]model.Listing, error)
	// InTx runs fn in a single transaction: every write made through tx is
	// applied if fn returns nil and none is applied otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Tx is the set of operations available inside a transaction
type Tx interface {
	// GetListingForUpdate reads a listing and holds its row until the transaction ends.
	GetListingForUpdate(ctx context.Context, listingID string) (model.Listing, error)
	InsertBid(ctx context.Context, bid model.Bid) error
	// UpdateCurrentPrice moves the current price from expected to next and fails
	// with ErrConcurrentUpdate if the stored price is no longer expected.
	UpdateCurrentPrice(ctx context.Context, listingID string, expected, next decimal.Decimal) error
	GetWinningBid(ctx context.Context, listingID string) (model.Bid, error)
	// CloseListing deactivates a listing; an empty winnerID leaves it without a winner.
	CloseListing(ctx context.Context, listingID, winnerID string) error
	// DeleteListing removes a listing together with all of its bids.
	DeleteListing(ctx context.Context, listingID string) error
}

// highestBid returns the bid that outranks every other one
func highestBid(bids []model.Bid) (model.Bid, bool) {
	if len(bids) == 0 {
		return model.Bid{}, false
	}
	winning := bids[0]
	for _, b := range bids[1:] {
		if b.Outranks(winning) {
			winning = b
		}
	}
	return winning, true
}
