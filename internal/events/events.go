// Package events announces committed auction state changes to other services.
// Publishing happens after the state change is durable and never undoes it.
package events

import (
	"context"
	"time"
)

const (
	SubjectBidPlaced     = "auction.bids"
	SubjectAuctionClosed = "auction.closed"
)

// BidPlaced is emitted once a bid and the new current price are committed
type BidPlaced struct {
	BidID        string    `json:"bid_id"`
	ListingID    string    `json:"listing_id"`
	BidderID     string    `json:"bidder_id"`
	Amount       string    `json:"amount"`
	CurrentPrice string    `json:"current_price"`
	PlacedAt     time.Time `json:"placed_at"`
}

// AuctionClosed is emitted when a listing transitions to closed
type AuctionClosed struct {
	ListingID  string    `json:"listing_id"`
	Outcome    string    `json:"outcome"`
	WinnerID   string    `json:"winner_id,omitempty"`
	WinningBid string    `json:"winning_bid,omitempty"`
	ClosedAt   time.Time `json:"closed_at"`
}

type Publisher interface {
	PublishBidPlaced(ctx context.Context, evt BidPlaced) error
	PublishAuctionClosed(ctx context.Context, evt AuctionClosed) error
	Close()
}

// NoopPublisher discards every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishBidPlaced(context.Context, BidPlaced) error { return nil }

func (NoopPublisher) PublishAuctionClosed(context.Context, AuctionClosed) error { return nil }

func (NoopPublisher) Close() {}
