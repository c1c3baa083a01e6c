package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a participant in the auction
type User struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Listing represents an item up for auction together with its auction state
type Listing struct {
	ListingID     string          `json:"listing_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	// CurrentPrice is zero only before the listing is first persisted.
	CurrentPrice decimal.Decimal `json:"current_price"`
	IsActive     bool            `json:"is_active"`
	EndDate      *time.Time      `json:"end_date,omitempty"`
	OwnerID      string          `json:"owner_id"`
	WinnerID     string          `json:"winner_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	// BidCount is filled in by listing reads and never stored.
	BidCount int `json:"bid_count"`
}

// GetCurrentPrice returns the current price, falling back to the starting price
// for a listing that has not been persisted yet.
func (l Listing) GetCurrentPrice() decimal.Decimal {
	if l.CurrentPrice.IsZero() {
		return l.StartingPrice
	}
	return l.CurrentPrice
}

// IsAuctionActive reports whether bids can still be accepted at now.
func (l Listing) IsAuctionActive(now time.Time) bool {
	if !l.IsActive {
		return false
	}
	return l.EndDate == nil || now.Before(*l.EndDate)
}

// HasWinner reports whether the listing was closed with a winning bid.
func (l Listing) HasWinner() bool {
	return l.WinnerID != ""
}

// Bid represents a user's bid on a listing
type Bid struct {
	BidID     string          `json:"bid_id"`
	ItemID    string          `json:"item_id"`
	UserID    string          `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// Outranks reports whether b beats other as the highest bid: larger amount first,
// then earlier time, then lower id so the choice is deterministic.
func (b Bid) Outranks(other Bid) bool {
	if c := b.Amount.Cmp(other.Amount); c != 0 {
		return c > 0
	}
	if !b.CreatedAt.Equal(other.CreatedAt) {
		return b.CreatedAt.Before(other.CreatedAt)
	}
	return b.BidID < other.BidID
}

// NewListing carries the owner-supplied fields of a listing being created.
type NewListing struct {
	Title         string
	Description   string
	StartingPrice decimal.Decimal
	EndDate       *time.Time
}

// CloseOutcome is the terminal result of an auction.
type CloseOutcome string

const (
	OutcomeWinner CloseOutcome = "winner"
	OutcomeNoBids CloseOutcome = "no_bids"
)

// CloseResult describes how an auction was closed.
type CloseResult struct {
	ListingID  string       `json:"listing_id"`
	Outcome    CloseOutcome `json:"outcome"`
	WinnerID   string       `json:"winner_id,omitempty"`
	WinningBid *Bid         `json:"winning_bid,omitempty"`
}
