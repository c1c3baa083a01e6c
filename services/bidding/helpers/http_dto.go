package helpers

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	model "auction-core/internal/models"
)

// RawAmount holds a user supplied amount before parsing. It accepts a JSON
// number, a JSON string or a form value so every entry point goes through
// the same model.ParseAmount.
type RawAmount string

func (a *RawAmount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*a = RawAmount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		// left for ParseAmount to reject as malformed
		*a = RawAmount(data)
		return nil
	}
	*a = RawAmount(n.String())
	return nil
}

// UnmarshalParam lets gin bind form values into a RawAmount
func (a *RawAmount) UnmarshalParam(param string) error {
	*a = RawAmount(param)
	return nil
}

// Parse converts the raw input into a money amount
func (a RawAmount) Parse() (decimal.Decimal, error) {
	return model.ParseAmount(string(a))
}

// Request/Response DTOs
type PlaceBidRequest struct {
	ItemID string    `json:"item_id" form:"item_id" binding:"required"`
	Amount RawAmount `json:"amount" form:"amount"`
}

type CreateListingRequest struct {
	Title         string     `json:"title" form:"title" binding:"required"`
	Description   string     `json:"description" form:"description"`
	StartingPrice RawAmount  `json:"starting_price" form:"starting_price"`
	EndDate       *time.Time `json:"end_date" form:"end_date" time_format:"2006-01-02T15:04:05Z07:00"`
}

type BidResponse struct {
	BidID     string `json:"bid_id"`
	ItemID    string `json:"item_id"`
	UserID    string `json:"user_id"`
	Amount    string `json:"amount"`
	CreatedAt string `json:"created_at"`
}

type ListingResponse struct {
	ListingID     string `json:"listing_id"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	StartingPrice string `json:"starting_price"`
	CurrentPrice  string `json:"current_price"`
	IsActive      bool   `json:"is_active"`
	EndDate       string `json:"end_date,omitempty"`
	OwnerID       string `json:"owner_id"`
	WinnerID      string `json:"winner_id,omitempty"`
	BidCount      int    `json:"bid_count"`
	CreatedAt     string `json:"created_at"`
}

type CloseResponse struct {
	ListingID  string       `json:"listing_id"`
	Outcome    string       `json:"outcome"`
	WinnerID   string       `json:"winner_id,omitempty"`
	WinningBid *BidResponse `json:"winning_bid,omitempty"`
}

func NewBidResponse(bid model.Bid) BidResponse {
	return BidResponse{
		BidID:     bid.BidID,
		ItemID:    bid.ItemID,
		UserID:    bid.UserID,
		Amount:    bid.Amount.StringFixed(model.MoneyPlaces),
		CreatedAt: bid.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func NewListingResponse(l model.Listing) ListingResponse {
	resp := ListingResponse{
		ListingID:     l.ListingID,
		Title:         l.Title,
		Description:   l.Description,
		StartingPrice: l.StartingPrice.StringFixed(model.MoneyPlaces),
		CurrentPrice:  l.GetCurrentPrice().StringFixed(model.MoneyPlaces),
		IsActive:      l.IsActive,
		OwnerID:       l.OwnerID,
		WinnerID:      l.WinnerID,
		BidCount:      l.BidCount,
		CreatedAt:     l.CreatedAt.UTC().Format(time.RFC3339),
	}
	if l.EndDate != nil {
		resp.EndDate = l.EndDate.UTC().Format(time.RFC3339)
	}
	return resp
}

func NewCloseResponse(r model.CloseResult) CloseResponse {
	resp := CloseResponse{
		ListingID: r.ListingID,
		Outcome:   string(r.Outcome),
		WinnerID:  r.WinnerID,
	}
	if r.WinningBid != nil {
		bid := NewBidResponse(*r.WinningBid)
		resp.WinningBid = &bid
	}
	return resp
}
