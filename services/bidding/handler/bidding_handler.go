//go:generate mockgen -package=handler -destination=mock_service.go -source=bidding_handler.go

package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"auction-core/internal/biddingerrors"
	"auction-core/internal/identity"
	model "auction-core/internal/models"
	"auction-core/services/bidding/helpers"
	"auction-core/utils"
)

type BiddingServiceInterface interface {
	PlaceBid(ctx context.Context, listingID, bidderID string, amount decimal.Decimal) (model.Bid, error)
	CloseAuction(ctx context.Context, listingID, requesterID string) (model.CloseResult, error)
	CreateListing(ctx context.Context, ownerID string, in model.NewListing) (model.Listing, error)
	DeleteListing(ctx context.Context, listingID, requesterID string) error
	GetListing(ctx context.Context, listingID string) (model.Listing, error)
	ListActiveListings(ctx context.Context) ([]model.Listing, error)
	GetBidsForItem(ctx context.Context, itemID string) ([]model.Bid, error)
	GetBidHistory(ctx context.Context, itemID string) ([]model.Bid, error)
	GetWinningBid(ctx context.Context, itemID string) (model.Bid, error)
	GetItemsByUser(ctx context.Context, userID string) ([]model.Listing, error)
}

type BiddingHandler struct {
	service BiddingServiceInterface
}

func NewBiddingHandler(service BiddingServiceInterface) *BiddingHandler {
	return &BiddingHandler{service: service}
}

// RecordBidHandler handles POST /bids. Accepts JSON or form bodies.
func (h *BiddingHandler) RecordBidHandler(c *gin.Context) {
	var req helpers.PlaceBidRequest
	if err := c.ShouldBind(&req); err != nil {
		helpers.HandleBindError(c, "RecordBidHandler", err)
		return
	}

	bidderID := identity.UserID(c)
	amount, err := req.Amount.Parse()
	if err == nil {
		var bid model.Bid
		bid, err = h.service.PlaceBid(c.Request.Context(), req.ItemID, bidderID, amount)
		if err == nil {
			utils.JSONResponse(c, http.StatusCreated, helpers.NewBidResponse(bid), "bid recorded successfully")
			helpers.LogSuccess("RecordBidHandler", "bid recorded successfully", map[string]any{
				"bid_id":  bid.BidID,
				"item_id": bid.ItemID,
				"user_id": bidderID,
				"amount":  bid.Amount.StringFixed(model.MoneyPlaces),
			})
			return
		}
	}

	status := helpers.RespondError(c, err)
	fields := map[string]any{
		"handler": "RecordBidHandler",
		"item_id": req.ItemID,
		"user_id": bidderID,
		"status":  status,
		"error":   err.Error(),
	}
	if status >= http.StatusInternalServerError {
		utils.Error("RecordBidHandler: failed to record bid", fields)
	} else {
		utils.Info("RecordBidHandler: bid not accepted", fields)
	}
}

// CreateListingHandler handles POST /listings
func (h *BiddingHandler) CreateListingHandler(c *gin.Context) {
	var req helpers.CreateListingRequest
	if err := c.ShouldBind(&req); err != nil {
		helpers.HandleBindError(c, "CreateListingHandler", err)
		return
	}

	ownerID := identity.UserID(c)
	price, err := req.StartingPrice.Parse()
	if err != nil {
		// starting price problems are listing validation failures, not bid rejections
		err = biddingerrors.InvalidListing("starting_price", "Please enter a valid starting price.")
	} else {
		var listing model.Listing
		listing, err = h.service.CreateListing(c.Request.Context(), ownerID, model.NewListing{
			Title:         req.Title,
			Description:   req.Description,
			StartingPrice: price,
			EndDate:       req.EndDate,
		})
		if err == nil {
			utils.JSONResponse(c, http.StatusCreated, helpers.NewListingResponse(listing), "listing created successfully")
			helpers.LogSuccess("CreateListingHandler", "listing created successfully", map[string]any{
				"listing_id": listing.ListingID,
				"owner_id":   ownerID,
			})
			return
		}
	}

	helpers.RespondError(c, err)
	utils.Warn("CreateListingHandler: listing not created", map[string]any{"owner_id": ownerID, "error": err.Error()})
}

// GetListingHandler handles GET /listings/:listing_id
func (h *BiddingHandler) GetListingHandler(c *gin.Context) {
	listingID := c.Param("listing_id")
	listing, err := h.service.GetListing(c.Request.Context(), listingID)
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("GetListingHandler: error retrieving listing", map[string]any{"listing_id": listingID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewListingResponse(listing), "listing retrieved successfully")
}

// DeleteListingHandler handles DELETE /listings/:listing_id
func (h *BiddingHandler) DeleteListingHandler(c *gin.Context) {
	listingID := c.Param("listing_id")
	requesterID := identity.UserID(c)
	if err := h.service.DeleteListing(c.Request.Context(), listingID, requesterID); err != nil {
		helpers.RespondError(c, err)
		utils.Warn("DeleteListingHandler: listing not deleted", map[string]any{
			"listing_id":   listingID,
			"requester_id": requesterID,
			"error":        err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, gin.H{"listing_id": listingID}, "listing deleted successfully")
	helpers.LogSuccess("DeleteListingHandler", "listing deleted successfully", map[string]any{"listing_id": listingID})
}

// CloseAuctionHandler handles POST /listings/:listing_id/close
func (h *BiddingHandler) CloseAuctionHandler(c *gin.Context) {
	listingID := c.Param("listing_id")
	requesterID := identity.UserID(c)
	result, err := h.service.CloseAuction(c.Request.Context(), listingID, requesterID)
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("CloseAuctionHandler: auction not closed", map[string]any{
			"listing_id":   listingID,
			"requester_id": requesterID,
			"error":        err.Error(),
		})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewCloseResponse(result), "auction closed")
	helpers.LogSuccess("CloseAuctionHandler", "auction closed", map[string]any{
		"listing_id": listingID,
		"outcome":    string(result.Outcome),
		"winner_id":  result.WinnerID,
	})
}

// ListListingsHandler handles GET /listings
func (h *BiddingHandler) ListListingsHandler(c *gin.Context) {
	listings, err := h.service.ListActiveListings(c.Request.Context())
	if err != nil {
		helpers.RespondError(c, err)
		utils.Warn("ListListingsHandler: error listing active listings", map[string]any{"error": err.Error()})
		return
	}

	resp := lo.Map(listings, func(l model.Listing, _ int) helpers.ListingResponse {
		return helpers.NewListingResponse(l)
	})

	utils.JSONResponse(c, http.StatusOK, resp, "listings retrieved successfully")
	helpers.LogSuccess("ListListingsHandler", "listings retrieved successfully", map[string]any{"count": len(resp)})
}

// GetBidsByItemHandler handles GET /listings/:listing_id/bids
func (h *BiddingHandler) GetBidsByItemHandler(c *gin.Context) {
	h.listBids(c, "GetBidsByItemHandler", h.service.GetBidsForItem)
}

// GetBidHistoryHandler handles GET /listings/:listing_id/history
func (h *BiddingHandler) GetBidHistoryHandler(c *gin.Context) {
	h.listBids(c, "GetBidHistoryHandler", h.service.GetBidHistory)
}

func (h *BiddingHandler) listBids(c *gin.Context, handlerName string, fetch func(context.Context, string) ([]model.Bid, error)) {
	itemID := c.Param("listing_id")
	bids, err := fetch(c.Request.Context(), itemID)
	if err != nil && !errors.Is(err, biddingerrors.ErrNoBids) {
		helpers.RespondError(c, err)
		utils.Warn(handlerName+": error retrieving bids", map[string]any{"item_id": itemID, "error": err.Error()})
		return
	}

	resp := lo.Map(bids, func(b model.Bid, _ int) helpers.BidResponse {
		return helpers.NewBidResponse(b)
	})

	utils.JSONResponse(c, http.StatusOK, resp, "bids retrieved successfully")
	helpers.LogSuccess(handlerName, "bids retrieved successfully", map[string]any{
		"item_id": itemID,
		"count":   len(resp),
	})
}

// GetWinningBidHandler handles GET /listings/:listing_id/winning
func (h *BiddingHandler) GetWinningBidHandler(c *gin.Context) {
	itemID := c.Param("listing_id")
	bid, err := h.service.GetWinningBid(c.Request.Context(), itemID)
	if err != nil {
		// For auction, winning bid not found -> 404
		if errors.Is(err, biddingerrors.ErrNoBids) {
			utils.JSONError(c, http.StatusNotFound, err, "no winning bid found")
			utils.Info("GetWinningBidHandler: no winning bid found", map[string]any{"item_id": itemID})
			return
		}
		helpers.RespondError(c, err)
		utils.Warn("GetWinningBidHandler: winning bid error", map[string]any{"item_id": itemID, "error": err.Error()})
		return
	}

	utils.JSONResponse(c, http.StatusOK, helpers.NewBidResponse(bid), "winning bid retrieved successfully")
	helpers.LogSuccess("GetWinningBidHandler", "winning bid retrieved successfully", map[string]any{
		"bid_id":  bid.BidID,
		"item_id": bid.ItemID,
		"user_id": bid.UserID,
		"amount":  bid.Amount.StringFixed(model.MoneyPlaces),
	})
}

// GetItemsByUserHandler handles GET /users/:user_id/listings
func (h *BiddingHandler) GetItemsByUserHandler(c *gin.Context) {
	userID := c.Param("user_id")
	items, err := h.service.GetItemsByUser(c.Request.Context(), userID)
	if err != nil && !errors.Is(err, biddingerrors.ErrUserNoBids) {
		helpers.RespondError(c, err)
		utils.Warn("GetItemsByUserHandler: error retrieving items", map[string]any{"user_id": userID, "error": err.Error()})
		return
	}

	resp := lo.Map(items, func(l model.Listing, _ int) helpers.ListingResponse {
		return helpers.NewListingResponse(l)
	})

	utils.JSONResponse(c, http.StatusOK, resp, "items retrieved successfully")
	helpers.LogSuccess("GetItemsByUserHandler", "items retrieved successfully", map[string]any{
		"user_id":     userID,
		"items_count": len(resp),
	})
}
