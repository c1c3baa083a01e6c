package server

import (
	"github.com/gin-gonic/gin"

	"auction-core/internal/identity"
	handler "auction-core/services/bidding/handler"
)

// SetupRouter configures all Gin routes for the application.
// A nil verifier trusts the X-User-ID header for caller identity.
func SetupRouter(biddingService handler.BiddingServiceInterface, verifier *identity.Verifier) *gin.Engine {
	router := gin.New() // New router without default middleware for full control over middleware and logging

	router.Use(gin.Recovery())          // recover from panics
	router.Use(RequestLoggerMiddleware) // custom request logging
	router.Use(identity.Middleware(verifier))

	biddingHandler := handler.NewBiddingHandler(biddingService)

	bids := router.Group("/bids")
	{
		bids.POST("", biddingHandler.RecordBidHandler)
	}

	listings := router.Group("/listings")
	{
		listings.GET("", biddingHandler.ListListingsHandler)
		listings.POST("", biddingHandler.CreateListingHandler)
		listings.GET("/:listing_id", biddingHandler.GetListingHandler)
		listings.DELETE("/:listing_id", biddingHandler.DeleteListingHandler)
		listings.POST("/:listing_id/close", biddingHandler.CloseAuctionHandler)
		listings.GET("/:listing_id/bids", biddingHandler.GetBidsByItemHandler)
		listings.GET("/:listing_id/history", biddingHandler.GetBidHistoryHandler)
		listings.GET("/:listing_id/winning", biddingHandler.GetWinningBidHandler)
	}

	users := router.Group("/users")
	{
		users.GET("/:user_id/listings", biddingHandler.GetItemsByUserHandler)
	}

	return router
}
