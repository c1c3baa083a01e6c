package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"auction-core/internal/biddingerrors"
	"auction-core/internal/identity"
	model "auction-core/internal/models"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// decimalEq matches a decimal argument by value rather than representation
type decimalEq struct{ want decimal.Decimal }

func (m decimalEq) Matches(x any) bool {
	d, ok := x.(decimal.Decimal)
	return ok && d.Equal(m.want)
}

func (m decimalEq) String() string { return "equals " + m.want.String() }

func amountOf(s string) gomock.Matcher {
	return decimalEq{want: decimal.RequireFromString(s)}
}

func setupRouter(t *testing.T) (*gin.Engine, *MockBiddingServiceInterface) {
	ctrl := gomock.NewController(t)
	mockService := NewMockBiddingServiceInterface(ctrl)
	handler := NewBiddingHandler(mockService)

	router := gin.New()
	router.Use(identity.Middleware(nil))
	router.POST("/bids", handler.RecordBidHandler)
	router.GET("/listings", handler.ListListingsHandler)
	router.POST("/listings", handler.CreateListingHandler)
	router.GET("/listings/:listing_id", handler.GetListingHandler)
	router.DELETE("/listings/:listing_id", handler.DeleteListingHandler)
	router.POST("/listings/:listing_id/close", handler.CloseAuctionHandler)
	router.GET("/listings/:listing_id/bids", handler.GetBidsByItemHandler)
	router.GET("/listings/:listing_id/history", handler.GetBidHistoryHandler)
	router.GET("/listings/:listing_id/winning", handler.GetWinningBidHandler)
	router.GET("/users/:user_id/listings", handler.GetItemsByUserHandler)
	return router, mockService
}

func do(router *gin.Engine, req *http.Request, userID string) (*httptest.ResponseRecorder, map[string]any) {
	if userID != "" {
		req.Header.Set(identity.HeaderUserID, userID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

// Test RecordBidHandler
func TestRecordBidHandler(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	accepted := func(amount string) model.Bid {
		return model.Bid{BidID: uuid.NewString(), ItemID: "item1", UserID: "user1", Amount: decimal.RequireFromString(amount), CreatedAt: now}
	}

	tests := []struct {
		name           string
		requestBody    string
		userID         string
		mockSetup      func(m *MockBiddingServiceInterface)
		expectedStatus int
		expectedMsg    string
		expectedReason string
		validateData   func(t *testing.T, data map[string]any)
	}{
		{
			name:        "success_numeric_amount",
			requestBody: `{"item_id":"item1","amount":153}`,
			userID:      "user1",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().PlaceBid(gomock.Any(), "item1", "user1", amountOf("153")).Return(accepted("153"), nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "bid recorded successfully",
			validateData: func(t *testing.T, data map[string]any) {
				_, parseErr := uuid.Parse(data["bid_id"].(string))
				require.NoError(t, parseErr, "BidID should be a valid UUID")
				require.Equal(t, "item1", data["item_id"])
				require.Equal(t, "user1", data["user_id"])
				require.Equal(t, "153.00", data["amount"])
			},
		},
		{
			name:           "thousands_separator",
			requestBody:    `{"item_id":"item1","amount":"$1,000"}`,
			userID:         "user1",
			mockSetup:      func(*MockBiddingServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Invalid bid amount. Please enter a valid number.",
			expectedReason: string(biddingerrors.ReasonMalformedAmount),
		},
		{
			name:        "success_string_amount",
			requestBody: `{"item_id":"item1","amount":"$153.50"}`,
			userID:      "user1",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().PlaceBid(gomock.Any(), "item1", "user1", amountOf("153.50")).Return(accepted("153.50"), nil)
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "bid recorded successfully",
		},
		{
			name:           "invalid_json",
			requestBody:    `{invalid json}`,
			mockSetup:      func(*MockBiddingServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:           "missing_item_id",
			requestBody:    `{"amount":50}`,
			mockSetup:      func(*MockBiddingServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:           "non_numeric_amount",
			requestBody:    `{"item_id":"item1","amount":"lots"}`,
			userID:         "user1",
			mockSetup:      func(*MockBiddingServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Invalid bid amount. Please enter a valid number.",
			expectedReason: string(biddingerrors.ReasonMalformedAmount),
		},
		{
			name:           "missing_amount",
			requestBody:    `{"item_id":"item1"}`,
			userID:         "user1",
			mockSetup:      func(*MockBiddingServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedReason: string(biddingerrors.ReasonMalformedAmount),
		},
		{
			name:           "too_many_decimals",
			requestBody:    `{"item_id":"item1","amount":10.005}`,
			userID:         "user1",
			mockSetup:      func(*MockBiddingServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedReason: string(biddingerrors.ReasonMalformedAmount),
		},
		{
			name:        "anonymous_bidder",
			requestBody: `{"item_id":"item1","amount":200}`,
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().PlaceBid(gomock.Any(), "item1", "", amountOf("200")).
					Return(model.Bid{}, biddingerrors.Reject(biddingerrors.ReasonUnauthenticated, "You must be logged in to bid."))
			},
			expectedStatus: http.StatusUnauthorized,
			expectedMsg:    "You must be logged in to bid.",
			expectedReason: string(biddingerrors.ReasonUnauthenticated),
		},
		{
			name:        "below_current_price",
			requestBody: `{"item_id":"item1","amount":120}`,
			userID:      "user2",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().PlaceBid(gomock.Any(), "item1", "user2", amountOf("120")).
					Return(model.Bid{}, fmt.Errorf("service: %w",
						biddingerrors.Reject(biddingerrors.ReasonBelowCurrentPrice, "Bid must be higher than the current price of $150.00.")))
			},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedMsg:    "Bid must be higher than the current price of $150.00.",
			expectedReason: string(biddingerrors.ReasonBelowCurrentPrice),
		},
		{
			name:        "listing_not_found",
			requestBody: `{"item_id":"nope","amount":120}`,
			userID:      "user2",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().PlaceBid(gomock.Any(), "nope", "user2", amountOf("120")).
					Return(model.Bid{}, fmt.Errorf("service: %w", biddingerrors.ErrItemNotFound))
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "item not found",
		},
		{
			name:        "infrastructure_failure",
			requestBody: `{"item_id":"item1","amount":100}`,
			userID:      "user1",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().PlaceBid(gomock.Any(), "item1", "user1", amountOf("100")).
					Return(model.Bid{}, biddingerrors.Infrastructure("service: place bid", errors.New("database is locked")))
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedMsg:    "service temporarily unavailable",
		},
		{
			name:        "service_generic_error",
			requestBody: `{"item_id":"item1","amount":100}`,
			userID:      "user1",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().PlaceBid(gomock.Any(), "item1", "user1", amountOf("100")).
					Return(model.Bid{}, errors.New("database failure"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "internal server error",
		},
		{
			name:        "extremely_large_amount",
			requestBody: `{"item_id":"item1","amount":1000000000000000000}`,
			userID:      "user1",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().PlaceBid(gomock.Any(), "item1", "user1", amountOf("1000000000000000000")).
					Return(accepted("1000000000000000000"), nil)
			},
			expectedStatus: http.StatusCreated,
			validateData: func(t *testing.T, data map[string]any) {
				require.Equal(t, "1000000000000000000.00", data["amount"], "no float rounding")
			},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			router, mockService := setupRouter(t)
			tc.mockSetup(mockService)

			req := httptest.NewRequest(http.MethodPost, "/bids", bytes.NewReader([]byte(tc.requestBody)))
			req.Header.Set("Content-Type", "application/json")
			w, resp := do(router, req, tc.userID)

			require.Equal(t, tc.expectedStatus, w.Code, w.Body.String())
			require.Contains(t, resp["message"], tc.expectedMsg)
			if tc.expectedReason != "" {
				require.Equal(t, tc.expectedReason, resp["reason"])
			}
			if tc.validateData != nil {
				tc.validateData(t, resp["data"].(map[string]any))
			}
		})
	}
}

// Form submissions go through the same parsing and service call as JSON
func TestRecordBidHandler_Form(t *testing.T) {
	t.Parallel()
	router, mockService := setupRouter(t)

	mockService.EXPECT().PlaceBid(gomock.Any(), "item1", "user1", amountOf("42.50")).
		Return(model.Bid{BidID: "b1", ItemID: "item1", UserID: "user1", Amount: decimal.RequireFromString("42.5")}, nil)

	form := url.Values{"item_id": {"item1"}, "amount": {"42.50"}}
	req := httptest.NewRequest(http.MethodPost, "/bids", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w, resp := do(router, req, "user1")

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Equal(t, "42.50", resp["data"].(map[string]any)["amount"])

	form = url.Values{"item_id": {"item1"}, "amount": {"abc"}}
	req = httptest.NewRequest(http.MethodPost, "/bids", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w, resp = do(router, req, "user1")

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Invalid bid amount. Please enter a valid number.", resp["message"])
}

func TestCreateListingHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		body           string
		userID         string
		mockSetup      func(m *MockBiddingServiceInterface)
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:   "created",
			body:   `{"title":"Oak desk","description":"solid","starting_price":"25.00","end_date":"2030-01-01T00:00:00Z"}`,
			userID: "owner",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().CreateListing(gomock.Any(), "owner", gomock.Any()).
					DoAndReturn(func(_ any, ownerID string, in model.NewListing) (model.Listing, error) {
						if in.Title != "Oak desk" || !in.StartingPrice.Equal(decimal.RequireFromString("25")) || in.EndDate == nil {
							return model.Listing{}, errors.New("unexpected input")
						}
						return model.Listing{ListingID: "l1", Title: in.Title, StartingPrice: in.StartingPrice, CurrentPrice: in.StartingPrice, IsActive: true, OwnerID: ownerID, EndDate: in.EndDate}, nil
					})
			},
			expectedStatus: http.StatusCreated,
			expectedMsg:    "listing created successfully",
		},
		{
			name:           "missing_title",
			body:           `{"starting_price":"25.00"}`,
			userID:         "owner",
			mockSetup:      func(*MockBiddingServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "invalid request payload",
		},
		{
			name:           "bad_price",
			body:           `{"title":"Oak desk","starting_price":"cheap"}`,
			userID:         "owner",
			mockSetup:      func(*MockBiddingServiceInterface) {},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Please enter a valid starting price.",
		},
		{
			name:   "title_rule",
			body:   `{"title":"BUY NOW CHEAP DESK","starting_price":"25"}`,
			userID: "owner",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().CreateListing(gomock.Any(), "owner", gomock.Any()).
					Return(model.Listing{}, biddingerrors.InvalidListing("title", "Please avoid excessive capitalization in the title."))
			},
			expectedStatus: http.StatusBadRequest,
			expectedMsg:    "Please avoid excessive capitalization in the title.",
		},
		{
			name:   "duplicate_title",
			body:   `{"title":"Oak desk","starting_price":"25"}`,
			userID: "owner",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().CreateListing(gomock.Any(), "owner", gomock.Any()).
					Return(model.Listing{}, fmt.Errorf("service: %w", biddingerrors.ErrDuplicateTitle))
			},
			expectedStatus: http.StatusConflict,
			expectedMsg:    "a listing with this title already exists",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			router, mockService := setupRouter(t)
			tc.mockSetup(mockService)

			req := httptest.NewRequest(http.MethodPost, "/listings", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			w, resp := do(router, req, tc.userID)

			require.Equal(t, tc.expectedStatus, w.Code, w.Body.String())
			require.Contains(t, resp["message"], tc.expectedMsg)
		})
	}
}

func TestListingLifecycleHandlers(t *testing.T) {
	t.Parallel()

	winning := model.Bid{BidID: "b9", ItemID: "l1", UserID: "bob", Amount: decimal.RequireFromString("120")}

	tests := []struct {
		name           string
		method         string
		path           string
		userID         string
		mockSetup      func(m *MockBiddingServiceInterface)
		expectedStatus int
		validate       func(t *testing.T, resp map[string]any)
	}{
		{
			name:   "get_listing",
			method: http.MethodGet,
			path:   "/listings/l1",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().GetListing(gomock.Any(), "l1").Return(model.Listing{
					ListingID: "l1", StartingPrice: decimal.RequireFromString("100"), CurrentPrice: decimal.RequireFromString("153"), IsActive: true,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, resp map[string]any) {
				data := resp["data"].(map[string]any)
				require.Equal(t, "153.00", data["current_price"])
				require.Equal(t, "100.00", data["starting_price"])
			},
		},
		{
			name:   "get_missing_listing",
			method: http.MethodGet,
			path:   "/listings/nope",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().GetListing(gomock.Any(), "nope").Return(model.Listing{}, biddingerrors.ErrItemNotFound)
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:   "close_by_owner",
			method: http.MethodPost,
			path:   "/listings/l1/close",
			userID: "owner",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().CloseAuction(gomock.Any(), "l1", "owner").Return(model.CloseResult{
					ListingID: "l1", Outcome: model.OutcomeWinner, WinnerID: "bob", WinningBid: &winning,
				}, nil)
			},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, resp map[string]any) {
				data := resp["data"].(map[string]any)
				require.Equal(t, "winner", data["outcome"])
				require.Equal(t, "bob", data["winner_id"])
				require.Equal(t, "120.00", data["winning_bid"].(map[string]any)["amount"])
			},
		},
		{
			name:   "close_without_bids",
			method: http.MethodPost,
			path:   "/listings/l2/close",
			userID: "owner",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().CloseAuction(gomock.Any(), "l2", "owner").Return(model.CloseResult{ListingID: "l2", Outcome: model.OutcomeNoBids}, nil)
			},
			expectedStatus: http.StatusOK,
			validate: func(t *testing.T, resp map[string]any) {
				data := resp["data"].(map[string]any)
				require.Equal(t, "no_bids", data["outcome"])
				require.NotContains(t, data, "winner_id")
			},
		},
		{
			name:   "close_by_stranger",
			method: http.MethodPost,
			path:   "/listings/l1/close",
			userID: "mallory",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().CloseAuction(gomock.Any(), "l1", "mallory").Return(model.CloseResult{}, fmt.Errorf("service: %w", biddingerrors.ErrForbidden))
			},
			expectedStatus: http.StatusForbidden,
		},
		{
			name:   "delete_by_owner",
			method: http.MethodDelete,
			path:   "/listings/l1",
			userID: "owner",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().DeleteListing(gomock.Any(), "l1", "owner").Return(nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name:   "delete_lock_timeout",
			method: http.MethodDelete,
			path:   "/listings/l1",
			userID: "owner",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().DeleteListing(gomock.Any(), "l1", "owner").
					Return(biddingerrors.Infrastructure("service: lock listing l1", biddingerrors.ErrLockUnavailable))
			},
			expectedStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			router, mockService := setupRouter(t)
			tc.mockSetup(mockService)

			w, resp := do(router, httptest.NewRequest(tc.method, tc.path, nil), tc.userID)
			require.Equal(t, tc.expectedStatus, w.Code, w.Body.String())
			if tc.validate != nil {
				tc.validate(t, resp)
			}
		})
	}
}

// Test GetBidsByItemHandler and GetBidHistoryHandler
func TestBidListHandlers(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	twoBids := []model.Bid{
		{BidID: uuid.NewString(), ItemID: "item1", UserID: "user2", Amount: decimal.RequireFromString("150"), CreatedAt: now},
		{BidID: uuid.NewString(), ItemID: "item1", UserID: "user1", Amount: decimal.RequireFromString("100"), CreatedAt: now},
	}
	manyBids := make([]model.Bid, 1000)
	for i := range manyBids {
		manyBids[i] = model.Bid{BidID: uuid.NewString(), ItemID: "item6", UserID: fmt.Sprintf("user%d", i), Amount: decimal.NewFromInt(int64(i + 1)), CreatedAt: now}
	}

	tests := []struct {
		name           string
		path           string
		mockSetup      func(m *MockBiddingServiceInterface)
		expectedStatus int
		expectedLen    int
	}{
		{
			name: "success_multiple_bids",
			path: "/listings/item1/bids",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().GetBidsForItem(gomock.Any(), "item1").Return(twoBids, nil)
			},
			expectedStatus: http.StatusOK,
			expectedLen:    2,
		},
		{
			name: "service_no_bids_error",
			path: "/listings/item3/bids",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().GetBidsForItem(gomock.Any(), "item3").Return(nil, biddingerrors.ErrNoBids)
			},
			expectedStatus: http.StatusOK,
			expectedLen:    0,
		},
		{
			name: "service_generic_error",
			path: "/listings/item4/bids",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().GetBidsForItem(gomock.Any(), "item4").Return(nil, errors.New("database failure"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
		{
			name: "extremely_large_number_of_bids",
			path: "/listings/item6/bids",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().GetBidsForItem(gomock.Any(), "item6").Return(manyBids, nil)
			},
			expectedStatus: http.StatusOK,
			expectedLen:    1000,
		},
		{
			name: "history",
			path: "/listings/item1/history",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().GetBidHistory(gomock.Any(), "item1").Return(twoBids, nil)
			},
			expectedStatus: http.StatusOK,
			expectedLen:    2,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			router, mockService := setupRouter(t)
			tc.mockSetup(mockService)

			w, resp := do(router, httptest.NewRequest(http.MethodGet, tc.path, nil), "")
			require.Equal(t, tc.expectedStatus, w.Code)
			if w.Code == http.StatusOK {
				require.Len(t, resp["data"].([]any), tc.expectedLen)
			}
		})
	}
}

// Test WinningBidHandler
func TestGetWinningBidHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		itemID         string
		mockSetup      func(m *MockBiddingServiceInterface)
		expectedStatus int
		expectedMsg    string
	}{
		{
			name:   "success",
			itemID: "item1",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().GetWinningBid(gomock.Any(), "item1").Return(model.Bid{BidID: "b1", ItemID: "item1", UserID: "user1", Amount: decimal.RequireFromString("100")}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedMsg:    "winning bid retrieved successfully",
		},
		{
			name:   "no_bids",
			itemID: "item2",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().GetWinningBid(gomock.Any(), "item2").Return(model.Bid{}, biddingerrors.ErrNoBids)
			},
			expectedStatus: http.StatusNotFound,
			expectedMsg:    "no winning bid found",
		},
		{
			name:   "service_error",
			itemID: "item3",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().GetWinningBid(gomock.Any(), "item3").Return(model.Bid{}, errors.New("boom"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedMsg:    "internal server error",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			router, mockService := setupRouter(t)
			tc.mockSetup(mockService)

			w, resp := do(router, httptest.NewRequest(http.MethodGet, "/listings/"+tc.itemID+"/winning", nil), "")
			require.Equal(t, tc.expectedStatus, w.Code)
			require.Contains(t, resp["message"], tc.expectedMsg)
		})
	}
}

// Test GetItemsByUserHandler
func TestGetItemsByUserHandler(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		userID         string
		mockSetup      func(m *MockBiddingServiceInterface)
		expectedStatus int
		expectedLen    int
	}{
		{
			name:   "user_with_items",
			userID: "user1",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().GetItemsByUser(gomock.Any(), "user1").Return([]model.Listing{
					{ListingID: "item1", Title: "Laptop", StartingPrice: decimal.RequireFromString("500")},
					{ListingID: "item2", Title: "Phone", StartingPrice: decimal.RequireFromString("300")},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedLen:    2,
		},
		{
			name:   "user_without_bids",
			userID: "user2",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().GetItemsByUser(gomock.Any(), "user2").Return(nil, biddingerrors.ErrUserNoBids)
			},
			expectedStatus: http.StatusOK,
			expectedLen:    0,
		},
		{
			name:   "service_error",
			userID: "user3",
			mockSetup: func(m *MockBiddingServiceInterface) {
				m.EXPECT().GetItemsByUser(gomock.Any(), "user3").Return(nil, errors.New("boom"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			router, mockService := setupRouter(t)
			tc.mockSetup(mockService)

			w, resp := do(router, httptest.NewRequest(http.MethodGet, "/users/"+tc.userID+"/listings", nil), "")
			require.Equal(t, tc.expectedStatus, w.Code)
			if w.Code == http.StatusOK {
				require.Len(t, resp["data"].([]any), tc.expectedLen)
			}
		})
	}
}

func TestListListingsHandler(t *testing.T) {
	t.Parallel()

	t.Run("active_listings_with_bid_counts", func(t *testing.T) {
		t.Parallel()
		router, mockService := setupRouter(t)
		mockService.EXPECT().ListActiveListings(gomock.Any()).Return([]model.Listing{
			{ListingID: "item2", Title: "Phone", StartingPrice: decimal.RequireFromString("300"), IsActive: true},
			{ListingID: "item1", Title: "Laptop", StartingPrice: decimal.RequireFromString("500"), CurrentPrice: decimal.RequireFromString("512"), IsActive: true, BidCount: 3},
		}, nil)

		w, resp := do(router, httptest.NewRequest(http.MethodGet, "/listings", nil), "")
		require.Equal(t, http.StatusOK, w.Code)
		data := resp["data"].([]any)
		require.Len(t, data, 2)
		require.Equal(t, "item2", data[0].(map[string]any)["listing_id"])
		require.EqualValues(t, 0, data[0].(map[string]any)["bid_count"])
		require.EqualValues(t, 3, data[1].(map[string]any)["bid_count"])
		require.Equal(t, "512.00", data[1].(map[string]any)["current_price"])
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		router, mockService := setupRouter(t)
		mockService.EXPECT().ListActiveListings(gomock.Any()).Return([]model.Listing{}, nil)

		w, resp := do(router, httptest.NewRequest(http.MethodGet, "/listings", nil), "")
		require.Equal(t, http.StatusOK, w.Code)
		require.Empty(t, resp["data"])
	})

	t.Run("store_unavailable", func(t *testing.T) {
		t.Parallel()
		router, mockService := setupRouter(t)
		mockService.EXPECT().ListActiveListings(gomock.Any()).Return(nil, biddingerrors.Infrastructure("service: list active listings", errors.New("database is locked")))

		w, _ := do(router, httptest.NewRequest(http.MethodGet, "/listings", nil), "")
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}
