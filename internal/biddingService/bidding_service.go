package bidding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"

	"auction-core/internal/biddingerrors"
	"auction-core/internal/events"
	"auction-core/internal/lock"
	"auction-core/internal/models"
	"auction-core/internal/repository"
	"auction-core/utils"
)

const defaultLockTimeout = 5 * time.Second

// BiddingService defines the business logic for auction bidding
type BiddingService struct {
	repo        repository.AuctionDB
	locker      lock.Locker
	publisher   events.Publisher
	now         func() time.Time
	lockTimeout time.Duration
	sanitizer   *bluemonday.Policy
}

type Option func(*BiddingService)

// WithLocker replaces the default in-process listing locker
func WithLocker(l lock.Locker) Option {
	return func(s *BiddingService) {
		s.locker = l
	}
}

// WithPublisher sets where committed bids and closures are announced
func WithPublisher(p events.Publisher) Option {
	return func(s *BiddingService) {
		s.publisher = p
	}
}

// WithClock overrides time.Now, mostly for tests
func WithClock(now func() time.Time) Option {
	return func(s *BiddingService) {
		s.now = now
	}
}

// WithLockTimeout bounds how long an operation waits for a busy listing
func WithLockTimeout(d time.Duration) Option {
	return func(s *BiddingService) {
		s.lockTimeout = d
	}
}

// NewBiddingService creates a new BiddingService instance
func NewBiddingService(repo repository.AuctionDB, opts ...Option) *BiddingService {
	s := &BiddingService{
		repo:        repo,
		locker:      lock.NewLocalLocker(),
		publisher:   events.NoopPublisher{},
		now:         func() time.Time { return time.Now().UTC() },
		lockTimeout: defaultLockTimeout,
		sanitizer:   bluemonday.UGCPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceBid validates and records bidderID's bid on a listing. The listing is
// re-read under its lock so validation never sees a stale price; the bid insert
// and the price update commit together or not at all.
func (s *BiddingService) PlaceBid(ctx context.Context, listingID, bidderID string, amount decimal.Decimal) (models.Bid, error) {
	if listingID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - empty listing ID", biddingerrors.ErrInvalidBid)
	}
	if !models.HasMoneyPrecision(amount) {
		return models.Bid{}, biddingerrors.Reject(biddingerrors.ReasonMalformedAmount,
			"Bid amount cannot have more than %d decimal places.", models.MoneyPlaces)
	}
	if !models.WithinMaxAmount(amount) {
		return models.Bid{}, models.RejectTooLarge()
	}

	unlock, err := s.lockListing(ctx, listingID)
	if err != nil {
		return models.Bid{}, err
	}
	defer unlock()

	var bid models.Bid
	err = s.repo.InTx(ctx, func(tx repository.Tx) error {
		listing, err := tx.GetListingForUpdate(ctx, listingID)
		if err != nil {
			return err
		}

		now := s.now()
		if err := Validate(listing, bidderID, amount, now); err != nil {
			return err
		}

		bid = models.Bid{
			BidID:     utils.GenerateID(),
			ItemID:    listingID,
			UserID:    bidderID,
			Amount:    amount,
			CreatedAt: now,
		}
		if err := tx.InsertBid(ctx, bid); err != nil {
			return err
		}
		return tx.UpdateCurrentPrice(ctx, listingID, listing.GetCurrentPrice(), amount)
	})
	if err != nil {
		if rej, ok := biddingerrors.AsRejection(err); ok {
			utils.Info("bid rejected", map[string]any{
				"listing_id": listingID,
				"bidder_id":  bidderID,
				"amount":     amount.StringFixed(models.MoneyPlaces),
				"reason":     string(rej.Reason),
			})
		}
		return models.Bid{}, s.classify("place bid on listing "+listingID, err)
	}

	utils.Info("bid accepted", map[string]any{
		"listing_id": listingID,
		"bid_id":     bid.BidID,
		"bidder_id":  bidderID,
		"amount":     amount.StringFixed(models.MoneyPlaces),
	})
	s.publishBidPlaced(ctx, bid)

	return bid, nil
}

// CloseAuction ends the auction on behalf of its owner. Closing an auction
// that is already closed returns the recorded outcome and changes nothing.
func (s *BiddingService) CloseAuction(ctx context.Context, listingID, requesterID string) (models.CloseResult, error) {
	if listingID == "" {
		return models.CloseResult{}, fmt.Errorf("service: %w - empty listing ID", biddingerrors.ErrInvalidListing)
	}

	unlock, err := s.lockListing(ctx, listingID)
	if err != nil {
		return models.CloseResult{}, err
	}
	defer unlock()

	var (
		result   models.CloseResult
		closedAt time.Time
	)
	err = s.repo.InTx(ctx, func(tx repository.Tx) error {
		listing, err := tx.GetListingForUpdate(ctx, listingID)
		if err != nil {
			return err
		}
		if requesterID == "" || requesterID != listing.OwnerID {
			return fmt.Errorf("%w - only the owner can close listing %s", biddingerrors.ErrForbidden, listingID)
		}
		result, closedAt, err = s.closeInTx(ctx, tx, listing)
		return err
	})
	if err != nil {
		return models.CloseResult{}, s.classify("close listing "+listingID, err)
	}

	if !closedAt.IsZero() {
		s.announceClosed(ctx, result, closedAt)
	}
	return result, nil
}

// CloseExpired closes every active listing whose end date has passed.
// It acts as the system, so no owner check applies. Failures on one listing
// do not stop the others; the number closed is returned with any errors joined.
func (s *BiddingService) CloseExpired(ctx context.Context) (int, error) {
	expired, err := s.repo.ListExpiredListings(ctx, s.now())
	if err != nil {
		return 0, biddingerrors.Infrastructure("service: list expired listings", err)
	}

	closed := 0
	var errs []error
	for _, candidate := range expired {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		ok, err := s.closeIfExpired(ctx, candidate.ListingID)
		if err != nil {
			utils.Error("failed to close expired listing", map[string]any{"listing_id": candidate.ListingID, "error": err.Error()})
			errs = append(errs, err)
			continue
		}
		if ok {
			closed++
		}
	}
	return closed, errors.Join(errs...)
}

func (s *BiddingService) closeIfExpired(ctx context.Context, listingID string) (bool, error) {
	unlock, err := s.lockListing(ctx, listingID)
	if err != nil {
		return false, err
	}
	defer unlock()

	var (
		result   models.CloseResult
		closedAt time.Time
	)
	err = s.repo.InTx(ctx, func(tx repository.Tx) error {
		listing, err := tx.GetListingForUpdate(ctx, listingID)
		if err != nil {
			return err
		}
		// re-checked under the lock: the owner may have closed it meanwhile
		if !listing.IsActive || listing.IsAuctionActive(s.now()) {
			return nil
		}
		result, closedAt, err = s.closeInTx(ctx, tx, listing)
		return err
	})
	if err != nil {
		return false, s.classify("close expired listing "+listingID, err)
	}
	if closedAt.IsZero() {
		return false, nil
	}
	s.announceClosed(ctx, result, closedAt)
	return true, nil
}

// closeInTx finalises listing. closedAt is zero when the listing was already closed.
func (s *BiddingService) closeInTx(ctx context.Context, tx repository.Tx, listing models.Listing) (models.CloseResult, time.Time, error) {
	result := models.CloseResult{ListingID: listing.ListingID}

	if !listing.IsActive {
		if !listing.HasWinner() {
			result.Outcome = models.OutcomeNoBids
			return result, time.Time{}, nil
		}
		result.Outcome = models.OutcomeWinner
		result.WinnerID = listing.WinnerID
		winning, err := tx.GetWinningBid(ctx, listing.ListingID)
		if err != nil && !errors.Is(err, biddingerrors.ErrNoBids) {
			return models.CloseResult{}, time.Time{}, err
		}
		if err == nil && winning.UserID == listing.WinnerID {
			result.WinningBid = &winning
		}
		return result, time.Time{}, nil
	}

	winning, err := tx.GetWinningBid(ctx, listing.ListingID)
	switch {
	case errors.Is(err, biddingerrors.ErrNoBids):
		if err := tx.CloseListing(ctx, listing.ListingID, ""); err != nil {
			return models.CloseResult{}, time.Time{}, err
		}
		result.Outcome = models.OutcomeNoBids
	case err != nil:
		return models.CloseResult{}, time.Time{}, err
	default:
		if err := tx.CloseListing(ctx, listing.ListingID, winning.UserID); err != nil {
			return models.CloseResult{}, time.Time{}, err
		}
		result.Outcome = models.OutcomeWinner
		result.WinnerID = winning.UserID
		result.WinningBid = &winning
	}
	return result, s.now(), nil
}

// CreateListing validates and stores a new active listing owned by ownerID
func (s *BiddingService) CreateListing(ctx context.Context, ownerID string, in models.NewListing) (models.Listing, error) {
	if ownerID == "" {
		return models.Listing{}, biddingerrors.Reject(biddingerrors.ReasonUnauthenticated, "You must be logged in to create a listing.")
	}

	title, err := validateTitle(in.Title)
	if err != nil {
		return models.Listing{}, err
	}
	description := s.sanitizer.Sanitize(in.Description)
	if err := validateDescription(description); err != nil {
		return models.Listing{}, err
	}
	if err := validateStartingPrice(in.StartingPrice); err != nil {
		return models.Listing{}, err
	}
	now := s.now()
	if err := validateEndDate(in.EndDate, now); err != nil {
		return models.Listing{}, err
	}

	listing := models.Listing{
		ListingID:     utils.GenerateID(),
		Title:         title,
		Description:   description,
		StartingPrice: in.StartingPrice,
		CurrentPrice:  in.StartingPrice,
		IsActive:      true,
		EndDate:       in.EndDate,
		OwnerID:       ownerID,
		CreatedAt:     now,
	}
	if listing.EndDate != nil {
		end := listing.EndDate.UTC()
		listing.EndDate = &end
	}

	if err := s.repo.CreateListing(ctx, listing); err != nil {
		if errors.Is(err, biddingerrors.ErrDuplicateTitle) || errors.Is(err, biddingerrors.ErrInvalidListing) {
			return models.Listing{}, fmt.Errorf("service: %w", err)
		}
		return models.Listing{}, biddingerrors.Infrastructure("service: create listing", err)
	}

	utils.Info("listing created", map[string]any{"listing_id": listing.ListingID, "owner_id": ownerID})
	return listing, nil
}

// DeleteListing removes a listing and all of its bids. Only the owner may delete.
func (s *BiddingService) DeleteListing(ctx context.Context, listingID, requesterID string) error {
	if listingID == "" {
		return fmt.Errorf("service: %w - empty listing ID", biddingerrors.ErrInvalidListing)
	}

	unlock, err := s.lockListing(ctx, listingID)
	if err != nil {
		return err
	}
	defer unlock()

	err = s.repo.InTx(ctx, func(tx repository.Tx) error {
		listing, err := tx.GetListingForUpdate(ctx, listingID)
		if err != nil {
			return err
		}
		if requesterID == "" || requesterID != listing.OwnerID {
			return fmt.Errorf("%w - only the owner can delete listing %s", biddingerrors.ErrForbidden, listingID)
		}
		return tx.DeleteListing(ctx, listingID)
	})
	if err != nil {
		return s.classify("delete listing "+listingID, err)
	}

	utils.Info("listing deleted", map[string]any{"listing_id": listingID, "owner_id": requesterID})
	return nil
}

// GetListing returns a snapshot of one listing
func (s *BiddingService) GetListing(ctx context.Context, listingID string) (models.Listing, error) {
	if listingID == "" {
		return models.Listing{}, fmt.Errorf("service: %w - empty listing ID", biddingerrors.ErrInvalidListing)
	}

	listing, err := s.repo.GetListing(ctx, listingID)
	if err != nil {
		return models.Listing{}, fmt.Errorf("service: failed to get listing %s: %w", listingID, err)
	}
	return listing, nil
}

// ListActiveListings returns the listings still open for bidding, newest first
func (s *BiddingService) ListActiveListings(ctx context.Context) ([]models.Listing, error) {
	listings, err := s.repo.ListActiveListings(ctx)
	if err != nil {
		return nil, biddingerrors.Infrastructure("service: list active listings", err)
	}
	return listings, nil
}

// GetBidsForItem returns all bids for a specific item, highest first
func (s *BiddingService) GetBidsForItem(ctx context.Context, itemID string) ([]models.Bid, error) {
	if itemID == "" {
		return nil, fmt.Errorf("service: %w - empty item ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.repo.GetBidsByItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bids for item %s: %w", itemID, err)
	}

	return bids, nil
}

// GetBidHistory returns all bids for a specific item in the order they were accepted
func (s *BiddingService) GetBidHistory(ctx context.Context, itemID string) ([]models.Bid, error) {
	if itemID == "" {
		return nil, fmt.Errorf("service: %w - empty item ID", biddingerrors.ErrInvalidBid)
	}

	bids, err := s.repo.GetBidHistory(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get bid history for item %s: %w", itemID, err)
	}

	return bids, nil
}

// GetWinningBid returns the highest bid for a specific item
func (s *BiddingService) GetWinningBid(ctx context.Context, itemID string) (models.Bid, error) {
	if itemID == "" {
		return models.Bid{}, fmt.Errorf("service: %w - empty item ID", biddingerrors.ErrInvalidBid)
	}

	winningBid, err := s.repo.GetWinningBid(ctx, itemID)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service: failed to get winning bid for item %s: %w", itemID, err)
	}

	return winningBid, nil
}

// GetItemsByUser returns all items a user has placed bids on
func (s *BiddingService) GetItemsByUser(ctx context.Context, userID string) ([]models.Listing, error) {
	if userID == "" {
		return nil, fmt.Errorf("service: %w - empty user ID", biddingerrors.ErrInvalidBid)
	}

	items, err := s.repo.GetItemsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service: failed to get items for user %s: %w", userID, err)
	}

	return items, nil
}

func (s *BiddingService) lockListing(ctx context.Context, listingID string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	unlock, err := s.locker.Lock(lockCtx, listingID)
	if err != nil {
		utils.Error("failed to lock listing", map[string]any{"listing_id": listingID, "error": err.Error()})
		return nil, biddingerrors.Infrastructure("service: lock listing "+listingID, err)
	}
	return unlock, nil
}

// classify keeps business outcomes recognisable and marks everything else as infrastructure
func (s *BiddingService) classify(op string, err error) error {
	switch {
	case errors.Is(err, biddingerrors.ErrBidRejected),
		errors.Is(err, biddingerrors.ErrForbidden),
		errors.Is(err, biddingerrors.ErrItemNotFound),
		errors.Is(err, biddingerrors.ErrInvalidListing):
		return fmt.Errorf("service: %s: %w", op, err)
	default:
		utils.Error("storage failure", map[string]any{"operation": op, "error": err.Error()})
		return biddingerrors.Infrastructure("service: "+op, err)
	}
}

func (s *BiddingService) publishBidPlaced(ctx context.Context, bid models.Bid) {
	evt := events.BidPlaced{
		BidID:        bid.BidID,
		ListingID:    bid.ItemID,
		BidderID:     bid.UserID,
		Amount:       bid.Amount.StringFixed(models.MoneyPlaces),
		CurrentPrice: bid.Amount.StringFixed(models.MoneyPlaces),
		PlacedAt:     bid.CreatedAt,
	}
	if err := s.publisher.PublishBidPlaced(ctx, evt); err != nil {
		utils.Warn("failed to publish bid event", map[string]any{"listing_id": bid.ItemID, "bid_id": bid.BidID, "error": err.Error()})
	}
}

func (s *BiddingService) announceClosed(ctx context.Context, result models.CloseResult, closedAt time.Time) {
	utils.Info("auction closed", map[string]any{
		"listing_id": result.ListingID,
		"outcome":    string(result.Outcome),
		"winner_id":  result.WinnerID,
	})

	evt := events.AuctionClosed{
		ListingID: result.ListingID,
		Outcome:   string(result.Outcome),
		WinnerID:  result.WinnerID,
		ClosedAt:  closedAt,
	}
	if result.WinningBid != nil {
		evt.WinningBid = result.WinningBid.Amount.StringFixed(models.MoneyPlaces)
	}
	if err := s.publisher.PublishAuctionClosed(ctx, evt); err != nil {
		utils.Warn("failed to publish close event", map[string]any{"listing_id": result.ListingID, "error": err.Error()})
	}
}
