package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"auction-core/internal/biddingerrors"
	model "auction-core/internal/models"
)

// MemoryRepo is a concurrency-safe in-memory implementation of AuctionDB
type MemoryRepo struct {
	mu        sync.RWMutex
	bids      map[string][]model.Bid   // key: itemID -> value: bids in acceptance order
	items     map[string]model.Listing // key: itemID -> value: listing
	userItems map[string][]string      // key: userID -> value: list of itemIDs user has bid on
}

// NewMemoryRepo creates a new in-memory repository instance
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		bids:      make(map[string][]model.Bid),
		items:     make(map[string]model.Listing),
		userItems: make(map[string][]string),
	}
}

// CreateListing stores a new listing, initialising its current price
func (r *MemoryRepo) CreateListing(_ context.Context, listing model.Listing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if listing.ListingID == "" {
		return fmt.Errorf("create listing: %w - empty listing ID", biddingerrors.ErrInvalidListing)
	}
	if _, err := model.ToCents(listing.StartingPrice); err != nil {
		return fmt.Errorf("create listing %s: %w", listing.ListingID, biddingerrors.ErrInvalidListing)
	}
	if _, ok := r.items[listing.ListingID]; ok {
		return fmt.Errorf("create listing %s: %w - listing ID already exists", listing.ListingID, biddingerrors.ErrInvalidListing)
	}
	for _, existing := range r.items {
		if existing.Title == listing.Title {
			return fmt.Errorf("create listing %s: %w", listing.ListingID, biddingerrors.ErrDuplicateTitle)
		}
	}

	listing.CurrentPrice = listing.GetCurrentPrice()
	r.items[listing.ListingID] = listing
	return nil
}

// GetListing returns a listing by ID
func (r *MemoryRepo) GetListing(_ context.Context, listingID string) (model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	listing, ok := r.items[listingID]
	if !ok {
		return model.Listing{}, fmt.Errorf("get listing %s: %w", listingID, biddingerrors.ErrItemNotFound)
	}
	listing.BidCount = len(r.bids[listingID])
	return listing, nil
}

// GetBidsByItem returns all bids for an item, highest first
func (r *MemoryRepo) GetBidsByItem(_ context.Context, itemID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bids, ok := r.bids[itemID]
	if !ok || len(bids) == 0 {
		return nil, fmt.Errorf("get bids for item %s: %w", itemID, biddingerrors.ErrNoBids)
	}
	out := append([]model.Bid(nil), bids...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Outranks(out[j]) })
	return out, nil
}

// GetBidHistory returns all bids for an item in acceptance order
func (r *MemoryRepo) GetBidHistory(_ context.Context, itemID string) ([]model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bids, ok := r.bids[itemID]
	if !ok || len(bids) == 0 {
		return nil, fmt.Errorf("get bid history for item %s: %w", itemID, biddingerrors.ErrNoBids)
	}
	return append([]model.Bid(nil), bids...), nil
}

// GetWinningBid returns the highest bid for an item
func (r *MemoryRepo) GetWinningBid(_ context.Context, itemID string) (model.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	winning, ok := highestBid(r.bids[itemID])
	if !ok {
		return model.Bid{}, fmt.Errorf("get winning bid for item %s: %w", itemID, biddingerrors.ErrNoBids)
	}
	return winning, nil
}

// GetItemsByUser returns all listings a user has bid on
func (r *MemoryRepo) GetItemsByUser(_ context.Context, userID string) ([]model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	itemIDs, ok := r.userItems[userID]
	if !ok || len(itemIDs) == 0 {
		return nil, fmt.Errorf("get items for user %s: %w", userID, biddingerrors.ErrUserNoBids)
	}

	items := make([]model.Listing, 0, len(itemIDs))
	for _, id := range itemIDs {
		if item, exists := r.items[id]; exists {
			item.BidCount = len(r.bids[id])
			items = append(items, item)
		}
	}
	return items, nil
}

// ListActiveListings returns active listings, newest first
func (r *MemoryRepo) ListActiveListings(_ context.Context) ([]model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := make([]model.Listing, 0, len(r.items))
	for id, l := range r.items {
		if l.IsActive {
			l.BidCount = len(r.bids[id])
			active = append(active, l)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if !active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].CreatedAt.After(active[j].CreatedAt)
		}
		return active[i].ListingID > active[j].ListingID
	})
	return active, nil
}

// ListExpiredListings returns active listings whose end date is at or before now
func (r *MemoryRepo) ListExpiredListings(_ context.Context, now time.Time) ([]model.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var expired []model.Listing
	for _, l := range r.items {
		if l.IsActive && l.EndDate != nil && !now.Before(*l.EndDate) {
			expired = append(expired, l)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].EndDate.Before(*expired[j].EndDate) })
	return expired, nil
}

// InTx serialises transactions behind the repository lock and applies staged
// writes only when fn succeeds.
func (r *MemoryRepo) InTx(ctx context.Context, fn func(tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memoryTx{
		repo:     r,
		listings: make(map[string]model.Listing),
		deleted:  make(map[string]bool),
	}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// Close is a no-op for the in-memory store
func (r *MemoryRepo) Close() error {
	return nil
}

// memoryTx stages writes until commit; callers hold repo.mu for its lifetime.
type memoryTx struct {
	repo     *MemoryRepo
	listings map[string]model.Listing
	deleted  map[string]bool
	newBids  []model.Bid
}

func (tx *memoryTx) listing(listingID string) (model.Listing, bool) {
	if tx.deleted[listingID] {
		return model.Listing{}, false
	}
	if l, ok := tx.listings[listingID]; ok {
		return l, true
	}
	l, ok := tx.repo.items[listingID]
	return l, ok
}

func (tx *memoryTx) GetListingForUpdate(_ context.Context, listingID string) (model.Listing, error) {
	l, ok := tx.listing(listingID)
	if !ok {
		return model.Listing{}, fmt.Errorf("get listing %s for update: %w", listingID, biddingerrors.ErrItemNotFound)
	}
	return l, nil
}

func (tx *memoryTx) InsertBid(_ context.Context, bid model.Bid) error {
	if _, ok := tx.listing(bid.ItemID); !ok {
		return fmt.Errorf("record bid for item %s: %w", bid.ItemID, biddingerrors.ErrItemNotFound)
	}
	// same storable range as the SQL store
	if _, err := model.ToCents(bid.Amount); err != nil {
		return fmt.Errorf("record bid for item %s: %w", bid.ItemID, err)
	}
	tx.newBids = append(tx.newBids, bid)
	return nil
}

func (tx *memoryTx) UpdateCurrentPrice(_ context.Context, listingID string, expected, next decimal.Decimal) error {
	l, ok := tx.listing(listingID)
	if !ok {
		return fmt.Errorf("update price of item %s: %w", listingID, biddingerrors.ErrItemNotFound)
	}
	if !l.GetCurrentPrice().Equal(expected) {
		return fmt.Errorf("update price of item %s: %w", listingID, biddingerrors.ErrConcurrentUpdate)
	}
	l.CurrentPrice = next
	tx.listings[listingID] = l
	return nil
}

func (tx *memoryTx) GetWinningBid(_ context.Context, listingID string) (model.Bid, error) {
	if _, ok := tx.listing(listingID); !ok {
		return model.Bid{}, fmt.Errorf("get winning bid for item %s: %w", listingID, biddingerrors.ErrItemNotFound)
	}
	candidates := append([]model.Bid(nil), tx.repo.bids[listingID]...)
	for _, b := range tx.newBids {
		if b.ItemID == listingID {
			candidates = append(candidates, b)
		}
	}
	winning, ok := highestBid(candidates)
	if !ok {
		return model.Bid{}, fmt.Errorf("get winning bid for item %s: %w", listingID, biddingerrors.ErrNoBids)
	}
	return winning, nil
}

func (tx *memoryTx) CloseListing(_ context.Context, listingID, winnerID string) error {
	l, ok := tx.listing(listingID)
	if !ok {
		return fmt.Errorf("close listing %s: %w", listingID, biddingerrors.ErrItemNotFound)
	}
	l.IsActive = false
	l.WinnerID = winnerID
	tx.listings[listingID] = l
	return nil
}

func (tx *memoryTx) DeleteListing(_ context.Context, listingID string) error {
	if _, ok := tx.listing(listingID); !ok {
		return fmt.Errorf("delete listing %s: %w", listingID, biddingerrors.ErrItemNotFound)
	}
	delete(tx.listings, listingID)
	tx.deleted[listingID] = true
	return nil
}

func (tx *memoryTx) commit() {
	r := tx.repo
	for id, l := range tx.listings {
		r.items[id] = l
	}
	for _, bid := range tx.newBids {
		if tx.deleted[bid.ItemID] {
			continue
		}
		r.bids[bid.ItemID] = append(r.bids[bid.ItemID], bid)
		r.trackUserItem(bid.UserID, bid.ItemID)
	}
	for id := range tx.deleted {
		delete(r.items, id)
		delete(r.bids, id)
		for userID, itemIDs := range r.userItems {
			r.userItems[userID] = removeID(itemIDs, id)
		}
	}
}

func (r *MemoryRepo) trackUserItem(userID, itemID string) {
	for _, id := range r.userItems[userID] {
		if id == itemID {
			return
		}
	}
	r.userItems[userID] = append(r.userItems[userID], itemID)
}

func removeID(ids []string, target string) []string {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
