package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"auction-core/internal/biddingerrors"
	model "auction-core/internal/models"
	"auction-core/utils"
)

// Dialect selects the SQL flavour spoken by SQLRepo
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

const listingColumns = "id, title, description, starting_price_cents, current_price_cents, is_active, end_date, owner_id, winner_id, created_at"

// countedListingColumns adds the number of bids to listingColumns
const countedListingColumns = listingColumns + ", (SELECT COUNT(*) FROM bids WHERE bids.listing_id = listings.id)"

const bidColumns = "id, listing_id, user_id, amount_cents, created_at"

const schema = `
	CREATE TABLE IF NOT EXISTS listings (
		id                   TEXT PRIMARY KEY,
		title                TEXT NOT NULL UNIQUE,
		description          TEXT NOT NULL,
		starting_price_cents BIGINT NOT NULL CHECK (starting_price_cents > 0),
		current_price_cents  BIGINT NOT NULL,
		is_active            BOOLEAN NOT NULL,
		end_date             TIMESTAMP,
		owner_id             TEXT NOT NULL,
		winner_id            TEXT,
		created_at           TIMESTAMP NOT NULL,
		CHECK (current_price_cents >= starting_price_cents)
	);

	CREATE TABLE IF NOT EXISTS bids (
		id           TEXT PRIMARY KEY,
		listing_id   TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
		user_id      TEXT NOT NULL,
		amount_cents BIGINT NOT NULL,
		created_at   TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_bids_listing_amount ON bids(listing_id, amount_cents);
	CREATE INDEX IF NOT EXISTS idx_bids_user_id ON bids(user_id);
`

// SQLRepo implements AuctionDB on database/sql for SQLite and PostgreSQL.
// Money is stored as integer cents.
type SQLRepo struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLiteRepo opens (and creates if needed) a SQLite database at path.
// Transactions start with BEGIN IMMEDIATE so writers serialise on the database.
func NewSQLiteRepo(path string) (*SQLRepo, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn := path + "?_txlock=immediate&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	return newSQLRepo(db, DialectSQLite)
}

// NewPostgresRepo connects to PostgreSQL using a lib/pq connection string.
func NewPostgresRepo(dsn string) (*SQLRepo, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newSQLRepo(db, DialectPostgres)
}

func newSQLRepo(db *sql.DB, dialect Dialect) (*SQLRepo, error) {
	r := &SQLRepo{db: db, dialect: dialect}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	utils.Info("SQL store initialized", map[string]any{"dialect": string(dialect)})
	return r, nil
}

// Close closes the database connection
func (r *SQLRepo) Close() error {
	return r.db.Close()
}

// CreateListing stores a new listing, initialising its current price
func (r *SQLRepo) CreateListing(ctx context.Context, listing model.Listing) error {
	if listing.ListingID == "" {
		return fmt.Errorf("create listing: %w - empty listing ID", biddingerrors.ErrInvalidListing)
	}
	startingCents, err := model.ToCents(listing.StartingPrice)
	if err != nil {
		return fmt.Errorf("create listing %s: %w", listing.ListingID, biddingerrors.ErrInvalidListing)
	}
	currentCents, err := model.ToCents(listing.GetCurrentPrice())
	if err != nil {
		return fmt.Errorf("create listing %s: %w", listing.ListingID, biddingerrors.ErrInvalidListing)
	}

	query := rebind(r.dialect, `INSERT INTO listings (`+listingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err = r.db.ExecContext(ctx, query,
		listing.ListingID,
		listing.Title,
		listing.Description,
		startingCents,
		currentCents,
		listing.IsActive,
		nullTime(listing.EndDate),
		listing.OwnerID,
		nullString(listing.WinnerID),
		listing.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err, "title") {
			return fmt.Errorf("create listing %s: %w", listing.ListingID, biddingerrors.ErrDuplicateTitle)
		}
		return fmt.Errorf("create listing %s: %w", listing.ListingID, err)
	}
	return nil
}

// GetListing returns a listing by ID
func (r *SQLRepo) GetListing(ctx context.Context, listingID string) (model.Listing, error) {
	row := r.db.QueryRowContext(ctx, rebind(r.dialect, `SELECT `+countedListingColumns+` FROM listings WHERE id = ?`), listingID)
	l, err := scanCountedListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Listing{}, fmt.Errorf("get listing %s: %w", listingID, biddingerrors.ErrItemNotFound)
	}
	if err != nil {
		return model.Listing{}, fmt.Errorf("get listing %s: %w", listingID, err)
	}
	return l, nil
}

// GetBidsByItem returns all bids for an item, highest first
func (r *SQLRepo) GetBidsByItem(ctx context.Context, itemID string) ([]model.Bid, error) {
	bids, err := r.queryBids(ctx, `SELECT `+bidColumns+` FROM bids WHERE listing_id = ? ORDER BY amount_cents DESC, created_at ASC, id ASC`, itemID)
	if err != nil {
		return nil, fmt.Errorf("get bids for item %s: %w", itemID, err)
	}
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bids for item %s: %w", itemID, biddingerrors.ErrNoBids)
	}
	return bids, nil
}

// GetBidHistory returns all bids for an item in acceptance order
func (r *SQLRepo) GetBidHistory(ctx context.Context, itemID string) ([]model.Bid, error) {
	// accepted amounts strictly increase, so amount breaks timestamp ties in acceptance order
	bids, err := r.queryBids(ctx, `SELECT `+bidColumns+` FROM bids WHERE listing_id = ? ORDER BY created_at ASC, amount_cents ASC`, itemID)
	if err != nil {
		return nil, fmt.Errorf("get bid history for item %s: %w", itemID, err)
	}
	if len(bids) == 0 {
		return nil, fmt.Errorf("get bid history for item %s: %w", itemID, biddingerrors.ErrNoBids)
	}
	return bids, nil
}

// GetWinningBid returns the highest bid for an item
func (r *SQLRepo) GetWinningBid(ctx context.Context, itemID string) (model.Bid, error) {
	return winningBid(ctx, r.db, r.dialect, itemID)
}

// GetItemsByUser returns all listings a user has bid on
func (r *SQLRepo) GetItemsByUser(ctx context.Context, userID string) ([]model.Listing, error) {
	rows, err := r.db.QueryContext(ctx, rebind(r.dialect,
		`SELECT `+countedListingColumns+` FROM listings WHERE id IN (SELECT listing_id FROM bids WHERE user_id = ?) ORDER BY created_at ASC`), userID)
	if err != nil {
		return nil, fmt.Errorf("get items for user %s: %w", userID, err)
	}
	listings, err := scanListings(rows, scanCountedListing)
	if err != nil {
		return nil, fmt.Errorf("get items for user %s: %w", userID, err)
	}
	if len(listings) == 0 {
		return nil, fmt.Errorf("get items for user %s: %w", userID, biddingerrors.ErrUserNoBids)
	}
	return listings, nil
}

// ListExpiredListings returns active listings whose end date is at or before now
func (r *SQLRepo) ListExpiredListings(ctx context.Context, now time.Time) ([]model.Listing, error) {
	rows, err := r.db.QueryContext(ctx, rebind(r.dialect,
		`SELECT `+listingColumns+` FROM listings WHERE is_active = ? AND end_date IS NOT NULL ORDER BY end_date ASC`), true)
	if err != nil {
		return nil, fmt.Errorf("list expired listings: %w", err)
	}
	listings, err := scanListings(rows, scanListing)
	if err != nil {
		return nil, fmt.Errorf("list expired listings: %w", err)
	}

	expired := listings[:0]
	for _, l := range listings {
		if !now.Before(*l.EndDate) {
			expired = append(expired, l)
		}
	}
	return expired, nil
}

// ListActiveListings returns active listings, newest first
func (r *SQLRepo) ListActiveListings(ctx context.Context) ([]model.Listing, error) {
	rows, err := r.db.QueryContext(ctx, rebind(r.dialect,
		`SELECT `+countedListingColumns+` FROM listings WHERE is_active = ? ORDER BY created_at DESC, id DESC`), true)
	if err != nil {
		return nil, fmt.Errorf("list active listings: %w", err)
	}
	listings, err := scanListings(rows, scanCountedListing)
	if err != nil {
		return nil, fmt.Errorf("list active listings: %w", err)
	}
	if listings == nil {
		listings = []model.Listing{}
	}
	return listings, nil
}

// InTx runs fn inside a database transaction, rolling back on any error
func (r *SQLRepo) InTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&sqlRepoTx{tx: sqlTx, dialect: r.dialect}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			utils.Error("transaction rollback failed", map[string]any{"error": rbErr.Error()})
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *SQLRepo) queryBids(ctx context.Context, query string, args ...any) ([]model.Bid, error) {
	rows, err := r.db.QueryContext(ctx, rebind(r.dialect, query), args...)
	if err != nil {
		return nil, err
	}
	return scanBids(rows)
}

type sqlRepoTx struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *sqlRepoTx) GetListingForUpdate(ctx context.Context, listingID string) (model.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = ?`
	if t.dialect == DialectPostgres {
		query += ` FOR UPDATE`
	}
	l, err := scanListing(t.tx.QueryRowContext(ctx, rebind(t.dialect, query), listingID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Listing{}, fmt.Errorf("get listing %s for update: %w", listingID, biddingerrors.ErrItemNotFound)
	}
	if err != nil {
		return model.Listing{}, fmt.Errorf("get listing %s for update: %w", listingID, err)
	}
	return l, nil
}

func (t *sqlRepoTx) InsertBid(ctx context.Context, bid model.Bid) error {
	cents, err := model.ToCents(bid.Amount)
	if err != nil {
		return fmt.Errorf("record bid for item %s: %w", bid.ItemID, err)
	}
	_, err = t.tx.ExecContext(ctx, rebind(t.dialect, `INSERT INTO bids (`+bidColumns+`) VALUES (?, ?, ?, ?, ?)`),
		bid.BidID, bid.ItemID, bid.UserID, cents, bid.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("record bid for item %s: %w", bid.ItemID, err)
	}
	return nil
}

func (t *sqlRepoTx) UpdateCurrentPrice(ctx context.Context, listingID string, expected, next decimal.Decimal) error {
	nextCents, err := model.ToCents(next)
	if err != nil {
		return fmt.Errorf("update price of item %s: %w", listingID, err)
	}
	expectedCents, err := model.ToCents(expected)
	if err != nil {
		return fmt.Errorf("update price of item %s: %w", listingID, err)
	}
	res, err := t.tx.ExecContext(ctx, rebind(t.dialect,
		`UPDATE listings SET current_price_cents = ? WHERE id = ? AND current_price_cents = ?`),
		nextCents, listingID, expectedCents)
	if err != nil {
		return fmt.Errorf("update price of item %s: %w", listingID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update price of item %s: %w", listingID, err)
	}
	if n != 1 {
		return fmt.Errorf("update price of item %s: %w", listingID, biddingerrors.ErrConcurrentUpdate)
	}
	return nil
}

func (t *sqlRepoTx) GetWinningBid(ctx context.Context, listingID string) (model.Bid, error) {
	return winningBid(ctx, t.tx, t.dialect, listingID)
}

func (t *sqlRepoTx) CloseListing(ctx context.Context, listingID, winnerID string) error {
	res, err := t.tx.ExecContext(ctx, rebind(t.dialect, `UPDATE listings SET is_active = ?, winner_id = ? WHERE id = ?`),
		false, nullString(winnerID), listingID)
	if err != nil {
		return fmt.Errorf("close listing %s: %w", listingID, err)
	}
	return requireOneRow(res, "close listing "+listingID)
}

func (t *sqlRepoTx) DeleteListing(ctx context.Context, listingID string) error {
	if _, err := t.tx.ExecContext(ctx, rebind(t.dialect, `DELETE FROM bids WHERE listing_id = ?`), listingID); err != nil {
		return fmt.Errorf("delete bids of listing %s: %w", listingID, err)
	}
	res, err := t.tx.ExecContext(ctx, rebind(t.dialect, `DELETE FROM listings WHERE id = ?`), listingID)
	if err != nil {
		return fmt.Errorf("delete listing %s: %w", listingID, err)
	}
	return requireOneRow(res, "delete listing "+listingID)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func winningBid(ctx context.Context, q queryer, dialect Dialect, itemID string) (model.Bid, error) {
	row := q.QueryRowContext(ctx, rebind(dialect,
		`SELECT `+bidColumns+` FROM bids WHERE listing_id = ? ORDER BY amount_cents DESC, created_at ASC, id ASC LIMIT 1`), itemID)
	bid, err := scanBid(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Bid{}, fmt.Errorf("get winning bid for item %s: %w", itemID, biddingerrors.ErrNoBids)
	}
	if err != nil {
		return model.Bid{}, fmt.Errorf("get winning bid for item %s: %w", itemID, err)
	}
	return bid, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanListing(s scanner) (model.Listing, error) {
	return scanListingInto(s)
}

func scanCountedListing(s scanner) (model.Listing, error) {
	var bidCount int
	l, err := scanListingInto(s, &bidCount)
	l.BidCount = bidCount
	return l, err
}

// scanListingInto scans the listingColumns followed by any extra columns
func scanListingInto(s scanner, extra ...any) (model.Listing, error) {
	var (
		l             model.Listing
		startingCents int64
		currentCents  int64
		endDate       sql.NullTime
		winnerID      sql.NullString
	)
	dest := []any{&l.ListingID, &l.Title, &l.Description, &startingCents, &currentCents,
		&l.IsActive, &endDate, &l.OwnerID, &winnerID, &l.CreatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return model.Listing{}, err
	}
	l.StartingPrice = model.FromCents(startingCents)
	l.CurrentPrice = model.FromCents(currentCents)
	if endDate.Valid {
		end := endDate.Time.UTC()
		l.EndDate = &end
	}
	l.WinnerID = winnerID.String
	l.CreatedAt = l.CreatedAt.UTC()
	return l, nil
}

func scanListings(rows *sql.Rows, scan func(scanner) (model.Listing, error)) ([]model.Listing, error) {
	defer rows.Close()
	var listings []model.Listing
	for rows.Next() {
		l, err := scan(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func scanBid(s scanner) (model.Bid, error) {
	var (
		b     model.Bid
		cents int64
	)
	if err := s.Scan(&b.BidID, &b.ItemID, &b.UserID, &cents, &b.CreatedAt); err != nil {
		return model.Bid{}, err
	}
	b.Amount = model.FromCents(cents)
	b.CreatedAt = b.CreatedAt.UTC()
	return b, nil
}

func scanBids(rows *sql.Rows) ([]model.Bid, error) {
	defer rows.Close()
	var bids []model.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	return bids, rows.Err()
}

func requireOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, biddingerrors.ErrItemNotFound)
	}
	return nil
}

// rebind rewrites ? placeholders into $n for PostgreSQL
func rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isUniqueViolation(err error, column string) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" && strings.Contains(pqErr.Constraint, column)
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, column)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
