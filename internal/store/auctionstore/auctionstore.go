package auctionstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"auctionhouse/internal/auctionerrors"
	"auctionhouse/internal/models"

	"github.com/google/uuid"
)

// Store is the durable home of auction records and the sole writer of
// current_price.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store { return &Store{db: db} }

const auctionCols = `id, seller_id, item_name, category, description, image_url,
       starting_bid, current_price, min_increment, status,
       coalesce(winner_id::text,''), end_time, created_at`

// Create validates and persists a new listing. The caller supplies ID,
// CurrentPrice and CreatedAt via prepare.
func (s *Store) Create(ctx context.Context, a *models.Auction) error {
	if err := prepare(a); err != nil {
		return err
	}

	const q = `
	  INSERT INTO auctions (id, seller_id, item_name, category, description,
	                        image_url, starting_bid, current_price, min_increment,
	                        status, end_time, created_at)
	       VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := s.db.ExecContext(ctx, q,
		a.ID, a.SellerID, a.ItemName, a.Category, a.Description,
		a.ImageURL, a.StartingBid, a.CurrentPrice, a.MinIncrement,
		string(a.Status), a.EndTime, a.CreatedAt,
	)
	return err
}

// prepare fills the generated fields and enforces the creation rules.
func prepare(a *models.Auction) error {
	if a.StartingBid <= 0 {
		return fmt.Errorf("%w: starting bid must be positive", auctionerrors.ErrValidation)
	}
	now := time.Now().UTC()
	if !a.EndTime.After(now) {
		return fmt.Errorf("%w: end time must be in the future", auctionerrors.ErrValidation)
	}
	if a.MinIncrement <= 0 {
		return fmt.Errorf("%w: minimum increment must be positive", auctionerrors.ErrValidation)
	}
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	a.CurrentPrice = a.StartingBid
	a.Status = models.AuctionOpen
	a.CreatedAt = now
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.Auction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+auctionCols+` FROM auctions WHERE id = $1`, id)
	return scanAuction(row)
}

// ListOpen returns open auctions (end time still ahead) newest-first, or
// ordered by price / end time ascending when requested. The limit/offset pair
// makes the sequence restartable from any point.
func (s *Store) ListOpen(ctx context.Context, f models.AuctionFilter) ([]models.Auction, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}

	q := `SELECT ` + auctionCols + ` FROM auctions
	       WHERE status = 'OPEN' AND end_time > now()`
	args := []any{}
	if f.Category != "" {
		args = append(args, f.Category)
		q += fmt.Sprintf(" AND category = $%d", len(args))
	}
	switch f.Sort {
	case "price":
		q += " ORDER BY current_price ASC"
	case "end_time":
		q += " ORDER BY end_time ASC"
	default:
		q += " ORDER BY created_at DESC"
	}
	args = append(args, f.Limit)
	q += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, f.Offset)
	q += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]models.Auction, 0, f.Limit)
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

func (s *Store) ListBySeller(ctx context.Context, sellerID string) ([]models.Auction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+auctionCols+` FROM auctions WHERE seller_id = $1 ORDER BY created_at DESC`,
		sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Auction
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *a)
	}
	return list, rows.Err()
}

// AcceptBid moves current_price to bid.Amount and appends the bid in one
// transaction. The price update is a compare-and-swap: it only lands if the
// stored price still equals expectedPrice and the window is still open, so a
// concurrent bid can never be silently overwritten. Zero rows updated is
// classified as ErrNotFound, ErrAuctionClosed or ErrConflict.
func (s *Store) AcceptBid(ctx context.Context, bid *models.Bid, expectedPrice float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const cas = `
	  UPDATE auctions SET current_price = $1
	   WHERE id = $2 AND current_price = $3
	     AND status = 'OPEN' AND end_time > now()`
	res, err := tx.ExecContext(ctx, cas, bid.Amount, bid.AuctionID, expectedPrice)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return s.classifyLostUpdate(ctx, bid.AuctionID)
	}

	const ins = `
	  INSERT INTO bids (id, auction_id, bidder_id, amount, is_auto_bid, max_auto_bid, created_at)
	       VALUES ($1,$2,$3,$4,$5,$6,$7)`
	if _, err := tx.ExecContext(ctx, ins,
		bid.ID, bid.AuctionID, bid.BidderID, bid.Amount,
		bid.IsAutoBid, bid.MaxAutoBid, bid.CreatedAt,
	); err != nil {
		return err
	}
	return tx.Commit()
}

// classifyLostUpdate decides why a compare-and-swap missed.
func (s *Store) classifyLostUpdate(ctx context.Context, auctionID string) error {
	var status string
	var endTime time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT status, end_time FROM auctions WHERE id = $1`, auctionID).
		Scan(&status, &endTime)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("auction %s: %w", auctionID, auctionerrors.ErrNotFound)
	case err != nil:
		return err
	case status != string(models.AuctionOpen) || !time.Now().UTC().Before(endTime):
		return auctionerrors.ErrAuctionClosed
	default:
		return auctionerrors.ErrConflict
	}
}

// Settle flips an OPEN auction to SETTLED and records the winner, guarded by
// the same status check that gates bids so a late bid and a settlement cannot
// both win. Settling an already settled auction is a no-op.
func (s *Store) Settle(ctx context.Context, id string) (*models.Auction, error) {
	const q = `
	  UPDATE auctions
	     SET status = 'SETTLED',
	         winner_id = (SELECT bidder_id FROM bids
	                       WHERE auction_id = $1
	                       ORDER BY amount DESC, created_at ASC
	                       LIMIT 1)
	   WHERE id = $1 AND status = 'OPEN'`
	if _, err := s.db.ExecContext(ctx, q, id); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// ExpiredOpen lists auctions whose window has lapsed but are still OPEN.
// Used by the settlement sweeper as a backstop for missed expiry events.
func (s *Store) ExpiredOpen(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM auctions WHERE status = 'OPEN' AND end_time <= now() LIMIT $1`,
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuction(row rowScanner) (*models.Auction, error) {
	a := &models.Auction{}
	var status string
	err := row.Scan(&a.ID, &a.SellerID, &a.ItemName, &a.Category, &a.Description,
		&a.ImageURL, &a.StartingBid, &a.CurrentPrice, &a.MinIncrement,
		&status, &a.WinnerID, &a.EndTime, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auctionerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Status = models.AuctionStatus(status)
	return a, nil
}
