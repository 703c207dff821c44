package bidstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"auctionhouse/internal/auctionerrors"
	"auctionhouse/internal/models"
)

// Store reads the append-only bid ledger. Writes happen inside the auction
// store's acceptance transaction, never here.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store { return &Store{db: db} }

const bidCols = `id, auction_id, bidder_id, amount, is_auto_bid, max_auto_bid, created_at`

// ListByAuction returns the bid history, best bid first; equal amounts cannot
// occur but created_at keeps the order total anyway.
func (s *Store) ListByAuction(ctx context.Context, auctionID string) ([]models.Bid, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bidCols+` FROM bids WHERE auction_id = $1
		  ORDER BY amount DESC, created_at ASC`, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

// Winning returns the current highest bid for an auction.
func (s *Store) Winning(ctx context.Context, auctionID string) (*models.Bid, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bidCols+` FROM bids WHERE auction_id = $1
		  ORDER BY amount DESC, created_at ASC LIMIT 1`, auctionID)
	b, err := scanBid(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("auction %s: %w", auctionID, auctionerrors.ErrNoBids)
	}
	return b, err
}

// HighestAutoBid finds the strongest standing proxy bid able to reach at
// least minMax, skipping the bidder currently in the lead. Ties on the
// declared maximum go to the earliest bid.
func (s *Store) HighestAutoBid(ctx context.Context, auctionID string, minMax float64, excludeBidder string) (*models.Bid, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bidCols+` FROM bids
		  WHERE auction_id = $1 AND is_auto_bid AND max_auto_bid >= $2 AND bidder_id <> $3
		  ORDER BY max_auto_bid DESC, created_at ASC LIMIT 1`,
		auctionID, minMax, excludeBidder)
	b, err := scanBid(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("auction %s: %w", auctionID, auctionerrors.ErrNoBids)
	}
	return b, err
}

func (s *Store) CountByAuction(ctx context.Context, auctionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM bids WHERE auction_id = $1`, auctionID).Scan(&n)
	return n, err
}

// ListActiveByBidder returns a user's bids on auctions that are still open.
func (s *Store) ListActiveByBidder(ctx context.Context, bidderID string) ([]models.Bid, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT b.id, b.auction_id, b.bidder_id, b.amount, b.is_auto_bid, b.max_auto_bid, b.created_at
		   FROM bids b
		   JOIN auctions a ON a.id = b.auction_id
		  WHERE b.bidder_id = $1 AND a.status = 'OPEN' AND a.end_time > now()
		  ORDER BY b.created_at DESC`, bidderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collect(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBid(row rowScanner) (*models.Bid, error) {
	b := &models.Bid{}
	if err := row.Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.Amount,
		&b.IsAutoBid, &b.MaxAutoBid, &b.CreatedAt); err != nil {
		return nil, err
	}
	return b, nil
}

func collect(rows *sql.Rows) ([]models.Bid, error) {
	var list []models.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *b)
	}
	return list, rows.Err()
}
