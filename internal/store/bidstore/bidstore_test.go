package bidstore

import (
	"context"
	"testing"
	"time"

	"auctionhouse/internal/auctionerrors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

var bidColNames = []string{
	"id", "auction_id", "bidder_id", "amount", "is_auto_bid", "max_auto_bid", "created_at",
}

func newStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestListByAuctionOrdersBestFirst(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectQuery("SELECT (.+) FROM bids WHERE auction_id").
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(bidColNames).
			AddRow("b2", "a1", "u2", 650.0, false, 0.0, time.Now().UTC()).
			AddRow("b1", "a1", "u1", 600.0, false, 0.0, time.Now().UTC()))

	list, err := s.ListByAuction(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "b2", list[0].ID)
	require.Equal(t, float64(650), list[0].Amount)
}

func TestWinningNoBids(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectQuery("SELECT (.+) FROM bids WHERE auction_id").
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(bidColNames))

	_, err := s.Winning(context.Background(), "a1")
	require.ErrorIs(t, err, auctionerrors.ErrNoBids)
}

func TestWinning(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectQuery("SELECT (.+) FROM bids WHERE auction_id").
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(bidColNames).
			AddRow("b2", "a1", "u2", 650.0, false, 0.0, time.Now().UTC()))

	b, err := s.Winning(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, "u2", b.BidderID)
}

func TestHighestAutoBidSkipsLeader(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectQuery("SELECT (.+) FROM bids(.+)is_auto_bid AND max_auto_bid >=").
		WithArgs("a1", 700.0, "leader").
		WillReturnRows(sqlmock.NewRows(bidColNames).
			AddRow("b1", "a1", "u1", 550.0, true, 1000.0, time.Now().UTC()))

	b, err := s.HighestAutoBid(context.Background(), "a1", 700, "leader")
	require.NoError(t, err)
	require.Equal(t, "u1", b.BidderID)
	require.Equal(t, float64(1000), b.MaxAutoBid)
}

func TestHighestAutoBidNone(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectQuery("SELECT (.+) FROM bids(.+)is_auto_bid AND max_auto_bid >=").
		WithArgs("a1", 700.0, "leader").
		WillReturnRows(sqlmock.NewRows(bidColNames))

	_, err := s.HighestAutoBid(context.Background(), "a1", 700, "leader")
	require.ErrorIs(t, err, auctionerrors.ErrNoBids)
}

func TestCountByAuction(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectQuery("SELECT count").
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := s.CountByAuction(context.Background(), "a1")
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestListActiveByBidder(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectQuery("JOIN auctions a ON a.id = b.auction_id").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows(bidColNames).
			AddRow("b1", "a1", "u1", 600.0, false, 0.0, time.Now().UTC()))

	list, err := s.ListActiveByBidder(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "a1", list[0].AuctionID)
}
