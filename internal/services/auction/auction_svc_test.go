package auction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"auctionhouse/internal/auctionerrors"
	"auctionhouse/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// memStore is a concurrency-safe in-memory AuctionStore + BidStore with the
// same compare-and-swap semantics as the Postgres implementation.
type memStore struct {
	mu       sync.Mutex
	auctions map[string]*models.Auction
	bids     map[string][]models.Bid

	// price deltas applied by a simulated rival just before each CAS check;
	// each consumed delta forces one conflict.
	interlopers []float64
}

func newMemStore() *memStore {
	return &memStore{
		auctions: make(map[string]*models.Auction),
		bids:     make(map[string][]models.Bid),
	}
}

func (m *memStore) seed(a models.Auction) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CurrentPrice == 0 {
		a.CurrentPrice = a.StartingBid
	}
	if a.Status == "" {
		a.Status = models.AuctionOpen
	}
	m.auctions[a.ID] = &a
	return a.ID
}

func (m *memStore) Create(_ context.Context, a *models.Auction) error {
	if a.StartingBid <= 0 {
		return auctionerrors.ErrValidation
	}
	now := time.Now().UTC()
	if !a.EndTime.After(now) {
		return auctionerrors.ErrValidation
	}
	if a.MinIncrement <= 0 {
		return auctionerrors.ErrValidation
	}
	a.ID = uuid.New().String()
	a.CurrentPrice = a.StartingBid
	a.Status = models.AuctionOpen
	a.CreatedAt = now

	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.auctions[a.ID] = &cp
	return nil
}

func (m *memStore) Get(_ context.Context, id string) (*models.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auctions[id]
	if !ok {
		return nil, auctionerrors.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) ListOpen(_ context.Context, f models.AuctionFilter) ([]models.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var out []models.Auction
	for _, a := range m.auctions {
		if a.Status == models.AuctionOpen && now.Before(a.EndTime) {
			if f.Category == "" || a.Category == f.Category {
				out = append(out, *a)
			}
		}
	}
	return out, nil
}

func (m *memStore) ListBySeller(_ context.Context, sellerID string) ([]models.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Auction
	for _, a := range m.auctions {
		if a.SellerID == sellerID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memStore) AcceptBid(_ context.Context, bid *models.Bid, expectedPrice float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.auctions[bid.AuctionID]
	if !ok {
		return auctionerrors.ErrNotFound
	}

	if len(m.interlopers) > 0 {
		delta := m.interlopers[0]
		m.interlopers = m.interlopers[1:]
		rival := models.Bid{
			ID:        uuid.New().String(),
			AuctionID: a.ID,
			BidderID:  "rival",
			Amount:    a.CurrentPrice + delta,
			CreatedAt: time.Now().UTC(),
		}
		a.CurrentPrice = rival.Amount
		m.bids[a.ID] = append(m.bids[a.ID], rival)
	}

	if a.Status != models.AuctionOpen || !time.Now().UTC().Before(a.EndTime) {
		return auctionerrors.ErrAuctionClosed
	}
	if a.CurrentPrice != expectedPrice {
		return auctionerrors.ErrConflict
	}
	a.CurrentPrice = bid.Amount
	m.bids[a.ID] = append(m.bids[a.ID], *bid)
	return nil
}

func (m *memStore) Settle(_ context.Context, id string) (*models.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.auctions[id]
	if !ok {
		return nil, auctionerrors.ErrNotFound
	}
	if a.Status == models.AuctionOpen {
		a.Status = models.AuctionSettled
		if w := winningOf(m.bids[id]); w != nil {
			a.WinnerID = w.BidderID
		}
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) ListByAuction(_ context.Context, auctionID string) ([]models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Bid(nil), m.bids[auctionID]...), nil
}

func (m *memStore) Winning(_ context.Context, auctionID string) (*models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w := winningOf(m.bids[auctionID]); w != nil {
		cp := *w
		return &cp, nil
	}
	return nil, auctionerrors.ErrNoBids
}

func (m *memStore) HighestAutoBid(_ context.Context, auctionID string, minMax float64, excludeBidder string) (*models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *models.Bid
	for i := range m.bids[auctionID] {
		b := &m.bids[auctionID][i]
		if !b.IsAutoBid || b.MaxAutoBid < minMax || b.BidderID == excludeBidder {
			continue
		}
		if best == nil || b.MaxAutoBid > best.MaxAutoBid {
			best = b
		}
	}
	if best == nil {
		return nil, auctionerrors.ErrNoBids
	}
	cp := *best
	return &cp, nil
}

func (m *memStore) CountByAuction(_ context.Context, auctionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bids[auctionID]), nil
}

func (m *memStore) ListActiveByBidder(_ context.Context, bidderID string) ([]models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	var out []models.Bid
	for auctionID, bids := range m.bids {
		a := m.auctions[auctionID]
		if a == nil || a.Status != models.AuctionOpen || !now.Before(a.EndTime) {
			continue
		}
		for _, b := range bids {
			if b.BidderID == bidderID {
				out = append(out, b)
			}
		}
	}
	return out, nil
}

func winningOf(bids []models.Bid) *models.Bid {
	var w *models.Bid
	for i := range bids {
		b := &bids[i]
		if w == nil || b.Amount > w.Amount ||
			(b.Amount == w.Amount && b.CreatedAt.Before(w.CreatedAt)) {
			w = b
		}
	}
	return w
}

// recordingBus captures published events.
type recordingBus struct {
	mu        sync.Mutex
	accepted  []models.Bid
	settled   []string
	scheduled []string
}

func (r *recordingBus) PublishBidAccepted(_ context.Context, bid *models.Bid, _ float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accepted = append(r.accepted, *bid)
	return nil
}

func (r *recordingBus) PublishAuctionSettled(_ context.Context, a *models.Auction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settled = append(r.settled, a.ID)
	return nil
}

func (r *recordingBus) ScheduleClose(_ context.Context, auctionID string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled = append(r.scheduled, auctionID)
	return nil
}

func newTestService(store *memStore) (IAuctionService, *recordingBus) {
	bus := &recordingBus{}
	return NewAuctionService(store, store, bus, 50, 3), bus
}

func openAuction(price float64) models.Auction {
	return models.Auction{
		SellerID:     "seller1",
		ItemName:     "Vintage camera",
		Description:  "1968 rangefinder",
		StartingBid:  price,
		CurrentPrice: price,
		MinIncrement: 50,
		EndTime:      time.Now().UTC().Add(time.Hour),
		CreatedAt:    time.Now().UTC(),
	}
}

func TestCreateAuctionRoundTrip(t *testing.T) {
	store := newMemStore()
	svc, bus := newTestService(store)
	ctx := context.Background()

	a, err := svc.CreateAuction(ctx, CreateAuctionInput{
		SellerID:    "seller1",
		ItemName:    "Vintage camera",
		Description: "1968 rangefinder",
		StartingBid: 1000,
		EndTime:     time.Now().UTC().Add(time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, float64(50), a.MinIncrement, "platform default applied")

	got, err := svc.GetAuction(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, float64(1000), got.CurrentPrice)
	require.Equal(t, models.AuctionOpen, got.Status)

	bids, err := svc.ListBids(ctx, a.ID)
	require.NoError(t, err)
	require.Empty(t, bids)

	require.Equal(t, []string{a.ID}, bus.scheduled)
}

func TestCreateAuctionValidation(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ctx := context.Background()
	future := time.Now().UTC().Add(time.Hour)

	tests := []struct {
		name string
		in   CreateAuctionInput
	}{
		{"missing_item_name", CreateAuctionInput{SellerID: "s", Description: "d", StartingBid: 10, EndTime: future}},
		{"missing_seller", CreateAuctionInput{ItemName: "i", Description: "d", StartingBid: 10, EndTime: future}},
		{"zero_starting_bid", CreateAuctionInput{SellerID: "s", ItemName: "i", Description: "d", StartingBid: 0, EndTime: future}},
		{"negative_starting_bid", CreateAuctionInput{SellerID: "s", ItemName: "i", Description: "d", StartingBid: -5, EndTime: future}},
		{"end_time_in_past", CreateAuctionInput{SellerID: "s", ItemName: "i", Description: "d", StartingBid: 10, EndTime: time.Now().UTC().Add(-time.Minute)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateAuction(ctx, tc.in)
			require.ErrorIs(t, err, auctionerrors.ErrValidation)
		})
	}
}

func TestPlaceBidBoundary(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ctx := context.Background()

	// Exactly currentPrice + increment is accepted.
	id := store.seed(openAuction(500))
	res, err := svc.PlaceBid(ctx, PlaceBidInput{AuctionID: id, BidderID: "u1", Amount: 550})
	require.NoError(t, err)
	require.Equal(t, float64(550), res.CurrentPrice)

	// One cent less is rejected.
	id2 := store.seed(openAuction(500))
	_, err = svc.PlaceBid(ctx, PlaceBidInput{AuctionID: id2, BidderID: "u1", Amount: 549.99})
	require.ErrorIs(t, err, auctionerrors.ErrBidTooLow)

	// Equal to the current price is rejected outright.
	_, err = svc.PlaceBid(ctx, PlaceBidInput{AuctionID: id, BidderID: "u2", Amount: 550})
	require.ErrorIs(t, err, auctionerrors.ErrBidTooLow)
}

func TestPlaceBidInputValidation(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ctx := context.Background()
	id := store.seed(openAuction(500))

	_, err := svc.PlaceBid(ctx, PlaceBidInput{AuctionID: id, BidderID: "", Amount: 600})
	require.ErrorIs(t, err, auctionerrors.ErrValidation)

	_, err = svc.PlaceBid(ctx, PlaceBidInput{AuctionID: id, BidderID: "u1", Amount: 0})
	require.ErrorIs(t, err, auctionerrors.ErrValidation)

	_, err = svc.PlaceBid(ctx, PlaceBidInput{AuctionID: id, BidderID: "u1", Amount: 600, IsAutoBid: true, MaxAutoBid: 599})
	require.ErrorIs(t, err, auctionerrors.ErrValidation)

	_, err = svc.PlaceBid(ctx, PlaceBidInput{AuctionID: "missing", BidderID: "u1", Amount: 600})
	require.ErrorIs(t, err, auctionerrors.ErrNotFound)
}

func TestPlaceBidClosedAuction(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ctx := context.Background()

	a := openAuction(500)
	a.EndTime = time.Now().UTC().Add(-time.Second)
	id := store.seed(a)

	// Would otherwise be a perfectly valid bid.
	_, err := svc.PlaceBid(ctx, PlaceBidInput{AuctionID: id, BidderID: "u1", Amount: 1000})
	require.ErrorIs(t, err, auctionerrors.ErrAuctionClosed)
}

func TestCurrentPriceTracksAcceptedBids(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ctx := context.Background()
	id := store.seed(openAuction(100))

	last := float64(100)
	for _, amount := range []float64{150, 225, 300.5, 351} {
		res, err := svc.PlaceBid(ctx, PlaceBidInput{AuctionID: id, BidderID: "u1", Amount: amount})
		require.NoError(t, err)
		require.Equal(t, amount, res.Bid.Amount)
		require.Equal(t, amount, res.CurrentPrice)
		require.GreaterOrEqual(t, res.CurrentPrice, last)
		last = res.CurrentPrice
	}
}

func TestPlaceBidRetriesAfterConflict(t *testing.T) {
	store := newMemStore()
	svc, bus := newTestService(store)
	ctx := context.Background()
	id := store.seed(openAuction(500))

	// A rival pushes the price to 600 between our read and our write; the
	// first CAS misses, the retry re-validates against 600 and wins at 700.
	store.interlopers = []float64{100}
	res, err := svc.PlaceBid(ctx, PlaceBidInput{AuctionID: id, BidderID: "u1", Amount: 700})
	require.NoError(t, err)
	require.Equal(t, float64(700), res.CurrentPrice)

	bids, err := svc.ListBids(ctx, id)
	require.NoError(t, err)
	require.Len(t, bids, 2) // rival's 600 and ours

	require.Len(t, bus.accepted, 1)
	require.Equal(t, float64(700), bus.accepted[0].Amount)
}

func TestPlaceBidConflictExhausted(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ctx := context.Background()
	id := store.seed(openAuction(500))

	// A rival outpaces every one of the three attempts.
	store.interlopers = []float64{50, 50, 50, 50, 50}
	_, err := svc.PlaceBid(ctx, PlaceBidInput{AuctionID: id, BidderID: "u1", Amount: 10000})
	require.ErrorIs(t, err, auctionerrors.ErrConflict)
}

func TestConcurrentBidsNeverLoseUpdates(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ctx := context.Background()
	id := store.seed(openAuction(500))

	amounts := []float64{600, 650}
	errs := make([]error, len(amounts))
	var wg sync.WaitGroup
	for i, amount := range amounts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.PlaceBid(ctx, PlaceBidInput{
				AuctionID: id, BidderID: "bidder", Amount: amount,
			})
		}()
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		if err == nil {
			accepted++
		} else {
			// The only legal loss is "too low against the fresh price".
			require.ErrorIs(t, err, auctionerrors.ErrBidTooLow)
		}
	}
	require.GreaterOrEqual(t, accepted, 1)

	a, err := svc.GetAuction(ctx, id)
	require.NoError(t, err)
	require.Equal(t, float64(650), a.CurrentPrice, "the 650 bid always prevails")

	w, err := store.Winning(ctx, id)
	require.NoError(t, err)
	require.Equal(t, a.CurrentPrice, w.Amount, "price equals the winning bid")
}

func TestAutoBidCountersManualBid(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ctx := context.Background()
	id := store.seed(openAuction(500))

	// A bids 550 with a standing proxy up to 1000.
	_, err := svc.PlaceBid(ctx, PlaceBidInput{
		AuctionID: id, BidderID: "A", Amount: 550, IsAutoBid: true, MaxAutoBid: 1000,
	})
	require.NoError(t, err)

	// B bids 600 manually; A's proxy immediately counters at 650.
	res, err := svc.PlaceBid(ctx, PlaceBidInput{AuctionID: id, BidderID: "B", Amount: 600})
	require.NoError(t, err)
	require.Equal(t, float64(650), res.CurrentPrice)

	w, err := store.Winning(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "A", w.BidderID)
	require.True(t, w.IsAutoBid)
}

func TestAutoBidDuelStopsAtWeakerMax(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ctx := context.Background()
	id := store.seed(openAuction(500))

	_, err := svc.PlaceBid(ctx, PlaceBidInput{
		AuctionID: id, BidderID: "A", Amount: 550, IsAutoBid: true, MaxAutoBid: 800,
	})
	require.NoError(t, err)

	// B's proxy (max 700) and A's proxy (max 800) trade counter-bids:
	// 600(B) -> 650(A) -> 700(B) -> 750(A); B cannot reach 800.
	res, err := svc.PlaceBid(ctx, PlaceBidInput{
		AuctionID: id, BidderID: "B", Amount: 600, IsAutoBid: true, MaxAutoBid: 700,
	})
	require.NoError(t, err)
	require.Equal(t, float64(750), res.CurrentPrice)

	w, err := store.Winning(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "A", w.BidderID)

	bids, err := svc.ListBids(ctx, id)
	require.NoError(t, err)
	require.Len(t, bids, 5)
}

func TestFinalize(t *testing.T) {
	store := newMemStore()
	svc, bus := newTestService(store)
	ctx := context.Background()

	a := openAuction(500)
	id := store.seed(a)
	_, err := svc.PlaceBid(ctx, PlaceBidInput{AuctionID: id, BidderID: "u1", Amount: 600})
	require.NoError(t, err)

	// Still open: refuse to settle.
	err = svc.Finalize(ctx, id)
	require.ErrorIs(t, err, auctionerrors.ErrValidation)

	// Close the window and settle.
	store.mu.Lock()
	store.auctions[id].EndTime = time.Now().UTC().Add(-time.Second)
	store.mu.Unlock()

	require.NoError(t, svc.Finalize(ctx, id))
	settled, err := svc.GetAuction(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.AuctionSettled, settled.Status)
	require.Equal(t, "u1", settled.WinnerID)

	// Idempotent: the second call is a no-op and publishes nothing new.
	require.NoError(t, svc.Finalize(ctx, id))
	require.Equal(t, []string{id}, bus.settled)

	require.ErrorIs(t, svc.Finalize(ctx, "missing"), auctionerrors.ErrNotFound)
}

func TestDashboard(t *testing.T) {
	store := newMemStore()
	svc, _ := newTestService(store)
	ctx := context.Background()

	a := openAuction(500)
	a.SellerID = "seller1"
	id := store.seed(a)
	_, err := svc.PlaceBid(ctx, PlaceBidInput{AuctionID: id, BidderID: "buyer1", Amount: 550})
	require.NoError(t, err)

	sellerView, err := svc.Dashboard(ctx, "seller1")
	require.NoError(t, err)
	require.Len(t, sellerView.Listings, 1)
	require.Equal(t, 1, sellerView.Listings[0].BidCount)
	require.Empty(t, sellerView.ActiveBids)

	buyerView, err := svc.Dashboard(ctx, "buyer1")
	require.NoError(t, err)
	require.Empty(t, buyerView.Listings)
	require.Len(t, buyerView.ActiveBids, 1)
}

func TestErrorsAreDistinguishable(t *testing.T) {
	// Every rejection path returns a distinct sentinel the HTTP layer can map.
	sentinels := []error{
		auctionerrors.ErrNotFound,
		auctionerrors.ErrValidation,
		auctionerrors.ErrAuctionClosed,
		auctionerrors.ErrBidTooLow,
		auctionerrors.ErrConflict,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				require.False(t, errors.Is(a, b))
			}
		}
	}
}
