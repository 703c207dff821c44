package auction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"auctionhouse/internal/auctionerrors"
	"auctionhouse/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultMaxAttempts = 3
	// An auto-bid duel raises the price one increment per round; cap the
	// rounds so a pathological pair of proxies cannot spin forever.
	maxAutoBidRounds = 64
)

// AuctionStore is the record store contract (Postgres in production,
// in-memory in tests).
type AuctionStore interface {
	Create(ctx context.Context, a *models.Auction) error
	Get(ctx context.Context, id string) (*models.Auction, error)
	ListOpen(ctx context.Context, f models.AuctionFilter) ([]models.Auction, error)
	ListBySeller(ctx context.Context, sellerID string) ([]models.Auction, error)
	AcceptBid(ctx context.Context, bid *models.Bid, expectedPrice float64) error
	Settle(ctx context.Context, id string) (*models.Auction, error)
}

// BidStore reads the append-only ledger.
type BidStore interface {
	ListByAuction(ctx context.Context, auctionID string) ([]models.Bid, error)
	Winning(ctx context.Context, auctionID string) (*models.Bid, error)
	HighestAutoBid(ctx context.Context, auctionID string, minMax float64, excludeBidder string) (*models.Bid, error)
	CountByAuction(ctx context.Context, auctionID string) (int, error)
	ListActiveByBidder(ctx context.Context, bidderID string) ([]models.Bid, error)
}

// EventBus carries accepted-bid / settlement notifications and close timers.
// Publishing is best-effort: a bus failure never rolls back an accepted bid.
type EventBus interface {
	PublishBidAccepted(ctx context.Context, bid *models.Bid, newPrice float64) error
	PublishAuctionSettled(ctx context.Context, a *models.Auction) error
	ScheduleClose(ctx context.Context, auctionID string, endsAt time.Time) error
}

type CreateAuctionInput struct {
	SellerID     string
	ItemName     string
	Category     string
	Description  string
	ImageURL     string
	StartingBid  float64
	MinIncrement float64 // 0 means "use the platform default"
	EndTime      time.Time
}

type PlaceBidInput struct {
	AuctionID  string
	BidderID   string
	Amount     float64
	IsAutoBid  bool
	MaxAutoBid float64
}

type PlaceBidResult struct {
	Bid          *models.Bid `json:"bid"`
	CurrentPrice float64     `json:"current_price"`
}

type ListingSummary struct {
	Auction  models.Auction `json:"auction"`
	BidCount int            `json:"bid_count"`
}

type DashboardData struct {
	Listings   []ListingSummary `json:"listings"`
	ActiveBids []models.Bid     `json:"active_bids"`
}

type IAuctionService interface {
	CreateAuction(ctx context.Context, in CreateAuctionInput) (*models.Auction, error)
	GetAuction(ctx context.Context, id string) (*models.Auction, error)
	ListOpen(ctx context.Context, f models.AuctionFilter) ([]models.Auction, error)
	PlaceBid(ctx context.Context, in PlaceBidInput) (*PlaceBidResult, error)
	ListBids(ctx context.Context, auctionID string) ([]models.Bid, error)
	Finalize(ctx context.Context, auctionID string) error
	Dashboard(ctx context.Context, userID string) (*DashboardData, error)
}

type auctionService struct {
	auctions     AuctionStore
	bids         BidStore
	bus          EventBus
	minIncrement float64
	maxAttempts  int
}

func NewAuctionService(auctions AuctionStore, bids BidStore, bus EventBus,
	defaultIncrement float64, maxAttempts int) IAuctionService {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &auctionService{
		auctions:     auctions,
		bids:         bids,
		bus:          bus,
		minIncrement: defaultIncrement,
		maxAttempts:  maxAttempts,
	}
}

func (svc *auctionService) CreateAuction(ctx context.Context, in CreateAuctionInput) (*models.Auction, error) {
	if in.SellerID == "" || in.ItemName == "" || in.Description == "" {
		return nil, fmt.Errorf("%w: seller, item name and description are required",
			auctionerrors.ErrValidation)
	}
	if in.MinIncrement == 0 {
		in.MinIncrement = svc.minIncrement
	}

	a := &models.Auction{
		SellerID:     in.SellerID,
		ItemName:     in.ItemName,
		Category:     in.Category,
		Description:  in.Description,
		ImageURL:     in.ImageURL,
		StartingBid:  in.StartingBid,
		MinIncrement: in.MinIncrement,
		EndTime:      in.EndTime.UTC(),
	}
	if err := svc.auctions.Create(ctx, a); err != nil {
		return nil, err
	}

	if err := svc.bus.ScheduleClose(ctx, a.ID, a.EndTime); err != nil {
		// The sweeper settles it later; losing the timer is not fatal.
		zap.L().Warn("schedule_close_failed", zap.String("auction_id", a.ID), zap.Error(err))
	}
	return a, nil
}

func (svc *auctionService) GetAuction(ctx context.Context, id string) (*models.Auction, error) {
	a, err := svc.auctions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Status = a.EffectiveStatus(time.Now().UTC())
	return a, nil
}

func (svc *auctionService) ListOpen(ctx context.Context, f models.AuctionFilter) ([]models.Auction, error) {
	return svc.auctions.ListOpen(ctx, f)
}

func (svc *auctionService) ListBids(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if _, err := svc.auctions.Get(ctx, auctionID); err != nil {
		return nil, err
	}
	return svc.bids.ListByAuction(ctx, auctionID)
}

// PlaceBid runs the acceptance protocol: load, window check, increment check,
// compare-and-swap, ledger append. Only a CAS miss is retried, a bounded
// number of times; every other rejection is terminal for this call. After a
// manual bid lands, standing auto-bids are reconciled.
func (svc *auctionService) PlaceBid(ctx context.Context, in PlaceBidInput) (*PlaceBidResult, error) {
	if in.BidderID == "" {
		return nil, fmt.Errorf("%w: bidder is required", auctionerrors.ErrValidation)
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: bid amount must be positive", auctionerrors.ErrValidation)
	}
	if in.IsAutoBid && in.MaxAutoBid < in.Amount {
		return nil, fmt.Errorf("%w: max auto-bid below bid amount", auctionerrors.ErrValidation)
	}

	bid, err := svc.acceptWithRetry(ctx, in)
	if err != nil {
		return nil, err
	}

	svc.reconcileAutoBids(ctx, in.AuctionID)

	// Report the price after any proxy counter-bids.
	current, err := svc.auctions.Get(ctx, in.AuctionID)
	if err != nil {
		return nil, err
	}
	return &PlaceBidResult{Bid: bid, CurrentPrice: current.CurrentPrice}, nil
}

func (svc *auctionService) acceptWithRetry(ctx context.Context, in PlaceBidInput) (*models.Bid, error) {
	for attempt := 0; attempt < svc.maxAttempts; attempt++ {
		a, err := svc.auctions.Get(ctx, in.AuctionID)
		if err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		if a.Status != models.AuctionOpen || !now.Before(a.EndTime) {
			return nil, auctionerrors.ErrAuctionClosed
		}
		minAcceptable := a.CurrentPrice + a.MinIncrement
		if in.Amount < minAcceptable {
			return nil, fmt.Errorf("%w: minimum acceptable bid is %.2f",
				auctionerrors.ErrBidTooLow, minAcceptable)
		}

		bid := &models.Bid{
			ID:         uuid.New().String(),
			AuctionID:  in.AuctionID,
			BidderID:   in.BidderID,
			Amount:     in.Amount,
			IsAutoBid:  in.IsAutoBid,
			MaxAutoBid: in.MaxAutoBid,
			CreatedAt:  now,
		}
		err = svc.auctions.AcceptBid(ctx, bid, a.CurrentPrice)
		if errors.Is(err, auctionerrors.ErrConflict) {
			// Another bid won the race; re-validate against fresh state.
			continue
		}
		if err != nil {
			return nil, err
		}

		if err := svc.bus.PublishBidAccepted(ctx, bid, bid.Amount); err != nil {
			zap.L().Warn("publish_bid_failed", zap.String("auction_id", in.AuctionID), zap.Error(err))
		}
		return bid, nil
	}
	return nil, fmt.Errorf("auction %s: %w", in.AuctionID, auctionerrors.ErrConflict)
}

// reconcileAutoBids replays standing proxy bids through the normal acceptance
// protocol until no proxy can top the current price. The leading bidder's own
// proxy never counters itself.
func (svc *auctionService) reconcileAutoBids(ctx context.Context, auctionID string) {
	for round := 0; round < maxAutoBidRounds; round++ {
		a, err := svc.auctions.Get(ctx, auctionID)
		if err != nil {
			zap.L().Warn("autobid_reload_failed", zap.String("auction_id", auctionID), zap.Error(err))
			return
		}
		if a.Status != models.AuctionOpen || !time.Now().UTC().Before(a.EndTime) {
			return
		}

		leader, err := svc.bids.Winning(ctx, auctionID)
		if err != nil {
			if !errors.Is(err, auctionerrors.ErrNoBids) {
				zap.L().Warn("autobid_leader_failed", zap.String("auction_id", auctionID), zap.Error(err))
			}
			return
		}

		needed := a.CurrentPrice + a.MinIncrement
		proxy, err := svc.bids.HighestAutoBid(ctx, auctionID, needed, leader.BidderID)
		if err != nil {
			if !errors.Is(err, auctionerrors.ErrNoBids) {
				zap.L().Warn("autobid_lookup_failed", zap.String("auction_id", auctionID), zap.Error(err))
			}
			return
		}

		counter := &models.Bid{
			ID:         uuid.New().String(),
			AuctionID:  auctionID,
			BidderID:   proxy.BidderID,
			Amount:     needed,
			IsAutoBid:  true,
			MaxAutoBid: proxy.MaxAutoBid,
			CreatedAt:  time.Now().UTC(),
		}
		err = svc.auctions.AcceptBid(ctx, counter, a.CurrentPrice)
		if errors.Is(err, auctionerrors.ErrConflict) {
			continue // a concurrent manual bid landed first; re-derive
		}
		if err != nil {
			zap.L().Warn("autobid_place_failed", zap.String("auction_id", auctionID), zap.Error(err))
			return
		}
		if err := svc.bus.PublishBidAccepted(ctx, counter, counter.Amount); err != nil {
			zap.L().Warn("publish_bid_failed", zap.String("auction_id", auctionID), zap.Error(err))
		}
	}
	zap.L().Warn("autobid_rounds_exhausted", zap.String("auction_id", auctionID))
}

// Finalize settles a closed auction: records the winner and flips the status.
// Idempotent; safe to call from the expiry watcher and the sweeper at once
// because the store transition is guarded on status.
func (svc *auctionService) Finalize(ctx context.Context, auctionID string) error {
	a, err := svc.auctions.Get(ctx, auctionID)
	if err != nil {
		return err
	}
	if a.Status == models.AuctionSettled {
		return nil
	}
	if time.Now().UTC().Before(a.EndTime) {
		return fmt.Errorf("%w: auction %s still open", auctionerrors.ErrValidation, auctionID)
	}

	settled, err := svc.auctions.Settle(ctx, auctionID)
	if err != nil {
		return err
	}
	if err := svc.bus.PublishAuctionSettled(ctx, settled); err != nil {
		zap.L().Warn("publish_settled_failed", zap.String("auction_id", auctionID), zap.Error(err))
	}
	zap.L().Info("auction_settled",
		zap.String("auction_id", auctionID),
		zap.String("winner_id", settled.WinnerID),
		zap.Float64("final_price", settled.CurrentPrice),
	)
	return nil
}

func (svc *auctionService) Dashboard(ctx context.Context, userID string) (*DashboardData, error) {
	listings, err := svc.auctions.ListBySeller(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	data := &DashboardData{Listings: make([]ListingSummary, 0, len(listings))}
	for _, a := range listings {
		n, err := svc.bids.CountByAuction(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		a.Status = a.EffectiveStatus(now)
		data.Listings = append(data.Listings, ListingSummary{Auction: a, BidCount: n})
	}

	data.ActiveBids, err = svc.bids.ListActiveByBidder(ctx, userID)
	if err != nil {
		return nil, err
	}
	return data, nil
}
