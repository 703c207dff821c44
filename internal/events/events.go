package events

import (
	"context"
	"encoding/json"
	"time"

	"auctionhouse/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	// Per-auction pub/sub channel consumed by the websocket fan-out.
	channelPrefix = "auction:"
	channelSuffix = ":events"

	// Disposable timer key; its expiry triggers settlement.
	closeTimerPrefix = "auction_close:"
)

func Channel(auctionID string) string { return channelPrefix + auctionID + channelSuffix }
func CloseTimerKey(auctionID string) string {
	return closeTimerPrefix + auctionID
}

// TimerAuctionID extracts the auction ID from an expired close-timer key.
func TimerAuctionID(key string) (string, bool) {
	if len(key) <= len(closeTimerPrefix) || key[:len(closeTimerPrefix)] != closeTimerPrefix {
		return "", false
	}
	return key[len(closeTimerPrefix):], true
}

// Bus publishes auction events over Redis and schedules close timers.
type Bus struct {
	rdc *redis.Client
}

func NewBus(rdc *redis.Client) *Bus { return &Bus{rdc: rdc} }

type envelope struct {
	Event string `json:"event"`
	Body  any    `json:"body"`
}

type bidBody struct {
	AuctionID string  `json:"auction_id"`
	BidderID  string  `json:"bidder_id"`
	Amount    float64 `json:"amount"`
	IsAutoBid bool    `json:"is_auto_bid"`
	NewPrice  float64 `json:"new_price"`
	At        int64   `json:"at"`
}

type settledBody struct {
	AuctionID  string  `json:"auction_id"`
	WinnerID   string  `json:"winner_id,omitempty"`
	FinalPrice float64 `json:"final_price"`
}

func (b *Bus) PublishBidAccepted(ctx context.Context, bid *models.Bid, newPrice float64) error {
	return b.publish(ctx, bid.AuctionID, envelope{
		Event: "auctions/bid",
		Body: bidBody{
			AuctionID: bid.AuctionID,
			BidderID:  bid.BidderID,
			Amount:    bid.Amount,
			IsAutoBid: bid.IsAutoBid,
			NewPrice:  newPrice,
			At:        bid.CreatedAt.Unix(),
		},
	})
}

func (b *Bus) PublishAuctionSettled(ctx context.Context, a *models.Auction) error {
	return b.publish(ctx, a.ID, envelope{
		Event: "auctions/settled",
		Body: settledBody{
			AuctionID:  a.ID,
			WinnerID:   a.WinnerID,
			FinalPrice: a.CurrentPrice,
		},
	})
}

// ScheduleClose arms a TTL key that fires a keyspace expiry event at the
// auction's end time.
func (b *Bus) ScheduleClose(ctx context.Context, auctionID string, endsAt time.Time) error {
	ttl := time.Until(endsAt)
	if ttl <= 0 {
		ttl = time.Millisecond
	}
	return b.rdc.Set(ctx, CloseTimerKey(auctionID), "1", ttl).Err()
}

func (b *Bus) publish(ctx context.Context, auctionID string, env envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.rdc.Publish(ctx, Channel(auctionID), payload).Err()
}
