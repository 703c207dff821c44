package auctionwatcher

import (
	"context"

	"auctionhouse/internal/events"
	"auctionhouse/internal/services/auction"

	"github.com/redis/go-redis/v9"
)

// Run listens to key-expiry events and settles auctions whose close timer
// fired. Run must be started once at service boot.
func Run(ctx context.Context, rdb *redis.Client, svc auction.IAuctionService) {
	_ = rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err()
	ps := rdb.PSubscribe(ctx, "__keyevent@*__:expired")
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-ps.Channel():
			id, ok := events.TimerAuctionID(m.Payload)
			if !ok {
				continue
			}
			_ = svc.Finalize(ctx, id) // errors already logged in svc
		}
	}
}
