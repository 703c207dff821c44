package settle

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const sweepBatch = 100

// ExpiredLister finds open auctions whose window has lapsed.
type ExpiredLister interface {
	ExpiredOpen(ctx context.Context, limit int) ([]string, error)
}

// Finalizer settles a single auction; the call is idempotent.
type Finalizer interface {
	Finalize(ctx context.Context, auctionID string) error
}

// Run sweeps for lapsed auctions on a fixed interval. It is the backstop for
// the Redis expiry watcher: if a timer event is lost, the auction still
// settles within one sweep.
func Run(ctx context.Context, every time.Duration, store ExpiredLister, svc Finalizer) {
	tk := time.NewTicker(every)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				sweepOnce(ctx, store, svc)
			}
		}
	}()
}

func sweepOnce(ctx context.Context, store ExpiredLister, svc Finalizer) {
	ids, err := store.ExpiredOpen(ctx, sweepBatch)
	if err != nil {
		zap.L().Error("settle.sweep_list", zap.Error(err))
		return
	}
	for _, id := range ids {
		if err := svc.Finalize(ctx, id); err != nil {
			zap.L().Warn("settle.finalize", zap.String("auction_id", id), zap.Error(err))
		}
	}
}
