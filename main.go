package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"auctionhouse/internal/config"
	"auctionhouse/internal/database/db_client"
	"auctionhouse/internal/database/migrations"
	"auctionhouse/internal/events"
	"auctionhouse/internal/http/http_server"
	"auctionhouse/internal/redis/redis_client"
	"auctionhouse/internal/redis/watcher/auctionwatcher"
	"auctionhouse/internal/services/auction"
	"auctionhouse/internal/services/auth"
	"auctionhouse/internal/settle"
	"auctionhouse/internal/store/auctionstore"
	"auctionhouse/internal/store/bidstore"
	"auctionhouse/internal/store/userstore"
	"auctionhouse/internal/ws"

	"go.uber.org/zap"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Redis
	redisClient, err := redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort))
	if err != nil {
		Log.Fatal("Failed to create Redis client", zap.Error(err))
	}
	defer redisClient.Close()

	// 4. Postgres + schema
	pgDb, err := db_client.Open(cfg.PostgresHost, cfg.PostgresPort,
		cfg.PostgresUser, cfg.PostgresPassword, cfg.PostgresDb)
	if err != nil {
		Log.Fatal("pg-open", zap.Error(err))
	}
	defer pgDb.Close()
	if err := migrations.Up(pgDb); err != nil {
		Log.Fatal("pg-migrate", zap.Error(err))
	}

	// 5. Stores and services
	auctions := auctionstore.New(pgDb)
	bids := bidstore.New(pgDb)
	users := userstore.New(pgDb)
	bus := events.NewBus(redisClient)

	auctionService := auction.NewAuctionService(auctions, bids, bus,
		cfg.BidMinIncrement, cfg.BidMaxAttempts)
	authService := auth.NewService(users, cfg.JwtSecret, cfg.TokenTTL)

	// 6. Background: key-expiry watcher settles lapsed auctions
	go auctionwatcher.Run(ctx, redisClient, auctionService)

	// 7. Background: settlement sweeper backstops missed expiry events
	settle.Run(ctx, cfg.SettleSweepInterval, auctions, auctionService)

	// 8. WebSockets hub + Redis fan-out
	hub := ws.NewHub()
	wsSrv := ws.NewWsServer(hub, redisClient, auctionService)

	// 9. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv,
		auctionService, authService)
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
