package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	bidding "auction-core/internal/biddingService"
	"auction-core/internal/config"
	"auction-core/internal/events"
	"auction-core/internal/identity"
	"auction-core/internal/lock"
	model "auction-core/internal/models"
	"auction-core/internal/repository"
	"auction-core/internal/scheduler"
	"auction-core/internal/server"
	"auction-core/utils"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}
	if err := utils.SetLevel(cfg.LogLevel); err != nil {
		utils.Fatal("invalid log level", map[string]any{"error": err.Error()})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := openStore(cfg.DB)
	if err != nil {
		utils.Fatal("failed to open store", map[string]any{"driver": cfg.DB.Driver, "error": err.Error()})
	}
	defer repo.Close()

	locker, closeLocker, err := newLocker(ctx, cfg)
	if err != nil {
		utils.Fatal("failed to set up listing lock", map[string]any{"backend": cfg.Lock.Backend, "error": err.Error()})
	}
	defer closeLocker()

	publisher := newPublisher(cfg.NATSURL)
	defer publisher.Close()

	biddingSvc := bidding.NewBiddingService(repo,
		bidding.WithLocker(locker),
		bidding.WithPublisher(publisher),
		bidding.WithLockTimeout(cfg.Lock.Timeout),
	)

	if cfg.Seed {
		prepopulateListings(ctx, biddingSvc)
	}

	if cfg.ExpiryInterval > 0 {
		go scheduler.NewExpiryCloser(biddingSvc, cfg.ExpiryInterval).Run(ctx)
	}

	var verifier *identity.Verifier
	if cfg.JWTSecret != "" {
		verifier = identity.NewVerifier([]byte(cfg.JWTSecret))
	}
	router := server.SetupRouter(biddingSvc, verifier)

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			utils.Error("graceful shutdown failed", map[string]any{"error": err.Error()})
		}
	}()

	utils.Info("starting auction server", map[string]any{
		"addr":         cfg.ServerAddr,
		"db_driver":    cfg.DB.Driver,
		"lock_backend": cfg.Lock.Backend,
	})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		utils.Error("server stopped", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

func openStore(cfg config.DBConfig) (repository.AuctionDB, error) {
	switch cfg.Driver {
	case "sqlite":
		return repository.NewSQLiteRepo(cfg.DSN)
	case "postgres":
		return repository.NewPostgresRepo(cfg.DSN)
	default:
		return repository.NewMemoryRepo(), nil
	}
}

// newLocker returns the listing locker and a func releasing its resources
func newLocker(ctx context.Context, cfg config.Config) (lock.Locker, func(), error) {
	if cfg.Lock.Backend != "redis" {
		return lock.NewLocalLocker(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ping redis at %s: %w", cfg.Redis.Addr, err)
	}

	locker := lock.NewRedisLocker(client, lock.WithKeyPrefix(cfg.Redis.KeyPrefix))
	return locker, func() { client.Close() }, nil
}

// newPublisher falls back to dropping events when NATS is not configured or reachable
func newPublisher(url string) events.Publisher {
	if url == "" {
		return events.NoopPublisher{}
	}
	p, err := events.NewNATSPublisher(url, 5*time.Second)
	if err != nil {
		utils.Warn("event publishing disabled", map[string]any{"error": err.Error()})
		return events.NoopPublisher{}
	}
	return p
}

// prepopulateListings adds sample listings; existing titles are left alone
func prepopulateListings(ctx context.Context, svc *bidding.BiddingService) {
	samples := []model.NewListing{
		{Title: "Vintage film camera", Description: "35mm rangefinder, working shutter", StartingPrice: decimal.RequireFromString("100.00")},
		{Title: "Oak writing desk", Description: "Solid oak, two drawers", StartingPrice: decimal.RequireFromString("200.00")},
		{Title: "Signed first edition", Description: "Hardcover, good condition", StartingPrice: decimal.RequireFromString("150.00")},
	}

	for _, s := range samples {
		listing, err := svc.CreateListing(ctx, "seed", s)
		if err != nil {
			utils.Warn("skipping sample listing", map[string]any{"title": s.Title, "error": err.Error()})
			continue
		}
		utils.Info("sample listing created", map[string]any{"listing_id": listing.ListingID, "title": listing.Title})
	}
}
