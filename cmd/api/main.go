package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/actioncore/blink-backend/api/routes"
	"github.com/actioncore/blink-backend/internal/analytics"
	"github.com/actioncore/blink-backend/internal/blinks"
	"github.com/actioncore/blink-backend/internal/merchants"
	"github.com/actioncore/blink-backend/internal/orders"
	"github.com/actioncore/blink-backend/internal/payments"
	"github.com/actioncore/blink-backend/internal/reconcile"
	"github.com/actioncore/blink-backend/internal/tokens"
	"github.com/actioncore/blink-backend/pkg/config"
	"github.com/actioncore/blink-backend/pkg/db"
	"github.com/actioncore/blink-backend/pkg/logger"
	"github.com/actioncore/blink-backend/pkg/metrics"
	"github.com/actioncore/blink-backend/pkg/migrate"
	"github.com/actioncore/blink-backend/pkg/outbox"
	"github.com/actioncore/blink-backend/pkg/pubsub"
	"github.com/actioncore/blink-backend/pkg/redis"
	"github.com/actioncore/blink-backend/pkg/solana"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	paymentMetrics := metrics.NewPaymentMetrics(prometheus.DefaultRegisterer)
	chainClient := solana.New(cfg.Solana, logg, solana.WithRetryHook(paymentMetrics.IncRPCRetry))

	// Pub/Sub is optional for the API process; without it, orders still
	// accumulate outbox rows for the publisher to drain later.
	var pubsubClient *pubsub.Client
	if cfg.GCP.ProjectID != "" {
		pubsubClient, err = pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub client", err)
			}
		}()
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	pendingIndex := orders.NewPendingIndex(redisClient, cfg.Payments.PendingIndexTTL)

	analyticsService, err := analytics.NewService(redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create analytics service", err)
		os.Exit(1)
	}

	merchantsService, err := merchants.NewService(merchants.NewRepository(dbClient.DB()), dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create merchants service", err)
		os.Exit(1)
	}

	tokensService, err := tokens.NewService(tokens.NewRepository(dbClient.DB()), chainClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create tokens service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(
		orders.NewRepository(dbClient.DB()),
		dbClient,
		outboxService,
		pendingIndex,
		analyticsService,
		paymentMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	resolver, err := payments.NewResolver(chainClient)
	if err != nil {
		logg.Error(context.Background(), "failed to create account resolver", err)
		os.Exit(1)
	}
	builder, err := payments.NewBuilder(resolver)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment builder", err)
		os.Exit(1)
	}

	blinksService, err := blinks.NewService(
		blinks.NewRepository(dbClient.DB()),
		dbClient,
		merchants.NewRepository(dbClient.DB()),
		tokensService,
		ordersService,
		resolver,
		builder,
		chainClient,
		redisClient,
		analyticsService,
		cfg.Payments,
		cfg.RateLimit,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create blinks service", err)
		os.Exit(1)
	}

	reconcileService, err := reconcile.NewService(
		ordersService,
		chainClient,
		cfg.Payments.VerifyAmounts,
		paymentMetrics,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create reconcile service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	deps := routes.Deps{
		Config:    cfg,
		Logger:    logg,
		DB:        dbClient,
		Redis:     redisClient,
		Merchants: merchantsService,
		Blinks:    blinksService,
		Orders:    ordersService,
		Reconcile: reconcileService,
		Analytics: analyticsService,
	}
	if pubsubClient != nil {
		deps.PubSub = pubsubClient
	}

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(deps),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
