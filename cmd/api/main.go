package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/trackline-backend/api/routes"
	"github.com/angelmondragon/trackline-backend/api/ws"
	"github.com/angelmondragon/trackline-backend/internal/auth"
	"github.com/angelmondragon/trackline-backend/internal/identity"
	"github.com/angelmondragon/trackline-backend/internal/orders"
	"github.com/angelmondragon/trackline-backend/internal/positions"
	"github.com/angelmondragon/trackline-backend/internal/tracking"
	"github.com/angelmondragon/trackline-backend/internal/users"
	"github.com/angelmondragon/trackline-backend/pkg/config"
	"github.com/angelmondragon/trackline-backend/pkg/db"
	"github.com/angelmondragon/trackline-backend/pkg/logger"
	"github.com/angelmondragon/trackline-backend/pkg/metrics"
	"github.com/angelmondragon/trackline-backend/pkg/migrate"
	"github.com/angelmondragon/trackline-backend/pkg/pubsub"
	"github.com/angelmondragon/trackline-backend/pkg/redis"
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

	var telemetry positions.TelemetrySink
	if cfg.PubSub.TelemetryEnabled() {
		pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
		telemetry = pubsubClient
	}

	authService, err := auth.NewService(users.NewRepository(dbClient.DB()), cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create auth service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	positionsService, err := positions.NewService(positions.NewRepository(dbClient.DB()), telemetry, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create positions service", err)
		os.Exit(1)
	}

	verifier, err := identity.NewVerifier(cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create credential verifier", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	trackingMetrics := metrics.NewTrackingMetrics(registry)

	trackingRouter, err := tracking.NewRouter(tracking.RouterOptions{
		Verifier:         verifier,
		Orders:           ordersService,
		Positions:        positionsService,
		Metrics:          trackingMetrics,
		Logger:           logg,
		EnforceOwnership: cfg.Tracking.EnforceOwnership,
		SendBuffer:       cfg.WS.SendBuffer,
		WriteTimeout:     cfg.WS.WriteTimeout,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create tracking router", err)
		os.Exit(1)
	}

	wsHandler, err := ws.NewHandler(ws.HandlerOptions{
		Router:      trackingRouter,
		WS:          cfg.WS,
		RateLimit:   cfg.ConnRateLimit,
		PresenceTTL: cfg.Tracking.PresenceTTL,
		Limiter:     redisClient,
		Presence:    redisClient,
		Logger:      logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create websocket handler", err)
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

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:    cfg,
			Logger:    logg,
			DB:        dbClient,
			Redis:     redisClient,
			Auth:      authService,
			Positions: positionsService,
			WSHandler: wsHandler,
			Metrics:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
