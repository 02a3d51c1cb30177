package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/user/market-intel-service/internal/adapter/chromedp_enricher"
	"github.com/user/market-intel-service/internal/adapter/marketplace"
	"github.com/user/market-intel-service/internal/adapter/postgres"
	redis_adapter "github.com/user/market-intel-service/internal/adapter/redis"
	"github.com/user/market-intel-service/internal/analysis"
	"github.com/user/market-intel-service/internal/credential"
	"github.com/user/market-intel-service/internal/delivery/http/handler"
	"github.com/user/market-intel-service/internal/delivery/http/router"
	"github.com/user/market-intel-service/internal/repository"
	sig "github.com/user/market-intel-service/internal/signal"
	"github.com/user/market-intel-service/internal/usecase"
	"github.com/user/market-intel-service/internal/worker"
	"github.com/user/market-intel-service/pkg/config"
	"github.com/user/market-intel-service/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		panic("could not load config: " + err.Error())
	}

	// --- Logger ---
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic("could not build logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Database Connections ---
	if err := postgres.Migrate(cfg.PostgresURL); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}
	dbpool, err := postgres.NewPool(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer dbpool.Close()
	log.Info("PostgreSQL connection pool established")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer rdb.Close()
	runLock := redis_adapter.NewRunLock(rdb)
	if err := runLock.Ping(ctx); err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	log.Info("Redis connection established")

	// --- Repositories ---
	jobRepo := postgres.NewJobRepo(dbpool)
	listingRepo := postgres.NewListingRepo(dbpool)
	snapshotRepo := postgres.NewSnapshotRepo(dbpool)
	dashboardRepo := postgres.NewDashboardCacheRepo(dbpool)
	benchmarkRepo := postgres.NewGlobalBenchmarkCacheRepo(dbpool)

	// --- Marketplace ---
	exchanger := marketplace.NewOAuthExchanger(cfg.TokenURL, cfg.ClientID, cfg.ClientSecret, cfg.TokenScope, cfg.HTTPTimeout)
	tokens := credential.NewCache(exchanger, log)
	collector, err := marketplace.NewCollector(cfg.MarketplaceBaseURL, tokens, cfg.HTTPTimeout, cfg.RequestsPerSecond, log)
	if err != nil {
		log.Fatal("failed to create marketplace collector", zap.Error(err))
	}

	var enricher repository.DescriptionFetcher
	if cfg.EnrichDescriptions {
		chrome := chromedp_enricher.NewChromedpEnricher(cfg.PageLoadTimeout, log)
		defer chrome.Close()
		enricher = chrome
	}

	// --- Worker Pools ---
	runPool := worker.NewPool("runs", cfg.RunWorkers, log)
	refreshPool := worker.NewPool("cache-refresh", cfg.RefreshWorkers, log)
	runPool.Start()
	refreshPool.Start()

	// --- Use Cases ---
	jobs := usecase.NewJobManagerUseCase(jobRepo, log)
	orchestrator := usecase.NewOrchestratorUseCase(jobs, collector, tokens, sig.NewParser(), listingRepo, enricher, runLock, runPool,
		usecase.OrchestratorConfig{
			PageSize:           cfg.PageSize,
			MaxPages:           cfg.MaxPages,
			RunTimeout:         cfg.RunTimeout,
			EnrichDescriptions: cfg.EnrichDescriptions,
		}, log)
	volatility := usecase.NewVolatilityUseCase(listingRepo, snapshotRepo, analysis.SurgePolicy{
		PriceWeight:   cfg.SurgePriceWeight,
		WatcherWeight: cfg.SurgeWatcherWeight,
	}, log)
	pricing := usecase.NewPricingUseCase(listingRepo, cfg.OutlierFence)
	trends := usecase.NewTrendUseCase(listingRepo, analysis.TrendWindow{
		RecentDays:      cfg.TrendRecentDays,
		BaselineDays:    cfg.TrendBaselineDays,
		MinRecentVolume: analysis.DefaultTrendWindow().MinRecentVolume,
	})
	insights := usecase.NewInsightsUseCase(listingRepo, jobs, pricing, trends, volatility)
	dashboards := usecase.NewAggregateCache("dashboard", dashboardRepo, insights.DashboardPayload, cfg.DashboardTTL, refreshPool, log)
	benchmarks := usecase.NewAggregateCache("global", benchmarkRepo, insights.BenchmarkPayload, 0, refreshPool, log)

	// --- HTTP Server ---
	apiHandler := handler.NewHandler(orchestrator, jobs, pricing, trends, volatility, dashboards, benchmarks,
		map[string]handler.Pinger{"postgres": dbpool, "redis": runLock}, log)
	httpRouter := router.New(apiHandler, cfg.CronSecret, log)

	server := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     httpRouter,
		ReadTimeout: 5 * time.Second,
		// Seller scans answer after the whole run.
		WriteTimeout: cfg.RunTimeout + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("starting server", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("could not listen on port", zap.String("port", cfg.ServerPort), zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	runPool.Stop()
	refreshPool.Stop()
	log.Info("server exiting")
}
