// Command snapshot is the scheduler entrypoint: it records price snapshots of active
// listings and recomputes the global benchmark, then exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/user/market-intel-service/internal/adapter/postgres"
	"github.com/user/market-intel-service/internal/analysis"
	"github.com/user/market-intel-service/internal/entity"
	"github.com/user/market-intel-service/internal/usecase"
	"github.com/user/market-intel-service/internal/worker"
	"github.com/user/market-intel-service/pkg/config"
	"github.com/user/market-intel-service/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	snapshots := flag.Bool("snapshots", false, "append a price snapshot for every active listing")
	benchmarks := flag.Bool("benchmarks", false, "recompute the global benchmark row")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline")
	flag.Parse()

	if !*snapshots && !*benchmarks {
		fmt.Fprintln(os.Stderr, "nothing to do: pass -snapshots and/or -benchmarks")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "could not load config:", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "could not build logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log, *snapshots, *benchmarks, *timeout); err != nil {
		log.Error("scheduled run failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.Logger, snapshots, benchmarks bool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := postgres.Migrate(cfg.PostgresURL); err != nil {
		return err
	}
	dbpool, err := postgres.NewPool(ctx, cfg.PostgresURL)
	if err != nil {
		return err
	}
	defer dbpool.Close()

	listingRepo := postgres.NewListingRepo(dbpool)
	volatility := usecase.NewVolatilityUseCase(listingRepo, postgres.NewSnapshotRepo(dbpool), analysis.SurgePolicy{
		PriceWeight:   cfg.SurgePriceWeight,
		WatcherWeight: cfg.SurgeWatcherWeight,
	}, log)

	// Snapshots go first so the benchmark sees them.
	if snapshots {
		n, err := volatility.SnapshotState(ctx)
		if err != nil {
			return err
		}
		log.Info("price snapshots recorded", zap.Int("count", n))
	}

	if benchmarks {
		jobs := usecase.NewJobManagerUseCase(postgres.NewJobRepo(dbpool), log)
		pricing := usecase.NewPricingUseCase(listingRepo, cfg.OutlierFence)
		trends := usecase.NewTrendUseCase(listingRepo, analysis.TrendWindow{
			RecentDays:      cfg.TrendRecentDays,
			BaselineDays:    cfg.TrendBaselineDays,
			MinRecentVolume: analysis.DefaultTrendWindow().MinRecentVolume,
		})
		insights := usecase.NewInsightsUseCase(listingRepo, jobs, pricing, trends, volatility)

		// Refresh runs inline; the pool only backs stale reads, which never happen here.
		pool := worker.NewPool("cache-refresh", 1, log)
		cache := usecase.NewAggregateCache("global", postgres.NewGlobalBenchmarkCacheRepo(dbpool), insights.BenchmarkPayload, 0, pool, log)
		row, err := cache.Refresh(ctx, entity.GlobalScope)
		if err != nil {
			return err
		}
		log.Info("global benchmark refreshed", zap.Time("last_updated_at", row.LastUpdatedAt))
	}
	return nil
}
