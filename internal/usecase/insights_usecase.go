package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/user/market-intel-service/internal/analysis"
	"github.com/user/market-intel-service/internal/entity"
	"github.com/user/market-intel-service/internal/repository"
)

const (
	dashboardKeywords   = 5
	dashboardRecentJobs = 5
	dashboardSurges     = 5
	benchmarkTrends     = 10
)

// InsightsUseCase assembles dashboard and benchmark payloads from the analysis use cases.
type InsightsUseCase struct {
	listings   repository.ListingRepository
	jobs       *JobManagerUseCase
	pricing    *PricingUseCase
	trends     *TrendUseCase
	volatility *VolatilityUseCase
	now        func() time.Time
}

func NewInsightsUseCase(
	listings repository.ListingRepository,
	jobs *JobManagerUseCase,
	pricing *PricingUseCase,
	trends *TrendUseCase,
	volatility *VolatilityUseCase,
) *InsightsUseCase {
	return &InsightsUseCase{
		listings:   listings,
		jobs:       jobs,
		pricing:    pricing,
		trends:     trends,
		volatility: volatility,
		now:        time.Now,
	}
}

// Dashboard computes the per-user statistics.
func (uc *InsightsUseCase) Dashboard(ctx context.Context, userID string) (*entity.DashboardStats, error) {
	counts, err := uc.listings.CountByMode(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count listings: %w", err)
	}
	prices, err := uc.listings.SoldPrices(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to load sold prices: %w", err)
	}

	stats := &entity.DashboardStats{
		TotalListings:  counts.Sold + counts.Active,
		SoldListings:   counts.Sold,
		ActiveListings: counts.Active,
		SellThrough:    counts.SellThrough(),
		TopKeywords:    []entity.KeywordInsight{},
		RecentJobs:     []entity.JobSummary{},
		GeneratedAt:    uc.now().UTC(),
	}
	stats.AvgSoldPrice, stats.MedianSoldPrice = priceSummary(prices)
	if stats.Band, err = optionalBand(uc.pricing.Band(prices)); err != nil {
		return nil, err
	}

	keywords, err := uc.listings.TopKeywords(ctx, userID, dashboardKeywords)
	if err != nil {
		return nil, fmt.Errorf("failed to load top keywords: %w", err)
	}
	for _, kw := range keywords {
		insight := entity.KeywordInsight{Keyword: kw.Keyword, Count: kw.Count}
		if insight.Band, err = optionalBand(uc.pricing.Suggest(ctx, userID, kw.Keyword)); err != nil {
			return nil, err
		}
		stats.TopKeywords = append(stats.TopKeywords, insight)
	}

	jobs, err := uc.jobs.ListRecent(ctx, userID, dashboardRecentJobs)
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		stats.RecentJobs = append(stats.RecentJobs, entity.JobSummary{
			ID:          j.ID,
			Mode:        string(j.Mode),
			Term:        j.SearchTerm(),
			Status:      string(j.Status),
			ItemsFound:  j.ItemsFound,
			CreatedAt:   j.CreatedAt,
			CompletedAt: j.CompletedAt,
		})
	}

	surges, err := uc.volatility.DetectSurges(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(surges) > dashboardSurges {
		surges = surges[:dashboardSurges]
	}
	stats.Surges = surges
	return stats, nil
}

// Benchmark computes the cross-user statistics.
func (uc *InsightsUseCase) Benchmark(ctx context.Context) (*entity.GlobalBenchmark, error) {
	users, err := uc.listings.CountUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	counts, err := uc.listings.CountByMode(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to count listings: %w", err)
	}
	prices, err := uc.listings.SoldPrices(ctx, "", "")
	if err != nil {
		return nil, fmt.Errorf("failed to load sold prices: %w", err)
	}
	trends, err := uc.trends.Rank(ctx, benchmarkTrends)
	if err != nil {
		return nil, err
	}

	b := &entity.GlobalBenchmark{
		Users:          users,
		TotalListings:  counts.Sold + counts.Active,
		SoldListings:   counts.Sold,
		ActiveListings: counts.Active,
		SellThrough:    counts.SellThrough(),
		TopTrends:      trends,
		GeneratedAt:    uc.now().UTC(),
	}
	_, b.MedianSoldPrice = priceSummary(prices)
	if b.Band, err = optionalBand(uc.pricing.Band(prices)); err != nil {
		return nil, err
	}
	return b, nil
}

// DashboardPayload is the aggregate cache compute function for user scopes.
func (uc *InsightsUseCase) DashboardPayload(ctx context.Context, userID string) ([]byte, error) {
	stats, err := uc.Dashboard(ctx, userID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(stats)
}

// BenchmarkPayload is the aggregate cache compute function for the global scope.
func (uc *InsightsUseCase) BenchmarkPayload(ctx context.Context, _ string) ([]byte, error) {
	b, err := uc.Benchmark(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(b)
}

// optionalBand turns "not enough data" into a nil band.
func optionalBand(band *entity.PriceBand, err error) (*entity.PriceBand, error) {
	if errors.Is(err, entity.ErrInsufficientData) {
		return nil, nil
	}
	return band, err
}

func priceSummary(prices []float64) (avg, median float64) {
	if len(prices) == 0 {
		return 0, 0
	}
	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)
	return roundCents(analysis.Mean(sorted)), roundCents(analysis.Median(sorted))
}

func roundCents(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
