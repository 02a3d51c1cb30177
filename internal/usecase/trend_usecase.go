package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/user/market-intel-service/internal/analysis"
	"github.com/user/market-intel-service/internal/entity"
	"github.com/user/market-intel-service/internal/repository"
)

// TrendUseCase ranks rising style/subject/medium combinations across all users.
type TrendUseCase struct {
	listings repository.ListingRepository
	window   analysis.TrendWindow
	now      func() time.Time
}

func NewTrendUseCase(listings repository.ListingRepository, window analysis.TrendWindow) *TrendUseCase {
	if window.RecentDays <= 0 || window.BaselineDays <= 0 {
		window = analysis.DefaultTrendWindow()
	}
	if window.MinRecentVolume <= 0 {
		window.MinRecentVolume = analysis.DefaultTrendWindow().MinRecentVolume
	}
	return &TrendUseCase{listings: listings, window: window, now: time.Now}
}

// Rank returns up to limit entries, highest score first. A limit <= 0 returns all.
func (uc *TrendUseCase) Rank(ctx context.Context, limit int) ([]entity.TrendEntry, error) {
	now := uc.now().UTC()
	since := now.AddDate(0, 0, -(uc.window.RecentDays + uc.window.BaselineDays))
	obs, err := uc.listings.TrendObservations(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load trend observations: %w", err)
	}
	entries := analysis.RankTrends(obs, now, uc.window)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
