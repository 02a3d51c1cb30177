package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/user/market-intel-service/internal/analysis"
	"github.com/user/market-intel-service/internal/entity"
	"github.com/user/market-intel-service/internal/repository"
)

// PricingUseCase suggests price bands from comparable sold listings.
type PricingUseCase struct {
	listings repository.ListingRepository
	fenceK   float64
}

func NewPricingUseCase(listings repository.ListingRepository, fenceK float64) *PricingUseCase {
	if fenceK <= 0 {
		fenceK = analysis.DefaultFenceK
	}
	return &PricingUseCase{listings: listings, fenceK: fenceK}
}

// Suggest bands the sold prices for keyword. An empty userID compares against every user's
// sales. Returns entity.ErrInsufficientData when nothing usable remains after trimming.
func (uc *PricingUseCase) Suggest(ctx context.Context, userID, keyword string) (*entity.PriceBand, error) {
	prices, err := uc.listings.SoldPrices(ctx, userID, strings.TrimSpace(keyword))
	if err != nil {
		return nil, fmt.Errorf("failed to load sold prices: %w", err)
	}
	return analysis.PriceBands(prices, uc.fenceK)
}

// Band computes a band over prices already in hand.
func (uc *PricingUseCase) Band(prices []float64) (*entity.PriceBand, error) {
	return analysis.PriceBands(prices, uc.fenceK)
}
