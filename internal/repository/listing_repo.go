package repository

import (
	"context"
	"time"

	"github.com/user/market-intel-service/internal/entity"
)

// ListingRepository defines persistence and read models for raw listings and their signals.
// An empty userID means "across all users".
type ListingRepository interface {
	// SavePage stores listings and their signals in one transaction and returns how many
	// listing rows were inserted. Duplicates within a job are skipped.
	SavePage(ctx context.Context, items []entity.ParsedListing) (int, error)
	// CountByJob returns the number of listing rows produced by a job.
	CountByJob(ctx context.Context, jobID string) (int, error)
	// SoldPrices returns sold prices, optionally filtered by keyword.
	SoldPrices(ctx context.Context, userID, keyword string) ([]float64, error)
	// LatestActive returns the newest row of every active listing.
	LatestActive(ctx context.Context, userID string) ([]*entity.RawListing, error)
	// CountByMode tallies listing rows per mode.
	CountByMode(ctx context.Context, userID string) (entity.ModeCounts, error)
	// TopKeywords returns the keywords with the most sold listings.
	TopKeywords(ctx context.Context, userID string, limit int) ([]entity.KeywordCount, error)
	// TrendObservations returns parsed listings observed since the given instant.
	TrendObservations(ctx context.Context, since time.Time) ([]entity.TrendObservation, error)
	// CountUsers returns the number of distinct users with listings.
	CountUsers(ctx context.Context) (int, error)
}
