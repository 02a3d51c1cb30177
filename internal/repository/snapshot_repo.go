package repository

import (
	"context"

	"github.com/user/market-intel-service/internal/entity"
)

// SnapshotRepository defines the append-only price/watcher time series.
type SnapshotRepository interface {
	// Append stores snapshots and returns how many were written.
	Append(ctx context.Context, snapshots []*entity.PriceSnapshot) (int, error)
	// Series returns snapshots grouped by listing id, each ordered by capture time.
	// A nil listingIDs slice loads every series.
	Series(ctx context.Context, listingIDs []string) (map[string][]entity.PriceSnapshot, error)
}
