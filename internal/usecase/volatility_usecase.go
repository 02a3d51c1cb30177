package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/user/market-intel-service/internal/analysis"
	"github.com/user/market-intel-service/internal/entity"
	"github.com/user/market-intel-service/internal/repository"
	"github.com/user/market-intel-service/pkg/metrics"
)

// VolatilityUseCase records price/watcher snapshots and finds interest surges in them.
type VolatilityUseCase struct {
	listings  repository.ListingRepository
	snapshots repository.SnapshotRepository
	policy    analysis.SurgePolicy
	logger    *zap.Logger
	now       func() time.Time
}

func NewVolatilityUseCase(listings repository.ListingRepository, snapshots repository.SnapshotRepository, policy analysis.SurgePolicy, logger *zap.Logger) *VolatilityUseCase {
	return &VolatilityUseCase{listings: listings, snapshots: snapshots, policy: policy, logger: logger, now: time.Now}
}

// SnapshotState appends one snapshot for every currently active listing and returns how many
// were written. Each call only appends, so repeated calls are safe.
func (uc *VolatilityUseCase) SnapshotState(ctx context.Context) (int, error) {
	active, err := uc.listings.LatestActive(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("failed to load active listings: %w", err)
	}
	if len(active) == 0 {
		return 0, nil
	}

	capturedAt := uc.now().UTC()
	snaps := make([]*entity.PriceSnapshot, 0, len(active))
	for _, l := range active {
		watchers := 0
		if l.Watchers != nil {
			watchers = *l.Watchers
		}
		snaps = append(snaps, &entity.PriceSnapshot{
			ListingID:  l.ExternalID,
			Price:      l.Price,
			Watchers:   watchers,
			CapturedAt: capturedAt,
		})
	}

	n, err := uc.snapshots.Append(ctx, snaps)
	if err != nil {
		return 0, fmt.Errorf("failed to append snapshots: %w", err)
	}
	metrics.SnapshotsWrittenTotal.Add(float64(n))
	uc.logger.Info("price snapshots written", zap.Int("count", n))
	return n, nil
}

// DetectSurges scores the snapshot history of a user's active listings, or of every listing
// when userID is empty. Surges are ordered strongest first.
func (uc *VolatilityUseCase) DetectSurges(ctx context.Context, userID string) ([]entity.PriceSurge, error) {
	var ids []string
	if userID != "" {
		active, err := uc.listings.LatestActive(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load active listings: %w", err)
		}
		if len(active) == 0 {
			return []entity.PriceSurge{}, nil
		}
		ids = make([]string, 0, len(active))
		for _, l := range active {
			ids = append(ids, l.ExternalID)
		}
	}

	series, err := uc.snapshots.Series(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot series: %w", err)
	}
	surges := analysis.DetectSurges(series, uc.policy)
	if userID == "" {
		metrics.SurgesDetected.Set(float64(len(surges)))
	}
	return surges, nil
}
