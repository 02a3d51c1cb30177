package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/market-intel-service/internal/entity"
)

// SnapshotRepoImpl implements repository.SnapshotRepository on price_snapshots.
type SnapshotRepoImpl struct {
	db *pgxpool.Pool
}

// NewSnapshotRepo creates a new SnapshotRepoImpl.
func NewSnapshotRepo(db *pgxpool.Pool) *SnapshotRepoImpl {
	return &SnapshotRepoImpl{db: db}
}

// Append stores snapshots in a single batch.
func (r *SnapshotRepoImpl) Append(ctx context.Context, snapshots []*entity.PriceSnapshot) (int, error) {
	if len(snapshots) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `INSERT INTO price_snapshots (listing_id, price, watchers, captured_at) VALUES ($1, $2, $3, $4)`
	batch := &pgx.Batch{}
	for _, s := range snapshots {
		batch.Queue(query, s.ListingID, s.Price, s.Watchers, s.CapturedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("failed to insert price snapshots: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit price snapshots: %w", err)
	}
	return len(snapshots), nil
}

// Series returns snapshots grouped by listing id. A nil listingIDs loads every series; an
// empty non-nil slice loads none.
func (r *SnapshotRepoImpl) Series(ctx context.Context, listingIDs []string) (map[string][]entity.PriceSnapshot, error) {
	series := make(map[string][]entity.PriceSnapshot)
	if listingIDs != nil && len(listingIDs) == 0 {
		return series, nil
	}

	query := `SELECT id, listing_id, price, watchers, captured_at FROM price_snapshots`
	args := []any{}
	if listingIDs != nil {
		query += ` WHERE listing_id = ANY($1)`
		args = append(args, listingIDs)
	}
	query += ` ORDER BY listing_id, captured_at, id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query price snapshots: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s entity.PriceSnapshot
		if err := rows.Scan(&s.ID, &s.ListingID, &s.Price, &s.Watchers, &s.CapturedAt); err != nil {
			return nil, fmt.Errorf("failed to scan price snapshot: %w", err)
		}
		series[s.ListingID] = append(series[s.ListingID], s)
	}
	return series, rows.Err()
}
