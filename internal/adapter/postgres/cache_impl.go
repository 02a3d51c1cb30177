package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/market-intel-service/internal/entity"
)

// CacheRepoImpl implements repository.CacheRepository on a table holding one JSON row per key.
type CacheRepoImpl struct {
	db     *pgxpool.Pool
	table  string
	keyCol string
}

// NewDashboardCacheRepo stores per-user dashboards in dashboard_cache.
func NewDashboardCacheRepo(db *pgxpool.Pool) *CacheRepoImpl {
	return &CacheRepoImpl{db: db, table: "dashboard_cache", keyCol: "user_id"}
}

// NewGlobalBenchmarkCacheRepo stores cross-user benchmarks in global_benchmark_cache.
func NewGlobalBenchmarkCacheRepo(db *pgxpool.Pool) *CacheRepoImpl {
	return &CacheRepoImpl{db: db, table: "global_benchmark_cache", keyCol: "scope"}
}

// Get returns entity.ErrNotFound when the scope has no row yet.
func (r *CacheRepoImpl) Get(ctx context.Context, scope string) (*entity.CacheRow, error) {
	query := fmt.Sprintf(`SELECT stats_json, last_updated_at FROM %s WHERE %s = $1`, r.table, r.keyCol)
	row := entity.CacheRow{Scope: scope}
	if err := r.db.QueryRow(ctx, query, scope).Scan(&row.Payload, &row.LastUpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read %s row: %w", r.table, err)
	}
	return &row, nil
}

// Put overwrites the row for row.Scope.
func (r *CacheRepoImpl) Put(ctx context.Context, row *entity.CacheRow) error {
	query := fmt.Sprintf(`
		INSERT INTO %[1]s (%[2]s, stats_json, last_updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (%[2]s) DO UPDATE
		SET stats_json = EXCLUDED.stats_json, last_updated_at = EXCLUDED.last_updated_at
	`, r.table, r.keyCol)
	if _, err := r.db.Exec(ctx, query, row.Scope, string(row.Payload), row.LastUpdatedAt); err != nil {
		return fmt.Errorf("failed to write %s row: %w", r.table, err)
	}
	return nil
}
