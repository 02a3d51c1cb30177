package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/user/market-intel-service/internal/entity"
	"github.com/user/market-intel-service/internal/repository"
	"github.com/user/market-intel-service/internal/worker"
	"github.com/user/market-intel-service/pkg/metrics"
)

// ComputeFunc builds the payload for a cache scope.
type ComputeFunc func(ctx context.Context, scope string) ([]byte, error)

// CachedPayload is what a cache read hands back.
type CachedPayload struct {
	Payload       []byte
	LastUpdatedAt time.Time
	Stale         bool
}

// AggregateCache serves precomputed payloads, one row per scope. Readers never wait for a
// refresh once a row exists: a stale row is returned as is and recomputed in the background.
type AggregateCache struct {
	name           string
	store          repository.CacheRepository
	compute        ComputeFunc
	ttl            time.Duration // 0 means rows never go stale on read
	pool           *worker.Pool
	refreshTimeout time.Duration
	logger         *zap.Logger
	now            func() time.Time
	misses         singleflight.Group
}

func NewAggregateCache(name string, store repository.CacheRepository, compute ComputeFunc, ttl time.Duration, pool *worker.Pool, logger *zap.Logger) *AggregateCache {
	return &AggregateCache{
		name:           name,
		store:          store,
		compute:        compute,
		ttl:            ttl,
		pool:           pool,
		refreshTimeout: 2 * time.Minute,
		logger:         logger.With(zap.String("cache", name)),
		now:            time.Now,
	}
}

// Read returns the payload for scope. A missing row is computed synchronously; concurrent
// readers of the same missing scope share one computation.
func (c *AggregateCache) Read(ctx context.Context, scope string) (*CachedPayload, error) {
	row, err := c.store.Get(ctx, scope)
	if errors.Is(err, entity.ErrNotFound) {
		row, err = c.fill(ctx, scope)
		if err != nil {
			return nil, err
		}
		return &CachedPayload{Payload: row.Payload, LastUpdatedAt: row.LastUpdatedAt}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s cache: %w", c.name, err)
	}

	stale := c.ttl > 0 && c.now().Sub(row.LastUpdatedAt) > c.ttl
	if stale {
		c.scheduleRefresh(scope)
	}
	return &CachedPayload{Payload: row.Payload, LastUpdatedAt: row.LastUpdatedAt, Stale: stale}, nil
}

// Refresh recomputes scope and overwrites its row.
func (c *AggregateCache) Refresh(ctx context.Context, scope string) (*entity.CacheRow, error) {
	payload, err := c.compute(ctx, scope)
	if err != nil {
		metrics.CacheRefreshesTotal.WithLabelValues(c.name, "failure").Inc()
		return nil, fmt.Errorf("failed to compute %s for %s: %w", c.name, scope, err)
	}
	row := &entity.CacheRow{Scope: scope, Payload: payload, LastUpdatedAt: c.now().UTC()}
	if err := c.store.Put(ctx, row); err != nil {
		metrics.CacheRefreshesTotal.WithLabelValues(c.name, "failure").Inc()
		return nil, fmt.Errorf("failed to store %s for %s: %w", c.name, scope, err)
	}
	metrics.CacheRefreshesTotal.WithLabelValues(c.name, "success").Inc()
	return row, nil
}

// fill computes a missing row once per scope at a time. The row is looked up again inside
// the flight so a reader that missed just before another flight stored it does not recompute.
func (c *AggregateCache) fill(ctx context.Context, scope string) (*entity.CacheRow, error) {
	v, err, _ := c.misses.Do(c.name+":"+scope, func() (any, error) {
		// Waiters share the result, so one caller going away must not fail the others.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()
		if row, err := c.store.Get(ctx, scope); err == nil {
			return row, nil
		}
		return c.Refresh(ctx, scope)
	})
	if err != nil {
		return nil, err
	}
	return v.(*entity.CacheRow), nil
}

// scheduleRefresh submits a background refresh unless one for scope is already pending.
func (c *AggregateCache) scheduleRefresh(scope string) bool {
	return c.pool.Submit(c.name+":"+scope, func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, c.refreshTimeout)
		defer cancel()
		if _, err := c.Refresh(ctx, scope); err != nil {
			c.logger.Error("background refresh failed, serving stale row", zap.String("scope", scope), zap.Error(err))
			return
		}
		c.logger.Debug("background refresh done", zap.String("scope", scope))
	})
}
