package repository

import (
	"context"
	"time"

	"github.com/user/market-intel-service/internal/entity"
)

// CacheRepository stores one aggregate row per scope.
type CacheRepository interface {
	// Get returns entity.ErrNotFound when the scope has no row yet.
	Get(ctx context.Context, scope string) (*entity.CacheRow, error)
	// Put overwrites the row for row.Scope.
	Put(ctx context.Context, row *entity.CacheRow) error
}

// RunLock guarantees at most one active run per key.
type RunLock interface {
	// Acquire returns false when the key is already held. On success the returned token
	// identifies this holder.
	Acquire(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	// Release frees the key only if it is still held under token.
	Release(ctx context.Context, key, token string) error
}
