package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/user/market-intel-service/pkg/utils"
)

const runLockPrefix = "run_lock:"

// releaseScript deletes the lock only while it still carries the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RunLockImpl provides a concrete implementation for the RunLock interface using Redis.
type RunLockImpl struct {
	client *redis.Client
}

// NewRunLock creates a new instance of RunLockImpl.
func NewRunLock(client *redis.Client) *RunLockImpl {
	return &RunLockImpl{client: client}
}

// generateKey creates a consistent Redis key for a run by hashing it.
func (r *RunLockImpl) generateKey(key string) string {
	return fmt.Sprintf("%s%s", runLockPrefix, utils.HashKey(key))
}

// Acquire takes the lock if nobody holds it and returns the holder's token. The TTL frees
// locks of crashed runs.
func (r *RunLockImpl) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	// SET NX is atomic: exactly one caller sees true.
	ok, err := r.client.SetNX(ctx, r.generateKey(key), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release removes the lock if it is still held under token. A lock that expired and was
// taken by another run is left alone.
func (r *RunLockImpl) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.generateKey(key)}, token).Err(); err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}

// Ping checks that Redis is reachable.
func (r *RunLockImpl) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
