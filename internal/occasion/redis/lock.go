package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis holds per-occasion admission locks. The lock is advisory: it spaces
// out concurrent purchases for the same occasion so a request that is about
// to lose the capacity race does not charge a card first. The storage
// layer's conditional commit remains the safety mechanism.
type Redis struct {
	Client  *redis.Client
	lockTTL time.Duration
}

func NewRedis(client *redis.Client, lockTTL time.Duration) *Redis {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &Redis{Client: client, lockTTL: lockTTL}
}

func lockKey(occasionID string) string {
	return "occasion_admission:" + occasionID
}

// LockOccasion takes the admission lock for an occasion on behalf of one
// purchase attempt. Returns false if another attempt holds it.
func (r *Redis) LockOccasion(ctx context.Context, occasionID, attemptID string) (bool, error) {
	ok, err := r.Client.SetNX(ctx, lockKey(occasionID), attemptID, r.lockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("admission lock: %w", err)
	}
	return ok, nil
}

// UnlockOccasion releases the lock if this attempt still owns it. A lock
// that expired and was retaken by someone else is left alone.
func (r *Redis) UnlockOccasion(ctx context.Context, occasionID, attemptID string) error {
	key := lockKey(occasionID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already expired
	}
	if err != nil {
		return err
	}
	if val == attemptID {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}
