package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// consumeScript increments the counter only while it is below the limit.
// Returns the new count, or -1 when the limit is reached.
var consumeScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
	return -1
end
return redis.call('INCR', KEYS[1])
`)

// RedisQuota stores counts under quota:count:<user id>.
type RedisQuota struct {
	redis *redis.Client
	limit int
}

func NewRedisQuota(redisClient *redis.Client, limit int) *RedisQuota {
	return &RedisQuota{redis: redisClient, limit: limit}
}

func quotaKey(userID string) string {
	return "quota:count:" + userID
}

func (q *RedisQuota) Check(ctx context.Context, userID string) (bool, error) {
	count, err := q.Count(ctx, userID)
	if err != nil {
		return false, err
	}
	return count < q.limit, nil
}

func (q *RedisQuota) Increment(ctx context.Context, userID string) error {
	if err := q.redis.Incr(ctx, quotaKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to increment usage: %w", err)
	}
	return nil
}

func (q *RedisQuota) Consume(ctx context.Context, userID string) (bool, error) {
	n, err := consumeScript.Run(ctx, q.redis, []string{quotaKey(userID)}, q.limit).Int()
	if err != nil {
		return false, fmt.Errorf("failed to consume usage: %w", err)
	}
	return n >= 0, nil
}

func (q *RedisQuota) Count(ctx context.Context, userID string) (int, error) {
	n, err := q.redis.Get(ctx, quotaKey(userID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read usage: %w", err)
	}
	return n, nil
}

func (q *RedisQuota) Limit() int { return q.limit }
