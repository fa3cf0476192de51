package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClients holds one client for quota commands and one for pub/sub.
// Subscriptions pin their connection, so they get a pool of their own.
type RedisClients struct {
	Quota  *redis.Client
	PubSub *redis.Client
}

func NewRedisClients(redisURL string) (*RedisClients, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clients := &RedisClients{}
	for _, target := range []struct {
		role   string
		client **redis.Client
	}{
		{"quota", &clients.Quota},
		{"pubsub", &clients.PubSub},
	} {
		roleOpt := *opt
		c := redis.NewClient(&roleOpt)
		*target.client = c

		if err := c.Ping(ctx).Err(); err != nil {
			clients.Close()
			return nil, fmt.Errorf("failed to ping Redis (%s): %w", target.role, err)
		}
	}

	return clients, nil
}

// Close closes whichever clients were opened.
func (r *RedisClients) Close() {
	for _, c := range []*redis.Client{r.Quota, r.PubSub} {
		if c != nil {
			c.Close()
		}
	}
}
