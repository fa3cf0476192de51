package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"genius-backend/internal/models"
)

// UsagePublisher announces a changed usage status to a user's live sessions.
type UsagePublisher interface {
	PublishUsage(ctx context.Context, userID string, status models.UsageStatus) error
}

// UserUpdatesChannel is the pub/sub channel the websocket hub subscribes to.
func UserUpdatesChannel(userID string) string {
	return "user_updates:" + userID
}

type RedisUsagePublisher struct {
	redis *redis.Client
}

func NewRedisUsagePublisher(redisClient *redis.Client) *RedisUsagePublisher {
	return &RedisUsagePublisher{redis: redisClient}
}

func (p *RedisUsagePublisher) PublishUsage(ctx context.Context, userID string, status models.UsageStatus) error {
	data, err := json.Marshal(models.WSMessage{Type: models.WSTypeUsageUpdate, Payload: status})
	if err != nil {
		return err
	}
	if err := p.redis.Publish(ctx, UserUpdatesChannel(userID), string(data)).Err(); err != nil {
		return fmt.Errorf("failed to publish usage update: %w", err)
	}
	return nil
}
