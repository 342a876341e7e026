package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"studypulse-backend/internal/models"
)

// RedisPublisher pushes observer messages onto the per-room redis channel
// the hub bridges from. It is the production ingest.Publisher.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, roomID string, msg models.WSMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal observer message: %w", err)
	}
	if err := p.client.Publish(ctx, roomChannel(roomID), data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", roomChannel(roomID), err)
	}
	return nil
}
