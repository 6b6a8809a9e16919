package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes domain events on Redis pub/sub channels named
// after the topic.  Messages are fire-and-forget: a subscriber that is not
// connected at publish time never sees the event.
type RedisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher returns a publisher bound to rdb.
func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

// Publish JSON-encodes event and publishes it on topic.
func (p *RedisPublisher) Publish(ctx context.Context, topic string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	if err := p.rdb.Publish(ctx, topic, body).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
