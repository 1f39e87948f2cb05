package progress

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster publishes progress updates on Redis pub/sub
// channels. Slow or absent subscribers never block the publisher.
type RedisBroadcaster struct {
	client *redis.Client
}

func NewRedisBroadcaster(client *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{client: client}
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}
