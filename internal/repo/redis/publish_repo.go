package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

// PublishRepo fans events out over redis pub/sub channels.
type PublishRepo struct {
	client *goredis.Client
}

func NewPublishRepo(client *goredis.Client) *PublishRepo {
	return &PublishRepo{client: client}
}

func (r *PublishRepo) Publish(ctx context.Context, channel string, payload []byte) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if channel == "" {
		return fmt.Errorf("channel is required")
	}

	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}

	return nil
}
