package redis

import (
	"context"
	"encoding/json"

	"auction-core/internal/domain"

	"github.com/go-redis/redis/v8"
)

const lotEventsChannel = "lot_events"

// RedisEventPublisher relays committed lot events to other instances over
// pub/sub, so their local subscribers see commits made here.
type RedisEventPublisher struct {
	client *redis.Client
}

func NewRedisEventPublisher(client *redis.Client) *RedisEventPublisher {
	return &RedisEventPublisher{client: client}
}

func (r *RedisEventPublisher) PublishLotEvent(ctx context.Context, event *domain.LotEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, lotEventsChannel, payload).Err()
}
