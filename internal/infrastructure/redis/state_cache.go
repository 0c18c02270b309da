package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"auction-core/internal/domain"

	"github.com/go-redis/redis/v8"
)

// RedisLotStateCache shares lot lifecycle status across instances, letting
// the control plane answer status queries without hitting MySQL.
type RedisLotStateCache struct {
	client *redis.Client
}

func NewRedisLotStateCache(client *redis.Client) *RedisLotStateCache {
	return &RedisLotStateCache{client: client}
}

func (r *RedisLotStateCache) SetLotStatus(ctx context.Context, lotID string, status domain.LotStatus) error {
	key := fmt.Sprintf("lot:%s:status", lotID)
	return r.client.Set(ctx, key, int(status), 0).Err()
}

func (r *RedisLotStateCache) GetLotStatus(ctx context.Context, lotID string) (domain.LotStatus, error) {
	key := fmt.Sprintf("lot:%s:status", lotID)

	result, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.LotPending, nil
		}
		return domain.LotPending, err
	}

	status, err := strconv.Atoi(result)
	if err != nil {
		return domain.LotPending, err
	}

	return domain.LotStatus(status), nil
}
