package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"chat-subscription-payments/internal/domain/model"
	"chat-subscription-payments/internal/domain/ports/adapter"
	"chat-subscription-payments/internal/infra/metrics"
)

var _ adapter.SubscriptionInfoCache = (*SubscriptionInfoCache)(nil)

// SubscriptionInfoCache keeps the per-user subscription read model for a
// short TTL. It is advisory: payment matching never reads it.
type SubscriptionInfoCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewSubscriptionInfoCache(client RedisClient, ttl time.Duration) *SubscriptionInfoCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SubscriptionInfoCache{
		client: client,
		ttl:    ttl,
	}
}

func subscriptionInfoKey(userID string) string { return "subscription_info:" + userID }

func (c *SubscriptionInfoCache) Get(ctx context.Context, userID string) (*model.SubscriptionInfo, bool, error) {
	data, err := c.client.Get(ctx, subscriptionInfoKey(userID))
	if err == redis.Nil {
		metrics.IncCacheRequest("subscription_info", "miss")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var info model.SubscriptionInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		// a corrupt entry is as good as a miss
		metrics.IncCacheRequest("subscription_info", "miss")
		return nil, false, nil
	}
	metrics.IncCacheRequest("subscription_info", "hit")
	return &info, true, nil
}

func (c *SubscriptionInfoCache) Set(ctx context.Context, info *model.SubscriptionInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, subscriptionInfoKey(info.UserID), data, c.ttl)
}

func (c *SubscriptionInfoCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, subscriptionInfoKey(userID))
}
