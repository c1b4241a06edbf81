package service

import (
	"context"
	"errors"
	"time"

	"github.com/vanityline/vanityline/pkg/cache"
	"github.com/vanityline/vanityline/services/numbers-service/internal/models"
)

const paymentCacheTTL = 24 * time.Hour

// PaymentCache holds verified transactions so repeated verify calls skip the gateway.
// Get returns nil, nil on a miss.
type PaymentCache interface {
	Get(ctx context.Context, reference string) (*models.PaymentTransaction, error)
	Set(ctx context.Context, tx *models.PaymentTransaction) error
}

type RedisPaymentCache struct {
	redis *cache.RedisCache
	ttl   time.Duration
}

func NewRedisPaymentCache(redis *cache.RedisCache) *RedisPaymentCache {
	return &RedisPaymentCache{redis: redis, ttl: paymentCacheTTL}
}

func paymentCacheKey(reference string) string {
	return "payment:tx:" + reference
}

func (c *RedisPaymentCache) Get(ctx context.Context, reference string) (*models.PaymentTransaction, error) {
	var tx models.PaymentTransaction
	if err := c.redis.GetJSON(ctx, paymentCacheKey(reference), &tx); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return &tx, nil
}

func (c *RedisPaymentCache) Set(ctx context.Context, tx *models.PaymentTransaction) error {
	return c.redis.SetJSON(ctx, paymentCacheKey(tx.Reference), tx, c.ttl)
}

// NopPaymentCache always misses. Used when Redis is disabled.
type NopPaymentCache struct{}

func (NopPaymentCache) Get(context.Context, string) (*models.PaymentTransaction, error) {
	return nil, nil
}

func (NopPaymentCache) Set(context.Context, *models.PaymentTransaction) error { return nil }
