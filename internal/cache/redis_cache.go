package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/aamamaludin23/electronkasir/internal/domain"
)

const lastTransactionKey = "electronkasir:last_transaction"

type RedisLastTransactionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLastTransactionCache(addr string, password string, db int, ttl time.Duration) *RedisLastTransactionCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &RedisLastTransactionCache{client: client, ttl: ttl}
}

func (c *RedisLastTransactionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisLastTransactionCache) Close() error {
	return c.client.Close()
}

func (c *RedisLastTransactionCache) Get(ctx context.Context) (*domain.Transaction, bool, error) {
	val, err := c.client.Get(ctx, lastTransactionKey).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var tx domain.Transaction
	if err := json.Unmarshal([]byte(val), &tx); err != nil {
		return nil, false, err
	}
	return &tx, true, nil
}

func (c *RedisLastTransactionCache) Set(ctx context.Context, tx domain.Transaction) error {
	payload, err := json.Marshal(tx)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, lastTransactionKey, payload, c.ttl).Err()
}
