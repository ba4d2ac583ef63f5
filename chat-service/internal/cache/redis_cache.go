package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/config"
)

var ErrCacheMiss = errors.New("cache miss")

// versionTTL bounds how long an idle user's version counter lives. It only
// has to outlast the windows cached under it.
const versionTTL = 24 * time.Hour

type RedisMessageCache struct {
	client *redis.Client
	prefix string
}

func NewRedisMessageCache(cfg config.RedisConfig, prefix string) (*RedisMessageCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newRedisMessageCache(client, prefix), nil
}

func newRedisMessageCache(client *redis.Client, prefix string) *RedisMessageCache {
	return &RedisMessageCache{client: client, prefix: prefix}
}

func (c *RedisMessageCache) BuildRecentKey(userID string, version int64, limit int) string {
	return fmt.Sprintf("%s:user:%s:v%d:%d", c.prefix, userID, version, limit)
}

func (c *RedisMessageCache) versionKey(userID string) string {
	return fmt.Sprintf("%s:version:%s", c.prefix, userID)
}

// Version returns the user's current window version; an unknown user is at 0.
func (c *RedisMessageCache) Version(ctx context.Context, userID string) (int64, error) {
	v, err := c.client.Get(ctx, c.versionKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read cache version: %w", err)
	}
	return v, nil
}

func (c *RedisMessageCache) Get(ctx context.Context, key string) (*RecentResult, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var result RecentResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}

	return &result, nil
}

func (c *RedisMessageCache) Set(ctx context.Context, key string, result *RecentResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}

	return nil
}

// Invalidate bumps the version of every user so their cached windows are
// no longer read. Old windows expire on their own TTL.
func (c *RedisMessageCache) Invalidate(ctx context.Context, userIDs ...string) error {
	if len(userIDs) == 0 {
		return nil
	}

	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range userIDs {
			key := c.versionKey(id)
			pipe.Incr(ctx, key)
			pipe.Expire(ctx, key, versionTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to bump cache versions: %w", err)
	}
	return nil
}

func (c *RedisMessageCache) Close() error {
	return c.client.Close()
}
