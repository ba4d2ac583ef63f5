package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/chat-service/internal/config"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/log"
)

// ErrNotOnline is returned by Owner when no instance holds the user.
var ErrNotOnline = errors.New("user not online")

// RedisPresenceMirror records which instance holds each user's connection.
// Keys expire unless refreshed by the heartbeat, so a crashed instance's
// users age out on their own.
type RedisPresenceMirror struct {
	client            *redis.Client
	advertiseAddress  string
	prefix            string
	keyTTL            time.Duration
	heartbeatInterval time.Duration
	managedKeys       map[string]struct{}
	mu                sync.RWMutex
	cancel            context.CancelFunc
}

func NewRedisPresenceMirror(cfg config.RedisConfig) (*RedisPresenceMirror, error) {
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

	return newRedisPresenceMirror(client, cfg), nil
}

func newRedisPresenceMirror(client *redis.Client, cfg config.RedisConfig) *RedisPresenceMirror {
	return &RedisPresenceMirror{
		client:            client,
		advertiseAddress:  cfg.AdvertiseAddress,
		prefix:            cfg.RegistryPrefix,
		keyTTL:            cfg.KeyTTL,
		heartbeatInterval: cfg.HeartbeatInterval,
		managedKeys:       make(map[string]struct{}),
	}
}

func (r *RedisPresenceMirror) keyFor(userID string) string {
	return fmt.Sprintf("%s:user:%s", r.prefix, userID)
}

func (r *RedisPresenceMirror) MarkOnline(ctx context.Context, userID string) error {
	key := r.keyFor(userID)

	if err := r.client.Set(ctx, key, r.advertiseAddress, r.keyTTL).Err(); err != nil {
		return fmt.Errorf("failed to mark user online: %w", err)
	}

	r.mu.Lock()
	r.managedKeys[key] = struct{}{}
	r.mu.Unlock()
	return nil
}

func (r *RedisPresenceMirror) MarkOffline(ctx context.Context, userID string) error {
	key := r.keyFor(userID)

	r.mu.Lock()
	delete(r.managedKeys, key)
	r.mu.Unlock()

	// Only delete the key if it still names this instance.
	owner, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read user owner: %w", err)
	}
	if owner != r.advertiseAddress {
		return nil
	}
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to mark user offline: %w", err)
	}
	return nil
}

// Owner returns the advertise address of the instance holding userID.
func (r *RedisPresenceMirror) Owner(ctx context.Context, userID string) (string, error) {
	addr, err := r.client.Get(ctx, r.keyFor(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotOnline
	}
	if err != nil {
		return "", fmt.Errorf("failed to lookup user owner: %w", err)
	}
	return addr, nil
}

func (r *RedisPresenceMirror) StartHeartbeat(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	go r.heartbeatLoop(ctx)
	l := log.L()
	l.Info().Dur("interval", r.heartbeatInterval).Dur("ttl", r.keyTTL).Msg("presence mirror heartbeat started")
}

func (r *RedisPresenceMirror) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refreshKeys(ctx)
		}
	}
}

func (r *RedisPresenceMirror) refreshKeys(ctx context.Context) {
	r.mu.RLock()
	keys := make([]string, 0, len(r.managedKeys))
	for k := range r.managedKeys {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	if len(keys) == 0 {
		return
	}

	pipe := r.client.Pipeline()
	for _, key := range keys {
		pipe.Expire(ctx, key, r.keyTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		l := log.L()
		l.Error().Err(err).Int("keys", len(keys)).Msg("failed to refresh presence keys")
	}
}

func (r *RedisPresenceMirror) StopHeartbeat() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *RedisPresenceMirror) Close() error {
	r.StopHeartbeat()
	return r.client.Close()
}
