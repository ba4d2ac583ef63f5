package cache

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	c := newRedisMessageCache(redis.NewClient(&redis.Options{Addr: "localhost:0"}), "chat:recent")
	defer c.Close()

	assert.Equal(t, "chat:recent:user:u1:v0:50", c.BuildRecentKey("u1", 0, 50))
	assert.Equal(t, "chat:recent:user:u1:v3:50", c.BuildRecentKey("u1", 3, 50))
	assert.NotEqual(t, c.BuildRecentKey("u1", 1, 50), c.BuildRecentKey("u1", 2, 50))
	assert.Equal(t, "chat:recent:version:u1", c.versionKey("u1"))
}
