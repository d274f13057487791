package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jordanlanch/partnerdb/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := NewClient("redis://"+mr.Addr(), logger.Discard())
	require.NoError(t, err)

	return client, mr
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient("not a url", logger.Discard())
	assert.Error(t, err)
}

func TestClient_SetGetDelete(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	require.NoError(t, client.Set(ctx, "test:key1", "value1", time.Hour))

	val, err := client.Get(ctx, "test:key1")
	require.NoError(t, err)
	assert.Equal(t, "value1", val)

	exists, err := client.Exists(ctx, "test:key1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, client.Delete(ctx, "test:key1"))

	_, err = client.Get(ctx, "test:key1")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestClient_Fields(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()
	defer client.Close()

	ctx := context.Background()

	t.Run("Success - write and read back", func(t *testing.T) {
		err := client.SetFields(ctx, "login:abc", map[string]interface{}{"count": 2, "last": "x"}, time.Minute)
		require.NoError(t, err)

		fields, err := client.GetFields(ctx, "login:abc")
		require.NoError(t, err)
		assert.Equal(t, "2", fields["count"])
		assert.Equal(t, "x", fields["last"])

		ttl, err := client.TTL(ctx, "login:abc")
		require.NoError(t, err)
		assert.Equal(t, time.Minute, ttl)
	})

	t.Run("Success - expired key reads empty", func(t *testing.T) {
		mr.FastForward(2 * time.Minute)

		fields, err := client.GetFields(ctx, "login:abc")
		require.NoError(t, err)
		assert.Empty(t, fields)
	})
}
