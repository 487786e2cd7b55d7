package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func stubRedis(t *testing.T, pingErr error) *string {
	t.Helper()
	origNewClient := newRedisClient
	origPing := pingRedis
	t.Cleanup(func() {
		newRedisClient = origNewClient
		pingRedis = origPing
		Client = nil
	})

	var capturedAddr string
	newRedisClient = func(opts *redis.Options) *redis.Client {
		capturedAddr = opts.Addr
		return redis.NewClient(opts)
	}
	pingRedis = func(ctx context.Context, client *redis.Client) error {
		return pingErr
	}
	return &capturedAddr
}

func TestInitRedisWithCustomAddr(t *testing.T) {
	addr := stubRedis(t, nil)

	require.NoError(t, InitRedis(context.Background(), "redis:9999", zap.NewNop()))
	assert.Equal(t, "redis:9999", *addr)
	assert.NotNil(t, Client)
}

func TestInitRedisDefaults(t *testing.T) {
	addr := stubRedis(t, nil)

	require.NoError(t, InitRedis(context.Background(), "", zap.NewNop()))
	assert.Equal(t, "localhost:6379", *addr)
}

func TestInitRedisParsesURL(t *testing.T) {
	addr := stubRedis(t, nil)

	require.NoError(t, InitRedis(context.Background(), "redis://cache:6380/2", zap.NewNop()))
	assert.Equal(t, "cache:6380", *addr)
}

func TestInitRedisPingFailure(t *testing.T) {
	stubRedis(t, errors.New("connection refused"))

	err := InitRedis(context.Background(), "redis:9999", zap.NewNop())
	require.Error(t, err)
	assert.Nil(t, Client)
}
