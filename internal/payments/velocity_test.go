package payments

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestVelocityChecker_CheckOrderVelocity(t *testing.T) {
	client, _ := setupTestRedis(t)
	checker := NewVelocityChecker(client, VelocityConfig{MaxOrdersPerClient: 2, Window: time.Hour, Enabled: true}, nil)
	clientID := uuid.New()
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		result, err := checker.CheckOrderVelocity(ctx, clientID)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "attempt %d", i)
		assert.Equal(t, i, result.CurrentCount)
	}

	result, err := checker.CheckOrderVelocity(ctx, clientID)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, 3, result.CurrentCount)
	assert.Contains(t, result.Message, "exceeded")
}

func TestVelocityChecker_ClientsAreSeparate(t *testing.T) {
	client, _ := setupTestRedis(t)
	checker := NewVelocityChecker(client, VelocityConfig{MaxOrdersPerClient: 1, Window: time.Hour, Enabled: true}, nil)
	ctx := context.Background()

	first, err := checker.CheckOrderVelocity(ctx, uuid.New())
	require.NoError(t, err)
	second, err := checker.CheckOrderVelocity(ctx, uuid.New())
	require.NoError(t, err)

	assert.True(t, first.Allowed)
	assert.True(t, second.Allowed)
}

func TestVelocityChecker_WindowExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	checker := NewVelocityChecker(client, VelocityConfig{MaxOrdersPerClient: 1, Window: time.Minute, Enabled: true}, nil)
	clientID := uuid.New()
	ctx := context.Background()

	_, err := checker.CheckOrderVelocity(ctx, clientID)
	require.NoError(t, err)
	blocked, err := checker.CheckOrderVelocity(ctx, clientID)
	require.NoError(t, err)
	require.False(t, blocked.Allowed)

	mr.FastForward(2 * time.Minute)

	result, err := checker.CheckOrderVelocity(ctx, clientID)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 1, result.CurrentCount)
}

func TestVelocityChecker_Reset(t *testing.T) {
	client, _ := setupTestRedis(t)
	checker := NewVelocityChecker(client, VelocityConfig{MaxOrdersPerClient: 1, Window: time.Hour, Enabled: true}, nil)
	clientID := uuid.New()
	ctx := context.Background()

	_, _ = checker.CheckOrderVelocity(ctx, clientID)
	_, _ = checker.CheckOrderVelocity(ctx, clientID)
	require.NoError(t, checker.ResetOrderVelocity(ctx, clientID))

	result, err := checker.CheckOrderVelocity(ctx, clientID)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestVelocityChecker_FailsOpen(t *testing.T) {
	client, mr := setupTestRedis(t)
	checker := NewVelocityChecker(client, DefaultVelocityConfig(), nil)
	mr.Close()

	result, err := checker.CheckOrderVelocity(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, "velocity check unavailable", result.Message)
}

func TestVelocityChecker_Disabled(t *testing.T) {
	client, _ := setupTestRedis(t)
	checker := NewVelocityChecker(client, VelocityConfig{MaxOrdersPerClient: 0, Window: time.Hour}, nil)

	result, err := checker.CheckOrderVelocity(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}
