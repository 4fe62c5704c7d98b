package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisTracker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	tracker := NewRedisTracker(client, time.Minute)
	ctx := context.Background()

	assert.False(t, tracker.IsOnline(ctx, "p1"))
	require.NoError(t, tracker.MarkOnline(ctx, "p1"))
	assert.True(t, tracker.IsOnline(ctx, "p1"))

	mr.FastForward(2 * time.Minute)
	assert.False(t, tracker.IsOnline(ctx, "p1"))

	require.NoError(t, tracker.MarkOnline(ctx, "p1"))
	require.NoError(t, tracker.MarkOffline(ctx, "p1"))
	assert.False(t, tracker.IsOnline(ctx, "p1"))
}

func TestRedisTracker_FailureIsOffline(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	tracker := NewRedisTracker(client, 0)
	require.NoError(t, tracker.MarkOnline(context.Background(), "p1"))

	mr.Close()
	assert.False(t, tracker.IsOnline(context.Background(), "p1"))
}

func TestMemoryTracker(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewMemoryTracker(time.Minute, func() time.Time { return now })
	ctx := context.Background()

	require.NoError(t, tracker.MarkOnline(ctx, "p1"))
	assert.True(t, tracker.IsOnline(ctx, "p1"))
	assert.False(t, tracker.IsOnline(ctx, "p2"))

	now = now.Add(time.Minute)
	assert.False(t, tracker.IsOnline(ctx, "p1"))

	require.NoError(t, tracker.MarkOnline(ctx, "p1"))
	require.NoError(t, tracker.MarkOffline(ctx, "p1"))
	assert.False(t, tracker.IsOnline(ctx, "p1"))
}
