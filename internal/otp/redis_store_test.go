package otp

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewRedisStore(client)

	require.NoError(t, store.Put(ctx, "9876543210", "482193", time.Minute))
	assert.True(t, mr.Exists("otp:9876543210"))

	entry, ok, err := store.Get(ctx, "9876543210")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "482193", entry.Code)
	assert.Zero(t, entry.Attempts)

	n, err := store.IncrementAttempts(ctx, "9876543210")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.Put(ctx, "9876543210", "000111", time.Minute))
	entry, _, _ = store.Get(ctx, "9876543210")
	assert.Equal(t, "000111", entry.Code)
	assert.Zero(t, entry.Attempts)

	require.NoError(t, store.Delete(ctx, "9876543210"))
	_, ok, err = store.Get(ctx, "9876543210")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreExpiry(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	store := NewRedisStore(client)

	require.NoError(t, store.Put(ctx, "9876543210", "482193", time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := store.Get(ctx, "9876543210")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := store.IncrementAttempts(ctx, "9876543210")
	require.NoError(t, err)
	assert.Equal(t, -1, n)
	assert.False(t, mr.Exists("otp:9876543210"))
}

func TestServiceWithRedisStore(t *testing.T) {
	ctx := context.Background()
	_, client := newTestRedis(t)
	svc := NewService(NewRedisStore(client), &recordingSender{}, Config{MaxAttempts: 2, Generate: fixedCodes("482193")}, nil)

	_, err := svc.Send(ctx, "9876543210")
	require.NoError(t, err)

	got, err := svc.Verify(ctx, "9876543210", "000000")
	require.NoError(t, err)
	assert.Equal(t, VerifyMismatch, got)

	got, err = svc.Verify(ctx, "9876543210", "000000")
	require.NoError(t, err)
	assert.Equal(t, VerifyAttemptsExceeded, got)
}
