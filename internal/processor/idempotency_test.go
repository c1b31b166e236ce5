package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/sms-ledger/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	return mr, adapter
}

func TestIdempotencyService_AcquireProcessingLock_FirstAttempt(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	service := NewIdempotencyService(adapter, DefaultIdempotencyConfig())

	pc, err := service.AcquireProcessingLock(context.Background(), "fp-1")
	require.NoError(t, err)
	assert.Equal(t, "fp-1", pc.Fingerprint)
	assert.Equal(t, 0, pc.RetryCount)
	assert.False(t, pc.IsRetry)
	assert.True(t, pc.lockAcquired)

	token, err := mr.Get("ledger:lock:fp-1")
	require.NoError(t, err)
	assert.Equal(t, pc.token, token)
	assert.Len(t, token, 36)
}

func TestIdempotencyService_AcquireProcessingLock_Concurrent(t *testing.T) {
	_, adapter := setupTestRedis(t)
	service := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ctx := context.Background()

	_, err := service.AcquireProcessingLock(ctx, "fp-2")
	require.NoError(t, err)

	_, err = service.AcquireProcessingLock(ctx, "fp-2")
	assert.ErrorIs(t, err, ErrLockAcquireFailed)
}

func TestIdempotencyService_MarkSuccess(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	service := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ctx := context.Background()

	pc, err := service.AcquireProcessingLock(ctx, "fp-3")
	require.NoError(t, err)
	require.NoError(t, service.MarkSuccess(ctx, pc))

	assert.False(t, mr.Exists("ledger:lock:fp-3"))
	assert.True(t, mr.Exists("ledger:seen:fp-3"))

	processed, err := service.IsProcessed(ctx, "fp-3")
	require.NoError(t, err)
	assert.True(t, processed)

	_, err = service.AcquireProcessingLock(ctx, "fp-3")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestIdempotencyService_MarkFailure_WithRetry(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	service := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ctx := context.Background()

	pc, err := service.AcquireProcessingLock(ctx, "fp-4")
	require.NoError(t, err)
	require.NoError(t, service.MarkFailure(ctx, pc, errors.New("db down")))
	assert.False(t, mr.Exists("ledger:lock:fp-4"))

	count, err := service.GetRetryCount(ctx, "fp-4")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	pc, err = service.AcquireProcessingLock(ctx, "fp-4")
	require.NoError(t, err)
	assert.True(t, pc.IsRetry)
	assert.Equal(t, 1, pc.RetryCount)
}

func TestIdempotencyService_MaxRetriesExceeded(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	cfg := DefaultIdempotencyConfig()
	cfg.MaxRetries = 2
	service := NewIdempotencyService(adapter, cfg)

	require.NoError(t, mr.Set("ledger:retry:fp-5", "2"))

	_, err := service.AcquireProcessingLock(context.Background(), "fp-5")
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
}

func TestIdempotencyService_ReleaseLock(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	cfg := DefaultIdempotencyConfig()
	cfg.LockTTL = time.Second
	service := NewIdempotencyService(adapter, cfg)
	ctx := context.Background()

	t.Run("own lock is released", func(t *testing.T) {
		pc, err := service.AcquireProcessingLock(ctx, "fp-6")
		require.NoError(t, err)
		require.NoError(t, service.ReleaseLock(ctx, pc))
		assert.False(t, mr.Exists("ledger:lock:fp-6"))
		assert.NoError(t, service.ReleaseLock(ctx, pc))
	})

	t.Run("expired lock taken by another holder is kept", func(t *testing.T) {
		pc, err := service.AcquireProcessingLock(ctx, "fp-7")
		require.NoError(t, err)

		mr.FastForward(2 * time.Second)
		other, err := service.AcquireProcessingLock(ctx, "fp-7")
		require.NoError(t, err)

		require.NoError(t, service.ReleaseLock(ctx, pc))
		token, err := mr.Get("ledger:lock:fp-7")
		require.NoError(t, err)
		assert.Equal(t, other.token, token)
	})

	t.Run("nil context", func(t *testing.T) {
		assert.NoError(t, service.ReleaseLock(ctx, nil))
	})
}

func TestIdempotencyService_GetRetryCount(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	service := NewIdempotencyService(adapter, DefaultIdempotencyConfig())

	count, err := service.GetRetryCount(context.Background(), "missing")
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, mr.Set("ledger:retry:bad", "x"))
	_, err = service.GetRetryCount(context.Background(), "bad")
	assert.Error(t, err)
}
