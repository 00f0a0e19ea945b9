package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/support-rag/internal/core/domain"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestConnect(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer client.Close()

	_, err = Connect(context.Background(), "not a url")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))

	addr := mr.Addr()
	mr.Close()
	_, err = Connect(context.Background(), "redis://"+addr)
	assert.True(t, errors.Is(err, domain.ErrServiceUnavailable))
}

func TestLock_OwnerID_Unique(t *testing.T) {
	_, client := setupTestRedis(t)

	lock1 := NewLock(client, LockConfig{})
	lock2 := NewLock(client, LockConfig{})

	assert.NotEmpty(t, lock1.OwnerID())
	assert.NotEqual(t, lock1.OwnerID(), lock2.OwnerID())
}

func TestLock_Acquire(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	lock1 := NewLock(client, LockConfig{})
	lock2 := NewLock(client, LockConfig{})

	acquired, err := lock1.Acquire(ctx, "group:phone:call forwarding", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, acquired)

	got, err := mr.Get(DefaultLockPrefix + "group:phone:call forwarding")
	require.NoError(t, err)
	assert.Equal(t, lock1.OwnerID(), got)

	acquired, err = lock2.Acquire(ctx, "group:phone:call forwarding", 10*time.Second)
	require.NoError(t, err)
	assert.False(t, acquired, "second owner must not take a held group")

	acquired, err = lock2.Acquire(ctx, "group:email:webmail", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, acquired, "different groups are independent")
}

func TestLock_Acquire_AfterExpiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	lock1 := NewLock(client, LockConfig{})
	lock2 := NewLock(client, LockConfig{})

	acquired, err := lock1.Acquire(ctx, "g", time.Second)
	require.NoError(t, err)
	require.True(t, acquired)

	mr.FastForward(2 * time.Second)

	acquired, err = lock2.Acquire(ctx, "g", time.Second)
	require.NoError(t, err)
	assert.True(t, acquired)
}

func TestLock_Release(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	owner := NewLock(client, LockConfig{})
	other := NewLock(client, LockConfig{})

	_, err := owner.Acquire(ctx, "g", 10*time.Second)
	require.NoError(t, err)

	// A foreign release leaves the lock in place
	require.NoError(t, other.Release(ctx, "g"))
	assert.True(t, mr.Exists(DefaultLockPrefix+"g"))

	require.NoError(t, owner.Release(ctx, "g"))
	assert.False(t, mr.Exists(DefaultLockPrefix+"g"))

	// Releasing twice is harmless
	require.NoError(t, owner.Release(ctx, "g"))
}

func TestLock_Extend(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	owner := NewLock(client, LockConfig{})
	other := NewLock(client, LockConfig{})

	_, err := owner.Acquire(ctx, "g", time.Second)
	require.NoError(t, err)

	require.NoError(t, owner.Extend(ctx, "g", time.Minute))
	assert.Greater(t, mr.TTL(DefaultLockPrefix+"g"), 30*time.Second)

	err = other.Extend(ctx, "g", time.Minute)
	assert.True(t, errors.Is(err, domain.ErrGroupBusy))

	err = owner.Extend(ctx, "missing", time.Minute)
	assert.True(t, errors.Is(err, domain.ErrGroupBusy))
}

func TestLock_CustomPrefix(t *testing.T) {
	mr, client := setupTestRedis(t)

	lock := NewLock(client, LockConfig{Prefix: "test:"})
	_, err := lock.Acquire(context.Background(), "g", time.Minute)
	require.NoError(t, err)

	assert.True(t, mr.Exists("test:g"))
}

func TestLock_BackendDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	lock := NewLock(client, LockConfig{})
	ctx := context.Background()

	require.NoError(t, lock.Ping(ctx))

	mr.Close()

	assert.Error(t, lock.Ping(ctx))
	_, err := lock.Acquire(ctx, "g", time.Minute)
	assert.True(t, errors.Is(err, domain.ErrServiceUnavailable))
}
