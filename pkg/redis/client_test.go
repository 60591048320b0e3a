package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, time.Second), mr
}

func TestOpenInvalidURL(t *testing.T) {
	_, err := Open("://invalid-url", "")
	assert.Error(t, err)
}

func TestOpenPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Open("redis://"+mr.Addr(), "")
	require.NoError(t, err)
	defer client.Close()
	assert.NotNil(t, client)
}

func TestStoreGetWithTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	_, _, found, err := store.GetWithTTL(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "template:welcome", []byte(`{"a":1}`), time.Minute))
	val, ttl, found, err := store.GetWithTTL(ctx, "template:welcome")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, `{"a":1}`, string(val))
	assert.InDelta(t, time.Minute.Seconds(), ttl.Seconds(), 1)

	mr.FastForward(2 * time.Minute)
	_, _, found, err = store.GetWithTTL(ctx, "template:welcome")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStoreDel(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), 0))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), 0))
	require.NoError(t, store.Del(ctx, "a", "b"))
	require.NoError(t, store.Del(ctx))

	_, _, found, err := store.GetWithTTL(ctx, "a")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStoreWithUnreachableRedis(t *testing.T) {
	cli := goredis.NewClient(&goredis.Options{
		Addr:         "127.0.0.1:0",
		DialTimeout:  50 * time.Millisecond,
		ReadTimeout:  50 * time.Millisecond,
		WriteTimeout: 50 * time.Millisecond,
	})
	defer cli.Close()
	store := NewStore(cli, 100*time.Millisecond)
	ctx := context.Background()

	assert.Error(t, store.Set(ctx, "k", []byte("v"), time.Second))
	_, _, _, err := store.GetWithTTL(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, store.Del(ctx, "k"))
	_, err = store.SetNX(ctx, "k", "v", time.Second)
	assert.Error(t, err)
}

func TestLeaseAcquireRelease(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	lease, ok, err := store.Acquire(ctx, "lock:sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = store.Acquire(ctx, "lock:sweep", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second owner must not acquire a held lease")

	require.NoError(t, lease.Release(ctx))
	assert.False(t, mr.Exists("lock:sweep"))

	_, ok, err = store.Acquire(ctx, "lock:sweep", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLeaseReleaseDoesNotDropForeignOwner(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	lease, ok, err := store.Acquire(ctx, "lock:sweep", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = store.Acquire(ctx, "lock:sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, lease.Release(ctx))
	assert.True(t, mr.Exists("lock:sweep"), "expired owner must not release the new lease")
}
