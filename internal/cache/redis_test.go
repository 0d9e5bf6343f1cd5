package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStoreFromClient(client), mr
}

func TestRedisStore_SetGet(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestRedisStore_Get_Missing_ReturnsErrMiss(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrMiss))
}

func TestRedisStore_Set_Expires(t *testing.T) {
	t.Parallel()
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, RefreshTokenKey("user:1"), "hash", 10*time.Second))

	mr.FastForward(11 * time.Second)

	_, err := store.Get(ctx, RefreshTokenKey("user:1"))
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisStore_SetNX(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()

	ok, err := store.SetNX(ctx, "lock", "a", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.SetNX(ctx, "lock", "b", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	got, _ := store.Get(ctx, "lock")
	assert.Equal(t, "a", got)
}

func TestRedisStore_GetDel(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, OAuthStateKey("s"), "1", time.Minute))

	got, err := store.GetDel(ctx, OAuthStateKey("s"))
	require.NoError(t, err)
	assert.Equal(t, "1", got)

	_, err = store.GetDel(ctx, OAuthStateKey("s"))
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisStore_DeleteAndTTL(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", "1", time.Hour))
	require.NoError(t, store.Set(ctx, "b", "2", time.Hour))

	ttl, err := store.TTL(ctx, "a")
	require.NoError(t, err)
	assert.InDelta(t, time.Hour.Seconds(), ttl.Seconds(), 1)

	require.NoError(t, store.Delete(ctx, "a", "b", "missing"))
	require.NoError(t, store.Delete(ctx))

	_, err = store.TTL(ctx, "a")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisStore_Incr_WindowStartsOnFirstHit(t *testing.T) {
	t.Parallel()
	store, mr := newTestStore(t)
	ctx := context.Background()
	key := RateLimitKey("otp", "1.2.3.4")

	n, ttl, err := store.Incr(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, time.Minute, ttl)

	mr.FastForward(30 * time.Second)

	n, ttl, err = store.Incr(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 30*time.Second, ttl)

	mr.FastForward(31 * time.Second)

	n, _, err = store.Incr(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisStore_Ping_Unavailable(t *testing.T) {
	t.Parallel()
	store, mr := newTestStore(t)
	mr.Close()

	err := store.Ping(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}
