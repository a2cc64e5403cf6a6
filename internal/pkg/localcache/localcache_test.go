package localcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgredis "github.com/mx-space/blockdraft/internal/pkg/redis"
)

func setupRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	rc, err := pkgredis.Connect("redis://" + s.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { rc.Close() })
	return NewRedisStore(rc, "test:", ttl), s
}

func exerciseStore(t *testing.T, store Store) {
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "doc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "doc", `{"id":null}`))
	v, ok, err := store.Get(ctx, "doc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"id":null}`, v)

	require.NoError(t, store.Delete(ctx, "doc"))
	_, ok, err = store.Get(ctx, "doc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore(t *testing.T) {
	store, s := setupRedisStore(t, 0)
	exerciseStore(t, store)

	require.NoError(t, store.Set(context.Background(), "k", "v"))
	assert.True(t, s.Exists("test:k"))
}

func TestRedisStoreTTL(t *testing.T) {
	store, s := setupRedisStore(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v"))
	s.FastForward(2 * time.Hour)

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, s := setupRedisStore(t, 0)
	s.Close()

	err := store.Set(context.Background(), "k", "v")
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	exerciseStore(t, store)

	store.SetFailing(true)
	assert.ErrorIs(t, store.Set(context.Background(), "k", "v"), ErrUnavailable)
}
