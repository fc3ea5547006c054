package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	addr := os.Getenv("DISPATCH_TEST_REDIS")
	if addr == "" {
		t.Skip("DISPATCH_TEST_REDIS not set; skipping Redis-backed tests")
	}

	rdb := NewRedis(addr)
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb)
}

func TestRedisStore_SetGetDel(t *testing.T) {
	s := setupRedisStore(t)
	ctx := context.Background()
	key := fmt.Sprintf("test:kv:%d", time.Now().UnixNano())

	require.NoError(t, s.Set(ctx, key, []byte("v"), time.Minute))

	got, err := s.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []byte("v"), got)

	require.NoError(t, s.Del(ctx, key))
	_, err = s.Get(ctx, key)
	require.ErrorIs(t, err, ErrMiss)
}

func TestRedisStore_SetOperations(t *testing.T) {
	s := setupRedisStore(t)
	ctx := context.Background()
	key := fmt.Sprintf("test:set:%d", time.Now().UnixNano())
	t.Cleanup(func() { _ = s.Del(context.Background(), key) })

	require.NoError(t, s.AddToSet(ctx, key, time.Minute, "1", "2", "2"))

	members, err := s.SetMembers(ctx, key)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"1", "2"}, members)

	require.NoError(t, s.RemoveFromSet(ctx, key, "1"))
	members, err = s.SetMembers(ctx, key)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"2"}, members)
}
