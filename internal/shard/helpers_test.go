package shard

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/emojirades/onboarding/internal/objectstore"
)

func newRedisObjectStore(t *testing.T) *objectstore.RedisStore {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store, err := objectstore.NewRedisStore(rdb, "test-env", 2)
	require.NoError(t, err)
	return store
}
