package handshake

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore creates a store connected to a miniredis instance
func setupTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store, err := NewRedisStore(rdb, "test-env")
	require.NoError(t, err)

	return store, mr
}

func TestNewRedisStore(t *testing.T) {
	t.Run("rejects empty namespace", func(t *testing.T) {
		_, err := NewRedisStore(redis.NewClient(&redis.Options{Addr: "localhost:6379"}), "")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "namespace cannot be empty")
	})
}

func TestKey(t *testing.T) {
	assert.Equal(t, "onboarding:emo-dev:handshake:abc", Key("emo-dev", "abc"))
}

func TestHandshake_Expired(t *testing.T) {
	expiresAt := time.Unix(1_700_000_300, 0)
	h := &Handshake{Token: "t", ExpiresAt: expiresAt}

	assert.False(t, h.Expired(expiresAt.Add(-time.Second)))
	assert.False(t, h.Expired(expiresAt), "valid at exactly the expiry second")
	assert.True(t, h.Expired(expiresAt.Add(time.Second)))
	assert.True(t, h.Expired(expiresAt.Add(time.Nanosecond)))
}

func TestCreateAndGet(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	token := uuid.NewString()
	expiresAt := time.Unix(1_700_000_300, 900_000_123)

	err := store.Create(ctx, &Handshake{Token: token, ExpiresAt: expiresAt}, 5*time.Minute)
	require.NoError(t, err)

	got, err := store.Get(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, token, got.Token)
	assert.True(t, expiresAt.Equal(got.ExpiresAt))

	assert.Equal(t, "1700000300900000123", mr.HGet(Key("test-env", token), "expires_at"))

	// Redis reclaims the key once the TTL elapses
	assert.Equal(t, 5*time.Minute, mr.TTL(Key("test-env", token)))
	mr.FastForward(6 * time.Minute)

	_, err = store.Get(ctx, token)
	assert.True(t, IsNotFound(err))
}

func TestCreate_Validation(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	err := store.Create(ctx, &Handshake{ExpiresAt: time.Now()}, time.Minute)
	assert.Error(t, err)

	err = store.Create(ctx, &Handshake{Token: "t", ExpiresAt: time.Now()}, 0)
	assert.Error(t, err)
}

func TestGet_Missing(t *testing.T) {
	store, _ := setupTestStore(t)

	got, err := store.Get(context.Background(), uuid.NewString())
	assert.Nil(t, got)
	assert.True(t, IsNotFound(err))
}

func TestGet_CorruptRecord(t *testing.T) {
	store, mr := setupTestStore(t)

	mr.HSet(Key("test-env", "bad"), "expires_at", "not-a-number")

	_, err := store.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}

func TestDelete(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	token := uuid.NewString()
	require.NoError(t, store.Create(ctx, &Handshake{Token: token, ExpiresAt: time.Now().Add(time.Minute)}, time.Minute))

	deleted, err := store.Delete(ctx, token)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.Delete(ctx, token)
	require.NoError(t, err)
	assert.False(t, deleted, "second delete must not report success")

	_, err = store.Get(ctx, token)
	assert.True(t, IsNotFound(err))
}

func TestDelete_ConcurrentCallersConsumeOnce(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	token := uuid.NewString()
	require.NoError(t, store.Create(ctx, &Handshake{Token: token, ExpiresAt: time.Now().Add(time.Minute)}, time.Minute))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			deleted, err := store.Delete(ctx, token)
			if err == nil && deleted {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
}

func TestNamespacesAreIsolated(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	other, err := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "other-env")
	require.NoError(t, err)

	token := uuid.NewString()
	require.NoError(t, store.Create(ctx, &Handshake{Token: token, ExpiresAt: time.Now().Add(time.Minute)}, time.Minute))

	_, err = other.Get(ctx, token)
	assert.True(t, IsNotFound(err))
}
