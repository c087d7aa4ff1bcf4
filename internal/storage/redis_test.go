package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shopbridge/internal/models"
)

func newRedisTestStore(t *testing.T) *RedisStore {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set, skipping Redis tests")
	}
	store, err := NewRedisStore(context.Background(), models.RedisConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() {
		store.DeleteByShop(context.Background(), "redis-test.myshopify.com")
		store.Close()
	})
	return store
}

func TestRedisStore_EmptyAddr(t *testing.T) {
	_, err := NewRedisStore(context.Background(), models.RedisConfig{})
	assert.Error(t, err)
}

func TestRedisStore_UnreachableHost(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedisStore(ctx, models.RedisConfig{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestRedisStore_SessionCRUD(t *testing.T) {
	store := newRedisTestStore(t)
	ctx := context.Background()

	session := testSession("offline_redis-test.myshopify.com", "redis-test.myshopify.com")
	require.NoError(t, store.Store(ctx, session))

	loaded, err := store.Load(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Shop, loaded.Shop)
	assert.Equal(t, session.AccessToken, loaded.AccessToken)

	sessions, err := store.LoadByShop(ctx, "redis-test.myshopify.com")
	require.NoError(t, err)
	assert.Len(t, sessions, 1)

	require.NoError(t, store.Delete(ctx, session.ID))
	_, err = store.Load(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	sessions, err = store.LoadByShop(ctx, "redis-test.myshopify.com")
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestRedisStore_RejectsExpiredSession(t *testing.T) {
	store := newRedisTestStore(t)

	session := testSession("offline_redis-test.myshopify.com", "redis-test.myshopify.com")
	past := time.Now().Add(-time.Minute)
	session.Expires = &past

	err := store.Store(context.Background(), session)
	assert.Error(t, err)
}

func TestRedisStore_SessionTTLFromExpiry(t *testing.T) {
	store := newRedisTestStore(t)
	ctx := context.Background()

	session := testSession("offline_redis-test.myshopify.com", "redis-test.myshopify.com")
	future := time.Now().Add(time.Hour)
	session.Expires = &future
	require.NoError(t, store.Store(ctx, session))

	ttl, err := store.client.TTL(ctx, redisSessionPrefix+session.ID).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Minute)
}

func TestRedisStore_Ping(t *testing.T) {
	store := newRedisTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
