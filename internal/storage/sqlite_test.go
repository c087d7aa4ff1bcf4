package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_RequiresPath(t *testing.T) {
	_, err := NewSQLiteStore("")
	assert.Error(t, err)
}

func TestSQLiteStore_StoreAndLoad(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	session := testSession("offline_demo.myshopify.com", "demo.myshopify.com")
	require.NoError(t, store.Store(ctx, session))

	loaded, err := store.Load(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Shop, loaded.Shop)
	assert.Equal(t, session.AccessToken, loaded.AccessToken)
	assert.Equal(t, session.Scope, loaded.Scope)
	assert.Nil(t, loaded.Expires)
}

func TestSQLiteStore_StoreUpsert(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	session := testSession("s1", "demo.myshopify.com")
	require.NoError(t, store.Store(ctx, session))

	session.AccessToken = "shpat_rotated"
	require.NoError(t, store.Store(ctx, session))

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "shpat_rotated", loaded.AccessToken)
}

func TestSQLiteStore_ExpiresRoundTrip(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	session := testSession("online_s1", "demo.myshopify.com")
	session.IsOnline = true
	session.Expires = &expires
	require.NoError(t, store.Store(ctx, session))

	loaded, err := store.Load(ctx, "online_s1")
	require.NoError(t, err)
	require.NotNil(t, loaded.Expires)
	assert.True(t, expires.Equal(*loaded.Expires))
}

func TestSQLiteStore_LoadNotFound(t *testing.T) {
	store := newTestSQLiteStore(t)

	_, err := store.Load(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSQLiteStore_LoadByShop(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	first := testSession("s1", "demo.myshopify.com")
	first.CreatedAt = time.Now().Add(-time.Hour).UTC()
	require.NoError(t, store.Store(ctx, first))
	require.NoError(t, store.Store(ctx, testSession("s2", "demo.myshopify.com")))
	require.NoError(t, store.Store(ctx, testSession("s3", "other.myshopify.com")))

	sessions, err := store.LoadByShop(ctx, "demo.myshopify.com")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "s2", sessions[0].ID)
	assert.Equal(t, "s1", sessions[1].ID)
}

func TestSQLiteStore_Delete(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Store(ctx, testSession("s1", "demo.myshopify.com")))
	require.NoError(t, store.Delete(ctx, "s1"))

	_, err := store.Load(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.ErrorIs(t, store.Delete(ctx, "s1"), ErrSessionNotFound)
}

func TestSQLiteStore_DeleteByShop(t *testing.T) {
	store := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Store(ctx, testSession("s1", "demo.myshopify.com")))
	require.NoError(t, store.Store(ctx, testSession("s2", "demo.myshopify.com")))
	require.NoError(t, store.Store(ctx, testSession("s3", "other.myshopify.com")))

	require.NoError(t, store.DeleteByShop(ctx, "demo.myshopify.com"))

	sessions, err := store.LoadByShop(ctx, "demo.myshopify.com")
	require.NoError(t, err)
	assert.Empty(t, sessions)

	_, err = store.Load(ctx, "s3")
	assert.NoError(t, err)
}

func TestSQLiteStore_Ping(t *testing.T) {
	store := newTestSQLiteStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
