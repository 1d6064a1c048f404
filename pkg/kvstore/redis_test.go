package kvstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.Type = "redis"
	cfg.RedisURL = "redis://" + mr.Addr()

	store, err := NewRedisStore(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRedisStore_PutGetDelete(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	item := Item{"tenant_id": "acme", "user_id": "alice", "password": "digest"}
	require.NoError(t, store.Put(ctx, TableUsers, "acme#alice", item))

	got, err := store.Get(ctx, TableUsers, "acme#alice")
	require.NoError(t, err)
	assert.Equal(t, item, got)

	require.NoError(t, store.Delete(ctx, TableUsers, "acme#alice"))
	_, err = store.Get(ctx, TableUsers, "acme#alice")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_GetMissing(t *testing.T) {
	store := newTestRedisStore(t)

	_, err := store.Get(context.Background(), TableTokens, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_TablesDoNotCollide(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, TableUsers, "same-key", Item{"kind": "user"}))
	require.NoError(t, store.Put(ctx, TableTokens, "same-key", Item{"kind": "token"}))

	user, err := store.Get(ctx, TableUsers, "same-key")
	require.NoError(t, err)
	assert.Equal(t, "user", user["kind"])

	token, err := store.Get(ctx, TableTokens, "same-key")
	require.NoError(t, err)
	assert.Equal(t, "token", token["kind"])
}

func TestRedisStore_Scan(t *testing.T) {
	store := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, TableTokens, "t1", Item{"token": "t1"}))
	require.NoError(t, store.Put(ctx, TableTokens, "t2", Item{"token": "t2"}))
	require.NoError(t, store.Put(ctx, TableUsers, "u1", Item{"user_id": "u1"}))

	seen := map[string]string{}
	err := store.Scan(ctx, TableTokens, func(key string, item Item) error {
		seen[key] = item["token"]
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"t1": "t1", "t2": "t2"}, seen)
}

func TestRedisStore_HealthCheck(t *testing.T) {
	store := newTestRedisStore(t)
	assert.NoError(t, store.HealthCheck(context.Background()))
}
