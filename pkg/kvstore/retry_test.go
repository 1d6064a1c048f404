package kvstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore fails the first failures calls of each operation, then
// delegates to an in-memory store.
type flakyStore struct {
	*MemoryStore
	failures int
	calls    int
	err      error
}

func (s *flakyStore) Get(ctx context.Context, table, key string) (Item, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, s.err
	}
	return s.MemoryStore.Get(ctx, table, key)
}

func (s *flakyStore) Put(ctx context.Context, table, key string, item Item) error {
	s.calls++
	if s.calls <= s.failures {
		return s.err
	}
	return s.MemoryStore.Put(ctx, table, key, item)
}

func retryConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryMaxAttempts = 3
	cfg.RetryInitialInterval = 1 // keep tests fast
	return cfg
}

func TestRetryStore_RecoversFromTransientFailure(t *testing.T) {
	inner := &flakyStore{
		MemoryStore: NewMemoryStore(),
		failures:    2,
		err:         errors.New("connection reset"),
	}
	store := NewRetryStore(inner, retryConfig())

	retried := 0
	store.OnRetry = func(operation, table string) {
		retried++
		assert.Equal(t, "put", operation)
		assert.Equal(t, TableUsers, table)
	}

	err := store.Put(context.Background(), TableUsers, "key", Item{"k": "v"})
	require.NoError(t, err)
	assert.Equal(t, 2, retried)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryStore_GivesUpAfterMaxAttempts(t *testing.T) {
	boom := errors.New("connection reset")
	inner := &flakyStore{
		MemoryStore: NewMemoryStore(),
		failures:    100,
		err:         boom,
	}
	store := NewRetryStore(inner, retryConfig())

	err := store.Put(context.Background(), TableUsers, "key", Item{"k": "v"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryStore_NotFoundIsNeverRetried(t *testing.T) {
	inner := &flakyStore{MemoryStore: NewMemoryStore()}
	store := NewRetryStore(inner, retryConfig())

	retried := 0
	store.OnRetry = func(operation, table string) { retried++ }

	_, err := store.Get(context.Background(), TableTokens, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, retried)
	assert.Equal(t, 1, inner.calls)
}
