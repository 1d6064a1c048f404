package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseloop/authd/pkg/kvstore"
)

func TestJanitor_SweepRemovesExpiredTokens(t *testing.T) {
	store := kvstore.NewMemoryStore()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	tokens := NewTokenStore(store).WithClock(fixedClock(now))
	ctx := context.Background()

	seedToken(t, store, TokenRecord{Token: "dead", TenantID: "acme", UserID: "bob",
		Expires: now.Add(-time.Hour).Format(TimeLayout)})
	live, err := tokens.Issue(ctx, "acme", "alice", time.Hour)
	require.NoError(t, err)

	j := NewJanitor(tokens, "@every 15m", testLogger())
	var swept int
	j.OnSweep = func(removed int) { swept = removed }

	j.runOnce()

	assert.Equal(t, 1, swept)
	_, err = tokens.Lookup(ctx, live.Token)
	assert.NoError(t, err)
	_, err = tokens.Lookup(ctx, "dead")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestJanitor_StartRejectsBadSchedule(t *testing.T) {
	j := NewJanitor(NewTokenStore(kvstore.NewMemoryStore()), "every day at noon", testLogger())
	assert.Error(t, j.Start())
}

func TestJanitor_StartStop(t *testing.T) {
	j := NewJanitor(NewTokenStore(kvstore.NewMemoryStore()), "@every 1h", testLogger())
	require.NoError(t, j.Start())
	j.Stop()
}
