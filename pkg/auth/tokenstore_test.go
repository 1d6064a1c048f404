package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseloop/authd/pkg/kvstore"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTokenStore_Issue(t *testing.T) {
	store := kvstore.NewMemoryStore()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	tokens := NewTokenStore(store).WithClock(fixedClock(now))

	rec, err := tokens.Issue(context.Background(), "acme", "alice", time.Hour)
	require.NoError(t, err)

	assert.NotEmpty(t, rec.Token)
	assert.Equal(t, "acme", rec.TenantID)
	assert.Equal(t, "alice", rec.UserID)
	assert.Equal(t, "2026-08-30 13:00:00", rec.Expires)
}

func TestTokenStore_IssueGeneratesUniqueTokens(t *testing.T) {
	tokens := NewTokenStore(kvstore.NewMemoryStore())
	ctx := context.Background()

	a, err := tokens.Issue(ctx, "acme", "alice", time.Hour)
	require.NoError(t, err)
	b, err := tokens.Issue(ctx, "acme", "alice", time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, a.Token, b.Token)
}

func TestTokenStore_LookupRoundTrip(t *testing.T) {
	tokens := NewTokenStore(kvstore.NewMemoryStore())
	ctx := context.Background()

	issued, err := tokens.Issue(ctx, "acme", "alice", time.Hour)
	require.NoError(t, err)

	got, err := tokens.Lookup(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, issued, got)
}

func TestTokenStore_LookupUnknownToken(t *testing.T) {
	tokens := NewTokenStore(kvstore.NewMemoryStore())

	_, err := tokens.Lookup(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestTokenStore_RevokeIsIdempotent(t *testing.T) {
	tokens := NewTokenStore(kvstore.NewMemoryStore())
	ctx := context.Background()

	issued, err := tokens.Issue(ctx, "acme", "alice", time.Hour)
	require.NoError(t, err)

	require.NoError(t, tokens.Revoke(ctx, issued.Token))
	_, err = tokens.Lookup(ctx, issued.Token)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	// A second revoke of the same token still succeeds.
	assert.NoError(t, tokens.Revoke(ctx, issued.Token))
}

func TestTokenStore_SweepExpired(t *testing.T) {
	store := kvstore.NewMemoryStore()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	tokens := NewTokenStore(store).WithClock(fixedClock(now))
	ctx := context.Background()

	live, err := tokens.Issue(ctx, "acme", "alice", time.Hour)
	require.NoError(t, err)

	// Expiry strictly in the past.
	dead := TokenRecord{Token: "dead", TenantID: "acme", UserID: "bob",
		Expires: now.Add(-time.Minute).Format(TimeLayout)}
	require.NoError(t, store.Put(ctx, kvstore.TableTokens, dead.Token, tokenItem(dead)))

	// Expiry exactly now stays; equality still validates.
	boundary := TokenRecord{Token: "boundary", TenantID: "acme", UserID: "carol",
		Expires: now.Format(TimeLayout)}
	require.NoError(t, store.Put(ctx, kvstore.TableTokens, boundary.Token, tokenItem(boundary)))

	// Unparsable expiry can never validate, so the sweep removes it.
	garbage := kvstore.Item{"token": "garbage", "tenant_id": "acme", "user_id": "dan", "expires": "not-a-time"}
	require.NoError(t, store.Put(ctx, kvstore.TableTokens, "garbage", garbage))

	swept, err := tokens.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, swept)

	_, err = tokens.Lookup(ctx, live.Token)
	assert.NoError(t, err)
	_, err = tokens.Lookup(ctx, "boundary")
	assert.NoError(t, err)
	_, err = tokens.Lookup(ctx, "dead")
	assert.ErrorIs(t, err, ErrTokenNotFound)
	_, err = tokens.Lookup(ctx, "garbage")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}
