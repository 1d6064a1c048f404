package auth

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseloop/authd/pkg/kvstore"
	"github.com/courseloop/authd/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func newTestService(store kvstore.Store, required func() []string) *Service {
	dir := NewDirectory(store)
	tokens := NewTokenStore(store)
	// Legacy scheme keeps these tests fast; bcrypt behavior is covered in
	// password_test.go.
	return NewService(dir, tokens, SHA256Hasher{}, time.Hour, required, testLogger())
}

func TestService_RegisterAndLogin(t *testing.T) {
	store := kvstore.NewMemoryStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	err := svc.Register(ctx, RegisterRequest{
		TenantID: "acme",
		UserID:   "alice",
		Password: "hunter2",
		Name:     "Alice",
	})
	require.NoError(t, err)

	result, err := svc.Login(ctx, "acme", "alice", "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "acme", result.TenantID)
	assert.Equal(t, "alice", result.UserID)
}

func TestService_RegisterStoresDigestNotPlaintext(t *testing.T) {
	store := kvstore.NewMemoryStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, RegisterRequest{
		TenantID: "acme", UserID: "alice", Password: "hunter2",
	}))

	item, err := store.Get(ctx, kvstore.TableUsers, UserKey("acme", "alice"))
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", item["password"])
	assert.Len(t, item["password"], 64)
}

func TestService_RegisterMissingFieldFailsBeforeStorage(t *testing.T) {
	store := kvstore.NewMemoryStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	err := svc.Register(ctx, RegisterRequest{TenantID: "acme", UserID: "alice"})
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = store.Get(ctx, kvstore.TableUsers, UserKey("acme", "alice"))
	assert.ErrorIs(t, err, kvstore.ErrNotFound)
}

func TestService_RegisterHonorsPolicy(t *testing.T) {
	store := kvstore.NewMemoryStore()
	required := func() []string {
		return []string{"tenant_id", "user_id", "password", "phone_number"}
	}
	svc := newTestService(store, required)
	ctx := context.Background()

	err := svc.Register(ctx, RegisterRequest{
		TenantID: "acme", UserID: "alice", Password: "hunter2",
	})
	require.ErrorIs(t, err, ErrMissingFields)
	assert.Contains(t, err.Error(), "phone_number")

	err = svc.Register(ctx, RegisterRequest{
		TenantID: "acme", UserID: "alice", Password: "hunter2", Phone: "555-0100",
	})
	assert.NoError(t, err)
}

func TestService_LoginFailuresAreDistinctInternally(t *testing.T) {
	store := kvstore.NewMemoryStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, RegisterRequest{
		TenantID: "acme", UserID: "alice", Password: "hunter2",
	}))

	_, err := svc.Login(ctx, "acme", "ghost", "hunter2")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.True(t, IsAuthFailure(err))

	_, err = svc.Login(ctx, "acme", "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.True(t, IsAuthFailure(err))
}

func TestService_LoginWrongTenantFails(t *testing.T) {
	store := kvstore.NewMemoryStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, RegisterRequest{
		TenantID: "acme", UserID: "alice", Password: "hunter2",
	}))

	_, err := svc.Login(ctx, "globex", "alice", "hunter2")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestService_LoginStorageFailureIsNotAuthFailure(t *testing.T) {
	store := kvstore.NewMemoryStore()
	svc := newTestService(store, nil)

	store.FailNext = context.DeadlineExceeded
	_, err := svc.Login(context.Background(), "acme", "alice", "hunter2")
	require.Error(t, err)
	assert.False(t, IsAuthFailure(err))
}

func TestService_RevokeInvalidatesToken(t *testing.T) {
	store := kvstore.NewMemoryStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, RegisterRequest{
		TenantID: "acme", UserID: "alice", Password: "hunter2",
	}))
	result, err := svc.Login(ctx, "acme", "alice", "hunter2")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, result.Token))

	validator := NewValidator(NewTokenStore(store), testLogger())
	res := validator.Validate(ctx, Credential{Shape: ShapeDirectInvocation, Token: result.Token})
	assert.Equal(t, StatusForbidden, res.Status)
	assert.Equal(t, ReasonTokenNotFound, res.Message)
}
