package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseloop/authd/pkg/auth"
	"github.com/courseloop/authd/pkg/kvstore"
	"github.com/courseloop/authd/pkg/observability"
)

func testValidator(t *testing.T) (*auth.Validator, string) {
	t.Helper()
	store := kvstore.NewMemoryStore()
	tokens := auth.NewTokenStore(store)
	rec, err := tokens.Issue(context.Background(), "acme", "alice", time.Hour)
	require.NoError(t, err)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return auth.NewValidator(tokens, logger), rec.Token
}

func TestBearerAuth_ValidTokenReachesHandler(t *testing.T) {
	validator, token := testValidator(t)
	bearer := NewBearerAuth(validator)

	var claim auth.Claim
	var claimOK bool
	handler := bearer.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claim, claimOK = ClaimFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.True(t, claimOK)
	assert.Equal(t, auth.Claim{TenantID: "acme", UserID: "alice"}, claim)
}

func TestBearerAuth_MissingTokenIs401(t *testing.T) {
	validator, _ := testValidator(t)
	bearer := NewBearerAuth(validator)

	handler := bearer.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a token")
	}))

	req := httptest.NewRequest("GET", "/users/me", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestBearerAuth_UnknownTokenIs403(t *testing.T) {
	validator, _ := testValidator(t)
	bearer := NewBearerAuth(validator)

	var outcomes []string
	bearer.WithOutcomeHook(func(outcome string) { outcomes = append(outcomes, outcome) })

	handler := bearer.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with a bad token")
	}))

	req := httptest.NewRequest("GET", "/users/me", nil)
	req.Header.Set("Authorization", "Bearer ghost")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, []string{"forbidden"}, outcomes)
}

func TestClaimFrom_AbsentClaim(t *testing.T) {
	_, ok := ClaimFrom(context.Background())
	assert.False(t, ok)
}
