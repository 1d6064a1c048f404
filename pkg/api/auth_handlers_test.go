package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courseloop/authd/pkg/auth"
)

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func registerUser(t *testing.T, env *testEnv) {
	t.Helper()
	rr := env.do(httptest.NewRequest("POST", "/auth/register", jsonBody(t, map[string]string{
		"tenant_id": "acme",
		"user_id":   "alice",
		"password":  "hunter2",
		"name":      "Alice",
	})))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
}

func loginUser(t *testing.T, env *testEnv) string {
	t.Helper()
	rr := env.do(httptest.NewRequest("POST", "/auth/login", jsonBody(t, map[string]string{
		"tenant_id": "acme",
		"user_id":   "alice",
		"password":  "hunter2",
	})))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var result auth.LoginResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	require.NotEmpty(t, result.Token)
	return result.Token
}

func TestRegister_EchoesIdentity(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest("POST", "/auth/register", jsonBody(t, map[string]string{
		"tenant_id": "acme",
		"user_id":   "alice",
		"password":  "hunter2",
	})))
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "alice", body["user_id"])
	assert.Equal(t, "acme", body["tenant_id"])
	assert.NotEmpty(t, body["message"])
}

func TestRegister_MissingFieldIs400(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest("POST", "/auth/register", jsonBody(t, map[string]string{
		"tenant_id": "acme",
		"user_id":   "alice",
	})))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "password")
}

func TestRegister_InvalidJSONIs400(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest("POST", "/auth/register", bytes.NewReader([]byte("{not json"))))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLogin_Succeeds(t *testing.T) {
	env := newTestEnv(t)
	registerUser(t, env)

	rr := env.do(httptest.NewRequest("POST", "/auth/login", jsonBody(t, map[string]string{
		"tenant_id": "acme",
		"user_id":   "alice",
		"password":  "hunter2",
	})))
	require.Equal(t, http.StatusOK, rr.Code)

	var result auth.LoginResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &result))
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "acme", result.TenantID)
	assert.Equal(t, "alice", result.UserID)
}

func TestLogin_RejectionsAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	registerUser(t, env)

	unknownUser := env.do(httptest.NewRequest("POST", "/auth/login", jsonBody(t, map[string]string{
		"tenant_id": "acme", "user_id": "ghost", "password": "hunter2",
	})))
	wrongPassword := env.do(httptest.NewRequest("POST", "/auth/login", jsonBody(t, map[string]string{
		"tenant_id": "acme", "user_id": "alice", "password": "wrong",
	})))

	assert.Equal(t, http.StatusForbidden, unknownUser.Code)
	assert.Equal(t, http.StatusForbidden, wrongPassword.Code)
	assert.Equal(t, unknownUser.Body.String(), wrongPassword.Body.String())
}

func TestAuthorize_AllowAndDeny(t *testing.T) {
	env := newTestEnv(t)
	registerUser(t, env)
	token := loginUser(t, env)

	rr := env.do(httptest.NewRequest("POST", "/auth/authorize", jsonBody(t, map[string]string{
		"authorizationToken": token,
		"methodArn":          "arn:resource",
	})))
	require.Equal(t, http.StatusOK, rr.Code)

	var allow auth.PolicyResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &allow))
	assert.Equal(t, "user", allow.PrincipalID)
	require.Len(t, allow.PolicyDocument.Statement, 1)
	assert.Equal(t, "Allow", allow.PolicyDocument.Statement[0].Effect)
	require.NotNil(t, allow.Context)
	assert.Equal(t, "acme", allow.Context.TenantID)

	// Denials still answer 200; the decision is inside the document.
	rr = env.do(httptest.NewRequest("POST", "/auth/authorize", jsonBody(t, map[string]string{
		"authorizationToken": "ghost",
		"methodArn":          "arn:resource",
	})))
	require.Equal(t, http.StatusOK, rr.Code)

	var deny auth.PolicyResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &deny))
	assert.Equal(t, "Deny", deny.PolicyDocument.Statement[0].Effect)
	assert.Nil(t, deny.Context)
}

func TestValidate_StatusMapping(t *testing.T) {
	env := newTestEnv(t)
	registerUser(t, env)
	token := loginUser(t, env)

	tests := []struct {
		name     string
		header   string
		wantCode int
	}{
		{name: "valid token", header: "Bearer " + token, wantCode: http.StatusOK},
		{name: "no header", header: "", wantCode: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer ghost", wantCode: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/auth/validate", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := env.do(req)
			assert.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
		})
	}
}

func TestValidate_ReturnsClaim(t *testing.T) {
	env := newTestEnv(t)
	registerUser(t, env)
	token := loginUser(t, env)

	req := httptest.NewRequest("POST", "/auth/validate", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := env.do(req)
	require.Equal(t, http.StatusOK, rr.Code)

	var claim auth.Claim
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &claim))
	assert.Equal(t, auth.Claim{TenantID: "acme", UserID: "alice"}, claim)
}

func TestRevoke_TokenStopsValidating(t *testing.T) {
	env := newTestEnv(t)
	registerUser(t, env)
	token := loginUser(t, env)

	req := httptest.NewRequest("DELETE", "/auth/tokens", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := env.do(req)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	// The revoked token now fails validation.
	req = httptest.NewRequest("POST", "/auth/validate", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = env.do(req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// Revoking again is still a 204.
	req = httptest.NewRequest("DELETE", "/auth/tokens", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = env.do(req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestRevoke_WithoutTokenIs401(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(httptest.NewRequest("DELETE", "/auth/tokens", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
