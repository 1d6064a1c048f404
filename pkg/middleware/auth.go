package middleware

import (
	"context"
	"net/http"

	"github.com/courseloop/authd/pkg/auth"
	"github.com/courseloop/authd/pkg/httputil"
)

type contextKey string

// claimKey carries the validated claim through the request context.
const claimKey contextKey = "authd.claim"

// BearerAuth gates handlers behind bearer-token validation. On success the
// resolved claim is attached to the request context; on failure the response
// mirrors the validator's status mapping.
type BearerAuth struct {
	validator *auth.Validator
	onOutcome func(outcome string)
}

// NewBearerAuth creates the middleware over a validator.
func NewBearerAuth(validator *auth.Validator) *BearerAuth {
	return &BearerAuth{validator: validator}
}

// WithOutcomeHook registers a callback invoked with the validation status of
// every guarded request; wired to metrics by the caller.
func (m *BearerAuth) WithOutcomeHook(fn func(outcome string)) *BearerAuth {
	m.onOutcome = fn
	return m
}

// Handler wraps an HTTP handler with token validation.
func (m *BearerAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, _ := httputil.BearerToken(r)

		res := m.validator.Validate(r.Context(), auth.Credential{
			Shape: auth.ShapeDirectInvocation,
			Token: token,
		})
		if m.onOutcome != nil {
			m.onOutcome(string(res.Status))
		}

		switch res.Status {
		case auth.StatusOK:
			ctx := WithClaim(r.Context(), res.Claim)
			next.ServeHTTP(w, r.WithContext(ctx))
		case auth.StatusUnauthorized:
			httputil.WriteUnauthorized(w, res.Message)
		case auth.StatusForbidden:
			httputil.WriteForbidden(w, res.Message)
		default:
			httputil.WriteInternalErrorMessage(w, res.Message)
		}
	})
}

// WithClaim attaches a claim to the context.
func WithClaim(ctx context.Context, claim auth.Claim) context.Context {
	return context.WithValue(ctx, claimKey, claim)
}

// ClaimFrom extracts the validated claim from a request context.
func ClaimFrom(ctx context.Context) (auth.Claim, bool) {
	claim, ok := ctx.Value(claimKey).(auth.Claim)
	return claim, ok
}
