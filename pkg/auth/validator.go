package auth

import (
	"context"
	"errors"
	"time"

	"github.com/courseloop/authd/pkg/observability"
)

// Shape identifies the transport a credential arrived on. The boundary
// layer disambiguates once and passes an explicit variant down; the
// validator never inspects request structure.
type Shape int

const (
	// ShapeGatewayAuthorizer carries a bare token plus the protected
	// resource identifier and expects a policy-style decision.
	ShapeGatewayAuthorizer Shape = iota
	// ShapeDirectInvocation carries a bearer-header token and expects a
	// structured status result.
	ShapeDirectInvocation
)

// Credential is the tagged-union validation request.
type Credential struct {
	Shape    Shape
	Token    string
	Resource string // protected resource identifier, gateway shape only
}

// Status classifies a direct-invocation validation result.
type Status string

const (
	StatusOK            Status = "ok"
	StatusUnauthorized  Status = "unauthorized"
	StatusForbidden     Status = "forbidden"
	StatusInternalError Status = "internal-error"
)

// Deny reasons shared by both shapes.
const (
	ReasonTokenMissing    = "token missing"
	ReasonTokenNotFound   = "token not found"
	ReasonMalformedRecord = "malformed token record"
	ReasonTokenExpired    = "token expired"
	ReasonValidationError = "validation error"
)

// Result is the structured outcome for the direct-invocation shape.
type Result struct {
	Status  Status
	Claim   Claim // populated only when Status == StatusOK
	Message string
}

// Allowed reports whether the result grants access.
func (r Result) Allowed() bool { return r.Status == StatusOK }

// Policy document constants for the gateway-authorizer shape.
const (
	policyVersion = "2012-10-17"
	policyAction  = "execute-api:Invoke"
)

// PolicyStatement is one statement of an IAM-style policy document.
type PolicyStatement struct {
	Action   string `json:"Action"`
	Effect   string `json:"Effect"`
	Resource string `json:"Resource"`
}

// PolicyDocument is an IAM-style policy document.
type PolicyDocument struct {
	Version   string            `json:"Version"`
	Statement []PolicyStatement `json:"Statement"`
}

// PolicyResponse is the gateway-authorizer decision. Context carries the
// resolved claim and is attached only on Allow.
type PolicyResponse struct {
	PrincipalID    string         `json:"principalId"`
	PolicyDocument PolicyDocument `json:"policyDocument"`
	Context        *Claim         `json:"context,omitempty"`
}

// Validator is the authorization gate. Both presentation shapes run the same
// validation algorithm; only the response framing differs.
type Validator struct {
	tokens *TokenStore
	logger *observability.Logger
	now    func() time.Time
}

// NewValidator creates a validator over the token store.
func NewValidator(tokens *TokenStore, logger *observability.Logger) *Validator {
	return &Validator{tokens: tokens, logger: logger, now: time.Now}
}

// WithClock overrides the clock; tests use this to cross the expiry boundary.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// Validate answers the authorization question for a disambiguated
// credential. It never returns an error: every failure, including a storage
// fault, becomes a deny (fail-closed).
func (v *Validator) Validate(ctx context.Context, cred Credential) Result {
	return v.validate(ctx, cred.Token)
}

// Authorize answers the gateway-authorizer shape: a binary Allow/Deny policy
// referencing the protected resource, with the claim attached only on Allow.
func (v *Validator) Authorize(ctx context.Context, token, resource string) PolicyResponse {
	res := v.validate(ctx, token)

	effect := "Deny"
	var claim *Claim
	if res.Allowed() {
		effect = "Allow"
		c := res.Claim
		claim = &c
	}

	return PolicyResponse{
		PrincipalID: "user",
		PolicyDocument: PolicyDocument{
			Version: policyVersion,
			Statement: []PolicyStatement{{
				Action:   policyAction,
				Effect:   effect,
				Resource: resource,
			}},
		},
		Context: claim,
	}
}

// validate runs the shared algorithm:
//  1. no token -> unauthorized, "token missing"
//  2. unknown token -> forbidden, "token not found"
//  3. record without expiry -> forbidden, "malformed token record"
//  4. expiry strictly in the past -> forbidden, "token expired"
//     (equality allows; second-granularity wall clock)
//  5. otherwise ok with the resolved claim
//
// Storage faults in steps 2-4 become forbidden / "validation error" rather
// than propagating; the deny path never raises.
func (v *Validator) validate(ctx context.Context, token string) Result {
	if token == "" {
		return Result{Status: StatusUnauthorized, Message: ReasonTokenMissing}
	}

	rec, err := v.tokens.Lookup(ctx, token)
	if errors.Is(err, ErrTokenNotFound) {
		return Result{Status: StatusForbidden, Message: ReasonTokenNotFound}
	}
	if err != nil {
		v.logger.WithError(err).Error("token validation storage failure")
		return Result{Status: StatusForbidden, Message: ReasonValidationError}
	}

	if rec.Expires == "" {
		return Result{Status: StatusForbidden, Message: ReasonMalformedRecord}
	}

	expires, err := rec.ExpiresAt()
	if err != nil {
		return Result{Status: StatusForbidden, Message: ReasonMalformedRecord}
	}

	now := v.now().UTC().Truncate(time.Second)
	if now.After(expires) {
		return Result{Status: StatusForbidden, Message: ReasonTokenExpired}
	}

	return Result{
		Status: StatusOK,
		Claim:  Claim{TenantID: rec.TenantID, UserID: rec.UserID},
	}
}
