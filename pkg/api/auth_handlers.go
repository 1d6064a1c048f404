package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/courseloop/authd/pkg/auth"
	"github.com/courseloop/authd/pkg/httputil"
	"github.com/courseloop/authd/pkg/observability"
	"github.com/courseloop/authd/pkg/profile"
)

// AuthHandlers serves registration, login, validation and revocation.
type AuthHandlers struct {
	service   *auth.Service
	validator *auth.Validator
	gateway   *profile.Gateway
	metrics   *observability.Metrics
	logger    *observability.Logger
}

// NewAuthHandlers creates the authentication handler group. The gateway may
// be nil; registration then skips cache invalidation.
func NewAuthHandlers(service *auth.Service, validator *auth.Validator, gateway *profile.Gateway, metrics *observability.Metrics, logger *observability.Logger) *AuthHandlers {
	return &AuthHandlers{service: service, validator: validator, gateway: gateway, metrics: metrics, logger: logger}
}

// RegisterRoutes registers authentication routes.
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/register", h.register).Methods("POST")
	router.HandleFunc("/auth/login", h.login).Methods("POST")
	router.HandleFunc("/auth/authorize", h.authorize).Methods("POST")
	router.HandleFunc("/auth/validate", h.validate).Methods("POST")
	router.HandleFunc("/auth/tokens", h.revoke).Methods("DELETE")
}

// register handles POST /auth/register
func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		h.countRegistration("bad_request")
		return
	}

	if err := h.service.Register(r.Context(), req); err != nil {
		if errors.Is(err, auth.ErrMissingFields) {
			h.countRegistration("rejected")
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		h.countRegistration("error")
		h.logger.WithError(err).Error("registration failed")
		httputil.WriteInternalErrorMessage(w, "registration failed")
		return
	}

	// Registration upserts, so a cached profile for this identity is now
	// stale and must not outlive the new record.
	if h.gateway != nil {
		h.gateway.Invalidate(auth.Claim{TenantID: req.TenantID, UserID: req.UserID})
	}

	h.countRegistration("created")
	httputil.WriteSuccess(w, map[string]string{
		"message":   "user registered",
		"user_id":   req.UserID,
		"tenant_id": req.TenantID,
	})
}

// login handles POST /auth/login
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID string `json:"tenant_id"`
		UserID   string `json:"user_id"`
		Password string `json:"password"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		h.countLogin("bad_request")
		return
	}

	result, err := h.service.Login(r.Context(), req.TenantID, req.UserID, req.Password)
	if err != nil {
		// Unknown user and wrong password are indistinguishable to the
		// caller; the distinction lives only in server-side logs.
		if auth.IsAuthFailure(err) {
			h.countLogin("rejected")
			httputil.WriteForbidden(w, "invalid credentials")
			return
		}
		h.countLogin("error")
		h.logger.WithError(err).Error("login failed")
		httputil.WriteInternalErrorMessage(w, "login failed")
		return
	}

	h.countLogin("ok")
	if h.metrics != nil {
		h.metrics.TokensIssuedTotal.Inc()
	}
	httputil.WriteSuccess(w, result)
}

// authorize handles POST /auth/authorize: the policy-decision shape. The
// response is always 200; denial is expressed inside the policy document.
func (h *AuthHandlers) authorize(w http.ResponseWriter, r *http.Request) {
	// Field names preserve the upstream authorizer event shape.
	var req struct {
		Token    string `json:"authorizationToken"`
		Resource string `json:"methodArn"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	res := h.validator.Authorize(r.Context(), req.Token, req.Resource)
	if h.metrics != nil {
		outcome := "deny"
		if res.Context != nil {
			outcome = "allow"
		}
		h.metrics.ValidationsTotal.WithLabelValues("gateway", outcome).Inc()
	}
	httputil.WriteSuccess(w, res)
}

// validate handles POST /auth/validate: the direct bearer shape. The status
// mapping mirrors the validator's taxonomy.
func (h *AuthHandlers) validate(w http.ResponseWriter, r *http.Request) {
	token, _ := httputil.BearerToken(r)

	res := h.validator.Validate(r.Context(), auth.Credential{
		Shape: auth.ShapeDirectInvocation,
		Token: token,
	})
	if h.metrics != nil {
		h.metrics.ValidationsTotal.WithLabelValues("direct", string(res.Status)).Inc()
	}

	switch res.Status {
	case auth.StatusOK:
		httputil.WriteSuccess(w, res.Claim)
	case auth.StatusUnauthorized:
		httputil.WriteUnauthorized(w, res.Message)
	case auth.StatusForbidden:
		httputil.WriteForbidden(w, res.Message)
	default:
		httputil.WriteInternalErrorMessage(w, res.Message)
	}
}

// revoke handles DELETE /auth/tokens: drops the presented token. Idempotent,
// so an already-revoked or unknown token still yields 204.
func (h *AuthHandlers) revoke(w http.ResponseWriter, r *http.Request) {
	token, ok := httputil.BearerToken(r)
	if !ok || token == "" {
		httputil.WriteUnauthorized(w, "token missing")
		return
	}

	if err := h.service.Revoke(r.Context(), token); err != nil {
		h.logger.WithError(err).Error("token revocation failed")
		httputil.WriteInternalErrorMessage(w, "revocation failed")
		return
	}

	if h.metrics != nil {
		h.metrics.TokensRevokedTotal.Inc()
	}
	httputil.WriteNoContent(w)
}

func (h *AuthHandlers) countRegistration(status string) {
	if h.metrics != nil {
		h.metrics.RegistrationsTotal.WithLabelValues(status).Inc()
	}
}

func (h *AuthHandlers) countLogin(status string) {
	if h.metrics != nil {
		h.metrics.LoginsTotal.WithLabelValues(status).Inc()
	}
}
