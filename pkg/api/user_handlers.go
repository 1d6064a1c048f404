package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/courseloop/authd/pkg/auth"
	"github.com/courseloop/authd/pkg/httputil"
	"github.com/courseloop/authd/pkg/middleware"
	"github.com/courseloop/authd/pkg/observability"
	"github.com/courseloop/authd/pkg/profile"
)

// UserHandlers serves profile reads.
type UserHandlers struct {
	gateway *profile.Gateway
	logger  *observability.Logger
}

// NewUserHandlers creates the profile handler group.
func NewUserHandlers(gateway *profile.Gateway, logger *observability.Logger) *UserHandlers {
	return &UserHandlers{gateway: gateway, logger: logger}
}

// RegisterRoutes registers profile routes. /users/me sits behind bearer
// validation; /internal/users trusts gateway-injected headers and must never
// be exposed on a public listener.
func (h *UserHandlers) RegisterRoutes(router *mux.Router, bearer *middleware.BearerAuth) {
	router.Handle("/users/me", bearer.Handler(http.HandlerFunc(h.me))).Methods("GET")
	router.HandleFunc("/internal/users", h.internalLookup).Methods("GET")
}

// me handles GET /users/me for an authenticated caller.
func (h *UserHandlers) me(w http.ResponseWriter, r *http.Request) {
	claim, ok := middleware.ClaimFrom(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "token missing")
		return
	}
	h.respondProfile(w, r, claim)
}

// internalLookup handles GET /internal/users with a claim asserted through
// trusted headers. The upstream authorizer resolved the claim already; this
// path must not re-validate a token it never sees.
func (h *UserHandlers) internalLookup(w http.ResponseWriter, r *http.Request) {
	claim := auth.Claim{
		TenantID: r.Header.Get("X-Tenant-ID"),
		UserID:   r.Header.Get("X-User-ID"),
	}
	if claim.TenantID == "" || claim.UserID == "" {
		httputil.WriteBadRequest(w, "X-Tenant-ID and X-User-ID headers are required")
		return
	}
	h.respondProfile(w, r, claim)
}

func (h *UserHandlers) respondProfile(w http.ResponseWriter, r *http.Request, claim auth.Claim) {
	rec, err := h.gateway.Fetch(r.Context(), claim)
	if err != nil {
		if auth.IsAuthFailure(err) {
			httputil.WriteNotFoundError(w, "user not found")
			return
		}
		h.logger.WithError(err).Error("profile lookup failed")
		httputil.WriteInternalErrorMessage(w, "profile lookup failed")
		return
	}

	// Response key kept for wire compatibility with existing consumers.
	httputil.WriteSuccess(w, map[string]auth.UserRecord{"usuario": rec})
}
