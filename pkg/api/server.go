// Package api wires the HTTP surface: public authentication routes, the
// profile routes, and the internal mirror ingestion route.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/courseloop/authd/pkg/auth"
	"github.com/courseloop/authd/pkg/httputil"
	"github.com/courseloop/authd/pkg/kvstore"
	"github.com/courseloop/authd/pkg/middleware"
	"github.com/courseloop/authd/pkg/observability"
	"github.com/courseloop/authd/pkg/profile"
	"github.com/courseloop/authd/pkg/purchases"
)

// Server is the HTTP API server.
type Server struct {
	router    *mux.Router
	store     kvstore.Store
	service   *auth.Service
	validator *auth.Validator
	gateway   *profile.Gateway
	mirror    *purchases.Mirror
	metrics   *observability.Metrics
	logger    *observability.Logger

	bearer *middleware.BearerAuth
}

// Options carries the server's collaborators. Mirror may be nil; its route
// then responds 503.
type Options struct {
	Store     kvstore.Store
	Service   *auth.Service
	Validator *auth.Validator
	Gateway   *profile.Gateway
	Mirror    *purchases.Mirror
	Metrics   *observability.Metrics
	Logger    *observability.Logger
	Tracing   bool
}

// NewServer creates the API server and registers all routes.
func NewServer(opts Options) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		store:     opts.Store,
		service:   opts.Service,
		validator: opts.Validator,
		gateway:   opts.Gateway,
		mirror:    opts.Mirror,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}

	s.bearer = middleware.NewBearerAuth(opts.Validator)
	if opts.Metrics != nil {
		s.bearer.WithOutcomeHook(func(outcome string) {
			opts.Metrics.ValidationsTotal.WithLabelValues("direct", outcome).Inc()
		})
	}

	s.router.Use(mux.MiddlewareFunc(httputil.RequestIDMiddleware()))
	s.router.Use(mux.MiddlewareFunc(httputil.LoggingMiddleware(opts.Logger)))
	s.router.Use(mux.MiddlewareFunc(httputil.RecoveryMiddleware(opts.Logger)))
	if opts.Metrics != nil {
		s.router.Use(mux.MiddlewareFunc(observability.HTTPMetricsMiddleware(opts.Metrics)))
	}
	if opts.Tracing {
		s.router.Use(func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, "authd.http")
		})
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	authHandlers := NewAuthHandlers(s.service, s.validator, s.gateway, s.metrics, s.logger)
	authHandlers.RegisterRoutes(s.router)

	userHandlers := NewUserHandlers(s.gateway, s.logger)
	userHandlers.RegisterRoutes(s.router, s.bearer)

	purchaseHandlers := NewPurchaseHandlers(s.mirror, s.logger)
	purchaseHandlers.RegisterRoutes(s.router)

	s.router.HandleFunc("/healthz", s.healthCheck).Methods("GET")
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// healthCheck reports liveness of the server and its backing store.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.store.HealthCheck(r.Context()); err != nil {
		s.logger.WithError(err).Error("health check failed")
		httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}
