package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/carebridge/carebridge/pkg/authz"
	"github.com/carebridge/carebridge/pkg/httputil"
	"github.com/carebridge/carebridge/pkg/isolation"
	"github.com/carebridge/carebridge/pkg/observability"
	"github.com/carebridge/carebridge/pkg/records"
	"github.com/carebridge/carebridge/pkg/storage/postgres"
	"github.com/carebridge/carebridge/pkg/tenants"
)

// Server wires the HTTP routes to the service layers.
type Server struct {
	router  *mux.Router
	authz   *authz.Service
	records *records.Service
	tenants *tenants.Store
	monitor *isolation.Monitor
	breaker *isolation.Breaker
	logger  *observability.Logger
	metrics *observability.Metrics
}

// Config carries the server's collaborators.
type Config struct {
	Authz   *authz.Service
	Records *records.Service
	Tenants *tenants.Store
	Monitor *isolation.Monitor
	Breaker *isolation.Breaker
	Logger  *observability.Logger
	Metrics *observability.Metrics
	// Authenticate resolves the request principal. The session layer is
	// external; tests inject a stub.
	Authenticate func(http.Handler) http.Handler
}

// NewServer builds the router with all routes and middleware registered.
func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s := &Server{
		router:  mux.NewRouter(),
		authz:   cfg.Authz,
		records: cfg.Records,
		tenants: cfg.Tenants,
		monitor: cfg.Monitor,
		breaker: cfg.Breaker,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}

	s.router.Use(mux.MiddlewareFunc(httputil.RequestIDMiddleware))
	s.router.Use(mux.MiddlewareFunc(httputil.LoggingMiddleware(cfg.Logger)))
	s.router.Use(mux.MiddlewareFunc(httputil.RecoveryMiddleware(cfg.Logger)))
	if cfg.Metrics != nil {
		s.router.Use(mux.MiddlewareFunc(cfg.Metrics.HTTPMiddleware))
	}
	if cfg.Authenticate != nil {
		s.router.Use(mux.MiddlewareFunc(cfg.Authenticate))
	}

	s.registerRecordRoutes()
	s.registerTenantRoutes()
	s.registerIsolationRoutes()

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router exposes the router for route registration in tests.
func (s *Server) Router() *mux.Router {
	return s.router
}

// writeServiceError maps the error taxonomy to status codes: denials are
// 403 with the reason code, halted writes 503, constraint violations 409,
// missing records 404, everything else 500.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if reason, denied := authz.IsDenied(err); denied {
		httputil.WriteDenied(w, string(reason))
		return
	}
	if errors.Is(err, isolation.ErrWritesHalted) {
		httputil.WriteServiceUnavailable(w, "tenant writes are halted pending operator review")
		return
	}
	if postgres.IsConstraintViolation(err) {
		if s.metrics != nil {
			var violation *postgres.ConstraintViolationError
			if errors.As(err, &violation) {
				s.metrics.ConstraintViolationsTotal.WithLabelValues(violation.Table, violation.Constraint).Inc()
			}
		}
		httputil.WriteConflict(w, "write violates tenant isolation constraints")
		return
	}

	var notFound *records.ErrNotFound
	if errors.As(err, &notFound) {
		httputil.WriteNotFound(w, notFound.Error())
		return
	}
	var tenantNotFound *tenants.ErrTenantNotFound
	if errors.As(err, &tenantNotFound) {
		httputil.WriteNotFound(w, tenantNotFound.Error())
		return
	}
	var mismatch *tenants.TenantMismatchError
	if errors.As(err, &mismatch) {
		httputil.WriteConflict(w, mismatch.Error())
		return
	}

	observability.FromContext(r.Context()).WithError(err).Error("request failed")
	httputil.WriteInternalError(w, err)
}

// requirePrincipal pulls the authenticated principal or writes a 401.
func requirePrincipal(w http.ResponseWriter, r *http.Request) (authz.Principal, bool) {
	principal, ok := authz.PrincipalFromContext(r.Context())
	if !ok {
		httputil.WriteErrorMessage(w, http.StatusUnauthorized, "authentication required")
		return authz.Principal{}, false
	}
	return principal, true
}
