package api

import (
	"net/http"

	"github.com/carebridge/carebridge/pkg/httputil"
	"github.com/carebridge/carebridge/pkg/roles"
)

func (s *Server) registerIsolationRoutes() {
	r := s.router

	// Operator-only surface; not part of the tenant-facing API.
	r.HandleFunc("/internal/isolation/audit", s.runAudit).Methods("POST")
	r.HandleFunc("/internal/isolation/breaker/{tenant_id}/reset", s.resetBreaker).Methods("POST")
}

// requireOperator gates the internal endpoints to the global role.
func (s *Server) requireOperator(w http.ResponseWriter, r *http.Request) bool {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return false
	}
	if !roles.IsGlobal(principal.Role) {
		httputil.WriteErrorMessage(w, http.StatusForbidden, "operator access required")
		return false
	}
	return true
}

func (s *Server) runAudit(w http.ResponseWriter, r *http.Request) {
	if !s.requireOperator(w, r) {
		return
	}

	report, err := s.monitor.RunAudit(r.Context(), "operator")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, report)
}

func (s *Server) resetBreaker(w http.ResponseWriter, r *http.Request) {
	if !s.requireOperator(w, r) {
		return
	}
	tenantID, ok := pathID(r, "tenant_id")
	if !ok {
		httputil.WriteBadRequest(w, "invalid tenant id")
		return
	}

	if err := s.breaker.Reset(r.Context(), tenantID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
