package api

import (
	"net/http"

	"github.com/carebridge/carebridge/pkg/authz"
	"github.com/carebridge/carebridge/pkg/httputil"
)

func (s *Server) registerTenantRoutes() {
	r := s.router

	r.HandleFunc("/api/v1/tenants", s.createTenant).Methods("POST")
	r.HandleFunc("/api/v1/tenants/{tenant_id}", s.getTenant).Methods("GET")
	r.HandleFunc("/api/v1/tenants/{tenant_id}/disable", s.disableTenant).Methods("POST")
	r.HandleFunc("/api/v1/tenants/{tenant_id}/assignments", s.grantAssignment).Methods("POST")
	r.HandleFunc("/api/v1/tenants/{tenant_id}/assignments", s.revokeAssignment).Methods("DELETE")
	r.HandleFunc("/api/v1/tenants/{tenant_id}/demo-data", s.purgeDemoData).Methods("DELETE")
}

func (s *Server) createTenant(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}

	if err := s.authz.RequireAccess(r.Context(), principal, authz.ModuleTenants, authz.ActionCreate, authz.Target{}); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	tenant, err := s.tenants.CreateTenant(r.Context(), req.Name)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, tenant)
}

func (s *Server) getTenant(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	tenantID, ok := pathID(r, "tenant_id")
	if !ok {
		httputil.WriteBadRequest(w, "invalid tenant id")
		return
	}

	err := s.authz.RequireAccess(r.Context(), principal, authz.ModuleTenants, authz.ActionView, authz.Target{
		TenantID: &tenantID,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	tenant, err := s.tenants.GetTenant(r.Context(), tenantID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, tenant)
}

func (s *Server) disableTenant(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	tenantID, ok := pathID(r, "tenant_id")
	if !ok {
		httputil.WriteBadRequest(w, "invalid tenant id")
		return
	}

	err := s.authz.RequireAccess(r.Context(), principal, authz.ModuleTenants, authz.ActionDisable, authz.Target{
		TenantID: &tenantID,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if err := s.tenants.DisableTenant(r.Context(), tenantID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) grantAssignment(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	tenantID, ok := pathID(r, "tenant_id")
	if !ok {
		httputil.WriteBadRequest(w, "invalid tenant id")
		return
	}

	err := s.authz.RequireAccess(r.Context(), principal, authz.ModuleAssignments, authz.ActionCreate, authz.Target{
		TenantID: &tenantID,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var req struct {
		StaffID  int64 `json:"staff_id"`
		ClientID int64 `json:"client_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.StaffID == 0 || req.ClientID == 0 {
		httputil.WriteBadRequest(w, "staff_id and client_id are required")
		return
	}

	assignment, err := s.tenants.GrantAssignment(r.Context(), tenantID, req.StaffID, req.ClientID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, assignment)
}

func (s *Server) revokeAssignment(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	tenantID, ok := pathID(r, "tenant_id")
	if !ok {
		httputil.WriteBadRequest(w, "invalid tenant id")
		return
	}

	err := s.authz.RequireAccess(r.Context(), principal, authz.ModuleAssignments, authz.ActionDelete, authz.Target{
		TenantID: &tenantID,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	var req struct {
		StaffID  int64 `json:"staff_id"`
		ClientID int64 `json:"client_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := s.tenants.RevokeAssignment(r.Context(), tenantID, req.StaffID, req.ClientID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) purgeDemoData(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	tenantID, ok := pathID(r, "tenant_id")
	if !ok {
		httputil.WriteBadRequest(w, "invalid tenant id")
		return
	}

	// Demo-data cleanup is a tenant administration action.
	err := s.authz.RequireAccess(r.Context(), principal, authz.ModuleTenants, authz.ActionUpdate, authz.Target{
		TenantID: &tenantID,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	purged, err := s.tenants.PurgeDemoData(r.Context(), tenantID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, map[string]int64{"rows_purged": purged})
}
