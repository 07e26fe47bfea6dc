package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/carebridge/carebridge/pkg/httputil"
	"github.com/carebridge/carebridge/pkg/records"
)

func (s *Server) registerRecordRoutes() {
	r := s.router

	r.HandleFunc("/api/v1/tenants/{tenant_id}/clients", s.listClients).Methods("GET")
	r.HandleFunc("/api/v1/tenants/{tenant_id}/clients/{client_id}", s.getClient).Methods("GET")
	r.HandleFunc("/api/v1/tenants/{tenant_id}/shifts", s.listShifts).Methods("GET")
	r.HandleFunc("/api/v1/tenants/{tenant_id}/shifts/{shift_id}/assign", s.assignShift).Methods("POST")
	r.HandleFunc("/api/v1/tenants/{tenant_id}/clients/{client_id}/case-notes", s.listCaseNotes).Methods("GET")
	r.HandleFunc("/api/v1/tenants/{tenant_id}/clients/{client_id}/case-notes", s.createCaseNote).Methods("POST")
	r.HandleFunc("/api/v1/tenants/{tenant_id}/case-notes/{note_id}/shift", s.attachShift).Methods("PUT")
	r.HandleFunc("/api/v1/tenants/{tenant_id}/clients/{client_id}/medications", s.listMedications).Methods("GET")
	r.HandleFunc("/api/v1/tenants/{tenant_id}/clients/{client_id}/medications", s.createMedication).Methods("POST")
	r.HandleFunc("/api/v1/tenants/{tenant_id}/clients/{client_id}/budgets", s.listBudgets).Methods("GET")
}

func pathID(r *http.Request, name string) (int64, bool) {
	raw, ok := mux.Vars(r)[name]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func (s *Server) listClients(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	tenantID, ok := pathID(r, "tenant_id")
	if !ok {
		httputil.WriteBadRequest(w, "invalid tenant id")
		return
	}

	clients, err := s.records.ListClients(r.Context(), principal, tenantID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if clients == nil {
		clients = []*records.Client{}
	}
	httputil.WriteSuccess(w, clients)
}

func (s *Server) getClient(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	tenantID, ok1 := pathID(r, "tenant_id")
	clientID, ok2 := pathID(r, "client_id")
	if !ok1 || !ok2 {
		httputil.WriteBadRequest(w, "invalid path identifiers")
		return
	}

	client, err := s.records.GetClient(r.Context(), principal, tenantID, clientID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, client)
}

func (s *Server) listShifts(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	tenantID, ok := pathID(r, "tenant_id")
	if !ok {
		httputil.WriteBadRequest(w, "invalid tenant id")
		return
	}

	shifts, err := s.records.ListShifts(r.Context(), principal, tenantID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if shifts == nil {
		shifts = []*records.Shift{}
	}
	httputil.WriteSuccess(w, shifts)
}

func (s *Server) assignShift(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	tenantID, ok1 := pathID(r, "tenant_id")
	shiftID, ok2 := pathID(r, "shift_id")
	if !ok1 || !ok2 {
		httputil.WriteBadRequest(w, "invalid path identifiers")
		return
	}

	var req struct {
		StaffID int64 `json:"staff_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.StaffID == 0 {
		httputil.WriteBadRequest(w, "staff_id is required")
		return
	}

	if err := s.records.AssignShift(r.Context(), principal, tenantID, shiftID, req.StaffID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listCaseNotes(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	tenantID, ok1 := pathID(r, "tenant_id")
	clientID, ok2 := pathID(r, "client_id")
	if !ok1 || !ok2 {
		httputil.WriteBadRequest(w, "invalid path identifiers")
		return
	}

	notes, err := s.records.ListCaseNotes(r.Context(), principal, tenantID, clientID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if notes == nil {
		notes = []*records.CaseNote{}
	}
	httputil.WriteSuccess(w, notes)
}

func (s *Server) createCaseNote(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	tenantID, ok1 := pathID(r, "tenant_id")
	clientID, ok2 := pathID(r, "client_id")
	if !ok1 || !ok2 {
		httputil.WriteBadRequest(w, "invalid path identifiers")
		return
	}

	var req struct {
		Body    string `json:"body"`
		ShiftID *int64 `json:"shift_id,omitempty"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Body == "" {
		httputil.WriteBadRequest(w, "body is required")
		return
	}

	note, err := s.records.CreateCaseNote(r.Context(), principal, tenantID, clientID, req.ShiftID, req.Body)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, note)
}

func (s *Server) attachShift(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	tenantID, ok1 := pathID(r, "tenant_id")
	noteID, ok2 := pathID(r, "note_id")
	if !ok1 || !ok2 {
		httputil.WriteBadRequest(w, "invalid path identifiers")
		return
	}

	var req struct {
		ShiftID int64 `json:"shift_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.ShiftID == 0 {
		httputil.WriteBadRequest(w, "shift_id is required")
		return
	}

	if err := s.records.AttachShift(r.Context(), principal, tenantID, noteID, req.ShiftID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listMedications(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	tenantID, ok1 := pathID(r, "tenant_id")
	clientID, ok2 := pathID(r, "client_id")
	if !ok1 || !ok2 {
		httputil.WriteBadRequest(w, "invalid path identifiers")
		return
	}

	meds, err := s.records.ListMedicationRecords(r.Context(), principal, tenantID, clientID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if meds == nil {
		meds = []*records.MedicationRecord{}
	}
	httputil.WriteSuccess(w, meds)
}

func (s *Server) createMedication(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	tenantID, ok1 := pathID(r, "tenant_id")
	clientID, ok2 := pathID(r, "client_id")
	if !ok1 || !ok2 {
		httputil.WriteBadRequest(w, "invalid path identifiers")
		return
	}

	var req struct {
		Medication string `json:"medication"`
		Dosage     string `json:"dosage"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Medication == "" || req.Dosage == "" {
		httputil.WriteBadRequest(w, "medication and dosage are required")
		return
	}

	record := &records.MedicationRecord{
		TenantID:       tenantID,
		ClientID:       clientID,
		AdministeredBy: &principal.ID,
		Medication:     req.Medication,
		Dosage:         req.Dosage,
	}
	created, err := s.records.CreateMedicationRecord(r.Context(), principal, record)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	httputil.WriteCreated(w, created)
}

func (s *Server) listBudgets(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r)
	if !ok {
		return
	}
	tenantID, ok1 := pathID(r, "tenant_id")
	clientID, ok2 := pathID(r, "client_id")
	if !ok1 || !ok2 {
		httputil.WriteBadRequest(w, "invalid path identifiers")
		return
	}

	budgets, err := s.records.ListBudgets(r.Context(), principal, tenantID, clientID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if budgets == nil {
		budgets = []*records.Budget{}
	}
	httputil.WriteSuccess(w, budgets)
}
