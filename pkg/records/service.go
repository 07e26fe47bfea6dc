package records

import (
	"context"
	"fmt"

	"github.com/carebridge/carebridge/pkg/authz"
	"github.com/carebridge/carebridge/pkg/isolation"
	"github.com/carebridge/carebridge/pkg/observability"
)

// Service is the authorized access layer over the record store. All
// handlers go through it; nothing else touches the scoped tables.
type Service struct {
	authz    *authz.Service
	store    *Store
	recorder *isolation.Recorder
	breaker  *isolation.Breaker
	logger   *observability.Logger
}

// NewService creates a records service. Recorder and breaker may be nil
// in tests; in production both are wired.
func NewService(authzService *authz.Service, store *Store, recorder *isolation.Recorder, breaker *isolation.Breaker, logger *observability.Logger) *Service {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Service{
		authz:    authzService,
		store:    store,
		recorder: recorder,
		breaker:  breaker,
		logger:   logger,
	}
}

// visibleClientIDs translates a resolved scope into the query narrowing
// for an assigned-scope rule: nil means no narrowing, an empty slice
// means no visible rows.
func visibleClientIDs(scope authz.Scope, rule authz.Rule) []int64 {
	if rule.Scope != authz.ScopeAssigned || scope.Global || !scope.Restricted {
		return nil
	}
	ids := scope.AssignedClientIDs()
	if ids == nil {
		ids = []int64{}
	}
	return ids
}

// ListClients returns the clients visible to the principal in tenantID.
func (s *Service) ListClients(ctx context.Context, principal authz.Principal, tenantID int64) ([]*Client, error) {
	scope, rule, err := s.authz.AuthorizeList(ctx, principal, authz.ModuleClients, authz.ActionView, tenantID)
	if err != nil {
		return nil, err
	}

	clients, err := s.store.ListClients(ctx, tenantID, visibleClientIDs(scope, rule))
	if err != nil {
		return nil, err
	}

	return isolation.FilterPhantoms(ctx, s.recorder, "clients", tenantID, clients), nil
}

// GetClient returns one client the principal may view.
func (s *Service) GetClient(ctx context.Context, principal authz.Principal, tenantID, clientID int64) (*Client, error) {
	err := s.authz.RequireAccess(ctx, principal, authz.ModuleClients, authz.ActionView, authz.Target{
		TenantID: &tenantID,
		OwnerID:  &clientID,
	})
	if err != nil {
		return nil, err
	}

	client, err := s.store.GetClient(ctx, tenantID, clientID)
	if err != nil {
		return nil, err
	}

	filtered := isolation.FilterPhantoms(ctx, s.recorder, "clients", tenantID, []*Client{client})
	if len(filtered) == 0 {
		// A leaked row from another tenant looks like a missing row.
		return nil, &ErrNotFound{Kind: "client", ID: clientID}
	}
	return filtered[0], nil
}

// ListShifts returns the shifts visible to the principal in tenantID.
func (s *Service) ListShifts(ctx context.Context, principal authz.Principal, tenantID int64) ([]*Shift, error) {
	scope, rule, err := s.authz.AuthorizeList(ctx, principal, authz.ModuleShifts, authz.ActionView, tenantID)
	if err != nil {
		return nil, err
	}

	shifts, err := s.store.ListShifts(ctx, tenantID, visibleClientIDs(scope, rule))
	if err != nil {
		return nil, err
	}

	return isolation.FilterPhantoms(ctx, s.recorder, "shifts", tenantID, shifts), nil
}

// AssignShift sets the staff member on a shift. Shift updates are scoped
// to the shift's stored client, so the shift is loaded first; a client id
// asserted by the caller is never part of the decision.
func (s *Service) AssignShift(ctx context.Context, principal authz.Principal, tenantID, shiftID, staffID int64) error {
	shift, err := s.store.GetShift(ctx, tenantID, shiftID)
	if err != nil {
		return err
	}

	err = s.authz.RequireAccess(ctx, principal, authz.ModuleShifts, authz.ActionUpdate, authz.Target{
		TenantID: &shift.TenantID,
		OwnerID:  &shift.ClientID,
	})
	if err != nil {
		return err
	}

	if err := s.guardWrite(ctx, tenantID); err != nil {
		return err
	}

	return s.store.AssignShift(ctx, tenantID, shiftID, staffID)
}

// ListCaseNotes returns a client's case notes, provided the principal may
// view that client's notes.
func (s *Service) ListCaseNotes(ctx context.Context, principal authz.Principal, tenantID, clientID int64) ([]*CaseNote, error) {
	err := s.authz.RequireAccess(ctx, principal, authz.ModuleCaseNotes, authz.ActionView, authz.Target{
		TenantID: &tenantID,
		OwnerID:  &clientID,
	})
	if err != nil {
		return nil, err
	}

	notes, err := s.store.ListCaseNotes(ctx, tenantID, clientID)
	if err != nil {
		return nil, err
	}

	return isolation.FilterPhantoms(ctx, s.recorder, "case_notes", tenantID, notes), nil
}

// CreateCaseNote writes a note authored by the principal. The tenant and
// author come from the principal, never from the request body.
func (s *Service) CreateCaseNote(ctx context.Context, principal authz.Principal, tenantID, clientID int64, shiftID *int64, body string) (*CaseNote, error) {
	err := s.authz.RequireAccess(ctx, principal, authz.ModuleCaseNotes, authz.ActionCreate, authz.Target{
		TenantID: &tenantID,
		OwnerID:  &clientID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.guardWrite(ctx, tenantID); err != nil {
		return nil, err
	}

	note := &CaseNote{
		TenantID: tenantID,
		ClientID: clientID,
		AuthorID: principal.ID,
		ShiftID:  shiftID,
		Body:     body,
	}
	if err := s.store.CreateCaseNote(ctx, note); err != nil {
		return nil, err
	}

	return note, nil
}

// AttachShift links a note to a shift. Editing a note is self-scoped: the
// check runs against the note's author, so the note is loaded first.
func (s *Service) AttachShift(ctx context.Context, principal authz.Principal, tenantID, noteID, shiftID int64) error {
	note, err := s.store.GetCaseNote(ctx, tenantID, noteID)
	if err != nil {
		return err
	}

	err = s.authz.RequireAccess(ctx, principal, authz.ModuleCaseNotes, authz.ActionUpdate, authz.Target{
		TenantID: &note.TenantID,
		OwnerID:  &note.AuthorID,
	})
	if err != nil {
		return err
	}

	if err := s.guardWrite(ctx, tenantID); err != nil {
		return err
	}

	return s.store.AttachShift(ctx, tenantID, noteID, shiftID)
}

// ListMedicationRecords returns a client's medication entries.
func (s *Service) ListMedicationRecords(ctx context.Context, principal authz.Principal, tenantID, clientID int64) ([]*MedicationRecord, error) {
	err := s.authz.RequireAccess(ctx, principal, authz.ModuleMedications, authz.ActionView, authz.Target{
		TenantID: &tenantID,
		OwnerID:  &clientID,
	})
	if err != nil {
		return nil, err
	}

	records, err := s.store.ListMedicationRecords(ctx, tenantID, clientID)
	if err != nil {
		return nil, err
	}

	return isolation.FilterPhantoms(ctx, s.recorder, "medication_records", tenantID, records), nil
}

// CreateMedicationRecord writes one administration entry.
func (s *Service) CreateMedicationRecord(ctx context.Context, principal authz.Principal, record *MedicationRecord) (*MedicationRecord, error) {
	err := s.authz.RequireAccess(ctx, principal, authz.ModuleMedications, authz.ActionCreate, authz.Target{
		TenantID: &record.TenantID,
		OwnerID:  &record.ClientID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.guardWrite(ctx, record.TenantID); err != nil {
		return nil, err
	}

	if err := s.store.CreateMedicationRecord(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// ListBudgets returns a client's budgets.
func (s *Service) ListBudgets(ctx context.Context, principal authz.Principal, tenantID, clientID int64) ([]*Budget, error) {
	err := s.authz.RequireAccess(ctx, principal, authz.ModuleBudgets, authz.ActionView, authz.Target{
		TenantID: &tenantID,
	})
	if err != nil {
		return nil, err
	}

	budgets, err := s.store.ListBudgets(ctx, tenantID, clientID)
	if err != nil {
		return nil, err
	}

	return isolation.FilterPhantoms(ctx, s.recorder, "budgets", tenantID, budgets), nil
}

// guardWrite consults the tenant's write breaker. A halted tenant gets
// ErrWritesHalted; reads are unaffected.
func (s *Service) guardWrite(ctx context.Context, tenantID int64) error {
	if s.breaker == nil {
		return nil
	}
	if err := s.breaker.Allow(ctx, tenantID); err != nil {
		s.logger.WithTenant(tenantID).Warn("write rejected: breaker open")
		return fmt.Errorf("write to tenant %d rejected: %w", tenantID, err)
	}
	return nil
}
