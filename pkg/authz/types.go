package authz

import (
	"errors"
	"fmt"

	"github.com/carebridge/carebridge/pkg/roles"
)

// Module names the functional areas guarded by permission rules. Values
// must match the `module` field of the rule table.
const (
	ModuleClients     = "clients"
	ModuleShifts      = "shifts"
	ModuleCaseNotes   = "caseNotes"
	ModuleMedications = "medications"
	ModuleBudgets     = "budgets"
	ModuleStaff       = "staff"
	ModuleTenants     = "tenants"
	ModuleAssignments = "assignments"
	ModuleReports     = "reports"
	ModuleProfile     = "profile"
)

// Common actions. Modules may define additional ones in the rule table.
const (
	ActionView    = "view"
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionDelete  = "delete"
	ActionApprove = "approve"
	ActionDisable = "disable"
)

// ScopeKind determines which resources within a tenant a rule applies to.
type ScopeKind string

const (
	// ScopeSelf restricts the action to resources owned by the principal
	ScopeSelf ScopeKind = "self"
	// ScopeAssigned restricts the action to resources whose client is in
	// the principal's assignment set
	ScopeAssigned ScopeKind = "assigned"
	// ScopeTenant allows the action on any resource in the principal's tenant
	ScopeTenant ScopeKind = "tenant"
	// ScopeGlobal allows the action across tenants (console manager only)
	ScopeGlobal ScopeKind = "global"
)

// Valid reports whether k is a known scope kind.
func (k ScopeKind) Valid() bool {
	switch k {
	case ScopeSelf, ScopeAssigned, ScopeTenant, ScopeGlobal:
		return true
	}
	return false
}

// Principal is an authenticated user making a request.
type Principal struct {
	ID       int64      `json:"id"`
	TenantID *int64     `json:"tenant_id,omitempty"` // nil only for the global role
	Role     roles.Role `json:"role"`
}

// Target identifies the resource an action is aimed at. TenantID is the
// tenant tag of the target resource; OwnerID is the owning client or staff
// reference where the rule's scope requires one.
type Target struct {
	TenantID *int64 `json:"tenant_id,omitempty"`
	OwnerID  *int64 `json:"owner_id,omitempty"`
}

// Reason is a machine-readable denial reason code.
type Reason string

const (
	ReasonUnknownOperation Reason = "UNKNOWN_OPERATION"
	ReasonInsufficientRole Reason = "INSUFFICIENT_ROLE"
	ReasonCrossTenant      Reason = "CROSS_TENANT"
	ReasonNotAssigned      Reason = "NOT_ASSIGNED"
	ReasonNotOwner         Reason = "NOT_OWNER"
)

// Decision is the outcome of a permission evaluation.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
}

// Allow returns an allowing decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny returns a denying decision with the given reason code.
func Deny(reason Reason) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// DeniedError surfaces a denial to callers that need an error value.
// Denials are terminal: they are never retried.
type DeniedError struct {
	Module string
	Action string
	Reason Reason
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("access denied: %s %s (%s)", e.Action, e.Module, e.Reason)
}

// IsDenied reports whether err is an authorization denial, and returns the
// reason code if so.
func IsDenied(err error) (Reason, bool) {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return denied.Reason, true
	}
	return "", false
}

// ConfigurationError indicates an invalid authorization configuration:
// an unknown role on a stored principal, a malformed rule table, or a
// principal without a tenant holding a non-global role. Configuration
// errors are fatal at startup and are never silently defaulted.
type ConfigurationError struct {
	Detail string
}

func (e *ConfigurationError) Error() string {
	return "authorization configuration error: " + e.Detail
}
