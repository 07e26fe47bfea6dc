package tenants

import (
	"fmt"
	"time"
)

// TenantStatus is the lifecycle state of a tenant.
type TenantStatus string

const (
	TenantStatusActive   TenantStatus = "active"
	TenantStatusDisabled TenantStatus = "disabled"
)

// Tenant is one care organization. All scoped resources carry its ID.
type Tenant struct {
	ID        int64        `json:"id"`
	Name      string       `json:"name"`
	Status    TenantStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Active reports whether the tenant accepts new sessions.
func (t *Tenant) Active() bool {
	return t.Status == TenantStatusActive
}

// Assignment links a staff member to a client within one tenant. The
// schema enforces that both sides belong to the same tenant; the store
// pre-checks the same condition to return a typed error instead of a
// constraint violation.
type Assignment struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	StaffID   int64     `json:"staff_id"`
	ClientID  int64     `json:"client_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrTenantNotFound is returned when a tenant ID does not exist.
type ErrTenantNotFound struct {
	ID int64
}

func (e *ErrTenantNotFound) Error() string {
	return fmt.Sprintf("tenant not found: %d", e.ID)
}

// TenantMismatchError is returned by assignment writes whose staff and
// client rows do not both belong to the requested tenant.
type TenantMismatchError struct {
	TenantID int64
	StaffID  int64
	ClientID int64
	Detail   string
}

func (e *TenantMismatchError) Error() string {
	return fmt.Sprintf("assignment rejected for tenant %d (staff %d, client %d): %s",
		e.TenantID, e.StaffID, e.ClientID, e.Detail)
}
