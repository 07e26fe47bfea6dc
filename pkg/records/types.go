package records

import (
	"fmt"
	"time"
)

// Client is a person receiving care within one tenant.
type Client struct {
	ID          int64      `json:"id"`
	TenantID    int64      `json:"tenant_id"`
	FullName    string     `json:"full_name"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TenantRef implements isolation.TenantTagged.
func (c *Client) TenantRef() int64 { return c.TenantID }

// ShiftStatus is the lifecycle state of a shift.
type ShiftStatus string

const (
	ShiftStatusScheduled ShiftStatus = "scheduled"
	ShiftStatusCompleted ShiftStatus = "completed"
	ShiftStatusCancelled ShiftStatus = "cancelled"
)

// Shift is a scheduled care visit for a client, optionally assigned to a
// staff member. SeriesID groups shifts generated from a recurring series.
type Shift struct {
	ID        int64       `json:"id"`
	TenantID  int64       `json:"tenant_id"`
	ClientID  int64       `json:"client_id"`
	StaffID   *int64      `json:"staff_id,omitempty"`
	StartsAt  time.Time   `json:"starts_at"`
	EndsAt    time.Time   `json:"ends_at"`
	Status    ShiftStatus `json:"status"`
	SeriesID  *int64      `json:"series_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (s *Shift) TenantRef() int64 { return s.TenantID }

// CaseNote is a progress note written about a client, optionally linked
// to the shift it was written during.
type CaseNote struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	ClientID  int64     `json:"client_id"`
	AuthorID  int64     `json:"author_id"`
	ShiftID   *int64    `json:"shift_id,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (n *CaseNote) TenantRef() int64 { return n.TenantID }

// MedicationRecord is one administration entry for a client.
type MedicationRecord struct {
	ID             int64      `json:"id"`
	TenantID       int64      `json:"tenant_id"`
	ClientID       int64      `json:"client_id"`
	AdministeredBy *int64     `json:"administered_by,omitempty"`
	Medication     string     `json:"medication"`
	Dosage         string     `json:"dosage"`
	AdministeredAt *time.Time `json:"administered_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (m *MedicationRecord) TenantRef() int64 { return m.TenantID }

// Budget is a client's funding allocation for a period, in cents.
type Budget struct {
	ID             int64     `json:"id"`
	TenantID       int64     `json:"tenant_id"`
	ClientID       int64     `json:"client_id"`
	PeriodStart    time.Time `json:"period_start"`
	PeriodEnd      time.Time `json:"period_end"`
	AllocatedCents int64     `json:"allocated_cents"`
	SpentCents     int64     `json:"spent_cents"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (b *Budget) TenantRef() int64 { return b.TenantID }

// ErrNotFound is returned when a record does not exist within the
// requesting tenant. A record in another tenant is indistinguishable
// from one that does not exist.
type ErrNotFound struct {
	Kind string
	ID   int64
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %d", e.Kind, e.ID)
}
