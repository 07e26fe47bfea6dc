package tenants

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/carebridge/carebridge/pkg/observability"
)

// Store persists tenants and assignments.
type Store struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewStore creates a new tenant store.
func NewStore(db *sql.DB, logger *observability.Logger) *Store {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Store{db: db, logger: logger}
}

// CreateTenant creates a new active tenant.
func (s *Store) CreateTenant(ctx context.Context, name string) (*Tenant, error) {
	if name == "" {
		return nil, fmt.Errorf("tenant name is required")
	}

	query := `
		INSERT INTO tenants (name, status)
		VALUES ($1, $2)
		RETURNING id, name, status, created_at, updated_at
	`

	tenant := &Tenant{}
	err := s.db.QueryRowContext(ctx, query, name, TenantStatusActive).Scan(
		&tenant.ID, &tenant.Name, &tenant.Status, &tenant.CreatedAt, &tenant.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	s.logger.WithTenant(tenant.ID).WithField("name", name).Info("tenant created")
	return tenant, nil
}

// GetTenant retrieves a tenant by ID.
func (s *Store) GetTenant(ctx context.Context, id int64) (*Tenant, error) {
	query := `
		SELECT id, name, status, created_at, updated_at
		FROM tenants
		WHERE id = $1
	`

	tenant := &Tenant{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&tenant.ID, &tenant.Name, &tenant.Status, &tenant.CreatedAt, &tenant.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &ErrTenantNotFound{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	return tenant, nil
}

// ListTenants returns all tenants, active first.
func (s *Store) ListTenants(ctx context.Context) ([]*Tenant, error) {
	query := `
		SELECT id, name, status, created_at, updated_at
		FROM tenants
		ORDER BY status ASC, name ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*Tenant
	for rows.Next() {
		tenant := &Tenant{}
		if err := rows.Scan(
			&tenant.ID, &tenant.Name, &tenant.Status, &tenant.CreatedAt, &tenant.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}

	return tenants, rows.Err()
}

// DisableTenant soft-disables a tenant. The tenant's rows are never
// deleted; disabling is idempotent.
func (s *Store) DisableTenant(ctx context.Context, id int64) error {
	query := `
		UPDATE tenants
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`

	result, err := s.db.ExecContext(ctx, query, id, TenantStatusDisabled)
	if err != nil {
		return fmt.Errorf("failed to disable tenant: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check disable result: %w", err)
	}
	if affected == 0 {
		return &ErrTenantNotFound{ID: id}
	}

	s.logger.WithTenant(id).Info("tenant disabled")
	return nil
}

// GrantAssignment assigns a staff member to a client. Both rows must
// already belong to tenantID; the pre-check turns a would-be constraint
// violation into a TenantMismatchError before any write happens. The
// composite foreign keys still back this up at commit.
func (s *Store) GrantAssignment(ctx context.Context, tenantID, staffID, clientID int64) (*Assignment, error) {
	var staffOK, clientOK bool
	check := `
		SELECT
			EXISTS (SELECT 1 FROM staff WHERE id = $2 AND tenant_id = $1 AND disabled_at IS NULL),
			EXISTS (SELECT 1 FROM clients WHERE id = $3 AND tenant_id = $1)
	`
	if err := s.db.QueryRowContext(ctx, check, tenantID, staffID, clientID).Scan(&staffOK, &clientOK); err != nil {
		return nil, fmt.Errorf("failed to verify assignment parties: %w", err)
	}
	if !staffOK {
		return nil, &TenantMismatchError{
			TenantID: tenantID, StaffID: staffID, ClientID: clientID,
			Detail: "staff member does not belong to tenant",
		}
	}
	if !clientOK {
		return nil, &TenantMismatchError{
			TenantID: tenantID, StaffID: staffID, ClientID: clientID,
			Detail: "client does not belong to tenant",
		}
	}

	query := `
		INSERT INTO assignments (tenant_id, staff_id, client_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, staff_id, client_id) DO UPDATE SET tenant_id = EXCLUDED.tenant_id
		RETURNING id, tenant_id, staff_id, client_id, created_at
	`

	assignment := &Assignment{}
	err := s.db.QueryRowContext(ctx, query, tenantID, staffID, clientID).Scan(
		&assignment.ID, &assignment.TenantID, &assignment.StaffID,
		&assignment.ClientID, &assignment.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to grant assignment: %w", err)
	}

	s.logger.WithTenant(tenantID).WithFields(map[string]interface{}{
		"staff_id":  staffID,
		"client_id": clientID,
	}).Info("assignment granted")

	return assignment, nil
}

// RevokeAssignment removes a staff-to-client assignment. Revoking an
// assignment that does not exist is not an error.
func (s *Store) RevokeAssignment(ctx context.Context, tenantID, staffID, clientID int64) error {
	query := `
		DELETE FROM assignments
		WHERE tenant_id = $1 AND staff_id = $2 AND client_id = $3
	`

	if _, err := s.db.ExecContext(ctx, query, tenantID, staffID, clientID); err != nil {
		return fmt.Errorf("failed to revoke assignment: %w", err)
	}

	s.logger.WithTenant(tenantID).WithFields(map[string]interface{}{
		"staff_id":  staffID,
		"client_id": clientID,
	}).Info("assignment revoked")

	return nil
}

// ListAssignments returns the assignments for a staff member in a tenant.
func (s *Store) ListAssignments(ctx context.Context, tenantID, staffID int64) ([]*Assignment, error) {
	query := `
		SELECT id, tenant_id, staff_id, client_id, created_at
		FROM assignments
		WHERE tenant_id = $1 AND staff_id = $2
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID, staffID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*Assignment
	for rows.Next() {
		a := &Assignment{}
		if err := rows.Scan(&a.ID, &a.TenantID, &a.StaffID, &a.ClientID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}

	return assignments, rows.Err()
}

// PurgeDemoData deletes rows flagged as demo data across all scoped
// tables. It is an administrative cleanup operation, idempotent by
// construction: a second run finds nothing to delete.
func (s *Store) PurgeDemoData(ctx context.Context, tenantID int64) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin purge transaction: %w", err)
	}
	defer tx.Rollback()

	// Children before parents so the composite FKs never block the purge.
	tables := []string{
		"case_notes",
		"medication_records",
		"shifts",
		"budgets",
		"assignments",
		"clients",
	}

	var total int64
	for _, table := range tables {
		query := fmt.Sprintf(`DELETE FROM %s WHERE tenant_id = $1 AND is_demo = TRUE`, table)
		result, err := tx.ExecContext(ctx, query, tenantID)
		if err != nil {
			return 0, fmt.Errorf("failed to purge demo rows from %s: %w", table, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to count purged rows in %s: %w", table, err)
		}
		total += affected
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit purge: %w", err)
	}

	s.logger.WithTenant(tenantID).WithField("rows_purged", total).Info("demo data purged")
	return total, nil
}
