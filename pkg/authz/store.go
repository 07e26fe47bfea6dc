package authz

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/carebridge/carebridge/pkg/roles"
)

// Store reads authorization data. It only ever issues read-only queries;
// assignment writes live in the tenants package.
type Store struct {
	db *sql.DB
}

// NewStore creates a new authorization store. Pass a read replica where
// one is available; scope resolution tolerates replica lag.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetAssignedClientIDs returns the IDs of clients the staff member is
// currently assigned to within the tenant. The tenant filter is part of
// the query, not applied afterwards.
func (s *Store) GetAssignedClientIDs(ctx context.Context, staffID, tenantID int64) ([]int64, error) {
	query := `
		SELECT client_id
		FROM assignments
		WHERE staff_id = $1 AND tenant_id = $2
	`

	rows, err := s.db.QueryContext(ctx, query, staffID, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var clientIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		clientIDs = append(clientIDs, id)
	}

	return clientIDs, rows.Err()
}

// GetPrincipal loads a staff account as a Principal. Unknown stored roles
// surface as a ConfigurationError rather than defaulting.
func (s *Store) GetPrincipal(ctx context.Context, principalID int64) (*Principal, error) {
	query := `
		SELECT id, tenant_id, role
		FROM staff
		WHERE id = $1 AND disabled_at IS NULL
	`

	var p Principal
	var tenantID sql.NullInt64
	var roleName string

	err := s.db.QueryRowContext(ctx, query, principalID).Scan(&p.ID, &tenantID, &roleName)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("principal not found: %d", principalID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get principal: %w", err)
	}

	if tenantID.Valid {
		id := tenantID.Int64
		p.TenantID = &id
	}

	role, err := roles.Parse(roleName)
	if err != nil {
		return nil, &ConfigurationError{
			Detail: fmt.Sprintf("principal %d has unknown stored role %q", principalID, roleName),
		}
	}
	p.Role = role

	return &p, nil
}
