package records

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/carebridge/carebridge/pkg/storage/postgres"
)

// Store runs the SQL for tenant-scoped records. Every query carries the
// tenant filter; restricted callers additionally pass their assignment
// set and the filter lands in the WHERE clause, not in Go.
type Store struct {
	db *sql.DB
}

// NewStore creates a records store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ListClients returns clients in the tenant. A non-nil clientIDs narrows
// the result to the caller's assignment set.
func (s *Store) ListClients(ctx context.Context, tenantID int64, clientIDs []int64) ([]*Client, error) {
	query := `
		SELECT id, tenant_id, full_name, date_of_birth, created_at, updated_at
		FROM clients
		WHERE tenant_id = $1
		ORDER BY full_name ASC
	`
	args := []interface{}{tenantID}
	if clientIDs != nil {
		query = `
			SELECT id, tenant_id, full_name, date_of_birth, created_at, updated_at
			FROM clients
			WHERE tenant_id = $1 AND id = ANY($2)
			ORDER BY full_name ASC
		`
		args = append(args, pq.Array(clientIDs))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*Client
	for rows.Next() {
		client := &Client{}
		var dob sql.NullTime
		if err := rows.Scan(&client.ID, &client.TenantID, &client.FullName, &dob,
			&client.CreatedAt, &client.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		if dob.Valid {
			t := dob.Time
			client.DateOfBirth = &t
		}
		clients = append(clients, client)
	}

	return clients, rows.Err()
}

// GetClient retrieves one client within the tenant.
func (s *Store) GetClient(ctx context.Context, tenantID, clientID int64) (*Client, error) {
	query := `
		SELECT id, tenant_id, full_name, date_of_birth, created_at, updated_at
		FROM clients
		WHERE tenant_id = $1 AND id = $2
	`

	client := &Client{}
	var dob sql.NullTime
	err := s.db.QueryRowContext(ctx, query, tenantID, clientID).Scan(
		&client.ID, &client.TenantID, &client.FullName, &dob,
		&client.CreatedAt, &client.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &ErrNotFound{Kind: "client", ID: clientID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	if dob.Valid {
		t := dob.Time
		client.DateOfBirth = &t
	}

	return client, nil
}

// ListShifts returns shifts in the tenant, optionally narrowed to an
// assignment set.
func (s *Store) ListShifts(ctx context.Context, tenantID int64, clientIDs []int64) ([]*Shift, error) {
	query := `
		SELECT id, tenant_id, client_id, staff_id, starts_at, ends_at, status, series_id, created_at, updated_at
		FROM shifts
		WHERE tenant_id = $1
		ORDER BY starts_at DESC
	`
	args := []interface{}{tenantID}
	if clientIDs != nil {
		query = `
			SELECT id, tenant_id, client_id, staff_id, starts_at, ends_at, status, series_id, created_at, updated_at
			FROM shifts
			WHERE tenant_id = $1 AND client_id = ANY($2)
			ORDER BY starts_at DESC
		`
		args = append(args, pq.Array(clientIDs))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}
	defer rows.Close()

	var shifts []*Shift
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, shift)
	}

	return shifts, rows.Err()
}

func scanShift(rows *sql.Rows) (*Shift, error) {
	shift := &Shift{}
	var staffID, seriesID sql.NullInt64
	if err := rows.Scan(&shift.ID, &shift.TenantID, &shift.ClientID, &staffID,
		&shift.StartsAt, &shift.EndsAt, &shift.Status, &seriesID,
		&shift.CreatedAt, &shift.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan shift: %w", err)
	}
	if staffID.Valid {
		id := staffID.Int64
		shift.StaffID = &id
	}
	if seriesID.Valid {
		id := seriesID.Int64
		shift.SeriesID = &id
	}
	return shift, nil
}

// GetShift retrieves one shift within the tenant.
func (s *Store) GetShift(ctx context.Context, tenantID, shiftID int64) (*Shift, error) {
	query := `
		SELECT id, tenant_id, client_id, staff_id, starts_at, ends_at, status, series_id, created_at, updated_at
		FROM shifts
		WHERE tenant_id = $1 AND id = $2
	`

	shift := &Shift{}
	var staffID, seriesID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, tenantID, shiftID).Scan(
		&shift.ID, &shift.TenantID, &shift.ClientID, &staffID,
		&shift.StartsAt, &shift.EndsAt, &shift.Status, &seriesID,
		&shift.CreatedAt, &shift.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &ErrNotFound{Kind: "shift", ID: shiftID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shift: %w", err)
	}
	if staffID.Valid {
		id := staffID.Int64
		shift.StaffID = &id
	}
	if seriesID.Valid {
		id := seriesID.Int64
		shift.SeriesID = &id
	}
	return shift, nil
}

// AssignShift sets the staff member for a shift. The composite foreign
// keys reject a staff member from another tenant at commit even if the
// read the caller based its decision on was stale.
func (s *Store) AssignShift(ctx context.Context, tenantID, shiftID, staffID int64) error {
	query := `
		UPDATE shifts
		SET staff_id = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
	`

	result, err := s.db.ExecContext(ctx, query, tenantID, shiftID, staffID)
	if err != nil {
		return postgres.ClassifyError(fmt.Errorf("failed to assign shift: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check shift assignment: %w", err)
	}
	if affected == 0 {
		return &ErrNotFound{Kind: "shift", ID: shiftID}
	}

	return nil
}

// ListCaseNotes returns the case notes for one client in the tenant.
func (s *Store) ListCaseNotes(ctx context.Context, tenantID, clientID int64) ([]*CaseNote, error) {
	query := `
		SELECT id, tenant_id, client_id, author_id, shift_id, body, created_at, updated_at
		FROM case_notes
		WHERE tenant_id = $1 AND client_id = $2
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list case notes: %w", err)
	}
	defer rows.Close()

	var notes []*CaseNote
	for rows.Next() {
		note := &CaseNote{}
		var shiftID sql.NullInt64
		if err := rows.Scan(&note.ID, &note.TenantID, &note.ClientID, &note.AuthorID,
			&shiftID, &note.Body, &note.CreatedAt, &note.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan case note: %w", err)
		}
		if shiftID.Valid {
			id := shiftID.Int64
			note.ShiftID = &id
		}
		notes = append(notes, note)
	}

	return notes, rows.Err()
}

// GetCaseNote retrieves one note within the tenant.
func (s *Store) GetCaseNote(ctx context.Context, tenantID, noteID int64) (*CaseNote, error) {
	query := `
		SELECT id, tenant_id, client_id, author_id, shift_id, body, created_at, updated_at
		FROM case_notes
		WHERE tenant_id = $1 AND id = $2
	`

	note := &CaseNote{}
	var shiftID sql.NullInt64
	err := s.db.QueryRowContext(ctx, query, tenantID, noteID).Scan(
		&note.ID, &note.TenantID, &note.ClientID, &note.AuthorID,
		&shiftID, &note.Body, &note.CreatedAt, &note.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, &ErrNotFound{Kind: "case note", ID: noteID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case note: %w", err)
	}
	if shiftID.Valid {
		id := shiftID.Int64
		note.ShiftID = &id
	}

	return note, nil
}

// CreateCaseNote inserts a note inside one transaction. A tenant mismatch
// on the client, author, or shift reference fails the composite foreign
// keys and is returned classified.
func (s *Store) CreateCaseNote(ctx context.Context, note *CaseNote) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin case note transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO case_notes (tenant_id, client_id, author_id, shift_id, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	var shiftID interface{}
	if note.ShiftID != nil {
		shiftID = *note.ShiftID
	}

	err = tx.QueryRowContext(ctx, query, note.TenantID, note.ClientID, note.AuthorID, shiftID, note.Body).
		Scan(&note.ID, &note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		return postgres.ClassifyError(fmt.Errorf("failed to create case note: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return postgres.ClassifyError(fmt.Errorf("failed to commit case note: %w", err))
	}

	return nil
}

// AttachShift links an existing note to a shift in the same tenant.
func (s *Store) AttachShift(ctx context.Context, tenantID, noteID, shiftID int64) error {
	query := `
		UPDATE case_notes
		SET shift_id = $3, updated_at = NOW()
		WHERE tenant_id = $1 AND id = $2
	`

	result, err := s.db.ExecContext(ctx, query, tenantID, noteID, shiftID)
	if err != nil {
		return postgres.ClassifyError(fmt.Errorf("failed to attach shift: %w", err))
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check shift attach: %w", err)
	}
	if affected == 0 {
		return &ErrNotFound{Kind: "case note", ID: noteID}
	}

	return nil
}

// ListMedicationRecords returns medication entries for one client.
func (s *Store) ListMedicationRecords(ctx context.Context, tenantID, clientID int64) ([]*MedicationRecord, error) {
	query := `
		SELECT id, tenant_id, client_id, administered_by, medication, dosage, administered_at, created_at
		FROM medication_records
		WHERE tenant_id = $1 AND client_id = $2
		ORDER BY created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list medication records: %w", err)
	}
	defer rows.Close()

	var records []*MedicationRecord
	for rows.Next() {
		record := &MedicationRecord{}
		var adminBy sql.NullInt64
		var adminAt sql.NullTime
		if err := rows.Scan(&record.ID, &record.TenantID, &record.ClientID, &adminBy,
			&record.Medication, &record.Dosage, &adminAt, &record.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan medication record: %w", err)
		}
		if adminBy.Valid {
			id := adminBy.Int64
			record.AdministeredBy = &id
		}
		if adminAt.Valid {
			t := adminAt.Time
			record.AdministeredAt = &t
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// CreateMedicationRecord inserts one administration entry.
func (s *Store) CreateMedicationRecord(ctx context.Context, record *MedicationRecord) error {
	query := `
		INSERT INTO medication_records (tenant_id, client_id, administered_by, medication, dosage, administered_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	var adminBy interface{}
	if record.AdministeredBy != nil {
		adminBy = *record.AdministeredBy
	}
	var adminAt interface{}
	if record.AdministeredAt != nil {
		adminAt = *record.AdministeredAt
	}

	err := s.db.QueryRowContext(ctx, query, record.TenantID, record.ClientID, adminBy,
		record.Medication, record.Dosage, adminAt).
		Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return postgres.ClassifyError(fmt.Errorf("failed to create medication record: %w", err))
	}

	return nil
}

// ListBudgets returns the budgets for one client.
func (s *Store) ListBudgets(ctx context.Context, tenantID, clientID int64) ([]*Budget, error) {
	query := `
		SELECT id, tenant_id, client_id, period_start, period_end, allocated_cents, spent_cents, created_at, updated_at
		FROM budgets
		WHERE tenant_id = $1 AND client_id = $2
		ORDER BY period_start DESC
	`

	rows, err := s.db.QueryContext(ctx, query, tenantID, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []*Budget
	for rows.Next() {
		budget := &Budget{}
		if err := rows.Scan(&budget.ID, &budget.TenantID, &budget.ClientID,
			&budget.PeriodStart, &budget.PeriodEnd, &budget.AllocatedCents,
			&budget.SpentCents, &budget.CreatedAt, &budget.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		budgets = append(budgets, budget)
	}

	return budgets, rows.Err()
}
