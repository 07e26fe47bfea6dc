package isolation

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanOrphansFindsNullTenantRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	checks := []OrphanCheck{
		{Table: "clients", Query: `SELECT id, tenant_id FROM clients WHERE tenant_id IS NULL`},
	}

	mock.ExpectQuery("SELECT id, tenant_id FROM clients").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id"}).
			AddRow(100, nil).
			AddRow(101, nil))

	monitor := NewMonitor(db, checks, nil, nil, nil)
	orphans, err := monitor.ScanOrphans(context.Background())
	require.NoError(t, err)

	require.Len(t, orphans, 2)
	assert.Equal(t, "clients", orphans[0].Table)
	assert.Equal(t, int64(100), orphans[0].RowID)
	assert.Nil(t, orphans[0].TenantID)
}

func TestScanOrphansFindsParentMismatch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	checks := []OrphanCheck{
		{Table: "case_notes", Query: `SELECT n.id, n.tenant_id FROM case_notes n LEFT JOIN clients c`},
	}

	mock.ExpectQuery("SELECT n.id, n.tenant_id FROM case_notes").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id"}).AddRow(7, 6))

	monitor := NewMonitor(db, checks, nil, nil, nil)
	orphans, err := monitor.ScanOrphans(context.Background())
	require.NoError(t, err)

	require.Len(t, orphans, 1)
	require.NotNil(t, orphans[0].TenantID)
	assert.Equal(t, int64(6), *orphans[0].TenantID)
}

// setupLegacyDB mirrors the pre-hardening schema (plain single-column
// foreign keys) so rows the composite constraints would reject can exist
// and the default probes must find them.
func setupLegacyDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE clients (id INTEGER PRIMARY KEY, tenant_id INTEGER);
		CREATE TABLE staff (id INTEGER PRIMARY KEY, tenant_id INTEGER, role TEXT NOT NULL);
		CREATE TABLE assignments (id INTEGER PRIMARY KEY, tenant_id INTEGER, staff_id INTEGER, client_id INTEGER);
		CREATE TABLE shifts (id INTEGER PRIMARY KEY, tenant_id INTEGER, client_id INTEGER, staff_id INTEGER);
		CREATE TABLE case_notes (id INTEGER PRIMARY KEY, tenant_id INTEGER, client_id INTEGER);
		CREATE TABLE medication_records (id INTEGER PRIMARY KEY, tenant_id INTEGER, client_id INTEGER, administered_by INTEGER);
		CREATE TABLE budgets (id INTEGER PRIMARY KEY, tenant_id INTEGER, client_id INTEGER);
	`
	_, err = db.Exec(schema)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO clients (id, tenant_id) VALUES (100, 5), (200, 6)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO staff (id, tenant_id, role) VALUES (1, 5, 'support_worker'), (2, 6, 'team_leader')`)
	require.NoError(t, err)

	return db
}

// A shift or medication record attached to staff from another tenant is
// an orphan even when its client reference is consistent.
func TestDefaultChecksFindCrossTenantStaff(t *testing.T) {
	db := setupLegacyDB(t)

	// Client matches the tenant; the staff member does not.
	_, err := db.Exec(`INSERT INTO shifts (id, tenant_id, client_id, staff_id) VALUES (77, 5, 100, 2)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO medication_records (id, tenant_id, client_id, administered_by) VALUES (8, 5, 100, 2)`)
	require.NoError(t, err)

	monitor := NewMonitor(db, DefaultOrphanChecks(), nil, nil, nil)
	orphans, err := monitor.ScanOrphans(context.Background())
	require.NoError(t, err)

	byTable := make(map[string][]int64)
	for _, orphan := range orphans {
		byTable[orphan.Table] = append(byTable[orphan.Table], orphan.RowID)
	}
	assert.Equal(t, []int64{77}, byTable["shifts"])
	assert.Equal(t, []int64{8}, byTable["medication_records"])
}

// Unassigned and same-tenant rows stay off the report.
func TestDefaultChecksCleanOnMatchedStaff(t *testing.T) {
	db := setupLegacyDB(t)

	_, err := db.Exec(`INSERT INTO shifts (id, tenant_id, client_id, staff_id) VALUES (77, 5, 100, 1), (78, 5, 100, NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO medication_records (id, tenant_id, client_id, administered_by) VALUES (8, 5, 100, 1)`)
	require.NoError(t, err)

	monitor := NewMonitor(db, DefaultOrphanChecks(), nil, nil, nil)
	orphans, err := monitor.ScanOrphans(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orphans)
}

func TestRunAuditCleanReport(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	checks := []OrphanCheck{
		{Table: "clients", Query: `SELECT id, tenant_id FROM clients WHERE tenant_id IS NULL`},
	}
	mock.ExpectQuery("SELECT id, tenant_id FROM clients").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id"}))

	monitor := NewMonitor(db, checks, NewRecorder(nil, nil, nil), nil, nil)
	report, err := monitor.RunAudit(context.Background(), "schedule")
	require.NoError(t, err)

	assert.True(t, report.Clean())
	assert.Zero(t, report.OrphanCount)
	assert.Zero(t, report.PhantomEventsSinceLastRun)
	assert.Equal(t, "schedule", report.Trigger)
}

func TestRunAuditReportsPhantomWindow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	checks := []OrphanCheck{
		{Table: "clients", Query: `SELECT id, tenant_id FROM clients WHERE tenant_id IS NULL`},
	}
	mock.ExpectQuery("SELECT id, tenant_id FROM clients").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id"}))

	recorder := NewRecorder(nil, nil, nil)
	recorder.Record(context.Background(), "case_notes", 5, 6)
	recorder.Record(context.Background(), "shifts", 7, 5)

	monitor := NewMonitor(db, checks, recorder, nil, nil)
	report, err := monitor.RunAudit(context.Background(), "operator")
	require.NoError(t, err)

	assert.False(t, report.Clean())
	assert.Equal(t, int64(2), report.PhantomEventsSinceLastRun)
	assert.ElementsMatch(t, []int64{5, 7}, report.TenantsAffected)
}

func TestVerifyAtStartupRefusesOrphans(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	checks := []OrphanCheck{
		{Table: "clients", Query: `SELECT id, tenant_id FROM clients WHERE tenant_id IS NULL`},
	}
	mock.ExpectQuery("SELECT id, tenant_id FROM clients").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id"}).AddRow(100, nil))

	monitor := NewMonitor(db, checks, nil, nil, nil)
	err = monitor.VerifyAtStartup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to serve")
}

func TestVerifyAtStartupPassesWhenClean(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	checks := []OrphanCheck{
		{Table: "clients", Query: `SELECT id, tenant_id FROM clients WHERE tenant_id IS NULL`},
	}
	mock.ExpectQuery("SELECT id, tenant_id FROM clients").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id"}))

	monitor := NewMonitor(db, checks, nil, nil, nil)
	assert.NoError(t, monitor.VerifyAtStartup(context.Background()))
}
