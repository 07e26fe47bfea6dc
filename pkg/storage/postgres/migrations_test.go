package postgres

import (
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeclaredCompositeKeys(t *testing.T) {
	inline := `
		CREATE TABLE clients (
			id BIGSERIAL PRIMARY KEY,
			tenant_id BIGINT NOT NULL,
			UNIQUE (id, tenant_id)
		);
		CREATE TABLE notes (
			id BIGSERIAL PRIMARY KEY
		);
	`
	assert.Equal(t, []string{"clients"}, declaredCompositeKeys(inline))

	altered := `ALTER TABLE staff ADD CONSTRAINT staff_id_tenant_key UNIQUE (id, tenant_id);`
	assert.Equal(t, []string{"staff"}, declaredCompositeKeys(altered))
}

func TestEngineRefusesCompositeFKWithoutDeclaredKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}))

	engine := NewEngine(db, nil)
	err = engine.Run(context.Background(), []Migration{
		{
			Version:     1,
			Description: "composite FK without backing key",
			SQL: `
				ALTER TABLE case_notes
					ADD CONSTRAINT case_notes_client_tenant_fkey
					FOREIGN KEY (client_id, tenant_id) REFERENCES clients (id, tenant_id);
			`,
		},
	})

	require.Error(t, err)
	var contractErr *SchemaContractError
	require.ErrorAs(t, err, &contractErr)
	assert.Equal(t, "clients", contractErr.ReferencedTable)
	assert.Equal(t, 1, contractErr.Version)

	// The offending migration must not have reached the database.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngineAcceptsCompositeFKAfterDeclaration(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec("ALTER TABLE case_notes").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs(1, "composite FK with declared key").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	engine := NewEngine(db, nil)
	engine.DeclareCompositeKey("clients")

	err = engine.Run(context.Background(), []Migration{
		{
			Version:     1,
			Description: "composite FK with declared key",
			SQL: `
				ALTER TABLE case_notes
					ADD CONSTRAINT case_notes_client_tenant_fkey
					FOREIGN KEY (client_id, tenant_id) REFERENCES clients (id, tenant_id);
			`,
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A declaration and a reference in the same migration are accepted; the
// declaration registers before the foreign keys are checked.
func TestEngineSameMigrationDeclarationAndReference(t *testing.T) {
	engine := NewEngine(nil, nil)
	err := engine.checkContract(Migration{
		Version: 1,
		SQL: `
			CREATE TABLE clients (
				id BIGSERIAL PRIMARY KEY,
				tenant_id BIGINT NOT NULL,
				UNIQUE (id, tenant_id)
			);
			CREATE TABLE case_notes (
				id BIGSERIAL PRIMARY KEY,
				tenant_id BIGINT NOT NULL,
				client_id BIGINT NOT NULL,
				FOREIGN KEY (client_id, tenant_id) REFERENCES clients (id, tenant_id)
			);
		`,
	})
	assert.NoError(t, err)
	assert.True(t, engine.CompositeKeyDeclared("clients"))
}

func TestEngineSkipsAppliedMigrations(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS shifts").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs(2, "second").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	engine := NewEngine(db, nil)
	err = engine.Run(context.Background(), []Migration{
		{Version: 1, Description: "first", SQL: `CREATE TABLE IF NOT EXISTS tenants (id BIGSERIAL PRIMARY KEY);`},
		{Version: 2, Description: "second", SQL: `CREATE TABLE IF NOT EXISTS shifts (id BIGSERIAL PRIMARY KEY);`},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngineFailedMigrationRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS tenants").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	engine := NewEngine(db, nil)
	err = engine.Run(context.Background(), []Migration{
		{Version: 1, Description: "first", SQL: `CREATE TABLE IF NOT EXISTS tenants (id BIGSERIAL PRIMARY KEY);`},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The shipped history must satisfy its own contract: every composite
// foreign key is preceded by the matching uniqueness declaration.
func TestShippedMigrationsSatisfyContract(t *testing.T) {
	engine := NewEngine(nil, nil)

	seen := make(map[int]bool)
	lastVersion := 0
	for _, migration := range Migrations() {
		assert.Greater(t, migration.Version, lastVersion, "versions must be ascending")
		assert.False(t, seen[migration.Version], "duplicate version %d", migration.Version)
		seen[migration.Version] = true
		lastVersion = migration.Version

		require.NoError(t, engine.checkContract(migration),
			"migration %d violates the schema contract", migration.Version)
	}

	for _, table := range []string{"staff", "clients", "shifts", "case_notes", "medication_records", "budgets"} {
		assert.True(t, engine.CompositeKeyDeclared(table), "missing composite key for %s", table)
	}
}

// Every reference from a scoped row to another scoped resource must be a
// composite foreign key, staff references included.
func TestShippedMigrationsCarryCompositeStaffReferences(t *testing.T) {
	var schema strings.Builder
	for _, migration := range Migrations() {
		schema.WriteString(migration.SQL)
	}

	for _, constraint := range []string{
		"shifts_client_tenant_fkey",
		"shifts_staff_tenant_fkey",
		"case_notes_author_tenant_fkey",
		"medication_records_staff_tenant_fkey",
	} {
		assert.Contains(t, schema.String(), constraint)
	}
}
