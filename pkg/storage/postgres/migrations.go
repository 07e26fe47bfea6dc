package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/carebridge/carebridge/pkg/observability"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string

	// RequiresBackfill marks migrations that repair existing data before
	// a constraint can be added. They run in the same transaction as the
	// constraint so a partial repair never commits.
	RequiresBackfill bool
}

// compositeFKPattern matches a composite foreign key targeting a scoped
// table's (id, tenant_id) uniqueness.
var compositeFKPattern = regexp.MustCompile(
	`(?i)REFERENCES\s+(\w+)\s*\(\s*id\s*,\s*tenant_id\s*\)`)

// compositeKeyPattern matches the declaration of the backing uniqueness
// inside a CREATE TABLE body.
var compositeKeyPattern = regexp.MustCompile(
	`(?i)UNIQUE\s*\(\s*id\s*,\s*tenant_id\s*\)`)

// alterCompositeKeyPattern matches the ALTER TABLE form of the same
// declaration, used when the key is added after the fact.
var alterCompositeKeyPattern = regexp.MustCompile(
	`(?i)ALTER\s+TABLE\s+(\w+)\s+ADD\s+CONSTRAINT\s+\w+\s+UNIQUE\s*\(\s*id\s*,\s*tenant_id\s*\)`)

// Engine applies migrations transactionally and enforces the schema
// contract: no composite foreign key may be applied unless the referenced
// table's composite (id, tenant_id) key has been declared first.
type Engine struct {
	db       *sql.DB
	logger   *observability.Logger
	declared map[string]bool
}

// NewEngine creates a migration engine on the primary connection.
func NewEngine(db *sql.DB, logger *observability.Logger) *Engine {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Engine{
		db:       db,
		logger:   logger,
		declared: make(map[string]bool),
	}
}

// DeclareCompositeKey registers that table carries UNIQUE (id, tenant_id).
// Composite foreign keys against table are only accepted after this call.
func (e *Engine) DeclareCompositeKey(table string) {
	e.declared[table] = true
}

// CompositeKeyDeclared reports whether table has a declared composite key.
func (e *Engine) CompositeKeyDeclared(table string) bool {
	return e.declared[table]
}

// checkContract validates one migration against the declared composite
// keys. Keys the migration itself declares (inline UNIQUE on a CREATE
// TABLE body, or the ALTER TABLE form) are registered before its foreign
// keys are checked, so a single migration may declare a key and reference
// it.
func (e *Engine) checkContract(migration Migration) error {
	for _, table := range declaredCompositeKeys(migration.SQL) {
		e.declared[table] = true
	}

	for _, match := range compositeFKPattern.FindAllStringSubmatch(migration.SQL, -1) {
		referenced := match[1]
		if !e.declared[referenced] {
			return &SchemaContractError{
				Version:         migration.Version,
				ReferencedTable: referenced,
			}
		}
	}

	return nil
}

var createTablePattern = regexp.MustCompile(`(?i)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?(\w+)`)

// declaredCompositeKeys finds every table whose (id, tenant_id) uniqueness
// this SQL declares. For the inline form the UNIQUE clause must fall
// between the table's CREATE statement and the next one.
func declaredCompositeKeys(migrationSQL string) []string {
	var tables []string

	creates := createTablePattern.FindAllStringSubmatchIndex(migrationSQL, -1)
	for i, loc := range creates {
		end := len(migrationSQL)
		if i+1 < len(creates) {
			end = creates[i+1][0]
		}
		body := migrationSQL[loc[0]:end]
		if compositeKeyPattern.MatchString(body) {
			tables = append(tables, migrationSQL[loc[2]:loc[3]])
		}
	}

	for _, match := range alterCompositeKeyPattern.FindAllStringSubmatch(migrationSQL, -1) {
		tables = append(tables, match[1])
	}

	return tables
}

// Run applies every pending migration in version order. Each migration
// runs in its own transaction together with its tracking-table insert; a
// contract violation aborts the run before any SQL executes.
func (e *Engine) Run(ctx context.Context, migrations []Migration) error {
	_, err := e.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := e.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read migration versions: %w", err)
	}

	for _, migration := range migrations {
		// The contract check covers already-applied migrations too, so the
		// declared-key registry is complete before later versions run.
		if err := e.checkContract(migration); err != nil {
			return err
		}

		if appliedVersions[migration.Version] {
			continue
		}

		e.logger.WithFields(map[string]interface{}{
			"version":     migration.Version,
			"description": migration.Description,
		}).Info("applying migration")

		tx, err := e.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
