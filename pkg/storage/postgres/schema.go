package postgres

// ScopedTables lists every tenant-scoped table, children after parents.
// The isolation monitor iterates this list; keep it in sync with the
// migrations below.
var ScopedTables = []string{
	"staff",
	"clients",
	"assignments",
	"shifts",
	"case_notes",
	"medication_records",
	"budgets",
}

// Migrations returns the full schema history. Versions 1-7 are the legacy
// shape with plain single-column foreign keys; 8-11 are the isolation
// hardening: quarantine table, tenant backfill, composite uniqueness, and
// composite foreign keys with covering indexes.
func Migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create tenants table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tenants (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					status VARCHAR(20) NOT NULL DEFAULT 'active',
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(name)
				);
			`,
		},
		{
			Version:     2,
			Description: "Create staff table",
			SQL: `
				CREATE TABLE IF NOT EXISTS staff (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT REFERENCES tenants(id),
					role VARCHAR(50) NOT NULL,
					display_name VARCHAR(255) NOT NULL,
					email VARCHAR(255) NOT NULL,
					is_demo BOOLEAN NOT NULL DEFAULT FALSE,
					disabled_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(email)
				);

				CREATE INDEX idx_staff_tenant_id ON staff(tenant_id);
			`,
		},
		{
			Version:     3,
			Description: "Create clients table",
			SQL: `
				CREATE TABLE IF NOT EXISTS clients (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT REFERENCES tenants(id),
					full_name VARCHAR(255) NOT NULL,
					date_of_birth DATE,
					is_demo BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_clients_tenant_id ON clients(tenant_id);
			`,
		},
		{
			Version:     4,
			Description: "Create assignments table",
			SQL: `
				CREATE TABLE IF NOT EXISTS assignments (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT REFERENCES tenants(id),
					staff_id BIGINT NOT NULL REFERENCES staff(id) ON DELETE CASCADE,
					client_id BIGINT NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
					is_demo BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(tenant_id, staff_id, client_id)
				);

				CREATE INDEX idx_assignments_staff ON assignments(tenant_id, staff_id);
				CREATE INDEX idx_assignments_client ON assignments(tenant_id, client_id);
			`,
		},
		{
			Version:     5,
			Description: "Create shifts table",
			SQL: `
				CREATE TABLE IF NOT EXISTS shifts (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT REFERENCES tenants(id),
					client_id BIGINT NOT NULL REFERENCES clients(id),
					staff_id BIGINT REFERENCES staff(id),
					starts_at TIMESTAMP NOT NULL,
					ends_at TIMESTAMP NOT NULL,
					status VARCHAR(20) NOT NULL DEFAULT 'scheduled',
					series_id BIGINT,
					is_demo BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_shifts_tenant_id ON shifts(tenant_id);
				CREATE INDEX idx_shifts_client ON shifts(tenant_id, client_id);
				CREATE INDEX idx_shifts_staff ON shifts(tenant_id, staff_id);
			`,
		},
		{
			Version:     6,
			Description: "Create case_notes table",
			SQL: `
				CREATE TABLE IF NOT EXISTS case_notes (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT REFERENCES tenants(id),
					client_id BIGINT NOT NULL REFERENCES clients(id),
					author_id BIGINT NOT NULL REFERENCES staff(id),
					shift_id BIGINT REFERENCES shifts(id),
					body TEXT NOT NULL,
					is_demo BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_case_notes_tenant_id ON case_notes(tenant_id);
				CREATE INDEX idx_case_notes_client ON case_notes(tenant_id, client_id);
			`,
		},
		{
			Version:     7,
			Description: "Create medication_records and budgets tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS medication_records (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT REFERENCES tenants(id),
					client_id BIGINT NOT NULL REFERENCES clients(id),
					administered_by BIGINT REFERENCES staff(id),
					medication VARCHAR(255) NOT NULL,
					dosage VARCHAR(100) NOT NULL,
					administered_at TIMESTAMP,
					is_demo BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_medication_records_tenant_id ON medication_records(tenant_id);
				CREATE INDEX idx_medication_records_client ON medication_records(tenant_id, client_id);

				CREATE TABLE IF NOT EXISTS budgets (
					id BIGSERIAL PRIMARY KEY,
					tenant_id BIGINT REFERENCES tenants(id),
					client_id BIGINT NOT NULL REFERENCES clients(id),
					period_start DATE NOT NULL,
					period_end DATE NOT NULL,
					allocated_cents BIGINT NOT NULL,
					spent_cents BIGINT NOT NULL DEFAULT 0,
					is_demo BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_budgets_tenant_id ON budgets(tenant_id);
				CREATE INDEX idx_budgets_client ON budgets(tenant_id, client_id);
			`,
		},
		{
			Version:     8,
			Description: "Create quarantine_rows table",
			SQL: `
				CREATE TABLE IF NOT EXISTS quarantine_rows (
					id BIGSERIAL PRIMARY KEY,
					batch_id UUID NOT NULL,
					source_table VARCHAR(100) NOT NULL,
					source_id BIGINT NOT NULL,
					payload JSONB NOT NULL,
					reason TEXT NOT NULL,
					quarantined_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_quarantine_rows_batch ON quarantine_rows(batch_id);
				CREATE INDEX idx_quarantine_rows_source ON quarantine_rows(source_table, source_id);
			`,
		},
		{
			Version:          9,
			Description:      "Backfill missing tenant ids, quarantine irreparable rows",
			RequiresBackfill: true,
			// Rows whose tenant can be derived from their client parent are
			// repaired; rows with no parent to derive from are copied to
			// quarantine_rows and removed. Nothing is silently dropped.
			SQL: `
				UPDATE shifts s SET tenant_id = c.tenant_id
					FROM clients c WHERE s.client_id = c.id AND s.tenant_id IS NULL AND c.tenant_id IS NOT NULL;
				UPDATE case_notes n SET tenant_id = c.tenant_id
					FROM clients c WHERE n.client_id = c.id AND n.tenant_id IS NULL AND c.tenant_id IS NOT NULL;
				UPDATE medication_records m SET tenant_id = c.tenant_id
					FROM clients c WHERE m.client_id = c.id AND m.tenant_id IS NULL AND c.tenant_id IS NOT NULL;
				UPDATE budgets b SET tenant_id = c.tenant_id
					FROM clients c WHERE b.client_id = c.id AND b.tenant_id IS NULL AND c.tenant_id IS NOT NULL;
				UPDATE assignments a SET tenant_id = c.tenant_id
					FROM clients c WHERE a.client_id = c.id AND a.tenant_id IS NULL AND c.tenant_id IS NOT NULL;

				INSERT INTO quarantine_rows (batch_id, source_table, source_id, payload, reason)
					SELECT gen_random_uuid(), 'shifts', id, to_jsonb(shifts), 'tenant_id missing and not derivable'
					FROM shifts WHERE tenant_id IS NULL;
				DELETE FROM shifts WHERE tenant_id IS NULL;

				INSERT INTO quarantine_rows (batch_id, source_table, source_id, payload, reason)
					SELECT gen_random_uuid(), 'case_notes', id, to_jsonb(case_notes), 'tenant_id missing and not derivable'
					FROM case_notes WHERE tenant_id IS NULL;
				DELETE FROM case_notes WHERE tenant_id IS NULL;

				INSERT INTO quarantine_rows (batch_id, source_table, source_id, payload, reason)
					SELECT gen_random_uuid(), 'medication_records', id, to_jsonb(medication_records), 'tenant_id missing and not derivable'
					FROM medication_records WHERE tenant_id IS NULL;
				DELETE FROM medication_records WHERE tenant_id IS NULL;

				INSERT INTO quarantine_rows (batch_id, source_table, source_id, payload, reason)
					SELECT gen_random_uuid(), 'budgets', id, to_jsonb(budgets), 'tenant_id missing and not derivable'
					FROM budgets WHERE tenant_id IS NULL;
				DELETE FROM budgets WHERE tenant_id IS NULL;

				INSERT INTO quarantine_rows (batch_id, source_table, source_id, payload, reason)
					SELECT gen_random_uuid(), 'assignments', id, to_jsonb(assignments), 'tenant_id missing and not derivable'
					FROM assignments WHERE tenant_id IS NULL;
				DELETE FROM assignments WHERE tenant_id IS NULL;

				INSERT INTO quarantine_rows (batch_id, source_table, source_id, payload, reason)
					SELECT gen_random_uuid(), 'clients', id, to_jsonb(clients), 'tenant_id missing and not derivable'
					FROM clients WHERE tenant_id IS NULL;
				DELETE FROM clients WHERE tenant_id IS NULL;

				ALTER TABLE clients ALTER COLUMN tenant_id SET NOT NULL;
				ALTER TABLE assignments ALTER COLUMN tenant_id SET NOT NULL;
				ALTER TABLE shifts ALTER COLUMN tenant_id SET NOT NULL;
				ALTER TABLE case_notes ALTER COLUMN tenant_id SET NOT NULL;
				ALTER TABLE medication_records ALTER COLUMN tenant_id SET NOT NULL;
				ALTER TABLE budgets ALTER COLUMN tenant_id SET NOT NULL;
			`,
		},
		{
			Version:     10,
			Description: "Declare composite (id, tenant_id) uniqueness on scoped tables",
			SQL: `
				ALTER TABLE staff ADD CONSTRAINT staff_id_tenant_key UNIQUE (id, tenant_id);
				ALTER TABLE clients ADD CONSTRAINT clients_id_tenant_key UNIQUE (id, tenant_id);
				ALTER TABLE shifts ADD CONSTRAINT shifts_id_tenant_key UNIQUE (id, tenant_id);
				ALTER TABLE case_notes ADD CONSTRAINT case_notes_id_tenant_key UNIQUE (id, tenant_id);
				ALTER TABLE medication_records ADD CONSTRAINT medication_records_id_tenant_key UNIQUE (id, tenant_id);
				ALTER TABLE budgets ADD CONSTRAINT budgets_id_tenant_key UNIQUE (id, tenant_id);
			`,
		},
		{
			Version:     11,
			Description: "Add composite foreign keys and covering indexes",
			SQL: `
				ALTER TABLE assignments
					ADD CONSTRAINT assignments_staff_tenant_fkey
					FOREIGN KEY (staff_id, tenant_id) REFERENCES staff (id, tenant_id);
				ALTER TABLE assignments
					ADD CONSTRAINT assignments_client_tenant_fkey
					FOREIGN KEY (client_id, tenant_id) REFERENCES clients (id, tenant_id);

				ALTER TABLE shifts
					ADD CONSTRAINT shifts_client_tenant_fkey
					FOREIGN KEY (client_id, tenant_id) REFERENCES clients (id, tenant_id);
				ALTER TABLE shifts
					ADD CONSTRAINT shifts_staff_tenant_fkey
					FOREIGN KEY (staff_id, tenant_id) REFERENCES staff (id, tenant_id);

				ALTER TABLE case_notes
					ADD CONSTRAINT case_notes_client_tenant_fkey
					FOREIGN KEY (client_id, tenant_id) REFERENCES clients (id, tenant_id);
				ALTER TABLE case_notes
					ADD CONSTRAINT case_notes_author_tenant_fkey
					FOREIGN KEY (author_id, tenant_id) REFERENCES staff (id, tenant_id);
				ALTER TABLE case_notes
					ADD CONSTRAINT case_notes_shift_tenant_fkey
					FOREIGN KEY (shift_id, tenant_id) REFERENCES shifts (id, tenant_id);

				ALTER TABLE medication_records
					ADD CONSTRAINT medication_records_client_tenant_fkey
					FOREIGN KEY (client_id, tenant_id) REFERENCES clients (id, tenant_id);
				ALTER TABLE medication_records
					ADD CONSTRAINT medication_records_staff_tenant_fkey
					FOREIGN KEY (administered_by, tenant_id) REFERENCES staff (id, tenant_id);

				ALTER TABLE budgets
					ADD CONSTRAINT budgets_client_tenant_fkey
					FOREIGN KEY (client_id, tenant_id) REFERENCES clients (id, tenant_id);

				CREATE INDEX idx_case_notes_author ON case_notes(tenant_id, author_id);
				CREATE INDEX idx_case_notes_shift ON case_notes(tenant_id, shift_id);
				CREATE INDEX idx_medication_records_staff ON medication_records(tenant_id, administered_by);
			`,
		},
	}
}
