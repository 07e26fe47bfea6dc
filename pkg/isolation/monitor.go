package isolation

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/carebridge/carebridge/pkg/observability"
)

// OrphanCheck is one read-only probe for rows that violate tenant
// integrity: a missing tenant tag or a parent in a different tenant.
type OrphanCheck struct {
	Table string
	// Query must return one row per orphan: (id, tenant_id) with tenant_id
	// nullable.
	Query string
}

// DefaultOrphanChecks covers every scoped table. The composite foreign
// keys make mismatches impossible for new writes; these probes exist to
// catch legacy rows and any path that bypassed the schema.
func DefaultOrphanChecks() []OrphanCheck {
	checks := []OrphanCheck{
		{Table: "clients", Query: `SELECT id, tenant_id FROM clients WHERE tenant_id IS NULL`},
		{Table: "staff", Query: `SELECT id, tenant_id FROM staff WHERE tenant_id IS NULL AND role <> 'console_manager'`},
		{Table: "assignments", Query: `
			SELECT a.id, a.tenant_id FROM assignments a
			LEFT JOIN clients c ON a.client_id = c.id
			WHERE a.tenant_id IS NULL OR c.id IS NULL OR a.tenant_id <> c.tenant_id`},
		{Table: "shifts", Query: `
			SELECT s.id, s.tenant_id FROM shifts s
			LEFT JOIN clients c ON s.client_id = c.id
			LEFT JOIN staff st ON s.staff_id = st.id
			WHERE s.tenant_id IS NULL OR c.id IS NULL OR s.tenant_id <> c.tenant_id
				OR (s.staff_id IS NOT NULL AND (st.id IS NULL OR st.tenant_id IS NULL OR s.tenant_id <> st.tenant_id))`},
		{Table: "case_notes", Query: `
			SELECT n.id, n.tenant_id FROM case_notes n
			LEFT JOIN clients c ON n.client_id = c.id
			WHERE n.tenant_id IS NULL OR c.id IS NULL OR n.tenant_id <> c.tenant_id`},
		{Table: "medication_records", Query: `
			SELECT m.id, m.tenant_id FROM medication_records m
			LEFT JOIN clients c ON m.client_id = c.id
			LEFT JOIN staff st ON m.administered_by = st.id
			WHERE m.tenant_id IS NULL OR c.id IS NULL OR m.tenant_id <> c.tenant_id
				OR (m.administered_by IS NOT NULL AND (st.id IS NULL OR st.tenant_id IS NULL OR m.tenant_id <> st.tenant_id))`},
		{Table: "budgets", Query: `
			SELECT b.id, b.tenant_id FROM budgets b
			LEFT JOIN clients c ON b.client_id = c.id
			WHERE b.tenant_id IS NULL OR c.id IS NULL OR b.tenant_id <> c.tenant_id`},
	}
	return checks
}

// Orphan is one row failing an integrity probe.
type Orphan struct {
	Table    string `json:"table"`
	RowID    int64  `json:"row_id"`
	TenantID *int64 `json:"tenant_id,omitempty"`
}

// Report is the outcome of one isolation audit.
type Report struct {
	RanAt                     time.Time `json:"ran_at"`
	Trigger                   string    `json:"trigger"`
	OrphanCount               int       `json:"orphan_count"`
	Orphans                   []Orphan  `json:"orphans,omitempty"`
	PhantomEventsSinceLastRun int64     `json:"phantom_events_since_last_run"`
	TenantsAffected           []int64   `json:"tenants_affected,omitempty"`
}

// Clean reports whether the audit found nothing.
func (r Report) Clean() bool {
	return r.OrphanCount == 0 && r.PhantomEventsSinceLastRun == 0
}

// Monitor runs isolation audits: orphan scans over the scoped tables plus
// the phantom counts accumulated by the recorder.
type Monitor struct {
	db       *sql.DB
	checks   []OrphanCheck
	recorder *Recorder
	logger   *observability.Logger
	metrics  *observability.Metrics
}

// NewMonitor creates a monitor. Pass a read replica where available; all
// monitor queries are read-only. Recorder and metrics may be nil.
func NewMonitor(db *sql.DB, checks []OrphanCheck, recorder *Recorder, logger *observability.Logger, metrics *observability.Metrics) *Monitor {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	if checks == nil {
		checks = DefaultOrphanChecks()
	}
	return &Monitor{
		db:       db,
		checks:   checks,
		recorder: recorder,
		logger:   logger,
		metrics:  metrics,
	}
}

// ScanOrphans runs every integrity probe and returns the offending rows.
func (m *Monitor) ScanOrphans(ctx context.Context) ([]Orphan, error) {
	var orphans []Orphan

	for _, check := range m.checks {
		rows, err := m.db.QueryContext(ctx, check.Query)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s for orphans: %w", check.Table, err)
		}

		var tableCount int
		for rows.Next() {
			var orphan Orphan
			var tenantID sql.NullInt64
			if err := rows.Scan(&orphan.RowID, &tenantID); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan orphan row in %s: %w", check.Table, err)
			}
			orphan.Table = check.Table
			if tenantID.Valid {
				id := tenantID.Int64
				orphan.TenantID = &id
			}
			orphans = append(orphans, orphan)
			tableCount++
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to read orphans from %s: %w", check.Table, err)
		}

		if m.metrics != nil {
			m.metrics.OrphanRowsDetected.WithLabelValues(check.Table).Set(float64(tableCount))
		}
	}

	return orphans, nil
}

// RunAudit performs a full audit: orphan scan plus the phantom snapshot.
// trigger names who asked ("startup", "schedule", "operator").
func (m *Monitor) RunAudit(ctx context.Context, trigger string) (Report, error) {
	report := Report{RanAt: time.Now().UTC(), Trigger: trigger}

	orphans, err := m.ScanOrphans(ctx)
	if err != nil {
		if m.metrics != nil {
			m.metrics.IsolationAuditsTotal.WithLabelValues(trigger, "error").Inc()
		}
		return Report{}, err
	}
	report.Orphans = orphans
	report.OrphanCount = len(orphans)

	if m.recorder != nil {
		report.PhantomEventsSinceLastRun, report.TenantsAffected = m.recorder.Snapshot()
	}

	tenantSet := make(map[int64]struct{}, len(report.TenantsAffected))
	for _, id := range report.TenantsAffected {
		tenantSet[id] = struct{}{}
	}
	for _, orphan := range orphans {
		if orphan.TenantID != nil {
			if _, seen := tenantSet[*orphan.TenantID]; !seen {
				tenantSet[*orphan.TenantID] = struct{}{}
				report.TenantsAffected = append(report.TenantsAffected, *orphan.TenantID)
			}
		}
	}

	status := "clean"
	if !report.Clean() {
		status = "dirty"
		m.logger.WithFields(map[string]interface{}{
			"trigger":        trigger,
			"orphans":        report.OrphanCount,
			"phantom_events": report.PhantomEventsSinceLastRun,
		}).Error("isolation audit found anomalies")
	} else {
		m.logger.WithField("trigger", trigger).Info("isolation audit clean")
	}

	if m.metrics != nil {
		m.metrics.IsolationAuditsTotal.WithLabelValues(trigger, status).Inc()
	}

	return report, nil
}

// VerifyAtStartup runs an audit and returns an error when orphans exist.
// The caller is expected to refuse to start.
func (m *Monitor) VerifyAtStartup(ctx context.Context) error {
	report, err := m.RunAudit(ctx, "startup")
	if err != nil {
		return fmt.Errorf("startup isolation audit failed: %w", err)
	}
	if report.OrphanCount > 0 {
		return fmt.Errorf("startup isolation audit found %d orphan rows; refusing to serve", report.OrphanCount)
	}
	return nil
}
