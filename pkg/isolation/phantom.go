package isolation

import (
	"context"
	"sync"

	"github.com/carebridge/carebridge/pkg/observability"
)

// TenantTagged is any row type carrying a tenant tag. Every scoped record
// type implements it so reads can be post-checked uniformly.
type TenantTagged interface {
	TenantRef() int64
}

// Recorder accumulates phantom events between audits and trips the write
// breaker for tenants that keep producing them.
type Recorder struct {
	logger  *observability.Logger
	metrics *observability.Metrics
	breaker *Breaker

	mu        sync.Mutex
	total     int64
	perTenant map[int64]int64
}

// NewRecorder creates a phantom event recorder. Breaker and metrics may
// be nil.
func NewRecorder(logger *observability.Logger, metrics *observability.Metrics, breaker *Breaker) *Recorder {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Recorder{
		logger:    logger,
		metrics:   metrics,
		breaker:   breaker,
		perTenant: make(map[int64]int64),
	}
}

// Record notes one phantom row: a row tagged rowTenant observed in a read
// for requestTenant. This is a critical anomaly; it means a query leaked
// past its tenant filter.
func (r *Recorder) Record(ctx context.Context, table string, requestTenant, rowTenant int64) {
	r.mu.Lock()
	r.total++
	r.perTenant[requestTenant]++
	r.mu.Unlock()

	r.logger.WithFields(map[string]interface{}{
		"table":          table,
		"request_tenant": requestTenant,
		"row_tenant":     rowTenant,
	}).Error("phantom row filtered from read")

	if r.metrics != nil {
		r.metrics.PhantomRowsTotal.WithLabelValues(table).Inc()
	}
	if r.breaker != nil {
		r.breaker.RecordAnomaly(ctx, requestTenant)
	}
}

// Snapshot returns and resets the counts accumulated since the previous
// snapshot. Audits call this to report phantom activity per window.
func (r *Recorder) Snapshot() (total int64, tenants []int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	total = r.total
	for tenant := range r.perTenant {
		tenants = append(tenants, tenant)
	}

	r.total = 0
	r.perTenant = make(map[int64]int64)
	return total, tenants
}

// FilterPhantoms drops rows whose tenant tag differs from the requesting
// tenant. Dropped rows are recorded as anomalies; the surviving set is
// returned and the read succeeds.
func FilterPhantoms[T TenantTagged](ctx context.Context, rec *Recorder, table string, requestTenant int64, rows []T) []T {
	filtered := rows[:0]
	for _, row := range rows {
		if row.TenantRef() != requestTenant {
			if rec != nil {
				rec.Record(ctx, table, requestTenant, row.TenantRef())
			}
			continue
		}
		filtered = append(filtered, row)
	}
	return filtered
}
