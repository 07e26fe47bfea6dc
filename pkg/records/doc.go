// Package records is the single access layer for tenant-scoped resources:
// clients, shifts, case notes, medication records, and budgets.
//
// Every read goes through the same pipeline: authorize, query with the
// tenant filter in SQL, then pass the result through the phantom filter.
// Every write authorizes, consults the tenant's write breaker, and runs
// in one transaction so the composite-key constraints decide atomically.
// Denials surface as typed errors, never as empty result sets.
package records
