// Package isolation is the defence-in-depth layer behind the authorizer
// and the schema constraints. It assumes both can fail and watches for
// the failure modes: orphan rows with no valid tenant, phantom rows
// leaking into another tenant's reads, and write paths that keep
// producing anomalies.
//
// Reads are fail-safe: phantom rows are filtered out and the request
// succeeds with the narrowed set. Writes are fail-closed: a tenant whose
// anomaly count crosses the breaker threshold has its writes halted until
// an operator resets the breaker.
package isolation
