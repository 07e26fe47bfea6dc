// Package postgres provides the database layer: a connection manager for
// the primary and optional read replicas, and the migration engine that
// enforces the tenant-isolation schema contract.
//
// The contract is structural: every tenant-scoped table declares a
// composite UNIQUE (id, tenant_id) key, and every reference between
// scoped rows is a composite foreign key against that uniqueness. The
// engine refuses to apply a migration whose composite foreign key targets
// a table with no declared composite key, so the contract cannot rot as
// tables are added.
package postgres
