// Package tenants manages tenant lifecycle and the staff-to-client
// assignment relation.
//
// Tenants are only ever soft-disabled, never deleted or merged; disabling
// a tenant blocks new sessions but leaves its rows intact for audits.
// Assignments are the source of truth for restricted-role visibility and
// are written with a tenant-consistency pre-check on top of the composite
// foreign keys that enforce the same rule in the schema.
package tenants
