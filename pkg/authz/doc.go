// Package authz implements the tenant-isolation and role-based
// authorization core for CareBridge.
//
// # Overview
//
// Every read or mutation of tenant-scoped data passes through a single
// decision interface, Service.CheckAccess, before any storage transaction
// opens. A decision combines three pieces:
//
//  1. The role catalog (package roles): a closed, ordered enumeration.
//  2. The permission rule table: a static (module, action) -> {minimum
//     role level, scope kind} mapping compiled into the binary.
//  3. The tenant scope: the principal's tenant plus, for restricted roles,
//     the set of client IDs the principal is currently assigned to,
//     re-resolved per request.
//
// # Decision order
//
// The evaluation order is load-bearing and must not be rearranged:
//
//	rule lookup -> role level -> tenant boundary -> scope (assigned/self)
//
// The tenant check always precedes the scope checks: a correctly-assigned
// resource in the wrong tenant is denied with CROSS_TENANT, never allowed
// because an assignment matched. The historical defect class in this
// product was exactly a scope check passing while the tenant check was
// skipped.
//
// # Purity
//
// Evaluate is a pure function over its inputs. It performs no I/O and
// holds no mutable state, so concurrent evaluations need no locking and
// evaluating the same inputs twice yields the same verdict. The only I/O
// in the decision path is the scope resolution read, which has no side
// effects and is safely retryable.
package authz
