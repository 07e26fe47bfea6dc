package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/carebridge/carebridge/pkg/observability"
	"github.com/carebridge/carebridge/pkg/roles"
)

// Scope is the resolved set of tenants and clients a principal may act
// upon. Scopes are resolved per request and never cached across requests:
// assignments change, and a stale scope is a leak.
type Scope struct {
	// Global is true only for the console manager role.
	Global bool

	// TenantID is the principal's tenant. Zero when Global.
	TenantID int64

	// Restricted is true for roles at or below team leader; such roles
	// only see resources belonging to their assigned clients.
	Restricted bool

	// assignedClients holds the client IDs a restricted principal is
	// assigned to. An empty set means "no visible resources", never "all".
	assignedClients map[int64]struct{}
}

// IsAssigned reports whether clientID is in the principal's assignment set.
// Unrestricted scopes are assigned to every client in their tenant.
func (s Scope) IsAssigned(clientID int64) bool {
	if !s.Restricted {
		return true
	}
	_, ok := s.assignedClients[clientID]
	return ok
}

// AssignedClientIDs returns a copy of the assignment set.
func (s Scope) AssignedClientIDs() []int64 {
	out := make([]int64, 0, len(s.assignedClients))
	for id := range s.assignedClients {
		out = append(out, id)
	}
	return out
}

// Resolver computes the tenant scope for a principal. The resolution read
// has no side effects and is safely retryable.
type Resolver interface {
	ResolveScope(ctx context.Context, principal Principal) (Scope, error)
}

// StoreResolver resolves scopes from the assignments table.
type StoreResolver struct {
	store   *Store
	metrics *observability.Metrics
}

// NewStoreResolver creates a resolver backed by the given store. Metrics
// may be nil.
func NewStoreResolver(store *Store, metrics *observability.Metrics) *StoreResolver {
	return &StoreResolver{store: store, metrics: metrics}
}

// ResolveScope computes the scope for principal. For roles at or below
// team leader the current assignment set is read from storage; higher
// roles see the whole tenant and skip the read.
func (r *StoreResolver) ResolveScope(ctx context.Context, principal Principal) (Scope, error) {
	if !roles.Valid(principal.Role) {
		return Scope{}, &ConfigurationError{
			Detail: fmt.Sprintf("principal %d has unknown role %q", principal.ID, principal.Role),
		}
	}

	if roles.IsGlobal(principal.Role) {
		return Scope{Global: true}, nil
	}

	if principal.TenantID == nil {
		return Scope{}, &ConfigurationError{
			Detail: fmt.Sprintf("principal %d holds non-global role %q without a tenant", principal.ID, principal.Role),
		}
	}

	scope := Scope{TenantID: *principal.TenantID}

	if !roles.AtLeast(principal.Role, roles.Coordinator) {
		scope.Restricted = true

		start := time.Now()
		clientIDs, err := r.store.GetAssignedClientIDs(ctx, principal.ID, *principal.TenantID)
		if err != nil {
			return Scope{}, fmt.Errorf("resolve assignment set for principal %d: %w", principal.ID, err)
		}
		if r.metrics != nil {
			r.metrics.ScopeResolutionDuration.Observe(time.Since(start).Seconds())
		}

		scope.assignedClients = make(map[int64]struct{}, len(clientIDs))
		for _, id := range clientIDs {
			scope.assignedClients[id] = struct{}{}
		}
	}

	return scope, nil
}

// StaticScope builds a scope from an explicit assignment list. Intended
// for tests and for callers that already resolved assignments.
func StaticScope(tenantID int64, restricted bool, assignedClients []int64) Scope {
	scope := Scope{TenantID: tenantID, Restricted: restricted}
	if restricted {
		scope.assignedClients = make(map[int64]struct{}, len(assignedClients))
		for _, id := range assignedClients {
			scope.assignedClients[id] = struct{}{}
		}
	}
	return scope
}

// GlobalScope returns the scope of the global role.
func GlobalScope() Scope {
	return Scope{Global: true}
}
