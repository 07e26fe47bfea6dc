package authz

import (
	"context"
	"time"

	"github.com/carebridge/carebridge/pkg/observability"
	"github.com/carebridge/carebridge/pkg/roles"
)

// Evaluate decides whether principal may perform (module, action) on
// target, given its resolved scope. It is a pure function: no I/O, no
// mutation, same inputs always produce the same verdict.
//
// The check order is fixed. In particular the tenant boundary check runs
// before any scope-kind check, so a resource that matches the principal's
// assignments but carries a foreign tenant ID is denied CROSS_TENANT.
func Evaluate(principal Principal, scope Scope, module, action string, target Target) Decision {
	rule, ok := LookupRule(module, action)
	if !ok {
		// No implicit allow: an operation the table does not name is denied.
		return Deny(ReasonUnknownOperation)
	}

	if !roles.AtLeast(principal.Role, rule.MinRole) {
		return Deny(ReasonInsufficientRole)
	}

	// Tenant boundary. Unconditional for non-global roles regardless of the
	// rule's scope kind.
	if target.TenantID != nil && !scope.Global && *target.TenantID != scope.TenantID {
		return Deny(ReasonCrossTenant)
	}

	switch rule.Scope {
	case ScopeAssigned:
		// The global role is not subject to assignment scoping.
		if scope.Global {
			return Allow()
		}
		// A target without an owner cannot be verified against the
		// assignment set; fail closed.
		if target.OwnerID == nil || !scope.IsAssigned(*target.OwnerID) {
			return Deny(ReasonNotAssigned)
		}
	case ScopeSelf:
		if scope.Global {
			return Allow()
		}
		if target.OwnerID == nil || *target.OwnerID != principal.ID {
			return Deny(ReasonNotOwner)
		}
	}

	return Allow()
}

// Service is the single decision interface consumed by every handler and
// by the records access layer. It composes scope resolution with the pure
// evaluator and records decision metrics.
type Service struct {
	resolver Resolver
	metrics  *observability.Metrics
}

// NewService creates a decision service. Metrics may be nil.
func NewService(resolver Resolver, metrics *observability.Metrics) *Service {
	return &Service{resolver: resolver, metrics: metrics}
}

// CheckAccess resolves the principal's scope and evaluates the requested
// operation. The returned error is reserved for infrastructure failures
// (scope resolution) and configuration errors; a denial is not an error
// here; callers inspect the Decision.
func (s *Service) CheckAccess(ctx context.Context, principal Principal, module, action string, target Target) (Decision, error) {
	start := time.Now()

	scope, err := s.resolver.ResolveScope(ctx, principal)
	if err != nil {
		return Decision{}, err
	}

	decision := Evaluate(principal, scope, module, action, target)

	if s.metrics != nil {
		outcome := "allow"
		reason := ""
		if !decision.Allowed {
			outcome = "deny"
			reason = string(decision.Reason)
		}
		s.metrics.AccessDecisionsTotal.WithLabelValues(module, action, outcome, reason).Inc()
		s.metrics.AccessDecisionDuration.WithLabelValues(module, action).Observe(time.Since(start).Seconds())
	}

	if !decision.Allowed {
		observability.FromContext(ctx).WithFields(map[string]interface{}{
			"principal_id": principal.ID,
			"role":         string(principal.Role),
			"module":       module,
			"action":       action,
			"reason":       string(decision.Reason),
		}).Warn("access denied")
	}

	return decision, nil
}

// Scope resolves the principal's scope without evaluating an operation.
// List endpoints use it to narrow their queries to the visible set.
func (s *Service) Scope(ctx context.Context, principal Principal) (Scope, error) {
	return s.resolver.ResolveScope(ctx, principal)
}

// AuthorizeList authorizes a collection read against tenantID. It applies
// the rule, role, and tenant checks; the per-resource scope check is
// replaced by query narrowing, which the caller performs with the
// returned scope and rule. Denials come back as *DeniedError.
func (s *Service) AuthorizeList(ctx context.Context, principal Principal, module, action string, tenantID int64) (Scope, Rule, error) {
	scope, err := s.resolver.ResolveScope(ctx, principal)
	if err != nil {
		return Scope{}, Rule{}, err
	}

	rule, ok := LookupRule(module, action)
	if !ok {
		return Scope{}, Rule{}, &DeniedError{Module: module, Action: action, Reason: ReasonUnknownOperation}
	}
	if !roles.AtLeast(principal.Role, rule.MinRole) {
		return Scope{}, Rule{}, &DeniedError{Module: module, Action: action, Reason: ReasonInsufficientRole}
	}
	if !scope.Global && tenantID != scope.TenantID {
		return Scope{}, Rule{}, &DeniedError{Module: module, Action: action, Reason: ReasonCrossTenant}
	}

	return scope, rule, nil
}

// RequireAccess is CheckAccess for callers that want a denial as an error.
func (s *Service) RequireAccess(ctx context.Context, principal Principal, module, action string, target Target) error {
	decision, err := s.CheckAccess(ctx, principal, module, action, target)
	if err != nil {
		return err
	}
	if !decision.Allowed {
		return &DeniedError{Module: module, Action: action, Reason: decision.Reason}
	}
	return nil
}
