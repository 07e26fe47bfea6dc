package authz

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/carebridge/carebridge/pkg/httputil"
	"github.com/carebridge/carebridge/pkg/observability"
)

// principalContextKey is the context key type for the request principal
type principalContextKey struct{}

// WithPrincipal stores the authenticated principal in the context.
// The authentication layer (external to this core) calls this after
// validating the session.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext retrieves the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalContextKey{}).(Principal)
	return principal, ok
}

// TargetFromRequest extracts the decision target from a request. Handlers
// supply one per route so the middleware stays generic.
type TargetFromRequest func(r *http.Request) (Target, error)

// TenantTargetFromVars builds a Target from the {tenant_id} route variable
// and, when present, {owner_id}.
func TenantTargetFromVars(r *http.Request) (Target, error) {
	vars := mux.Vars(r)

	var target Target
	if raw, ok := vars["tenant_id"]; ok {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Target{}, err
		}
		target.TenantID = &id
	}
	if raw, ok := vars["owner_id"]; ok {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Target{}, err
		}
		target.OwnerID = &id
	}

	return target, nil
}

// SessionMiddleware resolves the request principal from the
// X-Principal-ID header set by the session gateway. Session validation
// itself happens upstream; this layer only loads the staff record so
// role and tenant always come from the database, never the request.
func SessionMiddleware(store *Store, logger *observability.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get("X-Principal-ID")
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				httputil.WriteErrorMessage(w, http.StatusUnauthorized, "invalid principal header")
				return
			}

			principal, err := store.GetPrincipal(r.Context(), id)
			if err != nil {
				logger.WithError(err).WithField("principal_id", id).Warn("failed to resolve principal")
				httputil.WriteErrorMessage(w, http.StatusUnauthorized, "unknown principal")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), *principal)))
		})
	}
}

// RequireAccess guards a route with a permission check. Denials return
// 403 with the reason code in the body, never an empty 200, so callers
// can tell "denied" from "no data".
func RequireAccess(service *Service, module, action string, targetFn TargetFromRequest) func(http.Handler) http.Handler {
	if targetFn == nil {
		targetFn = TenantTargetFromVars
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				httputil.WriteErrorMessage(w, http.StatusUnauthorized, "authentication required")
				return
			}

			target, err := targetFn(r)
			if err != nil {
				httputil.WriteBadRequest(w, "invalid target identifiers")
				return
			}

			decision, err := service.CheckAccess(r.Context(), principal, module, action, target)
			if err != nil {
				httputil.WriteInternalError(w, err)
				return
			}
			if !decision.Allowed {
				httputil.WriteDenied(w, string(decision.Reason))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
