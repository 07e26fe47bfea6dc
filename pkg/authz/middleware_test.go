package authz

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carebridge/carebridge/pkg/httputil"
	"github.com/carebridge/carebridge/pkg/roles"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func guardedRouter(service *Service) *mux.Router {
	router := mux.NewRouter()
	guard := RequireAccess(service, ModuleCaseNotes, ActionView, nil)
	router.Handle("/tenants/{tenant_id}/clients/{owner_id}/case-notes",
		guard(okHandler())).Methods(http.MethodGet)
	return router
}

func TestRequireAccessMiddlewareAllows(t *testing.T) {
	service := NewService(&stubResolver{scope: StaticScope(5, true, []int64{100})}, nil)
	router := guardedRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/tenants/5/clients/100/case-notes", nil)
	req = req.WithContext(WithPrincipal(req.Context(), supportWorker(5)))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestRequireAccessMiddlewareDeniesWithReasonCode(t *testing.T) {
	service := NewService(&stubResolver{scope: StaticScope(5, true, []int64{100})}, nil)
	router := guardedRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/tenants/6/clients/100/case-notes", nil)
	req = req.WithContext(WithPrincipal(req.Context(), supportWorker(5)))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusForbidden, recorder.Code)

	var body httputil.DeniedResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, string(ReasonCrossTenant), body.Reason)
}

func TestRequireAccessMiddlewareMissingPrincipal(t *testing.T) {
	service := NewService(&stubResolver{scope: GlobalScope()}, nil)
	router := guardedRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/tenants/5/clients/100/case-notes", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestRequireAccessMiddlewareResolverFailure(t *testing.T) {
	service := NewService(&stubResolver{err: assert.AnError}, nil)
	router := guardedRouter(service)

	req := httptest.NewRequest(http.MethodGet, "/tenants/5/clients/100/case-notes", nil)
	req = req.WithContext(WithPrincipal(req.Context(), supportWorker(5)))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
}

func TestSessionMiddlewareLoadsPrincipalFromStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, tenant_id, role").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "role"}).
			AddRow(42, 5, "coordinator"))

	var seen Principal
	handler := SessionMiddleware(NewStore(db), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Principal-ID", "42")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, int64(42), seen.ID)
	require.NotNil(t, seen.TenantID)
	assert.Equal(t, int64(5), *seen.TenantID)
	assert.Equal(t, roles.Coordinator, seen.Role)
}

// Role always comes from the staff table; a request cannot smuggle one in.
func TestSessionMiddlewareRejectsUnknownPrincipal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT id, tenant_id, role").
		WithArgs(int64(7)).
		WillReturnError(sql.ErrNoRows)

	handler := SessionMiddleware(NewStore(db), nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Principal-ID", "7")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestSessionMiddlewareWithoutHeaderPassesThrough(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	handler := SessionMiddleware(NewStore(db), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := PrincipalFromContext(r.Context())
		assert.False(t, ok)
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestTenantTargetFromVars(t *testing.T) {
	router := mux.NewRouter()
	var target Target
	var targetErr error
	router.HandleFunc("/tenants/{tenant_id}/clients/{owner_id}", func(w http.ResponseWriter, r *http.Request) {
		target, targetErr = TenantTargetFromVars(r)
	})

	req := httptest.NewRequest(http.MethodGet, "/tenants/5/clients/100", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	require.NoError(t, targetErr)
	require.NotNil(t, target.TenantID)
	require.NotNil(t, target.OwnerID)
	assert.Equal(t, int64(5), *target.TenantID)
	assert.Equal(t, int64(100), *target.OwnerID)
}

func TestTenantTargetFromVarsRejectsNonNumeric(t *testing.T) {
	router := mux.NewRouter()
	var targetErr error
	router.HandleFunc("/tenants/{tenant_id}", func(w http.ResponseWriter, r *http.Request) {
		_, targetErr = TenantTargetFromVars(r)
	})

	req := httptest.NewRequest(http.MethodGet, "/tenants/abc", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)

	assert.Error(t, targetErr)
}
