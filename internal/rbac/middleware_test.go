package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestMiddleware(p Principal) Middleware {
	return Middleware{
		Policy:    DefaultPolicy(),
		Principal: func(context.Context) Principal { return p },
	}
}

func serve(m Middleware, action Action) *httptest.ResponseRecorder {
	handler := m.RequireAction(action)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil))
	return rr
}

func TestRequireActionStatuses(t *testing.T) {
	require.Equal(t, http.StatusUnauthorized, serve(newTestMiddleware(anonymous), ActionStatsRead).Code)
	require.Equal(t, http.StatusForbidden, serve(newTestMiddleware(testPrincipal{id: "m", role: RoleMember}), ActionStatsRead).Code)
	require.Equal(t, http.StatusNoContent, serve(newTestMiddleware(testPrincipal{id: "c", role: RoleCommittee}), ActionStatsRead).Code)
}

func TestRequireActionWithoutPrincipalSource(t *testing.T) {
	rr := serve(Middleware{Policy: DefaultPolicy()}, ActionStatsRead)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.JSONEq(t, `{"error":"Non authentifié"}`, rr.Body.String())
}
