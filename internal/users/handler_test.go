package users

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ladtc/ladtc/internal/auth"
	"github.com/ladtc/ladtc/internal/rbac"
	"github.com/ladtc/ladtc/internal/shared"
)

func newTestRouter(svc *Service, identity auth.Identity) http.Handler {
	h := NewHandler(nil, svc, rbac.Middleware{Policy: rbac.DefaultPolicy(), Principal: auth.PrincipalFromContext})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), identity)))
		})
	})
	r.Route("/api/admin/users", h.MountAdminRoutes)
	r.Route("/api/users", h.MountSelfRoutes)
	return r
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	payload := map[string]any{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return rec, payload
}

func TestOwnerMemberCanUpdateOwnImage(t *testing.T) {
	svc, repo, audit := newTestService(t)
	rec, body := doRequest(t, newTestRouter(svc, member), http.MethodPut, "/api/users/member-1/image",
		`{"image":"https://cdn.example.org/bob.png"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://cdn.example.org/bob.png", body["image"])
	stored, _ := repo.Get(t.Context(), "member-1")
	assert.Equal(t, "https://cdn.example.org/bob.png", stored.Image)
	assert.Len(t, audit.calls, 1)
}

func TestNonOwnerMemberCannotUpdateImage(t *testing.T) {
	svc, repo, _ := newTestService(t)
	rec, body := doRequest(t, newTestRouter(svc, member), http.MethodPut, "/api/users/coach-1/image",
		`{"image":"https://cdn.example.org/x.png"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, shared.MsgForbidden, body["error"])
	stored, _ := repo.Get(t.Context(), "coach-1")
	assert.Empty(t, stored.Image)
}

func TestImageRequiresURL(t *testing.T) {
	svc, _, _ := newTestService(t)
	rec, body := doRequest(t, newTestRouter(svc, member), http.MethodPut, "/api/users/member-1/image", `{"image":"not a url"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, shared.MsgValidation, body["error"])
}

func TestSelfRoutesRequireSession(t *testing.T) {
	svc, _, _ := newTestService(t)
	rec, body := doRequest(t, newTestRouter(svc, auth.Anonymous), http.MethodGet, "/api/users/member-1/profile", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, shared.MsgUnauthenticated, body["error"])
}

func TestProfileRoundTrip(t *testing.T) {
	svc, _, _ := newTestService(t)
	router := newTestRouter(svc, member)

	rec, body := doRequest(t, router, http.MethodPatch, "/api/users/member-1/profile", `{"name":"Robert"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Robert", body["name"])

	rec, body = doRequest(t, router, http.MethodGet, "/api/users/member-1/profile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Robert", body["name"])
	assert.Equal(t, "MEMBER", body["role"])
}

func TestAdminListUsers(t *testing.T) {
	svc, _, _ := newTestService(t)

	rec, body := doRequest(t, newTestRouter(svc, admin), http.MethodGet, "/api/admin/users/?role=coach", "")
	require.Equal(t, http.StatusOK, rec.Code)
	items, ok := body["items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, "coach-1", items[0].(map[string]any)["id"])

	rec, _ = doRequest(t, newTestRouter(svc, coach), http.MethodGet, "/api/admin/users/", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminUpdateRole(t *testing.T) {
	svc, _, audit := newTestService(t)
	router := newTestRouter(svc, admin)

	rec, body := doRequest(t, router, http.MethodPatch, "/api/admin/users/member-1/role",
		`{"role":"COMMITTEE","committeeRole":"TREASURER"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "COMMITTEE", body["role"])
	assert.Equal(t, "TREASURER", body["committeeRole"])
	require.Len(t, audit.calls, 1)

	rec, _ = doRequest(t, router, http.MethodPatch, "/api/admin/users/member-1/role", `{"role":"OWNER"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = doRequest(t, router, http.MethodPatch, "/api/admin/users/admin-1/role", `{"role":"MEMBER"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, body = doRequest(t, router, http.MethodPatch, "/api/admin/users/ghost/role", `{"role":"COACH"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, shared.MsgNotFound, body["error"])
}

func TestMemberCannotChangeRoles(t *testing.T) {
	svc, repo, _ := newTestService(t)
	rec, _ := doRequest(t, newTestRouter(svc, member), http.MethodPatch, "/api/admin/users/member-1/role", `{"role":"ADMIN"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	stored, _ := repo.Get(t.Context(), "member-1")
	assert.Equal(t, rbac.RoleMember, stored.Role)
}
