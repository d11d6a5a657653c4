package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ladtc/ladtc/internal/auth"
	"github.com/ladtc/ladtc/internal/guard"
	"github.com/ladtc/ladtc/internal/rbac"
	"github.com/ladtc/ladtc/internal/shared"
	"github.com/ladtc/ladtc/jobs"
)

type staticSessions map[string]auth.SessionRecord

func (s staticSessions) LookupSession(_ context.Context, token string) (auth.SessionRecord, error) {
	rec, ok := s[token]
	if !ok {
		return auth.SessionRecord{}, shared.ErrNotFound
	}
	return rec, nil
}

func newTestApp(t *testing.T) http.Handler {
	t.Helper()
	expires := time.Now().Add(time.Hour)
	store := staticSessions{
		"admin-token":  {Token: "admin-token", ExpiresAt: expires, UserID: "u-admin", Name: "Alice", Role: "ADMIN"},
		"member-token": {Token: "member-token", ExpiresAt: expires, UserID: "u-member", Name: "Bob", Role: "MEMBER"},
	}
	cfg := &Config{AppEnv: "test", LoginPath: "/auth/login", DeniedPath: "/access-denied"}
	resolver := auth.NewResolver(store, nil)
	extractor := auth.NewCredentialExtractor(auth.DefaultCookieNames(), "")
	rbacMW := rbac.Middleware{Policy: rbac.DefaultPolicy(), Principal: auth.PrincipalFromContext}

	return NewRouter(RouterParams{
		Config: cfg,
		Guard: guard.New(guard.Config{
			Policy:      guard.DefaultRoutePolicy(),
			Resolver:    resolver,
			Credentials: extractor,
			LoginPath:   cfg.LoginPath,
			DeniedPath:  cfg.DeniedPath,
		}),
		RBACMiddleware: rbacMW,
		AuthHandler:    auth.NewHandler(nil, resolver, extractor),
		JobHandler:     jobs.NewHandler(nil, nil),
	})
}

func serve(handler http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: auth.CookieSessionToken, Value: token})
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthzIsPublic(t *testing.T) {
	rec := serve(newTestApp(t), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestAnonymousAdminPageRedirectsToLogin(t *testing.T) {
	rec := serve(newTestApp(t), http.MethodGet, "/admin/anything", "")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/auth/login?callbackUrl=/admin/anything", rec.Header().Get("Location"))
}

func TestJobsHealthIsAdminOnly(t *testing.T) {
	app := newTestApp(t)

	rec := serve(app, http.MethodGet, "/api/admin/jobs/health", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(app, http.MethodGet, "/api/admin/jobs/health", "member-token")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := map[string]string{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, shared.MsgForbidden, body["error"])

	rec = serve(app, http.MethodGet, "/api/admin/jobs/health", "admin-token")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"queue":"`+jobs.QueueDefault+`"`)
}

func TestSessionEndpointReportsIdentity(t *testing.T) {
	app := newTestApp(t)

	rec := serve(app, http.MethodGet, "/api/auth/session", "member-token")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		User *struct {
			ID   string `json:"id"`
			Role string `json:"role"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.User)
	assert.Equal(t, "u-member", body.User.ID)
	assert.Equal(t, "MEMBER", body.User.Role)

	rec = serve(app, http.MethodGet, "/api/auth/session", "unknown")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":null}`, rec.Body.String())
}

func TestAccessDeniedPage(t *testing.T) {
	rec := serve(newTestApp(t), http.MethodGet, "/access-denied", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
