package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/ladtc/ladtc/internal/audit/http"
	"github.com/ladtc/ladtc/internal/auth"
	"github.com/ladtc/ladtc/internal/guard"
	"github.com/ladtc/ladtc/internal/membership"
	"github.com/ladtc/ladtc/internal/observability"
	"github.com/ladtc/ladtc/internal/platform/httpx"
	"github.com/ladtc/ladtc/internal/rbac"
	"github.com/ladtc/ladtc/internal/shared"
	"github.com/ladtc/ladtc/internal/users"
	"github.com/ladtc/ladtc/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	Guard             *guard.Guard
	RBACMiddleware    rbac.Middleware
	AuthHandler       *auth.Handler
	MembershipHandler *membership.Handler
	UsersHandler      *users.Handler
	AuditHandler      *audithttp.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Guard:   params.Guard,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	deniedPath := guard.DefaultDeniedPath
	if params.Config != nil && params.Config.DeniedPath != "" {
		deniedPath = params.Config.DeniedPath
	}
	r.Get(deniedPath, func(w http.ResponseWriter, r *http.Request) {
		httpx.Error(w, http.StatusForbidden, shared.MsgForbidden)
	})

	if params.AuthHandler != nil {
		r.Route("/api/auth", params.AuthHandler.MountRoutes)
	}
	if params.MembershipHandler != nil {
		r.Route("/api/memberships", params.MembershipHandler.MountSelfRoutes)
		r.Route("/api/admin/memberships", params.MembershipHandler.MountAdminRoutes)
		r.Route("/api/admin/stats", params.MembershipHandler.MountStatsRoutes)
	}
	if params.UsersHandler != nil {
		r.Route("/api/users", params.UsersHandler.MountSelfRoutes)
		r.Route("/api/admin/users", params.UsersHandler.MountAdminRoutes)
	}
	if params.AuditHandler != nil {
		r.Route("/api/admin/audit", params.AuditHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/api/admin/jobs", func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireAction(rbac.ActionJobsView))
			params.JobHandler.MountRoutes(r)
		})
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
