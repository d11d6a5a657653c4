package audithttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/ladtc/ladtc/internal/auth"
	"github.com/ladtc/ladtc/internal/platform/httpx"
	"github.com/ladtc/ladtc/internal/rbac"
)

const rateLimit = 10
const rateWindow = time.Minute

// MountRoutes registers the audit timeline and CSV export under /api/admin/audit.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Error(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
		}),
	)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAction(rbac.ActionAuditRead))
		r.Get("/", h.handleTimeline)
		r.With(limiter).Get("/export.csv", h.handleExport)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if identity := auth.IdentityFromContext(r.Context()); identity.IsAuthenticated() {
		return "user:" + identity.UserID, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
