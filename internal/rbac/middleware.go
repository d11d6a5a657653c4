package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ladtc/ladtc/internal/platform/httpx"
	"github.com/ladtc/ladtc/internal/shared"
)

// Middleware wires policy checks for HTTP handlers.
type Middleware struct {
	Policy    Policy
	Principal func(ctx context.Context) Principal
	Logger    *slog.Logger
}

// RequireAction ensures the current principal may perform action.
func (m Middleware) RequireAction(action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := m.current(r.Context())
			if m.Policy.Authorize(principal, action).Allowed() {
				next.ServeHTTP(w, r)
				return
			}
			m.deny(w, r, principal, action)
		})
	}
}

// deny writes 401 for anonymous callers and 403 otherwise.
func (m Middleware) deny(w http.ResponseWriter, r *http.Request, principal Principal, action Action) {
	if principal == nil || !principal.IsAuthenticated() {
		httpx.Error(w, http.StatusUnauthorized, shared.MsgUnauthenticated)
		return
	}
	if m.Logger != nil {
		m.Logger.Info("rbac denied",
			slog.String("action", string(action)),
			slog.String("user_id", principal.GetID()),
			slog.String("role", string(principal.GetRole())),
			slog.String("path", r.URL.Path),
		)
	}
	httpx.Error(w, http.StatusForbidden, shared.MsgForbidden)
}

func (m Middleware) current(ctx context.Context) Principal {
	if m.Principal == nil {
		return nil
	}
	return m.Principal(ctx)
}
