package guard

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ladtc/ladtc/internal/auth"
	"github.com/ladtc/ladtc/internal/observability"
	"github.com/ladtc/ladtc/internal/platform/httpx"
	"github.com/ladtc/ladtc/internal/shared"
)

// Default redirect targets for UI routes.
const (
	DefaultLoginPath  = "/auth/login"
	DefaultDeniedPath = "/access-denied"
)

// Resolver resolves a raw session credential.
type Resolver interface {
	Resolve(ctx context.Context, rawCredential string) (auth.Identity, error)
}

// CredentialSource pulls the raw session credential out of a request.
type CredentialSource interface {
	Extract(r *http.Request) string
}

// Config aggregates the guard's collaborators.
type Config struct {
	Policy      RoutePolicy
	Resolver    Resolver
	Credentials CredentialSource
	LoginPath   string
	DeniedPath  string
	Logger      *slog.Logger
	Metrics     *observability.Metrics
}

// Guard intercepts requests before they reach handlers.
type Guard struct {
	policy      RoutePolicy
	resolver    Resolver
	credentials CredentialSource
	loginPath   string
	deniedPath  string
	logger      *slog.Logger
	metrics     *observability.Metrics
}

// New builds a Guard.
func New(cfg Config) *Guard {
	g := &Guard{
		policy:      cfg.Policy,
		resolver:    cfg.Resolver,
		credentials: cfg.Credentials,
		loginPath:   cfg.LoginPath,
		deniedPath:  cfg.DeniedPath,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
	}
	if g.loginPath == "" {
		g.loginPath = DefaultLoginPath
	}
	if g.deniedPath == "" {
		g.deniedPath = DefaultDeniedPath
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// Middleware enforces the route policy. Public paths pass through without a
// session lookup; protected paths fail closed.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rule, _ := g.policy.Classify(r.URL.Path)
		surface := string(rule.Surface)
		if !rule.Requirement.Protected() {
			g.metrics.ObserveGuardDecision(observability.GuardPublic, surface)
			next.ServeHTTP(w, r)
			return
		}

		identity := g.resolve(r, rule)
		if !identity.IsAuthenticated() {
			g.metrics.ObserveGuardDecision(observability.GuardUnauthenticated, surface)
			g.unauthenticated(w, r, rule)
			return
		}
		if !rule.Requirement.Satisfied(identity) {
			g.metrics.ObserveGuardDecision(observability.GuardForbidden, surface)
			g.logger.Info("route guard denied",
				slog.String("path", r.URL.Path),
				slog.String("rule", rule.Prefix),
				slog.String("user_id", identity.UserID),
				slog.String("role", string(identity.Role)),
			)
			g.forbidden(w, r, rule)
			return
		}

		g.metrics.ObserveGuardDecision(observability.GuardAllowed, surface)
		next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), identity)))
	})
}

func (g *Guard) resolve(r *http.Request, rule Rule) auth.Identity {
	if g.resolver == nil || g.credentials == nil {
		g.metrics.ObserveGuardDecision(observability.GuardStoreError, string(rule.Surface))
		g.logger.Error("session store unavailable", slog.String("path", r.URL.Path), slog.String("reason", "resolver not configured"))
		return auth.Anonymous
	}
	identity, err := g.resolver.Resolve(r.Context(), g.credentials.Extract(r))
	if err != nil {
		g.metrics.ObserveGuardDecision(observability.GuardStoreError, string(rule.Surface))
		g.logger.Error("session store unavailable", slog.Any("error", err), slog.String("path", r.URL.Path))
		return auth.Anonymous
	}
	return identity
}

func (g *Guard) unauthenticated(w http.ResponseWriter, r *http.Request, rule Rule) {
	if rule.Surface == SurfaceAPI {
		httpx.Error(w, http.StatusUnauthorized, shared.MsgUnauthenticated)
		return
	}
	http.Redirect(w, r, LoginRedirect(g.loginPath, r.URL.Path), http.StatusSeeOther)
}

func (g *Guard) forbidden(w http.ResponseWriter, r *http.Request, rule Rule) {
	if rule.Surface == SurfaceAPI {
		httpx.Error(w, http.StatusForbidden, shared.MsgForbidden)
		return
	}
	http.Redirect(w, r, g.deniedPath, http.StatusSeeOther)
}

// LoginRedirect builds the login URL carrying path as callbackUrl. Slashes
// stay literal so the callback reads as the original path.
func LoginRedirect(loginPath, path string) string {
	callback := strings.ReplaceAll(url.QueryEscape(path), "%2F", "/")
	return loginPath + "?callbackUrl=" + callback
}
