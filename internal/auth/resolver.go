package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ladtc/ladtc/internal/rbac"
	"github.com/ladtc/ladtc/internal/shared"
)

// Resolver turns an opaque session token into an Identity.
type Resolver struct {
	store  SessionStore
	logger *slog.Logger
	now    func() time.Time
}

// NewResolver constructs a Resolver over store.
func NewResolver(store SessionStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger, now: time.Now}
}

// Resolve performs a single store lookup. Unknown and expired tokens yield
// Anonymous with a nil error; a store failure yields Anonymous together with
// shared.ErrSessionStoreUnavailable so callers can fail closed.
func (r *Resolver) Resolve(ctx context.Context, rawCredential string) (Identity, error) {
	token := strings.TrimSpace(rawCredential)
	if token == "" {
		return Anonymous, nil
	}
	if r == nil || r.store == nil {
		return Anonymous, shared.ErrSessionStoreUnavailable
	}

	rec, err := r.store.LookupSession(ctx, token)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Anonymous, nil
		}
		if !errors.Is(err, shared.ErrSessionStoreUnavailable) {
			err = fmt.Errorf("%w: %v", shared.ErrSessionStoreUnavailable, err)
		}
		return Anonymous, err
	}

	if rec.ExpiresAt.IsZero() || !r.now().Before(rec.ExpiresAt) {
		return Anonymous, nil
	}
	if strings.TrimSpace(rec.UserID) == "" {
		return Anonymous, nil
	}

	role, ok := rbac.ParseRole(rec.Role)
	if !ok {
		r.logger.Warn("unrecognised role, using least privilege",
			slog.String("user_id", rec.UserID),
			slog.String("role", rec.Role),
		)
	}
	return NewIdentity(rec.UserID, rec.Name, rec.Email, role, strings.TrimSpace(rec.CommitteeRole)), nil
}
