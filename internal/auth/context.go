package auth

import (
	"context"

	"github.com/ladtc/ladtc/internal/rbac"
)

type identityContextKey struct{}

// ContextWithIdentity stores the resolved identity in context.
func ContextWithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the identity, defaulting to Anonymous.
func IdentityFromContext(ctx context.Context) Identity {
	identity, ok := ctx.Value(identityContextKey{}).(Identity)
	if !ok {
		return Anonymous
	}
	return identity
}

// PrincipalFromContext adapts IdentityFromContext for rbac.Middleware.
func PrincipalFromContext(ctx context.Context) rbac.Principal {
	return IdentityFromContext(ctx)
}
