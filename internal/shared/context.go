package shared

import (
	"context"

	"github.com/litigo-hq/litigo/internal/rbac"
)

type principalContextKey struct{}

// ContextWithPrincipal stores the resolved principal in context.
func ContextWithPrincipal(ctx context.Context, p rbac.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal placed by the auth guard.
// The second return reports whether resolution ran for this request.
func PrincipalFromContext(ctx context.Context) (rbac.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(rbac.Principal)
	return p, ok
}
