// Package guard composes the per-request authorization pipeline. Guards nest:
// RequireAuth resolves the principal exactly once and stores it in context;
// every outer guard adds a single check and short-circuits to a structured
// denial the moment its precondition fails. The wrapped handler only runs
// from the fully authorized state.
package guard

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/litigo-hq/litigo/internal/auth"
	"github.com/litigo-hq/litigo/internal/observability"
	"github.com/litigo-hq/litigo/internal/platform/httpx"
	"github.com/litigo-hq/litigo/internal/rbac"
	"github.com/litigo-hq/litigo/internal/shared"
)

// Resolver is the credential-to-principal dependency of the guard layer.
// *auth.Resolver satisfies it; tests substitute stubs.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (rbac.Principal, error)
}

// ResourceRef locates the resource a request targets for per-record checks.
type ResourceRef struct {
	OwnerID  int64
	TenantID int64
}

// ResourceExtractor derives the resource reference from the request, usually
// from URL params or a preliminary lookup.
type ResourceExtractor func(r *http.Request) (ResourceRef, error)

// Guard builds the authorization middleware chain.
type Guard struct {
	Resolver  Resolver
	Evaluator *rbac.Evaluator
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

// RequireAuth resolves the bearer credential and stores the principal in the
// request context. It is the innermost guard; all others rely on it.
func (g Guard) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := g.Resolver.Resolve(r.Context(), bearerToken(r))
		if err != nil {
			g.denyResolution(w, r, err)
			return
		}
		if !principal.Active {
			g.deny(w, r, Denial{Code: ReasonAccountInactive})
			return
		}
		ctx := shared.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole ensures the principal's role sits at or above the given role.
func (g Guard) RequireRole(role rbac.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				g.deny(w, r, Denial{Code: ReasonUnauthenticated})
				return
			}
			if !g.Evaluator.HasRoleOrHigher(principal, role) {
				g.deny(w, r, Denial{Code: ReasonRoleDenied, Detail: "requires role " + string(role) + " or higher"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission ensures the principal holds every listed permission.
func (g Guard) RequirePermission(perms ...rbac.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				g.deny(w, r, Denial{Code: ReasonUnauthenticated})
				return
			}
			for _, perm := range perms {
				if !g.Evaluator.HasPermission(principal, perm) {
					g.deny(w, r, Denial{Code: ReasonPermissionDenied, Detail: "missing permission " + string(perm)})
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyPermission ensures the principal holds at least one permission.
func (g Guard) RequireAnyPermission(perms ...rbac.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				g.deny(w, r, Denial{Code: ReasonUnauthenticated})
				return
			}
			if !g.Evaluator.HasAnyPermission(principal, perms...) {
				g.deny(w, r, Denial{Code: ReasonPermissionDenied, Detail: "missing one of the required permissions"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireResourceAccess runs the per-record check against the resource the
// extractor locates. Extraction failure denies rather than allowing.
func (g Guard) RequireResourceAccess(extract ResourceExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				g.deny(w, r, Denial{Code: ReasonUnauthenticated})
				return
			}
			ref, err := extract(r)
			if err != nil {
				g.deny(w, r, Denial{Code: ReasonResourceDenied})
				return
			}
			if !g.Evaluator.CanAccessResource(principal, ref.OwnerID, ref.TenantID) {
				g.deny(w, r, Denial{Code: ReasonResourceDenied})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// denyResolution maps resolver failures onto denial codes. Unexpected errors
// (storage outages) are server faults, not denials.
func (g Guard) denyResolution(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingCredential), errors.Is(err, auth.ErrInvalidCredential):
		g.deny(w, r, Denial{Code: ReasonUnauthenticated})
	case errors.Is(err, auth.ErrStaleCredential):
		g.deny(w, r, Denial{Code: ReasonStaleCredential, Detail: "please authenticate again"})
	case errors.Is(err, auth.ErrInactiveAccount):
		g.deny(w, r, Denial{Code: ReasonAccountInactive})
	default:
		if g.Logger != nil {
			g.Logger.Error("resolve principal", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func (g Guard) deny(w http.ResponseWriter, r *http.Request, d Denial) {
	if g.Metrics != nil {
		g.Metrics.DenialInc(string(d.Code))
	}
	if g.Logger != nil {
		g.Logger.Warn("request denied",
			slog.String("reason", string(d.Code)),
			slog.String("path", r.URL.Path),
		)
	}
	httpx.ProblemCode(w, d.Status(), d.Title(), string(d.Code), d.Detail)
}

// bearerToken extracts the credential from the Authorization header. An
// empty result resolves to the missing-credential failure.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
