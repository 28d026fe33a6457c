package admission

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/litigo-hq/litigo/internal/observability"
	"github.com/litigo-hq/litigo/internal/platform/httpx"
	"github.com/litigo-hq/litigo/internal/shared"
)

// KeyFunc derives the counting key from a request.
type KeyFunc func(r *http.Request) string

// KeyByIP counts per caller address.
func KeyByIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// KeyByIdentity counts per authenticated identity, falling back to the
// caller address before authentication.
func KeyByIdentity(r *http.Request) string {
	if principal, ok := shared.PrincipalFromContext(r.Context()); ok {
		return "id:" + strconv.FormatInt(principal.IdentityID, 10)
	}
	return KeyByIP(r)
}

// KeyByTenant counts per tenant, falling back to the caller address for
// platform-scope principals.
func KeyByTenant(r *http.Request) string {
	if principal, ok := shared.PrincipalFromContext(r.Context()); ok && principal.TenantID != 0 {
		return "tenant:" + strconv.FormatInt(principal.TenantID, 10)
	}
	return KeyByIP(r)
}

// Middleware rejects over-quota requests with 429 before any guard or
// database work runs.
func (l *Limiter) Middleware(policy Policy, key KeyFunc, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision, err := l.Check(r.Context(), key(r), policy)
			if err != nil && l.logger != nil {
				l.logger.Warn("admission store unavailable",
					slog.String("policy", policy.Name),
					slog.Any("error", err),
				)
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			if !decision.Allowed {
				metrics.AdmissionRejectionInc(policy.Name)
				httpx.TooManyRequests(w, decision.RetryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
