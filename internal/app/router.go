package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/litigo-hq/litigo/internal/admission"
	audithttp "github.com/litigo-hq/litigo/internal/audit/http"
	"github.com/litigo-hq/litigo/internal/auth"
	"github.com/litigo-hq/litigo/internal/guard"
	"github.com/litigo-hq/litigo/internal/impersonate"
	"github.com/litigo-hq/litigo/internal/observability"
	"github.com/litigo-hq/litigo/internal/rbac"
	"github.com/litigo-hq/litigo/internal/tenants"
	"github.com/litigo-hq/litigo/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Guard              guard.Guard
	Limiter            *admission.Limiter
	Policies           admission.PolicySet
	AuthHandler        *auth.Handler
	AuditHandler       *audithttp.Handler
	TenantsHandler     *tenants.Handler
	ImpersonateHandler *impersonate.Handler
	JobsHandler        *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router. Address-keyed admission runs before
// the resolver; principal- and tenant-keyed policies need the resolved
// principal, so they sit between RequireAuth and the permission guards.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	admit := func(policy string, key admission.KeyFunc) func(http.Handler) http.Handler {
		return params.Limiter.Middleware(params.Policies.Get(policy), key, params.Metrics)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Use(admit(admission.PolicyAuth, admission.KeyByIP))
		params.AuthHandler.MountRoutes(r, params.Guard.RequireAuth)
	})

	if params.AuditHandler != nil {
		r.Route("/audit", func(r chi.Router) {
			r.Use(params.Guard.RequireAuth)
			r.Use(admit(admission.PolicyPerTenant, admission.KeyByTenant))
			r.Use(params.Guard.RequirePermission(rbac.PermAuditView))
			params.AuditHandler.MountRoutes(r)
		})
	}

	if params.TenantsHandler != nil {
		r.Route("/platform/tenants", func(r chi.Router) {
			r.Use(params.Guard.RequireAuth)
			r.Use(admit(admission.PolicyAdmin, admission.KeyByIdentity))
			r.Use(params.Guard.RequirePermission(rbac.PermPlatformTenantsView))
			params.TenantsHandler.MountRoutes(r)
		})
	}

	if params.ImpersonateHandler != nil {
		r.Route("/platform/impersonation", func(r chi.Router) {
			r.Use(params.Guard.RequireAuth)
			r.Use(admit(admission.PolicyAdmin, admission.KeyByIdentity))
			params.ImpersonateHandler.MountRoutes(r, params.Guard.RequirePermission(rbac.PermPlatformImpersonate))
		})
	}

	if params.JobsHandler != nil {
		r.Route("/platform/jobs", func(r chi.Router) {
			r.Use(params.Guard.RequireAuth)
			r.Use(admit(admission.PolicyAdmin, admission.KeyByIdentity))
			r.Use(params.Guard.RequireRole(rbac.RolePlatformAdmin))
			params.JobsHandler.MountRoutes(r)
		})
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
