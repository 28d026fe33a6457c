package tenants

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/litigo-hq/litigo/internal/platform/httpx"
)

// Handler exposes the platform operator's view of tenants. The router mounts
// it behind the platform.tenants.view permission guard.
type Handler struct {
	logger *slog.Logger
	repo   Repository
}

// NewHandler constructs the tenants handler.
func NewHandler(logger *slog.Logger, repo Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers tenant routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{tenantID}/members", h.members)
}

type tenantDTO struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
}

type memberDTO struct {
	IdentityID int64     `json:"identityId"`
	Roles      []string  `json:"roles"`
	IsActive   bool      `json:"isActive"`
	JoinedAt   time.Time `json:"joinedAt"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	all, err := h.repo.ListTenants(r.Context())
	if err != nil {
		h.logger.Error("list tenants", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]tenantDTO, 0, len(all))
	for _, t := range all {
		out = append(out, tenantDTO{ID: t.ID, Name: t.Name, IsActive: t.IsActive})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) members(w http.ResponseWriter, r *http.Request) {
	tenantID, err := strconv.ParseInt(chi.URLParam(r, "tenantID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid tenant id")
		return
	}
	if _, err := h.repo.GetTenant(r.Context(), tenantID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	members, err := h.repo.ListMembers(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("list members", slog.Any("error", err), slog.Int64("tenant_id", tenantID))
		httpx.RespondError(w, err)
		return
	}
	out := make([]memberDTO, 0, len(members))
	for _, m := range members {
		roles := make([]string, 0, len(m.Roles))
		for _, role := range m.Roles {
			roles = append(roles, string(role))
		}
		out = append(out, memberDTO{IdentityID: m.IdentityID, Roles: roles, IsActive: m.IsActive, JoinedAt: m.JoinedAt})
	}
	httpx.JSON(w, http.StatusOK, out)
}
