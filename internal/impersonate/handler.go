package impersonate

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/litigo-hq/litigo/internal/platform/httpx"
	"github.com/litigo-hq/litigo/internal/rbac"
	"github.com/litigo-hq/litigo/internal/shared"
)

// Handler wires HTTP endpoints for impersonation sessions.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		validator: validator.New(),
	}
}

// MountRoutes registers impersonation routes on the provided router. Starting
// a session takes the platform guard; ending one only needs the delegated
// principal, which no longer carries platform permissions.
func (h *Handler) MountRoutes(r chi.Router, platformOnly func(http.Handler) http.Handler) {
	r.With(platformOnly).Post("/start", h.handleStart)
	r.Post("/end", h.handleEnd)
}

type startRequest struct {
	IdentityID int64  `json:"identityId" validate:"required,gt=0"`
	TenantID   int64  `json:"tenantId" validate:"required,gt=0"`
	Reason     string `json:"reason" validate:"required,min=3"`
	TicketRef  string `json:"ticketRef" validate:"omitempty,max=128"`
}

type startResponse struct {
	Token     string    `json:"token"`
	Ticket    string    `json:"ticket"`
	TenantID  int64     `json:"tenantId"`
	Role      rbac.Role `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	var req startRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "identityId, tenantId and reason are required")
		return
	}

	grant, err := h.service.Start(r.Context(), StartParams{
		Actor:     principal,
		TargetID:  req.IdentityID,
		TenantID:  req.TenantID,
		Reason:    req.Reason,
		TicketRef: req.TicketRef,
		Origin:    r.RemoteAddr,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotPlatformOperator):
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "impersonation requires a platform operator")
		case errors.Is(err, ErrReasonRequired):
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "reason is required")
		case errors.Is(err, ErrTargetUnavailable):
			httpx.Problem(w, http.StatusUnprocessableEntity, "Unprocessable", "target has no usable membership in tenant")
		default:
			h.logger.Error("start impersonation", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		}
		return
	}

	httpx.JSON(w, http.StatusOK, startResponse{
		Token:     grant.Token,
		Ticket:    grant.Ticket,
		TenantID:  grant.TenantID,
		Role:      grant.Role,
		ExpiresAt: grant.ExpiresAt,
	})
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	if err := h.service.End(r.Context(), principal, r.RemoteAddr); err != nil {
		if errors.Is(err, ErrNotImpersonating) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "session is not delegated")
			return
		}
		h.logger.Error("end impersonation", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
