package auth

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/litigo-hq/litigo/internal/audit"
	"github.com/litigo-hq/litigo/internal/platform/httpx"
	"github.com/litigo-hq/litigo/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	recorder  *audit.Recorder
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, recorder *audit.Recorder) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		recorder:  recorder,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router. Logout needs a
// resolved principal, so it runs behind the supplied middleware while login
// stays open.
func (h *Handler) MountRoutes(r chi.Router, authenticated func(http.Handler) http.Handler) {
	r.Post("/login", h.handleLogin)
	r.With(authenticated).Post("/logout", h.handleLogout)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "email and password are required")
		return
	}

	identity, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, shared.ErrInvalidCredentials)
		return
	}

	cred, err := h.service.IssueCredential(identity)
	if err != nil {
		h.logger.Error("issue credential", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	if err := h.recorder.Record(r.Context(), audit.Record{
		ActorID:  identity.ID,
		Action:   audit.ActionLogin,
		Entity:   "identity",
		EntityID: strconv.FormatInt(identity.ID, 10),
		Origin:   r.RemoteAddr,
	}); err != nil {
		h.logger.Warn("record login", slog.Any("error", err))
	}

	httpx.JSON(w, http.StatusOK, loginResponse{Token: cred.Token, ExpiresAt: cred.ExpiresAt})
}

// handleLogout is advisory bookkeeping: bearer credentials expire on their
// own, so logout only audits the intent.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	if err := h.recorder.Record(r.Context(), audit.Record{
		ActorID:  principal.IdentityID,
		TenantID: principal.TenantID,
		Action:   audit.ActionLogout,
		Entity:   "identity",
		EntityID: strconv.FormatInt(principal.IdentityID, 10),
		Origin:   r.RemoteAddr,
	}); err != nil {
		h.logger.Warn("record logout", slog.Any("error", err))
	}
	w.WriteHeader(http.StatusNoContent)
}
