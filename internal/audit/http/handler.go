package http

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/litigo-hq/litigo/internal/audit"
	"github.com/litigo-hq/litigo/internal/platform/httpx"
	"github.com/litigo-hq/litigo/internal/shared"
)

// Handler exposes the audit timeline over HTTP. Routes are mounted behind
// the audit.view permission guard by the router.
type Handler struct {
	logger  *slog.Logger
	service *audit.Service
}

// NewHandler constructs the audit handler.
func NewHandler(logger *slog.Logger, service *audit.Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers audit routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.timeline)
	r.Get("/export.csv", h.exportCSV)
}

type timelineResponse struct {
	Rows   []timelineRowDTO `json:"rows"`
	Paging audit.PagingInfo `json:"paging"`
}

type timelineRowDTO struct {
	At       time.Time `json:"at"`
	ActorID  int64     `json:"actorId"`
	TenantID int64     `json:"tenantId,omitempty"`
	Action   string    `json:"action"`
	Entity   string    `json:"entity"`
	EntityID string    `json:"entityId"`
	Origin   string    `json:"origin,omitempty"`
}

func (h *Handler) timeline(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Timeline(r.Context(), filtersFromQuery(r))
	if err != nil {
		h.logger.Error("audit timeline", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	rows := make([]timelineRowDTO, 0, len(result.Rows))
	for _, row := range result.Rows {
		rows = append(rows, timelineRowDTO(row))
	}
	httpx.JSON(w, http.StatusOK, timelineResponse{Rows: rows, Paging: result.Paging})
}

func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.Export(r.Context(), filtersFromQuery(r))
	if err != nil {
		h.logger.Error("audit export", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audit.csv"`)
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"occurred_at", "actor_id", "tenant_id", "action", "entity", "entity_id", "origin"})
	for _, row := range rows {
		_ = writer.Write([]string{
			row.At.UTC().Format(time.RFC3339),
			strconv.FormatInt(row.ActorID, 10),
			strconv.FormatInt(row.TenantID, 10),
			row.Action,
			row.Entity,
			row.EntityID,
			row.Origin,
		})
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		h.logger.Error("audit export flush", slog.Any("error", err))
	}
}

// filtersFromQuery parses the timeline filters. Tenant members are pinned to
// their own tenant regardless of the query; only platform principals may
// filter across tenants.
func filtersFromQuery(r *http.Request) audit.TimelineFilters {
	q := r.URL.Query()
	filters := audit.TimelineFilters{Action: q.Get("action")}
	if v, err := time.Parse(time.RFC3339, q.Get("from")); err == nil {
		filters.From = v
	}
	if v, err := time.Parse(time.RFC3339, q.Get("to")); err == nil {
		filters.To = v
	}
	if v, err := strconv.ParseInt(q.Get("actor"), 10, 64); err == nil {
		filters.ActorID = v
	}
	if v, err := strconv.ParseInt(q.Get("tenant"), 10, 64); err == nil {
		filters.TenantID = v
	}
	if v, err := strconv.Atoi(q.Get("page")); err == nil {
		filters.Page = v
	}
	if v, err := strconv.Atoi(q.Get("page_size")); err == nil {
		filters.PageSize = v
	}
	if principal, ok := shared.PrincipalFromContext(r.Context()); ok && !principal.IsPlatform() {
		filters.TenantID = principal.TenantID
	}
	return filters
}
