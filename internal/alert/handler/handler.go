// Package handler exposes the caregiver-facing alert listing endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"caresignal/internal/alert"
	id "caresignal/pkg/domain"
	"caresignal/pkg/platform/httputil"
	"caresignal/pkg/requestcontext"
)

const defaultHistoryLimit = 50

// Manager is the lifecycle surface the handler needs.
type Manager interface {
	Alerts(ctx context.Context, subjectID id.SubjectID, limit int) ([]*alert.Alert, error)
}

// Handler handles alert endpoints.
type Handler struct {
	manager Manager
	logger  *slog.Logger
}

// New constructs an alert handler with its dependencies.
func New(manager Manager, logger *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		logger:  logger,
	}
}

// Register mounts alert endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/subjects/{subjectID}/alerts", h.HandleList)
}

// HandleList handles GET /subjects/{subjectID}/alerts requests,
// newest first. ?limit caps the page; ?status=open filters to open
// alerts.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	alerts, err := h.manager.Alerts(ctx, subjectID, limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list alerts",
			"request_id", requestcontext.RequestID(ctx),
			"subject_id", subjectID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	openOnly := r.URL.Query().Get("status") == "open"
	out := make([]*AlertResponse, 0, len(alerts))
	for _, a := range alerts {
		if openOnly && !a.IsOpen() {
			continue
		}
		out = append(out, FromAlert(a))
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Alerts: out})
}

// ListResponse is the HTTP response for GET /subjects/{id}/alerts.
type ListResponse struct {
	Alerts []*AlertResponse `json:"alerts"`
}

// AlertResponse is one alert in the listing.
type AlertResponse struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Status     string     `json:"status"`
	Message    string     `json:"message"`
	OpenedAt   time.Time  `json:"opened_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// FromAlert converts a domain alert to an HTTP response.
func FromAlert(a *alert.Alert) *AlertResponse {
	return &AlertResponse{
		ID:         a.ID.String(),
		Kind:       string(a.Kind),
		Status:     string(a.Status),
		Message:    a.Message,
		OpenedAt:   a.OpenedAt,
		ResolvedAt: a.ResolvedAt,
	}
}
