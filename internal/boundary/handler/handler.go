// Package handler wires boundary management endpoints to the boundary
// service.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"caresignal/internal/signal/models"
	id "caresignal/pkg/domain"
	"caresignal/pkg/platform/httputil"
	"caresignal/pkg/requestcontext"
)

// Service defines the interface for boundary operations.
type Service interface {
	Replace(ctx context.Context, subjectID id.SubjectID, centerLat, centerLng, radiusMeters float64) (*models.Boundary, error)
	Get(ctx context.Context, subjectID id.SubjectID) (*models.Boundary, error)
	Delete(ctx context.Context, subjectID id.SubjectID) error
}

// Handler handles boundary endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a boundary handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts boundary endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Put("/subjects/{subjectID}/boundary", h.HandleReplace)
	r.Get("/subjects/{subjectID}/boundary", h.HandleGet)
	r.Delete("/subjects/{subjectID}/boundary", h.HandleDelete)
}

// HandleReplace handles PUT /subjects/{subjectID}/boundary requests.
// Replace-whole-record: center and radius are installed together so
// they can never briefly disagree.
func (h *Handler) HandleReplace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[BoundaryRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	boundary, err := h.service.Replace(ctx, subjectID, req.CenterLat, req.CenterLng, req.RadiusMeters)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to replace boundary",
			"request_id", requestID,
			"subject_id", subjectID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromBoundary(boundary))
}

// HandleGet handles GET /subjects/{subjectID}/boundary requests.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	boundary, err := h.service.Get(ctx, subjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromBoundary(boundary))
}

// HandleDelete handles DELETE /subjects/{subjectID}/boundary requests.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Delete(ctx, subjectID); err != nil {
		h.logger.ErrorContext(ctx, "failed to delete boundary",
			"request_id", requestcontext.RequestID(ctx),
			"subject_id", subjectID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
