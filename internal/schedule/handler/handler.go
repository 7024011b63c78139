// Package handler wires schedule slot management endpoints to the
// schedule service.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"caresignal/internal/signal/models"
	id "caresignal/pkg/domain"
	"caresignal/pkg/platform/httputil"
	"caresignal/pkg/requestcontext"
)

// Service defines the interface for schedule operations.
type Service interface {
	Upsert(ctx context.Context, subjectID id.SubjectID, medicineID id.MedicineID, timeOfDay string, enabled bool) (*models.ScheduleSlot, error)
	List(ctx context.Context, subjectID id.SubjectID) ([]*models.ScheduleSlot, error)
	Delete(ctx context.Context, subjectID id.SubjectID, medicineID id.MedicineID) error
}

// Handler handles schedule endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a schedule handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts schedule endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Put("/subjects/{subjectID}/slots", h.HandleUpsert)
	r.Get("/subjects/{subjectID}/slots", h.HandleList)
	r.Delete("/subjects/{subjectID}/slots/{medicineID}", h.HandleDelete)
}

// SlotRequest is the HTTP request body for PUT /subjects/{id}/slots.
type SlotRequest struct {
	MedicineID string `json:"medicine_id"`
	TimeOfDay  string `json:"time_of_day"`
	Enabled    bool   `json:"enabled"`
}

// Validate validates the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *SlotRequest) Validate() error {
	r.MedicineID = strings.TrimSpace(r.MedicineID)
	r.TimeOfDay = strings.TrimSpace(r.TimeOfDay)
	_, err := id.ParseMedicineID(r.MedicineID)
	return err
}

// SlotResponse is one slot in schedule responses.
type SlotResponse struct {
	SubjectID  string `json:"subject_id"`
	MedicineID string `json:"medicine_id"`
	TimeOfDay  string `json:"time_of_day"`
	Enabled    bool   `json:"enabled"`
}

// FromSlot converts a domain slot to an HTTP response.
func FromSlot(slot *models.ScheduleSlot) *SlotResponse {
	return &SlotResponse{
		SubjectID:  slot.SubjectID.String(),
		MedicineID: slot.MedicineID.String(),
		TimeOfDay:  slot.TimeOfDay,
		Enabled:    slot.Enabled,
	}
}

// HandleUpsert handles PUT /subjects/{subjectID}/slots requests.
func (h *Handler) HandleUpsert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[SlotRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	slot, err := h.service.Upsert(ctx, subjectID, id.MedicineID(req.MedicineID), req.TimeOfDay, req.Enabled)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to save schedule slot",
			"request_id", requestID,
			"subject_id", subjectID.String(),
			"medicine_id", req.MedicineID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "schedule slot saved",
		"request_id", requestID,
		"subject_id", subjectID.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, FromSlot(slot))
}

// HandleList handles GET /subjects/{subjectID}/slots requests.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	slots, err := h.service.List(ctx, subjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	out := make([]*SlotResponse, 0, len(slots))
	for _, slot := range slots {
		out = append(out, FromSlot(slot))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string][]*SlotResponse{"slots": out})
}

// HandleDelete handles DELETE /subjects/{subjectID}/slots/{medicineID}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	medicineID, err := id.ParseMedicineID(chi.URLParam(r, "medicineID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.service.Delete(ctx, subjectID, medicineID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
