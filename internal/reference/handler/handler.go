// Package handler exposes reference image management endpoints.
package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"caresignal/internal/reference"
	id "caresignal/pkg/domain"
	dErrors "caresignal/pkg/domain-errors"
	"caresignal/pkg/platform/httputil"
	"caresignal/pkg/requestcontext"
)

// Handler handles reference image endpoints.
type Handler struct {
	store  reference.Store
	logger *slog.Logger
}

// New constructs a reference handler with its dependencies.
func New(store reference.Store, logger *slog.Logger) *Handler {
	return &Handler{
		store:  store,
		logger: logger,
	}
}

// Register mounts reference image endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Put("/subjects/{subjectID}/medicines/{medicineID}/references", h.HandleReplace)
	r.Get("/subjects/{subjectID}/medicines/{medicineID}/references", h.HandleList)
	r.Delete("/subjects/{subjectID}/medicines/{medicineID}/references", h.HandleDelete)
}

// ReferencesRequest is the HTTP request body for PUT .../references.
type ReferencesRequest struct {
	URLs []string `json:"urls"`
}

// Validate validates the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
func (r *ReferencesRequest) Validate() error {
	if len(r.URLs) == 0 {
		return dErrors.New(dErrors.CodeBadRequest, "at least one reference URL is required")
	}
	for i, raw := range r.URLs {
		r.URLs[i] = strings.TrimSpace(raw)
		if r.URLs[i] == "" {
			return dErrors.New(dErrors.CodeBadRequest, "reference URL must not be empty")
		}
		if _, err := url.ParseRequestURI(r.URLs[i]); err != nil {
			return dErrors.New(dErrors.CodeBadRequest, "reference URL is not a valid URL")
		}
	}
	return nil
}

// ReferencesResponse is the HTTP response for reference endpoints.
type ReferencesResponse struct {
	SubjectID  string   `json:"subject_id"`
	MedicineID string   `json:"medicine_id"`
	URLs       []string `json:"urls"`
}

// HandleReplace handles PUT /subjects/{subjectID}/medicines/{medicineID}/references.
func (h *Handler) HandleReplace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	subjectID, medicineID, err := pathIDs(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[ReferencesRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.store.Replace(ctx, subjectID, medicineID, req.URLs); err != nil {
		h.logger.ErrorContext(ctx, "failed to store reference images",
			"request_id", requestID,
			"subject_id", subjectID.String(),
			"medicine_id", medicineID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "reference images stored",
		"request_id", requestID,
		"subject_id", subjectID.String(),
		"medicine_id", medicineID.String(),
		"count", len(req.URLs),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, &ReferencesResponse{
		SubjectID:  subjectID.String(),
		MedicineID: medicineID.String(),
		URLs:       req.URLs,
	})
}

// HandleList handles GET /subjects/{subjectID}/medicines/{medicineID}/references.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subjectID, medicineID, err := pathIDs(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	urls, err := h.store.References(ctx, subjectID, medicineID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if urls == nil {
		urls = []string{}
	}
	httputil.WriteJSON(w, http.StatusOK, &ReferencesResponse{
		SubjectID:  subjectID.String(),
		MedicineID: medicineID.String(),
		URLs:       urls,
	})
}

// HandleDelete handles DELETE /subjects/{subjectID}/medicines/{medicineID}/references.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subjectID, medicineID, err := pathIDs(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if err := h.store.Delete(ctx, subjectID, medicineID); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathIDs(r *http.Request) (id.SubjectID, id.MedicineID, error) {
	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		return id.SubjectID{}, "", err
	}
	medicineID, err := id.ParseMedicineID(chi.URLParam(r, "medicineID"))
	if err != nil {
		return id.SubjectID{}, "", err
	}
	return subjectID, medicineID, nil
}
