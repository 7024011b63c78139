// Package handler wires signal ingress and subject status endpoints to
// the lifecycle manager.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"caresignal/internal/fanout"
	"caresignal/internal/lifecycle"
	"caresignal/internal/signal/models"
	id "caresignal/pkg/domain"
	dErrors "caresignal/pkg/domain-errors"
	"caresignal/pkg/platform/httputil"
	"caresignal/pkg/requestcontext"
)

// Manager is the lifecycle surface the handler needs.
type Manager interface {
	ApplyPing(ctx context.Context, ping *models.LocationPing) (*lifecycle.PingOutcome, error)
	Status(ctx context.Context, subjectID id.SubjectID) (*lifecycle.SubjectStatus, error)
}

// Handler handles signal ingress and subject status endpoints.
type Handler struct {
	manager Manager
	bus     fanout.Bus
	logger  *slog.Logger
}

// New constructs a signal handler with its dependencies.
func New(manager Manager, bus fanout.Bus, logger *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		bus:     bus,
		logger:  logger,
	}
}

// Register mounts signal endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/signals/location", h.HandleLocationPing)
	r.Get("/subjects/{subjectID}/status", h.HandleStatus)
}

// RegisterStreaming mounts the SSE endpoint. Kept separate so the
// caller can skip the request-timeout middleware for it.
func (h *Handler) RegisterStreaming(r chi.Router) {
	r.Get("/subjects/{subjectID}/events", h.HandleEvents)
}

// HandleLocationPing handles POST /signals/location requests. Ingress
// is fire-and-forget from the subject's client: the response carries
// the verdict but clients are not expected to act on it.
func (h *Handler) HandleLocationPing(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[LocationPingRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	outcome, err := h.manager.ApplyPing(ctx, req.Ping())
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to apply location ping",
			"request_id", requestID,
			"subject_id", req.SubjectID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, FromPingOutcome(outcome))
}

// HandleStatus handles GET /subjects/{subjectID}/status requests with a
// snapshot read of the latest committed derived state.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	status, err := h.manager.Status(ctx, subjectID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to load subject status",
			"request_id", requestcontext.RequestID(ctx),
			"subject_id", subjectID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromStatus(status))
}

// HandleEvents handles GET /subjects/{subjectID}/events as a
// server-sent-event stream: the current derived state first, then live
// events until the client disconnects.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subjectID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "streaming unsupported"))
		return
	}

	sub, err := h.bus.Subscribe(ctx, subjectID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to subscribe to subject events",
			"request_id", requestcontext.RequestID(ctx),
			"subject_id", subjectID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-sub.Events():
			if !open {
				return
			}
			if err := writeSSE(w, event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event fanout.Event) error {
	payload, err := FromEvent(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
	return err
}
