// Package httptransport assembles the public HTTP surface from the
// per-domain handler packages.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"caresignal/internal/platform/middleware"
	"caresignal/pkg/platform/httputil"
)

// Registrar mounts a handler package's routes on a router.
type Registrar interface {
	Register(r chi.Router)
}

// StreamingRegistrar mounts routes that hold the connection open and
// must bypass the request timeout.
type StreamingRegistrar interface {
	RegisterStreaming(r chi.Router)
}

// HealthChecker reports the liveness of a backing dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Options configures router assembly.
type Options struct {
	Logger         *slog.Logger
	RequestTimeout time.Duration
	Handlers       []Registrar
	Streaming      []StreamingRegistrar
	HealthChecks   map[string]HealthChecker
}

// NewRouter builds the chi router with the shared middleware chain,
// health and metrics endpoints, and all domain routes mounted.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	root := chi.NewRouter()
	root.Use(middleware.Recovery(logger))
	root.Use(middleware.RequestID)
	root.Use(middleware.Logger(logger))

	root.Get("/healthz", handleHealth(opts.HealthChecks))
	root.Method(http.MethodGet, "/metrics", promhttp.Handler())

	root.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))
		for _, handler := range opts.Handlers {
			handler.Register(r)
		}
	})

	// Streaming routes hold connections open past the request timeout.
	for _, handler := range opts.Streaming {
		handler.RegisterStreaming(root)
	}

	return root
}

func handleHealth(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Health(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[name] = err.Error()
			} else {
				body[name] = "ok"
			}
		}
		httputil.WriteJSON(w, status, body)
	}
}
