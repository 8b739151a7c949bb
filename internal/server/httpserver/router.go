package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yndnr/tokdrop-go/internal/infra/buildinfo"
	"github.com/yndnr/tokdrop-go/internal/telemetry/metric"
)

// readyTimeout bounds a single readiness probe.
const readyTimeout = 2 * time.Second

// ReadyFunc reports whether the bot can serve updates.
type ReadyFunc func(ctx context.Context) error

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Logger for panic reports. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Metrics is exposed on /metrics and records request metrics.
	// If nil, the global registry is used.
	Metrics *metric.Registry

	// Ready backs /ready. If nil, /ready always succeeds.
	Ready ReadyFunc
}

// NewRouter creates the ops router with all routes and middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	m := cfg.Metrics
	if m == nil {
		m = metric.Global()
	}

	route := func(name string, h http.HandlerFunc) http.Handler {
		return Chain(h, RequestID(), Recover(log), Instrument(m, name))
	}

	mux := http.NewServeMux()
	mux.Handle("GET /health", route("health", handleHealth))
	mux.Handle("GET /ready", route("ready", readyHandler(cfg.Ready, log)))
	mux.Handle("GET /metrics", route("metrics", m.Handler().ServeHTTP))
	return mux
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": buildinfo.Get().Version,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func readyHandler(ready ReadyFunc, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
			defer cancel()

			if err := ready(ctx); err != nil {
				log.Warn("readiness check failed", "error", err)
				writeError(w, http.StatusServiceUnavailable, "TD-SYS-5030", "not ready")
				return
			}
		}

		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ready",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
