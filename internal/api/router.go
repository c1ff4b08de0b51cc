package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RouterConfig wires the worker's ops surface. Engine operations are not exposed over HTTP.
type RouterConfig struct {
	Logger  *zap.Logger
	Checks  []Check
	Metrics http.Handler
	Env     string
	Version string

	// OutboxPending reports unpublished event_logs rows when set.
	OutboxPending func(ctx context.Context) (int64, error)
}

type OutboxResponse struct {
	Pending int64 `json:"pending"`
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))

	health := NewHealthHandler(cfg.Checks, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	if cfg.OutboxPending != nil {
		r.Get("/ops/outbox", func(w http.ResponseWriter, r *http.Request) {
			n, err := cfg.OutboxPending(r.Context())
			if err != nil {
				log.Error("count pending events", zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "outbox_unavailable", err.Error())
				return
			}
			writeJSON(w, http.StatusOK, OutboxResponse{Pending: n})
		})
	}

	return r
}
