package handler

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/ni30kp/lula-Task/pkg/logger"
)

// Pinger checks liveness of a backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler exposes liveness and readiness probes.
type HealthHandler struct {
	store  Pinger
	cache  Pinger
	queue  func() bool
	logger *logger.Logger
}

// NewHealthHandler creates a health handler. queue reports whether the
// message queue connection is up; cache may be nil.
func NewHealthHandler(store Pinger, cache Pinger, queue func() bool, log *logger.Logger) *HealthHandler {
	return &HealthHandler{store: store, cache: cache, queue: queue, logger: log}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /ready. The store and the queue are hard
// dependencies; the cache is best-effort and only reported.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	checks := map[string]string{}
	ready := true

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn("readiness: store unreachable", zap.Error(err))
		checks["postgres"] = "down"
		ready = false
	} else {
		checks["postgres"] = "up"
	}

	if h.queue() {
		checks["nats"] = "up"
	} else {
		checks["nats"] = "down"
		ready = false
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			checks["redis"] = "down"
		} else {
			checks["redis"] = "up"
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"ready":  ready,
		"checks": checks,
	})
}
