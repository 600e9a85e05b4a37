package handlers

import (
	"context"
	"net/http"
	"time"

	"learnquest/internal/logger"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports whether the service can reach its database
type HealthHandler struct {
	db  pinger
	log *logger.Logger
}

func NewHealthHandler(db pinger, log *logger.Logger) *HealthHandler {
	return &HealthHandler{db: db, log: log}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		respondWithError(w, h.log, http.StatusServiceUnavailable, "database unavailable", "health check failed", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
