package handlers

import (
	"net/http"
	"strconv"

	"learnquest/internal/logger"
	"learnquest/internal/service"
)

// ProgressHandler serves read-only progress views and the badge catalog
type ProgressHandler struct {
	progress   *service.ProgressService
	aggregates *service.AggregateService
	catalog    *service.BadgeCatalog
	log        *logger.Logger
}

// NewProgressHandler creates a new progress handler
func NewProgressHandler(progress *service.ProgressService, aggregates *service.AggregateService, catalog *service.BadgeCatalog, log *logger.Logger) *ProgressHandler {
	return &ProgressHandler{
		progress:   progress,
		aggregates: aggregates,
		catalog:    catalog,
		log:        log,
	}
}

// GetProgress returns the child's dashboard
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	childID, ok := childIDFromPath(r)
	if !ok {
		respondWithError(w, h.log, http.StatusBadRequest, ErrInvalidChildID, "", nil)
		return
	}

	progress, err := h.progress.GetProgress(r.Context(), childID)
	if err != nil {
		respondWithServiceError(w, h.log, "failed to load progress", err)
		return
	}
	respondJSON(w, http.StatusOK, progress)
}

// ListStars returns the child's star ledger, newest first
func (h *ProgressHandler) ListStars(w http.ResponseWriter, r *http.Request) {
	childID, ok := childIDFromPath(r)
	if !ok {
		respondWithError(w, h.log, http.StatusBadRequest, ErrInvalidChildID, "", nil)
		return
	}
	limit, ok := parseLimit(r, defaultStarsLimit)
	if !ok {
		respondWithError(w, h.log, http.StatusBadRequest, "Invalid limit", "", nil)
		return
	}

	stars, err := h.progress.ListStars(r.Context(), childID, limit)
	if err != nil {
		respondWithServiceError(w, h.log, "failed to list stars", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"stars": nonNil(stars)})
}

// ListBadges returns the badges the child has earned
func (h *ProgressHandler) ListBadges(w http.ResponseWriter, r *http.Request) {
	childID, ok := childIDFromPath(r)
	if !ok {
		respondWithError(w, h.log, http.StatusBadRequest, ErrInvalidChildID, "", nil)
		return
	}

	badges, err := h.progress.ListBadges(r.Context(), childID)
	if err != nil {
		respondWithServiceError(w, h.log, "failed to list badges", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"badges": nonNil(badges)})
}

// Reconcile rebuilds the child's aggregate from the ledgers
func (h *ProgressHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	childID, ok := childIDFromPath(r)
	if !ok {
		respondWithError(w, h.log, http.StatusBadRequest, ErrInvalidChildID, "", nil)
		return
	}

	level, drifted, err := h.aggregates.RebuildAggregate(r.Context(), childID)
	if err != nil {
		respondWithServiceError(w, h.log, "failed to reconcile child", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"level": level, "repaired": drifted})
}

// ListCatalog returns every badge that can be earned
func (h *ProgressHandler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	defs, err := h.catalog.Definitions(r.Context())
	if err != nil {
		respondWithServiceError(w, h.log, "failed to load badge catalog", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"badges": nonNil(defs)})
}

func parseLimit(r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, false
	}
	return min(limit, maxListLimit), true
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
