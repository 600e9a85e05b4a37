package handlers

import (
	"net/http"

	"learnquest/internal/logger"
	"learnquest/internal/models"
	"learnquest/internal/service"
)

// ActivityHandler handles activity completion requests
type ActivityHandler struct {
	activities *service.ActivityService
	log        *logger.Logger
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(activities *service.ActivityService, log *logger.Logger) *ActivityHandler {
	return &ActivityHandler{activities: activities, log: log}
}

type completeActivityRequest struct {
	ActivityID       string            `json:"activity_id"`
	Subject          models.Subject    `json:"subject"`
	Score            int               `json:"score"`
	TimeTakenSeconds int               `json:"time_taken_seconds"`
	Topic            string            `json:"topic"`
	Difficulty       models.Difficulty `json:"difficulty"`
}

// CompleteActivity records a finished activity and returns the rewards it produced
func (h *ActivityHandler) CompleteActivity(w http.ResponseWriter, r *http.Request) {
	childID, ok := childIDFromPath(r)
	if !ok {
		respondWithError(w, h.log, http.StatusBadRequest, ErrInvalidChildID, "", nil)
		return
	}

	var req completeActivityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.log, http.StatusBadRequest, ErrInvalidJSON, "failed to decode activity", err)
		return
	}

	outcome, err := h.activities.CompleteActivity(r.Context(), service.ActivityInput{
		ChildID:          childID,
		UserID:           GetUserIDFromContext(r.Context()),
		ActivityID:       req.ActivityID,
		Subject:          req.Subject,
		Score:            req.Score,
		TimeTakenSeconds: req.TimeTakenSeconds,
		Topic:            req.Topic,
		Difficulty:       req.Difficulty,
	})
	if err != nil {
		respondWithServiceError(w, h.log, "failed to complete activity", err)
		return
	}

	respondJSON(w, http.StatusCreated, outcome)
}
