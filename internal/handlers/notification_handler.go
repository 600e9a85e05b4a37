package handlers

import (
	"net/http"
	"strconv"

	"learnquest/internal/logger"
	"learnquest/internal/models"
	"learnquest/internal/service"
)

// NotificationHandler serves the award feed and parent contact settings
type NotificationHandler struct {
	notifications *service.NotificationService
	log           *logger.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notifications *service.NotificationService, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, log: log}
}

// List returns the child's notifications. ?unread=true limits to unread ones.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
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
	unread, _ := strconv.ParseBool(r.URL.Query().Get("unread"))

	list, err := h.notifications.List(r.Context(), childID, unread, limit)
	if err != nil {
		respondWithServiceError(w, h.log, "failed to list notifications", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"notifications": nonNil(list)})
}

// MarkRead acknowledges a notification
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	childID, ok := childIDFromPath(r)
	if !ok {
		respondWithError(w, h.log, http.StatusBadRequest, ErrInvalidChildID, "", nil)
		return
	}

	if err := h.notifications.MarkRead(r.Context(), childID, r.PathValue("id")); err != nil {
		respondWithServiceError(w, h.log, "failed to mark notification read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type contactRequest struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	EmailOptIn bool   `json:"email_opt_in"`
}

// PutContact sets the parent email used for achievement emails
func (h *NotificationHandler) PutContact(w http.ResponseWriter, r *http.Request) {
	childID, ok := childIDFromPath(r)
	if !ok {
		respondWithError(w, h.log, http.StatusBadRequest, ErrInvalidChildID, "", nil)
		return
	}

	var req contactRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, h.log, http.StatusBadRequest, ErrInvalidJSON, "failed to decode contact", err)
		return
	}

	contact := &models.ParentContact{
		ChildID:    childID,
		UserID:     GetUserIDFromContext(r.Context()),
		Email:      req.Email,
		Name:       req.Name,
		EmailOptIn: req.EmailOptIn,
	}
	if err := h.notifications.SetContact(r.Context(), contact); err != nil {
		respondWithServiceError(w, h.log, "failed to save contact", err)
		return
	}
	respondJSON(w, http.StatusOK, contact)
}
