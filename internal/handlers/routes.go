package handlers

import "net/http"

// NewRouter registers the API routes and wraps them in request logging
func NewRouter(m *Middleware, activity *ActivityHandler, progress *ProgressHandler, notifications *NotificationHandler, health *HealthHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)

	mux.HandleFunc("POST /api/children/{childId}/activities", m.RequireUser(m.RateLimit(activity.CompleteActivity)))
	mux.HandleFunc("GET /api/children/{childId}/progress", m.RequireUser(progress.GetProgress))
	mux.HandleFunc("GET /api/children/{childId}/stars", m.RequireUser(progress.ListStars))
	mux.HandleFunc("GET /api/children/{childId}/badges", m.RequireUser(progress.ListBadges))
	mux.HandleFunc("POST /api/children/{childId}/reconcile", m.RequireUser(m.RateLimit(progress.Reconcile)))
	mux.HandleFunc("GET /api/badges", m.RequireUser(progress.ListCatalog))

	mux.HandleFunc("GET /api/children/{childId}/notifications", m.RequireUser(notifications.List))
	mux.HandleFunc("POST /api/children/{childId}/notifications/{id}/read", m.RequireUser(notifications.MarkRead))
	mux.HandleFunc("PUT /api/children/{childId}/contact", m.RequireUser(notifications.PutContact))

	return m.Logging(mux)
}
