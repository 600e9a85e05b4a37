package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"learnquest/internal/logger"
	"learnquest/internal/security"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	UserIDContextKey    ContextKey = "user_id"
	RequestIDContextKey ContextKey = "request_id"
)

// Middleware holds dependencies for middleware functions
type Middleware struct {
	tokens  *security.TokenVerifier
	limiter security.Limiter
	log     *logger.Logger
}

// NewMiddleware creates a new middleware instance. limiter may be nil.
func NewMiddleware(tokens *security.TokenVerifier, limiter security.Limiter, log *logger.Logger) *Middleware {
	return &Middleware{
		tokens:  tokens,
		limiter: limiter,
		log:     log,
	}
}

// RequireUser is middleware that requires a valid bearer token
func (m *Middleware) RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			respondWithError(w, m.log, http.StatusUnauthorized, ErrUnauthorized, "", nil)
			return
		}

		userID, err := m.tokens.UserID(strings.TrimSpace(token))
		if err != nil {
			respondWithError(w, m.log, http.StatusUnauthorized, ErrUnauthorized, "rejected bearer token", err)
			return
		}

		ctx := context.WithValue(r.Context(), UserIDContextKey, userID)
		next(w, r.WithContext(ctx))
	}
}

// RateLimit limits requests per user, or per client IP before authentication
func (m *Middleware) RateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.limiter == nil {
			next(w, r)
			return
		}

		key := GetUserIDFromContext(r.Context())
		if key == "" {
			key = "ip:" + security.GetClientIP(r)
		}

		if err := m.limiter.Allow(r.Context(), key); err != nil {
			if errors.Is(err, security.ErrRateLimited) {
				w.Header().Set("Retry-After", "60")
				respondWithError(w, m.log, http.StatusTooManyRequests, ErrTooManyRequests, "", nil)
				return
			}
			// fail open when the limiter backend errors
			m.log.Warn("rate limiter unavailable", "error", err)
		}
		next(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logging middleware assigns a request ID and logs HTTP requests
func (m *Middleware) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		m.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String(),
			"remote_ip", security.GetClientIP(r),
			"request_id", requestID,
		)
	})
}

// GetUserIDFromContext retrieves the authenticated user ID from the request context
func GetUserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDContextKey).(string)
	return userID
}

// childIDFromPath returns the canonical form of the {childId} path value
func childIDFromPath(r *http.Request) (string, bool) {
	id, err := uuid.Parse(r.PathValue("childId"))
	if err != nil {
		return "", false
	}
	return id.String(), true
}
