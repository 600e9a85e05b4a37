package handlers

const (
	RequestIDHeader = "X-Request-ID"

	ErrInvalidJSON         = "Invalid JSON body"
	ErrInvalidChildID      = "Invalid child ID"
	ErrUnauthorized        = "Unauthorized"
	ErrForbidden           = "Forbidden"
	ErrTooManyRequests     = "Too many requests"
	ErrNotFound            = "Not found"
	ErrConflict            = "Conflict, please retry"
	ErrInternalServerError = "Internal server error"

	maxBodyBytes      = 1 << 20
	defaultStarsLimit = 50
	maxListLimit      = 500
)
