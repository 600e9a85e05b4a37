package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"learnquest/internal/logger"
	"learnquest/internal/service"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nolint:errcheck
	json.NewEncoder(w).Encode(v)
}

func respondWithError(w http.ResponseWriter, log *logger.Logger, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		if status >= http.StatusInternalServerError {
			log.Error(logMsg, "status", status, "error", err)
		} else {
			log.Debug(logMsg, "status", status, "error", err)
		}
	}

	respondJSON(w, status, errorResponse{Error: userMsg})
}

// respondWithServiceError maps service sentinel errors to HTTP statuses
func respondWithServiceError(w http.ResponseWriter, log *logger.Logger, logMsg string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		respondWithError(w, log, http.StatusBadRequest, err.Error(), logMsg, err)
	case errors.Is(err, service.ErrForbidden):
		respondWithError(w, log, http.StatusForbidden, ErrForbidden, logMsg, err)
	case errors.Is(err, service.ErrNotFound):
		respondWithError(w, log, http.StatusNotFound, ErrNotFound, logMsg, err)
	case errors.Is(err, service.ErrConflict):
		respondWithError(w, log, http.StatusConflict, ErrConflict, logMsg, err)
	default:
		respondWithError(w, log, http.StatusInternalServerError, ErrInternalServerError, logMsg, err)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
