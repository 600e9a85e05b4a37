package service

import "errors"

var (
	// ErrInvalidInput is returned when a request fails validation
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when the requested record does not exist
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the caller may not change the record
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned when an optimistic update keeps losing to concurrent writers
	ErrConflict = errors.New("concurrent update conflict")
)
