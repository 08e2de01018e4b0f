package status

import "errors"

var (
	ErrCapacityExhausted = errors.New("signup: this task is full")
	ErrPermissionDenied  = errors.New("auth: permission denied")
	ErrDataCorruption    = errors.New("signup: filled count out of step with signups")

	ErrNotFound          = errors.New("store: document not found")
	ErrConflict          = errors.New("store: transaction conflict")
	ErrMalformedDocument = errors.New("store: malformed document")

	ErrInvalidInput = errors.New("input: invalid request")
)
