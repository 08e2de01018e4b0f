package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"volunteer-hub/internal/lib/logger/sl"
	"volunteer-hub/internal/status"
)

func actorID(e *core.RequestEvent) string {
	if e.Auth == nil {
		return ""
	}
	return e.Auth.Id
}

// apiError maps a service error onto the pocketbase API error returned to
// the client. Unexpected errors are logged here and hidden from the client.
func apiError(e *core.RequestEvent, log *slog.Logger, err error) error {
	switch {
	case errors.Is(err, status.ErrInvalidInput):
		return apis.NewBadRequestError(inputMessage(err), nil)
	case errors.Is(err, status.ErrPermissionDenied):
		if e.Auth == nil {
			return apis.NewUnauthorizedError("Sign in required", nil)
		}
		return apis.NewForbiddenError("Admin role required", nil)
	case errors.Is(err, status.ErrNotFound):
		return apis.NewNotFoundError("Not found", nil)
	case errors.Is(err, status.ErrCapacityExhausted):
		return apis.NewApiError(http.StatusConflict, "Task is full", nil)
	case errors.Is(err, status.ErrConflict):
		return apis.NewApiError(http.StatusServiceUnavailable, "Too many concurrent changes, please retry", nil)
	}

	log.Error("request failed",
		slog.String("method", e.Request.Method),
		slog.String("path", e.Request.URL.Path),
		sl.Err(err),
	)
	return apis.NewInternalServerError("Something went wrong", nil)
}

// inputMessage keeps the part of a validation error after the sentinel,
// which names the offending fields.
func inputMessage(err error) string {
	msg := err.Error()
	marker := status.ErrInvalidInput.Error() + ": "
	if i := strings.LastIndex(msg, marker); i >= 0 {
		return msg[i+len(marker):]
	}
	return "Invalid input"
}

func requireAuth(e *core.RequestEvent) error {
	if actorID(e) == "" {
		return apis.NewUnauthorizedError("Sign in required", nil)
	}
	return nil
}
