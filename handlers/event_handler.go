package handlers

import (
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"volunteer-hub/models"
	"volunteer-hub/services"
)

type EventHandler struct {
	events *services.EventService
	log    *slog.Logger
}

func NewEventHandler(events *services.EventService, log *slog.Logger) *EventHandler {
	return &EventHandler{
		events: events,
		log:    log.With(slog.String("component", "event_handler")),
	}
}

// CreateEvent - admin creates an event
func (h *EventHandler) CreateEvent(e *core.RequestEvent) error {
	var req models.EventInput
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	ev, err := h.events.CreateEvent(e.Request.Context(), actorID(e), req)
	if err != nil {
		return apiError(e, h.log, err)
	}
	return e.JSON(http.StatusCreated, ev)
}

// ListEvents - all events, earliest first
func (h *EventHandler) ListEvents(e *core.RequestEvent) error {
	events, err := h.events.ListEvents(e.Request.Context())
	if err != nil {
		return apiError(e, h.log, err)
	}
	return e.JSON(http.StatusOK, events)
}

func (h *EventHandler) GetEvent(e *core.RequestEvent) error {
	ev, err := h.events.Event(e.Request.Context(), e.Request.PathValue("eventId"))
	if err != nil {
		return apiError(e, h.log, err)
	}
	return e.JSON(http.StatusOK, ev)
}

// DeleteEvent - admin deletes an event with its tasks and signups
func (h *EventHandler) DeleteEvent(e *core.RequestEvent) error {
	if err := h.events.DeleteEvent(e.Request.Context(), actorID(e), e.Request.PathValue("eventId")); err != nil {
		return apiError(e, h.log, err)
	}
	return e.NoContent(http.StatusNoContent)
}

// CreateTask - admin adds a task to an event
func (h *EventHandler) CreateTask(e *core.RequestEvent) error {
	var req models.TaskInput
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	task, err := h.events.CreateTask(e.Request.Context(), actorID(e), e.Request.PathValue("eventId"), req)
	if err != nil {
		return apiError(e, h.log, err)
	}
	return e.JSON(http.StatusCreated, task)
}
