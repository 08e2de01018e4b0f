package handlers

import (
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"volunteer-hub/models"
	"volunteer-hub/services"
)

type AnnouncementHandler struct {
	announcements *services.AnnouncementService
	log           *slog.Logger
}

func NewAnnouncementHandler(announcements *services.AnnouncementService, log *slog.Logger) *AnnouncementHandler {
	return &AnnouncementHandler{
		announcements: announcements,
		log:           log.With(slog.String("component", "announcement_handler")),
	}
}

func (h *AnnouncementHandler) List(e *core.RequestEvent) error {
	list, err := h.announcements.List(e.Request.Context())
	if err != nil {
		return apiError(e, h.log, err)
	}
	return e.JSON(http.StatusOK, list)
}

// Post - admin posts an announcement
func (h *AnnouncementHandler) Post(e *core.RequestEvent) error {
	var req models.AnnouncementInput
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	a, err := h.announcements.Post(e.Request.Context(), actorID(e), req)
	if err != nil {
		return apiError(e, h.log, err)
	}
	return e.JSON(http.StatusCreated, a)
}
