package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"volunteer-hub/services"
)

const defaultBoardWait = 2 * time.Second

type SignupHandler struct {
	ledger    *services.SignupLedger
	boards    *services.BoardRegistry
	roles     *services.RoleService
	log       *slog.Logger
	boardWait time.Duration
}

func NewSignupHandler(ledger *services.SignupLedger, boards *services.BoardRegistry, roles *services.RoleService, log *slog.Logger) *SignupHandler {
	return &SignupHandler{
		ledger:    ledger,
		boards:    boards,
		roles:     roles,
		log:       log.With(slog.String("component", "signup_handler")),
		boardWait: defaultBoardWait,
	}
}

// SignUp - claim a slot on a task for the caller
func (h *SignupHandler) SignUp(e *core.RequestEvent) error {
	eventID, taskID := e.Request.PathValue("eventId"), e.Request.PathValue("taskId")

	if err := h.ledger.SignUp(e.Request.Context(), eventID, taskID, actorID(e)); err != nil {
		return apiError(e, h.log, err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"event_id":  eventID,
		"task_id":   taskID,
		"signed_up": true,
	})
}

// Cancel - release the caller's slot
func (h *SignupHandler) Cancel(e *core.RequestEvent) error {
	eventID, taskID := e.Request.PathValue("eventId"), e.Request.PathValue("taskId")

	if err := h.ledger.Cancel(e.Request.Context(), eventID, taskID, actorID(e)); err != nil {
		return apiError(e, h.log, err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"event_id":  eventID,
		"task_id":   taskID,
		"signed_up": false,
	})
}

// board returns the shared live board of the event, giving a cold board a
// moment to load before answering.
func (h *SignupHandler) board(e *core.RequestEvent, eventID string) (*services.TaskBoard, error) {
	board, err := h.boards.Board(e.Request.Context(), eventID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(e.Request.Context(), h.boardWait)
	defer cancel()
	if err := board.WaitLoaded(ctx); err != nil {
		h.log.Debug("board still loading", slog.String("event_id", eventID))
	}
	return board, nil
}

// Board - task board of an event as seen by the caller
func (h *SignupHandler) Board(e *core.RequestEvent) error {
	if err := requireAuth(e); err != nil {
		return err
	}
	board, err := h.board(e, e.Request.PathValue("eventId"))
	if err != nil {
		return apiError(e, h.log, err)
	}
	return e.JSON(http.StatusOK, board.View(actorID(e)))
}

// MyTasks - tasks of an event the caller holds a slot on
func (h *SignupHandler) MyTasks(e *core.RequestEvent) error {
	if err := requireAuth(e); err != nil {
		return err
	}
	eventID := e.Request.PathValue("eventId")
	board, err := h.board(e, eventID)
	if err != nil {
		return apiError(e, h.log, err)
	}
	return e.JSON(http.StatusOK, map[string]any{
		"event_id": eventID,
		"tasks":    board.MyTasks(actorID(e)),
	})
}

// Signups - roster of a task; ?format=text returns the export text
func (h *SignupHandler) Signups(e *core.RequestEvent) error {
	if err := requireAuth(e); err != nil {
		return err
	}
	eventID, taskID := e.Request.PathValue("eventId"), e.Request.PathValue("taskId")
	board, err := h.board(e, eventID)
	if err != nil {
		return apiError(e, h.log, err)
	}

	if e.Request.URL.Query().Get("format") == "text" {
		return e.String(http.StatusOK, board.ExportText(taskID))
	}
	return e.JSON(http.StatusOK, map[string]any{
		"event_id": eventID,
		"task_id":  taskID,
		"signups":  board.Roster(taskID),
		"export":   board.ExportText(taskID),
	})
}

// Audit - compare filledCount with the signup documents of every task
func (h *SignupHandler) Audit(e *core.RequestEvent) error {
	ctx := e.Request.Context()
	if err := h.roles.RequireAdmin(ctx, actorID(e)); err != nil {
		return apiError(e, h.log, err)
	}

	eventID := e.Request.PathValue("eventId")
	if eventID == "" {
		return apis.NewBadRequestError("Event ID required", nil)
	}
	audits, err := h.ledger.AuditEvent(ctx, eventID)
	if err != nil {
		return apiError(e, h.log, err)
	}
	return e.JSON(http.StatusOK, map[string]any{"event_id": eventID, "tasks": audits})
}
