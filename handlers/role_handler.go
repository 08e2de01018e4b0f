package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/core"

	"volunteer-hub/services"
)

type RoleHandler struct {
	roles *services.RoleService
}

func NewRoleHandler(roles *services.RoleService) *RoleHandler {
	return &RoleHandler{roles: roles}
}

// MyRole - role the caller acts with; anonymous callers are parents
func (h *RoleHandler) MyRole(e *core.RequestEvent) error {
	uid := actorID(e)
	return e.JSON(http.StatusOK, map[string]any{
		"user_id": uid,
		"role":    h.roles.Resolve(e.Request.Context(), uid),
	})
}
