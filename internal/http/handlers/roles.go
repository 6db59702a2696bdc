package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shiftdesk/shiftdesk/internal/config"
	"github.com/shiftdesk/shiftdesk/internal/domain/role"
)

type RoleStore interface {
	Create(ctx context.Context, name string, status role.Status) (role.Role, error)
	GetByID(ctx context.Context, id int) (role.Role, error)
	List(ctx context.Context) ([]role.Role, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, id int, name string, status role.Status) (role.Role, error)
	Delete(ctx context.Context, id int) error
}

type RolesHandler struct {
	roles RoleStore
}

func NewRolesHandler(roles RoleStore) *RolesHandler {
	return &RolesHandler{roles: roles}
}

func (h *RolesHandler) Create(ctx *gin.Context) {
	var req role.CreateRoleRequest

	if !BindJSON(ctx, &req) {
		return
	}

	status := role.Status(req.Status)

	if req.Status == 0 {
		status = role.StatusActive
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	created, err := h.roles.Create(cctx, req.RoleName, status)

	if err != nil {
		// the duplicate guard is case-insensitive, "Admin" collides with "admin"
		if errors.Is(err, role.ErrDuplicateName) {
			RespondBadRequest(ctx, "Role name already exists.", gin.H{"code": "duplicate_role"})
			return
		}

		RespondInternal(ctx, "Could not create role")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"role": created})
}

func (h *RolesHandler) List(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	roles, err := h.roles.List(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list roles")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"roles": roles})
}

func (h *RolesHandler) Count(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	total, err := h.roles.Count(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not count roles")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"count": total})
}

func (h *RolesHandler) Update(ctx *gin.Context) {
	id, ok := idParam(ctx)

	if !ok {
		return
	}

	var req role.UpdateRoleRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	updated, err := h.roles.Update(cctx, id, req.RoleName, role.Status(req.Status))

	if err != nil {
		switch {
		case errors.Is(err, role.ErrNotFound):
			RespondNotFound(ctx, "Role not found")
		case errors.Is(err, role.ErrDuplicateName):
			RespondBadRequest(ctx, "Role name already exists.", gin.H{"code": "duplicate_role"})
		default:
			RespondInternal(ctx, "Could not update role")
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"role": updated})
}

func (h *RolesHandler) Delete(ctx *gin.Context) {
	id, ok := idParam(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err := h.roles.Delete(cctx, id)

	if err != nil {
		switch {
		case errors.Is(err, role.ErrNotFound):
			RespondNotFound(ctx, "Role not found")
		case errors.Is(err, role.ErrInUse):
			RespondConflict(ctx, "role_in_use", "Role is still assigned to users.")
		default:
			RespondInternal(ctx, "Could not delete role")
		}
		return
	}

	ctx.Status(http.StatusNoContent)
}
