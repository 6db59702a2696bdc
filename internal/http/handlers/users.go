package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shiftdesk/shiftdesk/internal/config"
	"github.com/shiftdesk/shiftdesk/internal/domain/outbox"
	"github.com/shiftdesk/shiftdesk/internal/domain/role"
	"github.com/shiftdesk/shiftdesk/internal/domain/user"
	"github.com/shiftdesk/shiftdesk/internal/repo/postgres"
	"github.com/shiftdesk/shiftdesk/internal/security"
)

type UserStore interface {
	Create(ctx context.Context, p postgres.CreateUserParams) (user.User, error)
	List(ctx context.Context) ([]user.User, error)
	Update(ctx context.Context, id int, p postgres.UpdateUserParams) (user.User, error)
	Delete(ctx context.Context, id int) error
}

type OutboxWriter interface {
	Create(ctx context.Context, req outbox.CreateRequest) (outbox.Message, error)
}

type UsersHandler struct {
	users  UserStore
	roles  RoleReader
	outbox OutboxWriter
	log    *slog.Logger
}

func NewUsersHandler(users UserStore, roles RoleReader, ob OutboxWriter, log *slog.Logger) *UsersHandler {
	return &UsersHandler{
		users:  users,
		roles:  roles,
		outbox: ob,
		log:    log,
	}
}

func (h *UsersHandler) Create(ctx *gin.Context) {
	var req user.CreateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if !user.ValidUsername(req.Username) {
		RespondBadRequest(ctx, "Invalid request body", gin.H{"fields": []FieldError{
			{Field: "username", Rule: "username", Message: "must be 3-30 letters, digits or underscores"},
		}})
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if _, err := h.roles.GetByID(cctx, req.Role); err != nil {
		if errors.Is(err, role.ErrNotFound) {
			RespondBadRequest(ctx, "Invalid request body", gin.H{"fields": []FieldError{
				{Field: "role", Rule: "exists", Message: "role does not exist"},
			}})
			return
		}

		RespondInternal(ctx, "Could not create user")
		return
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not create user")
		return
	}

	created, err := h.users.Create(cctx, postgres.CreateUserParams{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Username:     req.Username,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
		RoleID:       req.Role,
	})

	if err != nil {
		if errors.Is(err, user.ErrDuplicate) {
			RespondBadRequest(ctx, "Username or email is already in use.", gin.H{"code": "duplicate"})
			return
		}

		RespondInternal(ctx, "Could not create user")
		return
	}

	h.enqueueWelcomeEmail(cctx, created)

	ctx.JSON(http.StatusCreated, gin.H{"user": created})
}

// enqueueWelcomeEmail is best effort: the account exists either way, the
// mailer just never hears about it if the enqueue fails.
func (h *UsersHandler) enqueueWelcomeEmail(ctx context.Context, u user.User) {
	payload, err := outbox.AccountMailPayload{
		UserID:    u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		Username:  u.Username,
	}.JSON()

	if err == nil {
		_, err = h.outbox.Create(ctx, outbox.CreateRequest{
			Kind:    outbox.KindAccountCreated,
			Payload: payload,
		})
	}

	if err != nil {
		h.log.Warn("welcome email enqueue failed", "userId", u.ID, "error", err)
	}
}

func (h *UsersHandler) List(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	users, err := h.users.List(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list users")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *UsersHandler) Update(ctx *gin.Context) {
	id, ok := idParam(ctx)

	if !ok {
		return
	}

	if id == user.ReservedAdminID {
		RespondForbidden(ctx, "reserved_user", "The seed admin account cannot be modified.")
		return
	}

	var req user.UpdateUserRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if !user.ValidUsername(req.Username) {
		RespondBadRequest(ctx, "Invalid request body", gin.H{"fields": []FieldError{
			{Field: "username", Rule: "username", Message: "must be 3-30 letters, digits or underscores"},
		}})
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if _, err := h.roles.GetByID(cctx, req.Role); err != nil {
		if errors.Is(err, role.ErrNotFound) {
			RespondBadRequest(ctx, "Invalid request body", gin.H{"fields": []FieldError{
				{Field: "role", Rule: "exists", Message: "role does not exist"},
			}})
			return
		}

		RespondInternal(ctx, "Could not update user")
		return
	}

	updated, err := h.users.Update(cctx, id, postgres.UpdateUserParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Email:     req.Email,
		Phone:     req.Phone,
		RoleID:    req.Role,
		Status:    user.Status(req.Status),
	})

	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			RespondNotFound(ctx, "User not found")
		case errors.Is(err, user.ErrDuplicate):
			RespondBadRequest(ctx, "Username or email is already in use.", gin.H{"code": "duplicate"})
		default:
			RespondInternal(ctx, "Could not update user")
		}
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"user": updated})
}

func (h *UsersHandler) Delete(ctx *gin.Context) {
	id, ok := idParam(ctx)

	if !ok {
		return
	}

	if id == user.ReservedAdminID {
		RespondForbidden(ctx, "reserved_user", "The seed admin account cannot be deleted.")
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err := h.users.Delete(cctx, id)

	if err != nil {
		switch {
		case errors.Is(err, user.ErrNotFound):
			RespondNotFound(ctx, "User not found")
		case errors.Is(err, user.ErrHasAssignment):
			RespondConflict(ctx, "user_has_assignment", "User still holds a shift assignment.")
		default:
			RespondInternal(ctx, "Could not delete user")
		}
		return
	}

	ctx.Status(http.StatusNoContent)
}

// idParam parses the :id path segment; a non-numeric id answers 400 itself.
func idParam(ctx *gin.Context) (int, bool) {
	id, err := strconv.Atoi(ctx.Param("id"))

	if err != nil || id < 1 {
		RespondBadRequest(ctx, "Invalid id", nil)
		return 0, false
	}

	return id, true
}
