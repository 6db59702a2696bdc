package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shiftdesk/shiftdesk/internal/config"
	"github.com/shiftdesk/shiftdesk/internal/domain/audit"
	"github.com/shiftdesk/shiftdesk/internal/domain/shift"
	"github.com/shiftdesk/shiftdesk/internal/domain/user"
	"github.com/shiftdesk/shiftdesk/internal/http/middlewares"
	"github.com/shiftdesk/shiftdesk/internal/utils"
)

type ShiftStore interface {
	Create(ctx context.Context, req shift.CreateShiftRequest, actor audit.Stamp) (shift.Shift, error)
	GetByID(ctx context.Context, id int) (shift.Shift, error)
	List(ctx context.Context) ([]shift.Shift, error)
	Update(ctx context.Context, id int, req shift.UpdateShiftRequest, actor audit.Stamp) (shift.Shift, error)
	Delete(ctx context.Context, id int) error
}

type ActorReader interface {
	GetByID(ctx context.Context, id int) (user.User, error)
}

type ShiftsHandler struct {
	shifts ShiftStore
	users  ActorReader
}

func NewShiftsHandler(shifts ShiftStore, users ActorReader) *ShiftsHandler {
	return &ShiftsHandler{shifts: shifts, users: users}
}

// actorStamp resolves the session user into the snapshot written to created_by
// and updated_by columns.
func actorStamp(ctx *gin.Context, users ActorReader) (audit.Stamp, bool) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == 0 {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity context")
		return audit.Stamp{}, false
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := users.GetByID(cctx, userID)

	if err != nil {
		RespondUnAuthorized(ctx, "unauthorized", "Session user no longer exists")
		return audit.Stamp{}, false
	}

	return audit.Stamp{ID: u.ID, FirstName: u.FirstName}, true
}

func validateShiftTimes(ctx *gin.Context, startTime, endTime string) bool {
	fields := make([]FieldError, 0, 2)

	if !utils.Is24HourTime(startTime) {
		fields = append(fields, FieldError{Field: "startTime", Rule: "time24", Message: "must be 24-hour HH:MM"})
	}

	if !utils.Is24HourTime(endTime) {
		fields = append(fields, FieldError{Field: "endTime", Rule: "time24", Message: "must be 24-hour HH:MM"})
	}

	if len(fields) > 0 {
		RespondBadRequest(ctx, "Invalid request body", gin.H{"fields": fields})
		return false
	}

	if startTime == endTime {
		RespondBadRequest(ctx, shift.ErrSameTime.Error(), gin.H{"fields": []FieldError{
			{Field: "endTime", Rule: "nefield", Message: "must differ from startTime"},
		}})
		return false
	}

	return true
}

func (h *ShiftsHandler) Create(ctx *gin.Context) {
	var req shift.CreateShiftRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if !validateShiftTimes(ctx, req.StartTime, req.EndTime) {
		return
	}

	actor, ok := actorStamp(ctx, h.users)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	created, err := h.shifts.Create(cctx, req, actor)

	if err != nil {
		RespondInternal(ctx, "Could not create shift")
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{"shift": created})
}

// shiftView is the list shape: times rendered on the 12-hour clock the way
// the roster screen shows them.
type shiftView struct {
	ID        int         `json:"id"`
	Name      string      `json:"name"`
	StartTime string      `json:"startTime"`
	EndTime   string      `json:"endTime"`
	CreatedBy audit.Stamp `json:"createdBy"`
	UpdatedBy audit.Stamp `json:"updatedBy"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

func (h *ShiftsHandler) List(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	shifts, err := h.shifts.List(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list shifts")
		return
	}

	views := make([]shiftView, 0, len(shifts))

	for _, s := range shifts {
		views = append(views, shiftView{
			ID:        s.ID,
			Name:      s.Name,
			StartTime: utils.To12Hour(s.StartTime),
			EndTime:   utils.To12Hour(s.EndTime),
			CreatedBy: s.CreatedBy,
			UpdatedBy: s.UpdatedBy,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		})
	}

	ctx.JSON(http.StatusOK, gin.H{"shifts": views})
}

// GetByID returns the stored 24-hour strings so edit forms round-trip cleanly.
func (h *ShiftsHandler) GetByID(ctx *gin.Context) {
	id, ok := idParam(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	s, err := h.shifts.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, shift.ErrNotFound) {
			RespondNotFound(ctx, "Shift not found")
			return
		}

		RespondInternal(ctx, "Could not load shift")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"shift": s})
}

func (h *ShiftsHandler) Update(ctx *gin.Context) {
	id, ok := idParam(ctx)

	if !ok {
		return
	}

	var req shift.UpdateShiftRequest

	if !BindJSON(ctx, &req) {
		return
	}

	if !validateShiftTimes(ctx, req.StartTime, req.EndTime) {
		return
	}

	actor, ok := actorStamp(ctx, h.users)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	updated, err := h.shifts.Update(cctx, id, req, actor)

	if err != nil {
		if errors.Is(err, shift.ErrNotFound) {
			RespondNotFound(ctx, "Shift not found")
			return
		}

		RespondInternal(ctx, "Could not update shift")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"shift": updated})
}

func (h *ShiftsHandler) Delete(ctx *gin.Context) {
	id, ok := idParam(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	err := h.shifts.Delete(cctx, id)

	if err != nil {
		switch {
		case errors.Is(err, shift.ErrNotFound):
			RespondNotFound(ctx, "Shift not found")
		case errors.Is(err, shift.ErrInUse):
			RespondConflict(ctx, "shift_in_use", "Shift still has active assignments.")
		default:
			RespondInternal(ctx, "Could not delete shift")
		}
		return
	}

	ctx.Status(http.StatusNoContent)
}
