package shift

import (
	"errors"
	"time"

	"github.com/shiftdesk/shiftdesk/internal/domain/audit"
)

var (
	ErrNotFound = errors.New("shift not found")
	// start and end are wall-clock strings; a zero-length shift is meaningless
	ErrSameTime = errors.New("start time and end time must differ")
	// deleting a shift that still has assignments is refused
	ErrInUse = errors.New("shift has active assignments")
)

type Shift struct {
	ID        int         `json:"id"`
	Name      string      `json:"name"`
	StartTime string      `json:"startTime"`
	EndTime   string      `json:"endTime"`
	CreatedBy audit.Stamp `json:"createdBy"`
	UpdatedBy audit.Stamp `json:"updatedBy"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type CreateShiftRequest struct {
	Name      string `json:"name" binding:"required,min=2,max=80"`
	StartTime string `json:"startTime" binding:"required"`
	EndTime   string `json:"endTime" binding:"required"`
}

type UpdateShiftRequest struct {
	Name      string `json:"name" binding:"required,min=2,max=80"`
	StartTime string `json:"startTime" binding:"required"`
	EndTime   string `json:"endTime" binding:"required"`
}
