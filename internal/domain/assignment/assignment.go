package assignment

import (
	"errors"
	"time"

	"github.com/shiftdesk/shiftdesk/internal/domain/audit"
)

var (
	ErrNotFound = errors.New("assignment not found")
	// every user in the batch already held an assignment
	ErrNothingToAssign = errors.New("nothing to assign")
	// the target user of an update already holds a different assignment
	ErrUserAlreadyAssigned = errors.New("user already holds an assignment")
)

// Assignment is one row of the ledger mapping a user to a shift. A user holds
// at most one assignment at a time; the storage layer enforces this with a
// unique index on user_id.
type Assignment struct {
	ID        int         `json:"id"`
	UserID    int         `json:"userId"`
	ShiftID   int         `json:"shiftId"`
	CreatedBy audit.Stamp `json:"createdBy"`
	UpdatedBy audit.Stamp `json:"updatedBy"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Detail is the list/read shape, with the user and shift joined in.
type Detail struct {
	Assignment
	User  AssignedUser  `json:"user"`
	Shift AssignedShift `json:"shift"`
}

type AssignedUser struct {
	ID        int    `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role,omitempty"`
}

type AssignedShift struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type BulkAssignRequest struct {
	ShiftID int   `json:"shiftId" binding:"required,min=1"`
	UserIDs []int `json:"userIds" binding:"required,min=1,dive,min=1"`
}

type UpdateAssignmentRequest struct {
	UserID  int `json:"userId" binding:"required,min=1"`
	ShiftID int `json:"shiftId" binding:"required,min=1"`
}

// BulkResult reports the partition of one bulk call: every input id ends up in
// exactly one of Assigned or Skipped.
type BulkResult struct {
	Assigned []int        `json:"assigned"`
	Skipped  []int        `json:"skipped"`
	Records  []Assignment `json:"records"`
}

// ShiftCount is one dashboard row: how many users currently hold each shift.
type ShiftCount struct {
	ShiftID   int    `json:"shiftId"`
	ShiftName string `json:"shiftName"`
	Employees int    `json:"employees"`
}

// Partition splits the requested ids against the set of already-assigned ids,
// preserving input order and collapsing duplicates to their first occurrence.
func Partition(userIDs []int, taken map[int]bool) (newIDs, skipped []int) {
	newIDs = make([]int, 0, len(userIDs))
	skipped = make([]int, 0)

	seen := make(map[int]bool, len(userIDs))

	for _, id := range userIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		if taken[id] {
			skipped = append(skipped, id)
		} else {
			newIDs = append(newIDs, id)
		}
	}
	return newIDs, skipped
}
