package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/shiftdesk/shiftdesk/internal/config"
	"github.com/shiftdesk/shiftdesk/internal/domain/assignment"
	"github.com/shiftdesk/shiftdesk/internal/domain/audit"
	"github.com/shiftdesk/shiftdesk/internal/domain/outbox"
	"github.com/shiftdesk/shiftdesk/internal/domain/shift"
	"github.com/shiftdesk/shiftdesk/internal/domain/user"
	"github.com/shiftdesk/shiftdesk/internal/utils"
)

type AssignmentStore interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	AssignedUserIDsTx(ctx context.Context, tx pgx.Tx, userIDs []int) (map[int]bool, error)
	InsertTx(ctx context.Context, tx pgx.Tx, userID, shiftID int, actor audit.Stamp) (assignment.Assignment, bool, error)
	List(ctx context.Context) ([]assignment.Detail, error)
	GetByID(ctx context.Context, id int) (assignment.Detail, error)
	UpdateTx(ctx context.Context, tx pgx.Tx, id, userID, shiftID int, actor audit.Stamp) (assignment.Assignment, error)
	DeleteTx(ctx context.Context, tx pgx.Tx, id int) error
	CountsByShift(ctx context.Context) ([]assignment.ShiftCount, error)
}

type AssignmentUserStore interface {
	GetByID(ctx context.Context, id int) (user.User, error)
	UsersByIDsTx(ctx context.Context, tx pgx.Tx, ids []int) (map[int]user.User, error)
	ListByRoleName(ctx context.Context, roleName string) ([]user.User, error)
}

type ShiftReader interface {
	GetByID(ctx context.Context, id int) (shift.Shift, error)
}

type OutboxTxWriter interface {
	CreateTx(ctx context.Context, tx pgx.Tx, req outbox.CreateRequest) (outbox.Message, error)
}

type AssignmentsHandler struct {
	store  AssignmentStore
	users  AssignmentUserStore
	shifts ShiftReader
	outbox OutboxTxWriter
}

func NewAssignmentsHandler(store AssignmentStore, users AssignmentUserStore, shifts ShiftReader, ob OutboxTxWriter) *AssignmentsHandler {
	return &AssignmentsHandler{
		store:  store,
		users:  users,
		shifts: shifts,
		outbox: ob,
	}
}

// BulkAssign writes one ledger row per not-yet-assigned user in the batch.
// Everything from the membership check to the outbox enqueue runs in a single
// transaction, so the response always matches what was committed.
func (h *AssignmentsHandler) BulkAssign(ctx *gin.Context) {
	var req assignment.BulkAssignRequest

	if !BindJSON(ctx, &req) {
		return
	}

	actor, ok := actorStamp(ctx, h.users)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	targetShift, err := h.shifts.GetByID(cctx, req.ShiftID)

	if err != nil {
		if errors.Is(err, shift.ErrNotFound) {
			RespondNotFound(ctx, "Shift not found")
			return
		}

		RespondInternal(ctx, "Could not assign shift")
		return
	}

	tx, err := h.store.BeginTx(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not assign shift")
		return
	}

	defer func() { _ = tx.Rollback(cctx) }()

	taken, err := h.store.AssignedUserIDsTx(cctx, tx, req.UserIDs)

	if err != nil {
		RespondInternal(ctx, "Could not assign shift")
		return
	}

	newIDs, skipped := assignment.Partition(req.UserIDs, taken)

	if len(newIDs) == 0 {
		RespondError(ctx, http.StatusConflict, "nothing_to_assign",
			"Every requested user already holds an assignment.",
			gin.H{"skipped": skipped})
		return
	}

	batch, err := h.users.UsersByIDsTx(cctx, tx, newIDs)

	if err != nil {
		RespondInternal(ctx, "Could not assign shift")
		return
	}

	missing := make([]int, 0)

	for _, id := range newIDs {
		if _, found := batch[id]; !found {
			missing = append(missing, id)
		}
	}

	// one unknown user aborts the whole batch, nothing is committed
	if len(missing) > 0 {
		RespondError(ctx, http.StatusNotFound, "not_found",
			"Some requested users do not exist.",
			gin.H{"missing": missing})
		return
	}

	result := assignment.BulkResult{
		Assigned: make([]int, 0, len(newIDs)),
		Skipped:  skipped,
		Records:  make([]assignment.Assignment, 0, len(newIDs)),
	}

	for _, userID := range newIDs {
		created, inserted, insErr := h.store.InsertTx(cctx, tx, userID, req.ShiftID, actor)

		if insErr != nil {
			RespondInternal(ctx, "Could not assign shift")
			return
		}

		if !inserted {
			// a concurrent request assigned this user between our membership
			// check and the insert; reconcile instead of failing the batch
			result.Skipped = append(result.Skipped, userID)
			continue
		}

		if err := h.enqueueAssignmentMail(cctx, tx, outbox.KindAssignmentCreated, created.ID, batch[userID], targetShift); err != nil {
			RespondInternal(ctx, "Could not assign shift")
			return
		}

		result.Assigned = append(result.Assigned, userID)
		result.Records = append(result.Records, created)
	}

	if err := tx.Commit(cctx); err != nil {
		RespondInternal(ctx, "Could not assign shift")
		return
	}

	ctx.JSON(http.StatusCreated, result)
}

func (h *AssignmentsHandler) enqueueAssignmentMail(ctx context.Context, tx pgx.Tx, kind string, assignmentID int, u user.User, s shift.Shift) error {
	payload, err := outbox.AssignmentMailPayload{
		AssignmentID: assignmentID,
		Email:        u.Email,
		FirstName:    u.FirstName,
		ShiftName:    s.Name,
		StartTime:    utils.To12Hour(s.StartTime),
		EndTime:      utils.To12Hour(s.EndTime),
	}.JSON()

	if err != nil {
		return err
	}

	_, err = h.outbox.CreateTx(ctx, tx, outbox.CreateRequest{
		Kind:    kind,
		Payload: payload,
	})

	return err
}

func (h *AssignmentsHandler) List(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	details, err := h.store.List(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list assignments")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"assignments": details})
}

func (h *AssignmentsHandler) GetByID(ctx *gin.Context) {
	id, ok := idParam(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	d, err := h.store.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, assignment.ErrNotFound) {
			RespondNotFound(ctx, "Assignment not found")
			return
		}

		RespondInternal(ctx, "Could not load assignment")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"assignment": d})
}

func (h *AssignmentsHandler) Update(ctx *gin.Context) {
	id, ok := idParam(ctx)

	if !ok {
		return
	}

	var req assignment.UpdateAssignmentRequest

	if !BindJSON(ctx, &req) {
		return
	}

	actor, ok := actorStamp(ctx, h.users)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	targetShift, err := h.shifts.GetByID(cctx, req.ShiftID)

	if err != nil {
		if errors.Is(err, shift.ErrNotFound) {
			RespondNotFound(ctx, "Shift not found")
			return
		}

		RespondInternal(ctx, "Could not update assignment")
		return
	}

	targetUser, err := h.users.GetByID(cctx, req.UserID)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}

		RespondInternal(ctx, "Could not update assignment")
		return
	}

	tx, err := h.store.BeginTx(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not update assignment")
		return
	}

	defer func() { _ = tx.Rollback(cctx) }()

	updated, err := h.store.UpdateTx(cctx, tx, id, req.UserID, req.ShiftID, actor)

	if err != nil {
		switch {
		case errors.Is(err, assignment.ErrNotFound):
			RespondNotFound(ctx, "Assignment not found")
		case errors.Is(err, assignment.ErrUserAlreadyAssigned):
			RespondConflict(ctx, "user_already_assigned", "User already holds a different assignment.")
		default:
			RespondInternal(ctx, "Could not update assignment")
		}
		return
	}

	if err := h.enqueueAssignmentMail(cctx, tx, outbox.KindAssignmentUpdated, updated.ID, targetUser, targetShift); err != nil {
		RespondInternal(ctx, "Could not update assignment")
		return
	}

	if err := tx.Commit(cctx); err != nil {
		RespondInternal(ctx, "Could not update assignment")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"assignment": updated})
}

func (h *AssignmentsHandler) Delete(ctx *gin.Context) {
	id, ok := idParam(ctx)

	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(5 * time.Second)
	defer cancel()

	// capture everything the goodbye email needs before the rows go away
	d, err := h.store.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, assignment.ErrNotFound) {
			RespondNotFound(ctx, "Assignment not found")
			return
		}

		RespondInternal(ctx, "Could not delete assignment")
		return
	}

	assignedUser, err := h.users.GetByID(cctx, d.UserID)

	if err != nil {
		RespondInternal(ctx, "Could not delete assignment")
		return
	}

	assignedShift, err := h.shifts.GetByID(cctx, d.ShiftID)

	if err != nil {
		RespondInternal(ctx, "Could not delete assignment")
		return
	}

	tx, err := h.store.BeginTx(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not delete assignment")
		return
	}

	defer func() { _ = tx.Rollback(cctx) }()

	err = h.store.DeleteTx(cctx, tx, id)

	if err != nil {
		if errors.Is(err, assignment.ErrNotFound) {
			RespondNotFound(ctx, "Assignment not found")
			return
		}

		RespondInternal(ctx, "Could not delete assignment")
		return
	}

	if err := h.enqueueAssignmentMail(cctx, tx, outbox.KindAssignmentDeleted, d.ID, assignedUser, assignedShift); err != nil {
		RespondInternal(ctx, "Could not delete assignment")
		return
	}

	if err := tx.Commit(cctx); err != nil {
		RespondInternal(ctx, "Could not delete assignment")
		return
	}

	ctx.Status(http.StatusNoContent)
}

// Counts feeds the dashboard card: headcount per shift, zero included.
func (h *AssignmentsHandler) Counts(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	counts, err := h.store.CountsByShift(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not load assignment counts")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"assignments": counts})
}

func (h *AssignmentsHandler) UsersByRole(ctx *gin.Context) {
	roleName := ctx.Query("role")

	if roleName == "" {
		RespondBadRequest(ctx, "Missing role query parameter", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	users, err := h.users.ListByRoleName(cctx, roleName)

	if err != nil {
		RespondInternal(ctx, "Could not list users by role")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"users": users})
}
