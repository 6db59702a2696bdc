package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shiftdesk/shiftdesk/internal/domain/assignment"
	"github.com/shiftdesk/shiftdesk/internal/domain/audit"
	"github.com/shiftdesk/shiftdesk/internal/observability"
)

type AssignmentsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewAssignmentsRepo(pool *pgxpool.Pool, prom *observability.Prom) *AssignmentsRepo {
	return &AssignmentsRepo{pool: pool, prom: prom}
}

func (r *AssignmentsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func (r *AssignmentsRepo) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.BeginTx(ctx, pgx.TxOptions{})
}

// AssignedUserIDsTx reports which of the requested users already hold any
// assignment. Runs inside the bulk-assign transaction.
func (r *AssignmentsRepo) AssignedUserIDsTx(ctx context.Context, tx pgx.Tx, userIDs []int) (map[int]bool, error) {
	var rows pgx.Rows
	var err error

	obsErr := r.observe("assignments.assigned_ids_tx", func() error {
		rows, err = tx.Query(ctx,
			`SELECT user_id FROM shift_assignments WHERE user_id = ANY($1)`, userIDs)
		return err
	})

	if obsErr != nil {
		return nil, obsErr
	}

	defer rows.Close()

	taken := make(map[int]bool)

	for rows.Next() {
		var id int

		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, scanErr
		}
		taken[id] = true
	}

	return taken, rows.Err()
}

// InsertTx writes one ledger row. ON CONFLICT DO NOTHING absorbs the race
// where another request assigned the same user after our membership check:
// the tx survives and the caller records that user as skipped instead.
func (r *AssignmentsRepo) InsertTx(ctx context.Context, tx pgx.Tx, userID, shiftID int, actor audit.Stamp) (assignment.Assignment, bool, error) {
	a := assignment.Assignment{
		UserID:    userID,
		ShiftID:   shiftID,
		CreatedBy: actor,
		UpdatedBy: actor,
	}

	var err error

	obsErr := r.observe("assignments.insert_tx", func() error {
		err = tx.QueryRow(ctx,
			`INSERT INTO shift_assignments (user_id, shift_id, created_by, updated_by)
			 VALUES ($1,$2,$3,$4)
			 ON CONFLICT (user_id) DO NOTHING
			 RETURNING id, created_at, updated_at`,
			userID, shiftID, actor, actor,
		).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)

		if errors.Is(err, pgx.ErrNoRows) {
			// lost the race: someone else assigned this user first
			return nil
		}
		return err
	})

	if obsErr != nil {
		return assignment.Assignment{}, false, obsErr
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return assignment.Assignment{}, false, nil
	}

	return a, true, nil
}

const detailQuery = `
	SELECT a.id, a.user_id, a.shift_id, a.created_by, a.updated_by, a.created_at, a.updated_at,
	       u.first_name, u.last_name, COALESCE(ur.role_name, ''),
	       s.name
	FROM shift_assignments a
	JOIN users u ON u.id = a.user_id
	LEFT JOIN user_roles ur ON ur.id = u.role_id
	JOIN shifts s ON s.id = a.shift_id`

func scanDetail(row pgx.Row) (assignment.Detail, error) {
	var d assignment.Detail

	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.ShiftID,
		&d.CreatedBy,
		&d.UpdatedBy,
		&d.CreatedAt,
		&d.UpdatedAt,
		&d.User.FirstName,
		&d.User.LastName,
		&d.User.Role,
		&d.Shift.Name,
	)

	if err != nil {
		return assignment.Detail{}, err
	}

	d.User.ID = d.UserID
	d.Shift.ID = d.ShiftID

	return d, nil
}

func (r *AssignmentsRepo) List(ctx context.Context) (details []assignment.Detail, err error) {
	var rows pgx.Rows

	err = r.observe("assignments.list", func() error {
		rows, err = r.pool.Query(ctx, detailQuery+` ORDER BY a.id ASC`)
		return err
	})

	if err != nil {
		return
	}

	defer rows.Close()

	details = make([]assignment.Detail, 0)

	for rows.Next() {
		d, scanErr := scanDetail(rows)

		if scanErr != nil {
			err = scanErr
			return
		}
		details = append(details, d)
	}

	err = rows.Err()
	return
}

func (r *AssignmentsRepo) GetByID(ctx context.Context, id int) (assignment.Detail, error) {
	var d assignment.Detail
	var err error

	obsErr := r.observe("assignments.get_by_id", func() error {
		d, err = scanDetail(r.pool.QueryRow(ctx, detailQuery+` WHERE a.id = $1`, id))
		return err
	})

	if obsErr != nil {
		if errors.Is(obsErr, pgx.ErrNoRows) {
			return assignment.Detail{}, assignment.ErrNotFound
		}
		return assignment.Detail{}, obsErr
	}

	return d, nil
}

// UpdateTx replaces the user/shift pair and restamps updated_by, leaving
// created_by as the original snapshot.
func (r *AssignmentsRepo) UpdateTx(ctx context.Context, tx pgx.Tx, id, userID, shiftID int, actor audit.Stamp) (assignment.Assignment, error) {
	var a assignment.Assignment

	err := r.observe("assignments.update_tx", func() error {
		return tx.QueryRow(ctx,
			`UPDATE shift_assignments
			 SET user_id = $2, shift_id = $3, updated_by = $4, updated_at = now()
			 WHERE id = $1
			 RETURNING id, user_id, shift_id, created_by, updated_by, created_at, updated_at`,
			id, userID, shiftID, actor,
		).Scan(&a.ID, &a.UserID, &a.ShiftID, &a.CreatedBy, &a.UpdatedBy, &a.CreatedAt, &a.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return assignment.Assignment{}, assignment.ErrNotFound
		}
		if IsUniqueViolation(err) {
			return assignment.Assignment{}, assignment.ErrUserAlreadyAssigned
		}
		return assignment.Assignment{}, err
	}

	return a, nil
}

func (r *AssignmentsRepo) DeleteTx(ctx context.Context, tx pgx.Tx, id int) error {
	var affected int64

	err := r.observe("assignments.delete_tx", func() error {
		tag, e := tx.Exec(ctx, `DELETE FROM shift_assignments WHERE id = $1`, id)
		affected = tag.RowsAffected()
		return e
	})

	if err != nil {
		return err
	}

	if affected == 0 {
		return assignment.ErrNotFound
	}

	return nil
}

// CountsByShift feeds the dashboard: every shift with its current headcount,
// including shifts nobody holds yet.
func (r *AssignmentsRepo) CountsByShift(ctx context.Context) (counts []assignment.ShiftCount, err error) {
	var rows pgx.Rows

	err = r.observe("assignments.counts_by_shift", func() error {
		rows, err = r.pool.Query(ctx,
			`SELECT s.id, s.name, COUNT(a.id)
			 FROM shifts s
			 LEFT JOIN shift_assignments a ON a.shift_id = s.id
			 GROUP BY s.id, s.name
			 ORDER BY s.id ASC`)
		return err
	})

	if err != nil {
		return
	}

	defer rows.Close()

	counts = make([]assignment.ShiftCount, 0)

	for rows.Next() {
		var c assignment.ShiftCount

		if scanErr := rows.Scan(&c.ShiftID, &c.ShiftName, &c.Employees); scanErr != nil {
			err = scanErr
			return
		}
		counts = append(counts, c)
	}

	err = rows.Err()
	return
}
