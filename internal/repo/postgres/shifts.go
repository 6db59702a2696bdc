package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shiftdesk/shiftdesk/internal/domain/audit"
	"github.com/shiftdesk/shiftdesk/internal/domain/shift"
	"github.com/shiftdesk/shiftdesk/internal/observability"
)

type ShiftsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewShiftsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ShiftsRepo {
	return &ShiftsRepo{pool: pool, prom: prom}
}

func (r *ShiftsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanShift(row pgx.Row) (shift.Shift, error) {
	var s shift.Shift

	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.StartTime,
		&s.EndTime,
		&s.CreatedBy,
		&s.UpdatedBy,
		&s.CreatedAt,
		&s.UpdatedAt,
	)

	if err != nil {
		return shift.Shift{}, err
	}
	return s, nil
}

func (r *ShiftsRepo) Create(ctx context.Context, req shift.CreateShiftRequest, actor audit.Stamp) (shift.Shift, error) {
	op := "shifts.create"

	var created shift.Shift
	var err error

	obsErr := r.observe(op, func() error {
		created, err = scanShift(r.pool.QueryRow(ctx,
			`INSERT INTO shifts (name, start_time, end_time, created_by, updated_by)
			 VALUES ($1,$2,$3,$4,$5)
			 RETURNING id, name, start_time, end_time, created_by, updated_by, created_at, updated_at`,
			req.Name, req.StartTime, req.EndTime, actor, actor))
		return err
	})

	if obsErr != nil {
		return shift.Shift{}, obsErr
	}

	return created, nil
}

func (r *ShiftsRepo) GetByID(ctx context.Context, id int) (shift.Shift, error) {
	var s shift.Shift
	var err error

	obsErr := r.observe("shifts.get_by_id", func() error {
		s, err = scanShift(r.pool.QueryRow(ctx,
			`SELECT id, name, start_time, end_time, created_by, updated_by, created_at, updated_at
			 FROM shifts WHERE id = $1`, id))
		return err
	})

	if obsErr != nil {
		if errors.Is(obsErr, pgx.ErrNoRows) {
			return shift.Shift{}, shift.ErrNotFound
		}
		return shift.Shift{}, obsErr
	}

	return s, nil
}

func (r *ShiftsRepo) List(ctx context.Context) (shifts []shift.Shift, err error) {
	var rows pgx.Rows

	err = r.observe("shifts.list", func() error {
		rows, err = r.pool.Query(ctx,
			`SELECT id, name, start_time, end_time, created_by, updated_by, created_at, updated_at
			 FROM shifts
			 ORDER BY id ASC`)
		return err
	})

	if err != nil {
		return
	}

	defer rows.Close()

	shifts = make([]shift.Shift, 0)

	for rows.Next() {
		s, scanErr := scanShift(rows)

		if scanErr != nil {
			err = scanErr
			return
		}
		shifts = append(shifts, s)
	}

	err = rows.Err()
	return
}

func (r *ShiftsRepo) Update(ctx context.Context, id int, req shift.UpdateShiftRequest, actor audit.Stamp) (shift.Shift, error) {
	op := "shifts.update"

	var updated shift.Shift
	var err error

	obsErr := r.observe(op, func() error {
		updated, err = scanShift(r.pool.QueryRow(ctx,
			`UPDATE shifts
			 SET name = $2, start_time = $3, end_time = $4, updated_by = $5, updated_at = now()
			 WHERE id = $1
			 RETURNING id, name, start_time, end_time, created_by, updated_by, created_at, updated_at`,
			id, req.Name, req.StartTime, req.EndTime, actor))
		return err
	})

	if obsErr != nil {
		if errors.Is(obsErr, pgx.ErrNoRows) {
			return shift.Shift{}, shift.ErrNotFound
		}
		return shift.Shift{}, obsErr
	}

	return updated, nil
}

// Delete restricts: a shift that still has ledger rows cannot be removed.
func (r *ShiftsRepo) Delete(ctx context.Context, id int) error {
	op := "shifts.delete"

	var tag int64

	err := r.observe(op, func() error {
		t, e := r.pool.Exec(ctx, `DELETE FROM shifts WHERE id = $1`, id)
		tag = t.RowsAffected()
		return e
	})

	if err != nil {
		if IsForeignKeyViolation(err) {
			return shift.ErrInUse
		}
		return err
	}

	if tag == 0 {
		return shift.ErrNotFound
	}

	return nil
}
