package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shiftdesk/shiftdesk/internal/domain/role"
	"github.com/shiftdesk/shiftdesk/internal/observability"
)

type RolesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewRolesRepo(pool *pgxpool.Pool, prom *observability.Prom) *RolesRepo {
	return &RolesRepo{pool: pool, prom: prom}
}

func (r *RolesRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func scanRole(row pgx.Row) (role.Role, error) {
	var ro role.Role
	var status int

	err := row.Scan(&ro.ID, &ro.RoleName, &status, &ro.CreatedAt, &ro.UpdatedAt)

	if err != nil {
		return role.Role{}, err
	}

	ro.Status = role.Status(status)
	ro.StatusLabel = ro.Status.String()

	return ro, nil
}

func (r *RolesRepo) Create(ctx context.Context, name string, status role.Status) (role.Role, error) {
	op := "roles.create"

	var created role.Role
	var err error

	obsErr := r.observe(op, func() error {
		created, err = scanRole(r.pool.QueryRow(ctx,
			`INSERT INTO user_roles (role_name, status)
			 VALUES ($1, $2)
			 RETURNING id, role_name, status, created_at, updated_at`,
			name, int(status)))
		return err
	})

	if obsErr != nil {
		// unique index is on lower(role_name), so "Admin" vs "admin" collides
		if IsUniqueViolation(obsErr) {
			return role.Role{}, role.ErrDuplicateName
		}
		return role.Role{}, obsErr
	}

	return created, nil
}

func (r *RolesRepo) GetByID(ctx context.Context, id int) (role.Role, error) {
	var ro role.Role
	var err error

	obsErr := r.observe("roles.get_by_id", func() error {
		ro, err = scanRole(r.pool.QueryRow(ctx,
			`SELECT id, role_name, status, created_at, updated_at
			 FROM user_roles WHERE id = $1`, id))
		return err
	})

	if obsErr != nil {
		if errors.Is(obsErr, pgx.ErrNoRows) {
			return role.Role{}, role.ErrNotFound
		}
		return role.Role{}, obsErr
	}

	return ro, nil
}

func (r *RolesRepo) List(ctx context.Context) (roles []role.Role, err error) {
	var rows pgx.Rows

	err = r.observe("roles.list", func() error {
		rows, err = r.pool.Query(ctx,
			`SELECT id, role_name, status, created_at, updated_at
			 FROM user_roles
			 ORDER BY id ASC`)
		return err
	})

	if err != nil {
		return
	}

	defer rows.Close()

	roles = make([]role.Role, 0)

	for rows.Next() {
		ro, scanErr := scanRole(rows)

		if scanErr != nil {
			err = scanErr
			return
		}
		roles = append(roles, ro)
	}

	err = rows.Err()
	return
}

func (r *RolesRepo) Count(ctx context.Context) (int, error) {
	op := "roles.count"

	var total int

	err := r.observe(op, func() error {
		return r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_roles`).Scan(&total)
	})

	return total, err
}

func (r *RolesRepo) Update(ctx context.Context, id int, name string, status role.Status) (role.Role, error) {
	op := "roles.update"

	var updated role.Role
	var err error

	obsErr := r.observe(op, func() error {
		updated, err = scanRole(r.pool.QueryRow(ctx,
			`UPDATE user_roles
			 SET role_name = $2, status = $3, updated_at = now()
			 WHERE id = $1
			 RETURNING id, role_name, status, created_at, updated_at`,
			id, name, int(status)))
		return err
	})

	if obsErr != nil {
		if errors.Is(obsErr, pgx.ErrNoRows) {
			return role.Role{}, role.ErrNotFound
		}
		if IsUniqueViolation(obsErr) {
			return role.Role{}, role.ErrDuplicateName
		}
		return role.Role{}, obsErr
	}

	return updated, nil
}

// Delete restricts: a role still referenced by any user is not deletable.
func (r *RolesRepo) Delete(ctx context.Context, id int) error {
	op := "roles.delete"

	var tag int64

	err := r.observe(op, func() error {
		t, e := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE id = $1`, id)
		tag = t.RowsAffected()
		return e
	})

	if err != nil {
		if IsForeignKeyViolation(err) {
			return role.ErrInUse
		}
		return err
	}

	if tag == 0 {
		return role.ErrNotFound
	}

	return nil
}
