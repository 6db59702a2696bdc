package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shiftdesk/shiftdesk/internal/domain/user"
	"github.com/shiftdesk/shiftdesk/internal/observability"
)

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const userColumns = `u.id, u.first_name, u.last_name, u.username, u.email, u.phone,
	u.password_hash, u.role_id, COALESCE(ur.role_name, ''), u.status, u.created_at, u.updated_at`

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	var status int

	err := row.Scan(
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.Username,
		&u.Email,
		&u.Phone,
		&u.PasswordHash,
		&u.RoleID,
		&u.RoleName,
		&status,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	if err != nil {
		return user.User{}, err
	}

	u.Status = user.Status(status)
	u.StatusLabel = u.Status.String()

	return u, nil
}

type CreateUserParams struct {
	FirstName    string
	LastName     string
	Username     string
	Email        string
	Phone        string
	PasswordHash string
	RoleID       int
}

func (r *UsersRepo) Create(ctx context.Context, p CreateUserParams) (user.User, error) {
	op := "users.create"

	var id int
	var createdAt, updatedAt time.Time

	err := r.observe(op, func() error {
		return r.pool.QueryRow(ctx,
			`INSERT INTO users (first_name, last_name, username, email, phone, password_hash, role_id, status)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			 RETURNING id, created_at, updated_at`,
			p.FirstName, p.LastName, p.Username, p.Email, p.Phone, p.PasswordHash, p.RoleID, int(user.StatusActive),
		).Scan(&id, &createdAt, &updatedAt)
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return user.User{}, user.ErrDuplicate
		}
		return user.User{}, err
	}

	roleID := p.RoleID

	return user.User{
		ID:           id,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Username:     p.Username,
		Email:        p.Email,
		Phone:        p.Phone,
		PasswordHash: p.PasswordHash,
		RoleID:       &roleID,
		Status:       user.StatusActive,
		StatusLabel:  user.StatusActive.String(),
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id int) (user.User, error) {
	var u user.User
	var err error

	obsErr := r.observe("users.get_by_id", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+`
			 FROM users u
			 LEFT JOIN user_roles ur ON ur.id = u.role_id
			 WHERE u.id = $1`, id))
		return err
	})

	if obsErr != nil {
		if errors.Is(obsErr, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, obsErr
	}
	return u, nil
}

func (r *UsersRepo) GetByUsername(ctx context.Context, username string) (user.User, error) {
	var u user.User
	var err error

	obsErr := r.observe("users.get_by_username", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx,
			`SELECT `+userColumns+`
			 FROM users u
			 LEFT JOIN user_roles ur ON ur.id = u.role_id
			 WHERE u.username = $1`, username))
		return err
	})

	if obsErr != nil {
		if errors.Is(obsErr, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, obsErr
	}
	return u, nil
}

func (r *UsersRepo) List(ctx context.Context) (users []user.User, err error) {
	var rows pgx.Rows

	err = r.observe("users.list", func() error {
		rows, err = r.pool.Query(ctx,
			`SELECT `+userColumns+`
			 FROM users u
			 LEFT JOIN user_roles ur ON ur.id = u.role_id
			 ORDER BY u.id ASC`)
		return err
	})

	if err != nil {
		return
	}

	defer rows.Close()

	users = make([]user.User, 0)

	for rows.Next() {
		u, scanErr := scanUser(rows)

		if scanErr != nil {
			err = scanErr
			return
		}
		users = append(users, u)
	}

	err = rows.Err()
	return
}

// ListByRoleName returns active users holding the named role (dropdown source).
func (r *UsersRepo) ListByRoleName(ctx context.Context, roleName string) (users []user.User, err error) {
	var rows pgx.Rows

	err = r.observe("users.list_by_role", func() error {
		rows, err = r.pool.Query(ctx,
			`SELECT `+userColumns+`
			 FROM users u
			 JOIN user_roles ur ON ur.id = u.role_id
			 WHERE lower(ur.role_name) = lower($1) AND u.status = $2
			 ORDER BY u.first_name ASC, u.id ASC`, roleName, int(user.StatusActive))
		return err
	})

	if err != nil {
		return
	}

	defer rows.Close()

	users = make([]user.User, 0)

	for rows.Next() {
		u, scanErr := scanUser(rows)

		if scanErr != nil {
			err = scanErr
			return
		}
		users = append(users, u)
	}

	err = rows.Err()
	return
}

type UpdateUserParams struct {
	FirstName string
	LastName  string
	Username  string
	Email     string
	Phone     string
	RoleID    int
	Status    user.Status
}

func (r *UsersRepo) Update(ctx context.Context, id int, p UpdateUserParams) (user.User, error) {
	op := "users.update"

	var updatedAt time.Time

	err := r.observe(op, func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE users
			 SET first_name = $2, last_name = $3, username = $4, email = $5,
			     phone = $6, role_id = $7, status = $8, updated_at = now()
			 WHERE id = $1
			 RETURNING updated_at`,
			id, p.FirstName, p.LastName, p.Username, p.Email, p.Phone, p.RoleID, int(p.Status),
		).Scan(&updatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		if IsUniqueViolation(err) {
			return user.User{}, user.ErrDuplicate
		}
		return user.User{}, err
	}

	return r.GetByID(ctx, id)
}

func (r *UsersRepo) Delete(ctx context.Context, id int) error {
	op := "users.delete"

	var tag int64

	err := r.observe(op, func() error {
		t, e := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		tag = t.RowsAffected()
		return e
	})

	if err != nil {
		// the ledger references users; refuse rather than orphan the rows
		if IsForeignKeyViolation(err) {
			return user.ErrHasAssignment
		}
		return err
	}

	if tag == 0 {
		return user.ErrNotFound
	}

	return nil
}

// UpdatePasswordHash persists the migrated hash after a legacy plaintext login.
func (r *UsersRepo) UpdatePasswordHash(ctx context.Context, id int, hash string) error {
	op := "users.update_password_hash"

	return r.observe(op, func() error {
		_, err := r.pool.Exec(ctx,
			`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
			id, hash)
		return err
	})
}

// RoleNameForUser does a fresh lookup on every call; the guard chain never
// trusts a role cached in the session.
func (r *UsersRepo) RoleNameForUser(ctx context.Context, userID int) (string, error) {
	op := "users.role_for_user"

	var roleName string

	err := r.observe(op, func() error {
		return r.pool.QueryRow(ctx,
			`SELECT COALESCE(ur.role_name, '')
			 FROM users u
			 LEFT JOIN user_roles ur ON ur.id = u.role_id
			 WHERE u.id = $1`, userID).Scan(&roleName)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", user.ErrNotFound
		}
		return "", err
	}

	return roleName, nil
}

// UsersByIDsTx loads a batch of users inside the bulk-assign transaction; the
// caller diffs the result against the requested ids to find missing users.
func (r *UsersRepo) UsersByIDsTx(ctx context.Context, tx pgx.Tx, ids []int) (map[int]user.User, error) {
	rows, err := tx.Query(ctx,
		`SELECT `+userColumns+`
		 FROM users u
		 LEFT JOIN user_roles ur ON ur.id = u.role_id
		 WHERE u.id = ANY($1)`, ids)

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	found := make(map[int]user.User, len(ids))

	for rows.Next() {
		u, scanErr := scanUser(rows)

		if scanErr != nil {
			return nil, scanErr
		}
		found[u.ID] = u
	}

	return found, rows.Err()
}
