package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shiftdesk/shiftdesk/internal/config"
	"github.com/shiftdesk/shiftdesk/internal/domain/user"
	"github.com/shiftdesk/shiftdesk/internal/security"
)

// EnsureAdminUser seeds the reserved admin account (row id 1) and its Admin
// role on first boot. Skipped entirely when the admin credentials are not
// configured.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg config.Config) error {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return nil
	}

	// check if the seed row exists

	var dummy int

	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE id = $1`, user.ReservedAdminID).Scan(&dummy)

	if err == nil {
		return nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := security.HashPassword(cfg.AdminPassword)

	if err != nil {
		return err
	}

	// the Admin role itself may also be missing on a fresh database

	var roleID int

	err = pool.QueryRow(ctx, `SELECT id FROM user_roles WHERE lower(role_name) = lower($1)`, "Admin").Scan(&roleID)

	if errors.Is(err, pgx.ErrNoRows) {
		err = pool.QueryRow(ctx,
			`INSERT INTO user_roles (role_name, status) VALUES ($1, $2) RETURNING id`,
			"Admin", int(1),
		).Scan(&roleID)
	}

	if err != nil {
		return err
	}

	_, err = pool.Exec(ctx,
		`INSERT INTO users (id, first_name, last_name, username, email, phone, password_hash, role_id, status)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		user.ReservedAdminID,
		cfg.AdminFirstName,
		cfg.AdminLastName,
		cfg.AdminUsername,
		cfg.AdminEmail,
		"0000000000",
		hash,
		roleID,
		int(user.StatusActive),
	)

	if err != nil {
		return err
	}

	// keep the serial sequence past the reserved id so the next insert gets 2
	_, err = pool.Exec(ctx, `SELECT setval(pg_get_serial_sequence('users','id'), GREATEST((SELECT MAX(id) FROM users), 1))`)

	return err
}
