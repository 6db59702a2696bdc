package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate creates the schema on boot if it is missing. The unique index on
// shift_assignments.user_id is load-bearing: it is what makes concurrent
// bulk-assign calls safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user_roles (
			id          SERIAL PRIMARY KEY,
			role_name   TEXT NOT NULL,
			status      INT NOT NULL DEFAULT 1,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS user_roles_name_lower_uniq
			ON user_roles (lower(role_name))`,

		`CREATE TABLE IF NOT EXISTS users (
			id            SERIAL PRIMARY KEY,
			first_name    TEXT NOT NULL,
			last_name     TEXT NOT NULL,
			username      TEXT NOT NULL,
			email         TEXT NOT NULL,
			phone         TEXT NOT NULL,
			password_hash TEXT NOT NULL,
			role_id       INT REFERENCES user_roles(id),
			status        INT NOT NULL DEFAULT 1,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_username_uniq ON users (username)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS users_email_uniq ON users (email)`,

		`CREATE TABLE IF NOT EXISTS shifts (
			id          SERIAL PRIMARY KEY,
			name        TEXT NOT NULL,
			start_time  TEXT NOT NULL,
			end_time    TEXT NOT NULL,
			created_by  JSONB NOT NULL,
			updated_by  JSONB NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS shift_assignments (
			id          SERIAL PRIMARY KEY,
			user_id     INT NOT NULL REFERENCES users(id),
			shift_id    INT NOT NULL REFERENCES shifts(id),
			created_by  JSONB NOT NULL,
			updated_by  JSONB NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS shift_assignments_user_uniq
			ON shift_assignments (user_id)`,

		`CREATE TABLE IF NOT EXISTS email_outbox (
			id           UUID PRIMARY KEY,
			kind         TEXT NOT NULL,
			payload      JSONB NOT NULL,
			status       TEXT NOT NULL DEFAULT 'pending',
			attempts     INT NOT NULL DEFAULT 0,
			max_attempts INT NOT NULL DEFAULT 10,
			run_at       TIMESTAMPTZ NOT NULL,
			locked_at    TIMESTAMPTZ,
			locked_by    TEXT,
			last_error   TEXT,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS email_outbox_claim_idx
			ON email_outbox (status, run_at)`,
	}

	for _, stmt := range stmts {
		_, err := pool.Exec(ctx, stmt)

		if err != nil {
			return err
		}
	}

	return nil
}
