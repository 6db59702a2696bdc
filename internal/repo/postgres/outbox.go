package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shiftdesk/shiftdesk/internal/domain/outbox"
	"github.com/shiftdesk/shiftdesk/internal/observability"
)

type OutboxRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewOutboxRepo(pool *pgxpool.Pool, prom *observability.Prom) *OutboxRepo {
	return &OutboxRepo{pool: pool, prom: prom}
}

func (r *OutboxRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

// CreateTx enqueues a message inside the caller's transaction so the email and
// the mutation that caused it commit or roll back together.
func (r *OutboxRepo) CreateTx(ctx context.Context, tx pgx.Tx, req outbox.CreateRequest) (outbox.Message, error) {
	m := outbox.New(req)

	op := "outbox.create_tx"

	err := r.observe(op, func() error {
		_, e := tx.Exec(ctx,
			`INSERT INTO email_outbox (id, kind, payload, status, attempts, max_attempts, run_at, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			m.ID, m.Kind, m.Payload, string(m.Status), m.Attempts, m.MaxAttempts, m.RunAt, m.CreatedAt, m.UpdatedAt)
		return e
	})

	if err != nil {
		return outbox.Message{}, err
	}

	return m, nil
}

// Create enqueues outside a transaction, for mutations that run as a single
// statement (e.g. the welcome email after a user insert).
func (r *OutboxRepo) Create(ctx context.Context, req outbox.CreateRequest) (outbox.Message, error) {
	m := outbox.New(req)

	op := "outbox.create"

	err := r.observe(op, func() error {
		_, e := r.pool.Exec(ctx,
			`INSERT INTO email_outbox (id, kind, payload, status, attempts, max_attempts, run_at, created_at, updated_at)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			m.ID, m.Kind, m.Payload, string(m.Status), m.Attempts, m.MaxAttempts, m.RunAt, m.CreatedAt, m.UpdatedAt)
		return e
	})

	if err != nil {
		return outbox.Message{}, err
	}

	return m, nil
}

// ClaimNext locks one due pending message for this worker. SKIP LOCKED keeps
// multiple mailer processes from fighting over the same row.
func (r *OutboxRepo) ClaimNext(ctx context.Context, workerID string) (outbox.Message, error) {
	var m outbox.Message
	var status string

	err := r.observe("outbox.claim_next", func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE email_outbox
			 SET status = 'processing', locked_at = now(), locked_by = $1,
			     attempts = attempts + 1, updated_at = now()
			 WHERE id = (
			     SELECT id FROM email_outbox
			     WHERE status = 'pending' AND run_at <= now()
			     ORDER BY run_at ASC
			     LIMIT 1
			     FOR UPDATE SKIP LOCKED
			 )
			 RETURNING id, kind, payload, status, attempts, max_attempts, run_at, locked_at, locked_by, last_error, created_at, updated_at`,
			workerID,
		).Scan(&m.ID, &m.Kind, &m.Payload, &status, &m.Attempts, &m.MaxAttempts, &m.RunAt,
			&m.LockedAt, &m.LockedBy, &m.LastError, &m.CreatedAt, &m.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return outbox.Message{}, outbox.ErrMessageNotFound
		}
		return outbox.Message{}, err
	}

	m.Status = outbox.Status(status)

	return m, nil
}

func (r *OutboxRepo) MarkDone(ctx context.Context, id string) error {
	return r.observe("outbox.mark_done", func() error {
		_, err := r.pool.Exec(ctx,
			`UPDATE email_outbox
			 SET status = 'done', locked_at = NULL, locked_by = NULL, updated_at = now()
			 WHERE id = $1`, id)
		return err
	})
}

// Reschedule returns a failed delivery to the pending pool at a later run_at.
func (r *OutboxRepo) Reschedule(ctx context.Context, id string, runAt time.Time, lastError string) error {
	return r.observe("outbox.reschedule", func() error {
		_, err := r.pool.Exec(ctx,
			`UPDATE email_outbox
			 SET status = 'pending', run_at = $2, last_error = $3,
			     locked_at = NULL, locked_by = NULL, updated_at = now()
			 WHERE id = $1`, id, runAt, lastError)
		return err
	})
}

func (r *OutboxRepo) MarkFailed(ctx context.Context, id string, lastError string) error {
	return r.observe("outbox.mark_failed", func() error {
		_, err := r.pool.Exec(ctx,
			`UPDATE email_outbox
			 SET status = 'failed', last_error = $2,
			     locked_at = NULL, locked_by = NULL, updated_at = now()
			 WHERE id = $1`, id, lastError)
		return err
	})
}
