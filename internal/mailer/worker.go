package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shiftdesk/shiftdesk/internal/domain/outbox"
	"github.com/shiftdesk/shiftdesk/internal/notifications"
	"github.com/shiftdesk/shiftdesk/internal/observability"
)

type OutboxRepository interface {
	ClaimNext(ctx context.Context, workerID string) (outbox.Message, error)
	MarkDone(ctx context.Context, id string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, id string, lastError string) error
}

type Config struct {
	PollInterval time.Duration
	WorkerID     string
}

type Worker struct {
	cfg      Config
	repo     OutboxRepository
	notifier notifications.Notifier
	prom     *observability.Prom
	log      *slog.Logger
}

func New(cfg Config, repo OutboxRepository, notifier notifications.Notifier, prom *observability.Prom, log *slog.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}

	return &Worker{
		cfg:      cfg,
		repo:     repo,
		notifier: notifier,
		prom:     prom,
		log:      log,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("mailer received shutdown signal")
			return nil

		case <-ticker.C:
			// drain everything that is due before sleeping again
			for {
				processed, err := w.ProcessOne(ctx)

				if err != nil {
					w.log.Error("mailer delivery error", "err", err)
				}

				if !processed {
					break
				}
			}
		}
	}
}

// ProcessOne claims and delivers a single message. Returns false when the
// outbox had nothing due.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)

	m, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, outbox.ErrMessageNotFound) {
			return false, nil
		}

		return false, err
	}

	if w.prom != nil {
		w.prom.MailInFlight.Inc()
		defer w.prom.MailInFlight.Dec()
	}

	start := time.Now()

	err = w.deliver(ctx, m)

	result := "done"

	if err != nil {
		w.handleFailure(ctx, m, err)

		result = "retry"

		if m.Attempts >= m.MaxAttempts {
			result = "failed"
		}
	} else if markErr := w.repo.MarkDone(ctx, m.ID); markErr != nil {
		_ = w.repo.MarkFailed(ctx, m.ID, "mark_done_failed: "+markErr.Error())
		result = "failed"
	}

	if w.prom != nil {
		w.prom.MailResults.WithLabelValues(m.Kind, result).Inc()
		w.prom.MailDuration.WithLabelValues(m.Kind, result).Observe(time.Since(start).Seconds())
	}

	return true, nil
}

func (w *Worker) deliver(ctx context.Context, m outbox.Message) error {
	switch m.Kind {
	case outbox.KindAssignmentCreated, outbox.KindAssignmentUpdated, outbox.KindAssignmentDeleted:
		var p outbox.AssignmentMailPayload

		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}

		in := notifications.AssignmentMailInput{
			Email:     p.Email,
			FirstName: p.FirstName,
			ShiftName: p.ShiftName,
			StartTime: p.StartTime,
			EndTime:   p.EndTime,
		}

		switch m.Kind {
		case outbox.KindAssignmentCreated:
			return w.notifier.SendAssignmentCreated(ctx, in)
		case outbox.KindAssignmentUpdated:
			return w.notifier.SendAssignmentUpdated(ctx, in)
		default:
			return w.notifier.SendAssignmentDeleted(ctx, in)
		}

	case outbox.KindAccountCreated:
		var p outbox.AccountMailPayload

		if err := json.Unmarshal(m.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}

		return w.notifier.SendAccountCreated(ctx, notifications.AccountMailInput{
			Email:     p.Email,
			FirstName: p.FirstName,
			Username:  p.Username,
		})

	default:
		return fmt.Errorf("unknown message kind %q", m.Kind)
	}
}

func (w *Worker) handleFailure(ctx context.Context, m outbox.Message, cause error) {
	if m.Attempts >= m.MaxAttempts {
		w.log.Error("mail delivery permanently failed", "id", m.ID, "kind", m.Kind, "err", cause)

		if err := w.repo.MarkFailed(ctx, m.ID, cause.Error()); err != nil {
			w.log.Error("mark failed error", "id", m.ID, "err", err)
		}
		return
	}

	delay := ExponentialBackoff(m.Attempts)

	w.log.Warn("mail delivery failed, rescheduling", "id", m.ID, "kind", m.Kind, "delay", delay.String(), "err", cause)

	if err := w.repo.Reschedule(ctx, m.ID, time.Now().UTC().Add(delay), cause.Error()); err != nil {
		w.log.Error("reschedule error", "id", m.ID, "err", err)
	}
}
