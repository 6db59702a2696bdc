package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shiftdesk/shiftdesk/internal/config"
	"github.com/shiftdesk/shiftdesk/internal/db"
	"github.com/shiftdesk/shiftdesk/internal/mailer"
	"github.com/shiftdesk/shiftdesk/internal/notifications"
	"github.com/shiftdesk/shiftdesk/internal/observability"
	"github.com/shiftdesk/shiftdesk/internal/repo/postgres"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)

	defer stop()

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}

	defer pool.Close()

	registry := prometheus.NewRegistry()
	prom := observability.NewProm(registry)

	outboxRepo := postgres.NewOutboxRepo(pool, prom)

	// dev runs log to stdout instead of dialing a relay
	var notifier notifications.Notifier = notifications.NewLogNotifier()

	if cfg.SMTPHost != "" {
		notifier = notifications.NewSMTPNotifier(notifications.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.MailFrom,
		})
	}

	// the breaker keeps a dead relay from tying up every poll cycle
	notifier = notifications.NewProtectedNotifier(notifier, notifications.ProtectedNotifierConfig{})

	host, _ := os.Hostname()
	workerID := host + "-" + strconv.Itoa(os.Getpid())

	w := mailer.New(mailer.Config{
		PollInterval: 500 * time.Millisecond,
		WorkerID:     workerID,
	}, outboxRepo, notifier, prom, log)

	log.Info("mailer started", "workerId", workerID)

	if err := w.Run(ctx); err != nil {
		log.Error("mailer stopped with error", "err", err)
	}

	log.Info("mailer shutdown complete")
}
