package notifications

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"
)

// LogNotifier is the dev/test stand-in for the SMTP relay.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier { return &LogNotifier{} }

func (n *LogNotifier) simulate(ctx context.Context) error {
	// Optional: simulate slow provider
	if msStr := os.Getenv("NOTIFIER_SLEEP_MS"); msStr != "" {
		ms, _ := strconv.Atoi(msStr)
		if ms > 0 {
			select {
			case <-time.After(time.Duration(ms) * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	// Optional: simulate provider outage
	if os.Getenv("NOTIFIER_FAIL") == "1" {
		return fmt.Errorf("provider down (simulated)")
	}

	return nil
}

func (n *LogNotifier) SendAssignmentCreated(ctx context.Context, in AssignmentMailInput) error {
	if err := n.simulate(ctx); err != nil {
		return err
	}

	log.Printf("notification.assignment_created email=%s shift=%s start=%s end=%s",
		in.Email, in.ShiftName, in.StartTime, in.EndTime,
	)
	return nil
}

func (n *LogNotifier) SendAssignmentUpdated(ctx context.Context, in AssignmentMailInput) error {
	if err := n.simulate(ctx); err != nil {
		return err
	}

	log.Printf("notification.assignment_updated email=%s shift=%s start=%s end=%s",
		in.Email, in.ShiftName, in.StartTime, in.EndTime,
	)
	return nil
}

func (n *LogNotifier) SendAssignmentDeleted(ctx context.Context, in AssignmentMailInput) error {
	if err := n.simulate(ctx); err != nil {
		return err
	}

	log.Printf("notification.assignment_deleted email=%s shift=%s", in.Email, in.ShiftName)
	return nil
}

func (n *LogNotifier) SendAccountCreated(ctx context.Context, in AccountMailInput) error {
	if err := n.simulate(ctx); err != nil {
		return err
	}

	log.Printf("notification.account_created email=%s username=%s", in.Email, in.Username)
	return nil
}
