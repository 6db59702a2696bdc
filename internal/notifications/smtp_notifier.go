package notifications

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"
)

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// SMTPNotifier delivers over a plain SMTP relay using gomail. Each send dials
// a fresh connection; volume is low enough that pooling is not worth it.
type SMTPNotifier struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass),
		from:   cfg.From,
	}
}

func (n *SMTPNotifier) send(ctx context.Context, to, subject, htmlBody string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", n.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	// gomail has no context support; run the dial+send in a goroutine so the
	// caller's deadline still cuts the wait short.
	done := make(chan error, 1)

	go func() {
		done <- n.dialer.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *SMTPNotifier) SendAssignmentCreated(ctx context.Context, in AssignmentMailInput) error {
	subject := "New shift assigned: " + in.ShiftName
	body := fmt.Sprintf(
		`<p>Hi %s,</p><p>You have been assigned to the <b>%s</b> shift (%s &ndash; %s).</p>`,
		in.FirstName, in.ShiftName, in.StartTime, in.EndTime,
	)
	return n.send(ctx, in.Email, subject, body)
}

func (n *SMTPNotifier) SendAssignmentUpdated(ctx context.Context, in AssignmentMailInput) error {
	subject := "Your shift assignment changed"
	body := fmt.Sprintf(
		`<p>Hi %s,</p><p>Your assignment is now the <b>%s</b> shift (%s &ndash; %s).</p>`,
		in.FirstName, in.ShiftName, in.StartTime, in.EndTime,
	)
	return n.send(ctx, in.Email, subject, body)
}

func (n *SMTPNotifier) SendAssignmentDeleted(ctx context.Context, in AssignmentMailInput) error {
	subject := "Shift assignment removed"
	body := fmt.Sprintf(
		`<p>Hi %s,</p><p>Your assignment to the <b>%s</b> shift (%s &ndash; %s) has been removed.</p>`,
		in.FirstName, in.ShiftName, in.StartTime, in.EndTime,
	)
	return n.send(ctx, in.Email, subject, body)
}

func (n *SMTPNotifier) SendAccountCreated(ctx context.Context, in AccountMailInput) error {
	subject := "Your shiftdesk account"
	body := fmt.Sprintf(
		`<p>Hi %s,</p><p>An account has been created for you. Sign in with username <b>%s</b>.</p>`,
		in.FirstName, in.Username,
	)
	return n.send(ctx, in.Email, subject, body)
}
