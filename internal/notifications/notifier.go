package notifications

import "context"

type AssignmentMailInput struct {
	Email     string
	FirstName string
	ShiftName string
	// 12-hour display strings, e.g "9:00 AM"
	StartTime string
	EndTime   string
}

type AccountMailInput struct {
	Email     string
	FirstName string
	Username  string
}

type Notifier interface {
	SendAssignmentCreated(ctx context.Context, in AssignmentMailInput) error
	SendAssignmentUpdated(ctx context.Context, in AssignmentMailInput) error
	SendAssignmentDeleted(ctx context.Context, in AssignmentMailInput) error
	SendAccountCreated(ctx context.Context, in AccountMailInput) error
}
