package outbox

import "encoding/json"

const (
	KindAssignmentCreated = "assignment.created"
	KindAssignmentUpdated = "assignment.updated"
	KindAssignmentDeleted = "assignment.deleted"
	KindAccountCreated    = "account.created"
)

// AssignmentMailPayload carries everything the mailer needs so it never has to
// read the ledger back; deleted shifts are rendered from this captured copy.
type AssignmentMailPayload struct {
	AssignmentID int    `json:"assignmentId"`
	Email        string `json:"email"`
	FirstName    string `json:"firstName"`
	ShiftName    string `json:"shiftName"`
	// already formatted for display, 12-hour clock
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type AccountMailPayload struct {
	UserID    int    `json:"userId"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	Username  string `json:"username"`
}

func (p AssignmentMailPayload) JSON() (json.RawMessage, error) {
	b, err := json.Marshal(p)

	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

func (p AccountMailPayload) JSON() (json.RawMessage, error) {
	b, err := json.Marshal(p)

	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}
