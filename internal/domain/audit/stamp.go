package audit

// Stamp is a point-in-time copy of the acting user, stored on audited rows.
// It is deliberately a value snapshot, not a foreign key: renaming or deleting
// the user later must not rewrite history.
type Stamp struct {
	ID        int    `json:"id"`
	FirstName string `json:"firstName"`
}
