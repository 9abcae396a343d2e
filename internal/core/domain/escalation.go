package domain

import "time"

// Escalation records a terminal failure that was pushed past the local call
// site to the failure boundary.
type Escalation struct {
	ID         string        `json:"id"          db:"id"`
	Key        []string      `json:"key"         db:"key_segments"`
	Resource   string        `json:"resource"    db:"resource"`
	Category   ErrorCategory `json:"category"    db:"category"`
	Status     int           `json:"status"      db:"status"`
	Message    string        `json:"message"     db:"message"`
	Attempts   int           `json:"attempts"    db:"attempts"`
	OccurredAt time.Time     `json:"occurred_at" db:"occurred_at"`
}
