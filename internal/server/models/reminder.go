package models

import "time"

// Reminder statuses. A reminder moves pending→sent at most once; delivery
// failures park it in failed with the error recorded.
const (
	ReminderStatusPending = "pending"
	ReminderStatusSent    = "sent"
	ReminderStatusFailed  = "failed"
)

// Reminder is one scheduled notification tied to a letter's time lock,
// keyed by (letter, daysBefore). ScheduledAt equals unlockAt minus the
// offset.
type Reminder struct {
	ID          string
	LetterID    string
	OwnerUserID string
	DaysBefore  int
	ScheduledAt time.Time
	Status      string
	SentAt      *time.Time
	LastError   *string
	CreatedAt   time.Time
}
