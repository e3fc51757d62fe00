package reminders

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sealbox/internal/server/models"
)

// Repository persists scheduled reminders. Due-selection pushes the
// scheduled_at predicate into SQL, and MarkSent is a compare-and-set on
// status='pending' so concurrent dispatch passes cannot double-send.
type Repository interface {
	// InsertPending creates a pending reminder unless a row for this
	// (letter, offset) pair already exists. Returns whether a row was
	// inserted, so sent offsets are never recreated.
	InsertPending(ctx context.Context, reminder *models.Reminder) (bool, error)

	// DeletePending removes the letter's pending reminders ahead of a
	// reschedule; sent and failed rows stay untouched.
	DeletePending(ctx context.Context, letterID string) error

	// SelectDue returns up to limit pending reminders whose scheduled
	// time has passed.
	SelectDue(ctx context.Context, now time.Time, limit int) ([]*models.Reminder, error)

	// MarkSent transitions pending to sent. Returns false when the row
	// was no longer pending, meaning another pass already sent it.
	MarkSent(ctx context.Context, id string, at time.Time) (bool, error)

	MarkFailed(ctx context.Context, id string, cause string) error

	ListByLetter(ctx context.Context, letterID string) ([]*models.Reminder, error)
}
