package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/sealbox/internal/common"
	"github.com/dmitrijs2005/sealbox/internal/dbx"
	"github.com/dmitrijs2005/sealbox/internal/notify"
	"github.com/dmitrijs2005/sealbox/internal/ratelimit"
	"github.com/dmitrijs2005/sealbox/internal/server/models"
	"github.com/dmitrijs2005/sealbox/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// DispatchStats summarizes one dispatch pass.
type DispatchStats struct {
	Sent    int
	Failed  int
	Skipped int
}

// ReminderService schedules and dispatches time-lock reminders.
//
// Scheduling is idempotent per (letter, offset): offsets already sent are
// never recreated, offsets already in the past are never created. Dispatch
// is safe to run repeatedly and concurrently; the pending→sent transition is
// a conditional write, so overlapping passes cannot double-send. The TTL
// limiter in front of delivery is advisory only.
type ReminderService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	notifier    notify.ReminderNotifier
	limiter     *ratelimit.TTLLimiter
	now         func() time.Time
}

// NewReminderService constructs a ReminderService. The limiter may be nil;
// dispatch correctness never depends on it.
func NewReminderService(db *sql.DB, m repomanager.RepositoryManager,
	notifier notify.ReminderNotifier, limiter *ratelimit.TTLLimiter) *ReminderService {
	return &ReminderService{
		db:          db,
		repomanager: m,
		notifier:    notifier,
		limiter:     limiter,
		now:         time.Now,
	}
}

// Schedule recomputes the letter's reminders for the given unlock time and
// offsets. Pending rows are dropped and rebuilt; sent and failed rows stay
// untouched, and their offsets are not recreated.
func (s *ReminderService) Schedule(ctx context.Context, letterID, ownerID string, unlockAt *time.Time, daysBefore []int) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.scheduleTx(ctx, tx, letterID, ownerID, unlockAt, daysBefore)
	})
}

func (s *ReminderService) scheduleTx(ctx context.Context, db dbx.DBTX, letterID, ownerID string, unlockAt *time.Time, daysBefore []int) error {

	offsets, err := normalizeOffsets(daysBefore)
	if err != nil {
		return err
	}

	repo := s.repomanager.Reminders(db)

	if err := repo.DeletePending(ctx, letterID); err != nil {
		return fmt.Errorf("error clearing pending reminders: %v", err)
	}

	// No time lock means nothing to remind about.
	if unlockAt == nil {
		return nil
	}

	now := s.now()
	for _, offset := range offsets {
		scheduledAt := unlockAt.Add(-time.Duration(offset) * 24 * time.Hour)
		if !scheduledAt.After(now) {
			continue
		}

		_, err := repo.InsertPending(ctx, &models.Reminder{
			ID:          uuid.NewString(),
			LetterID:    letterID,
			OwnerUserID: ownerID,
			DaysBefore:  offset,
			ScheduledAt: scheduledAt,
		})
		if err != nil {
			return fmt.Errorf("error creating reminder: %v", err)
		}
	}

	return nil
}

// DispatchDue delivers reminders whose scheduled time has passed, at most
// limit of them. Delivery failures park the reminder as failed and the pass
// continues; a reminder another pass already sent counts as skipped.
func (s *ReminderService) DispatchDue(ctx context.Context, now time.Time, limit int) (*DispatchStats, error) {
	repo := s.repomanager.Reminders(s.db)

	due, err := repo.SelectDue(ctx, now, limit)
	if err != nil {
		return nil, fmt.Errorf("error selecting due reminders: %v", err)
	}

	stats := &DispatchStats{}
	for _, r := range due {
		if s.limiter != nil && !s.limiter.Allow(r.ID) {
			stats.Skipped++
			continue
		}

		if err := s.notifier.NotifyReminder(ctx, r); err != nil {
			if markErr := repo.MarkFailed(ctx, r.ID, err.Error()); markErr != nil {
				return stats, fmt.Errorf("error marking reminder failed: %v", markErr)
			}
			stats.Failed++
			continue
		}

		sent, err := repo.MarkSent(ctx, r.ID, now)
		if err != nil {
			return stats, fmt.Errorf("error marking reminder sent: %v", err)
		}
		if !sent {
			// Another pass got there first.
			stats.Skipped++
			continue
		}
		stats.Sent++
	}

	return stats, nil
}

// ListByLetter returns the letter's reminder rows, all statuses included.
func (s *ReminderService) ListByLetter(ctx context.Context, letterID string) ([]*models.Reminder, error) {
	repo := s.repomanager.Reminders(s.db)
	return repo.ListByLetter(ctx, letterID)
}

func normalizeOffsets(daysBefore []int) ([]int, error) {
	seen := make(map[int]struct{}, len(daysBefore))
	offsets := make([]int, 0, len(daysBefore))
	for _, d := range daysBefore {
		if d <= 0 {
			return nil, fmt.Errorf("%w: reminder offset must be a positive number of days", common.ErrorValidation)
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		offsets = append(offsets, d)
	}
	sort.Ints(offsets)
	return offsets, nil
}
