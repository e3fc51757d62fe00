package reminders

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sealbox/internal/dbx"
	"github.com/dmitrijs2005/sealbox/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const reminderColumns = `id, letter_id, owner_user_id, days_before, scheduled_at, status, sent_at, last_error, created_at`

func (r *PostgresRepository) InsertPending(ctx context.Context, reminder *models.Reminder) (bool, error) {

	query :=
		`INSERT INTO reminders (id, letter_id, owner_user_id, days_before, scheduled_at, status)
		 VALUES ($1, $2, $3, $4, $5, 'pending')
		 ON CONFLICT (letter_id, days_before) DO NOTHING
		 `

	res, err := r.db.ExecContext(ctx, query,
		reminder.ID, reminder.LetterID, reminder.OwnerUserID,
		reminder.DaysBefore, reminder.ScheduledAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return rowsAffected(res)
}

func (r *PostgresRepository) DeletePending(ctx context.Context, letterID string) error {

	query :=
		`DELETE FROM reminders
		 WHERE letter_id = $1 AND status = 'pending'
		 `

	_, err := r.db.ExecContext(ctx, query, letterID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) SelectDue(ctx context.Context, now time.Time, limit int) ([]*models.Reminder, error) {

	query :=
		`SELECT ` + reminderColumns + `
		 FROM reminders
		 WHERE status = 'pending' AND scheduled_at <= $1
		 ORDER BY scheduled_at
		 LIMIT $2
		 `

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	return scanReminders(rows)
}

func (r *PostgresRepository) MarkSent(ctx context.Context, id string, at time.Time) (bool, error) {

	query :=
		`UPDATE reminders
		 SET status = 'sent', sent_at = $2
		 WHERE id = $1 AND status = 'pending'
		 `

	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return rowsAffected(res)
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, id string, cause string) error {

	query :=
		`UPDATE reminders
		 SET status = 'failed', last_error = $2
		 WHERE id = $1 AND status = 'pending'
		 `

	_, err := r.db.ExecContext(ctx, query, id, cause)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) ListByLetter(ctx context.Context, letterID string) ([]*models.Reminder, error) {

	query :=
		`SELECT ` + reminderColumns + `
		 FROM reminders
		 WHERE letter_id = $1
		 ORDER BY days_before DESC
		 `

	rows, err := r.db.QueryContext(ctx, query, letterID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	return scanReminders(rows)
}

func scanReminders(rows *sql.Rows) ([]*models.Reminder, error) {
	result := []*models.Reminder{}
	for rows.Next() {
		reminder := &models.Reminder{}
		err := rows.Scan(
			&reminder.ID, &reminder.LetterID, &reminder.OwnerUserID,
			&reminder.DaysBefore, &reminder.ScheduledAt, &reminder.Status,
			&reminder.SentAt, &reminder.LastError, &reminder.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, reminder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func rowsAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}
