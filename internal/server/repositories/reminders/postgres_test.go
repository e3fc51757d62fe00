package reminders

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/sealbox/internal/server/models"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func TestInsertPending_NewRow(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+reminders\s*\(id,\s*letter_id,\s*owner_user_id,\s*days_before,\s*scheduled_at,\s*status\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*'pending'\)\s*ON\s+CONFLICT\s*\(letter_id,\s*days_before\)\s*DO\s+NOTHING\s*$`

	at := time.Now().Add(72 * time.Hour)
	mock.ExpectExec(q).
		WithArgs("r-1", "l-1", "u-1", 7, at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inserted, err := repo.InsertPending(context.Background(), &models.Reminder{
		ID: "r-1", LetterID: "l-1", OwnerUserID: "u-1", DaysBefore: 7, ScheduledAt: at,
	})
	if err != nil {
		t.Fatalf("InsertPending error: %v", err)
	}
	if !inserted {
		t.Fatal("expected row to be inserted")
	}
}

func TestInsertPending_ExistingOffsetSkipped(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^INSERT\s+INTO\s+reminders`

	at := time.Now().Add(72 * time.Hour)
	mock.ExpectExec(q).
		WithArgs("r-2", "l-1", "u-1", 7, at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	inserted, err := repo.InsertPending(context.Background(), &models.Reminder{
		ID: "r-2", LetterID: "l-1", OwnerUserID: "u-1", DaysBefore: 7, ScheduledAt: at,
	})
	if err != nil {
		t.Fatalf("InsertPending error: %v", err)
	}
	if inserted {
		t.Fatal("expected conflict with existing offset to insert nothing")
	}
}

func TestDeletePending_OnlyPendingRows(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^DELETE\s+FROM\s+reminders\s+WHERE\s+letter_id\s*=\s*\$1\s+AND\s+status\s*=\s*'pending'\s*$`

	mock.ExpectExec(q).
		WithArgs("l-1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := repo.DeletePending(context.Background(), "l-1"); err != nil {
		t.Fatalf("DeletePending error: %v", err)
	}
}

func TestSelectDue_PredicateInQuery(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+.*FROM\s+reminders\s+WHERE\s+status\s*=\s*'pending'\s+AND\s+scheduled_at\s*<=\s*\$1\s+ORDER\s+BY\s+scheduled_at\s+LIMIT\s+\$2\s*$`

	now := time.Now()
	created := now.Add(-time.Hour)
	rows := sqlmock.NewRows([]string{
		"id", "letter_id", "owner_user_id", "days_before", "scheduled_at",
		"status", "sent_at", "last_error", "created_at",
	}).
		AddRow("r-1", "l-1", "u-1", 7, now.Add(-time.Minute), "pending", nil, nil, created).
		AddRow("r-2", "l-2", "u-2", 1, now.Add(-time.Second), "pending", nil, nil, created)

	mock.ExpectQuery(q).WithArgs(now, 50).WillReturnRows(rows)

	due, err := repo.SelectDue(context.Background(), now, 50)
	if err != nil {
		t.Fatalf("SelectDue error: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due reminders, got %d", len(due))
	}
	if due[0].ID != "r-1" || due[1].ID != "r-2" {
		t.Fatalf("unexpected order: %+v", due)
	}
}

func TestMarkSent_CASOnPending(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+reminders\s+SET\s+status\s*=\s*'sent',\s*sent_at\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1\s+AND\s+status\s*=\s*'pending'\s*$`

	at := time.Now()
	mock.ExpectExec(q).
		WithArgs("r-1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sent, err := repo.MarkSent(context.Background(), "r-1", at)
	if err != nil {
		t.Fatalf("MarkSent error: %v", err)
	}
	if !sent {
		t.Fatal("expected pending row to transition")
	}
}

func TestMarkSent_AlreadySentElsewhere(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+reminders\s+SET\s+status\s*=\s*'sent'`

	at := time.Now()
	mock.ExpectExec(q).
		WithArgs("r-1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	sent, err := repo.MarkSent(context.Background(), "r-1", at)
	if err != nil {
		t.Fatalf("MarkSent error: %v", err)
	}
	if sent {
		t.Fatal("expected zero affected rows to report not sent")
	}
}

func TestMarkFailed(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^UPDATE\s+reminders\s+SET\s+status\s*=\s*'failed',\s*last_error\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1\s+AND\s+status\s*=\s*'pending'\s*$`

	mock.ExpectExec(q).
		WithArgs("r-1", "smtp timeout").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.MarkFailed(context.Background(), "r-1", "smtp timeout"); err != nil {
		t.Fatalf("MarkFailed error: %v", err)
	}
}

func TestSelectDue_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	q := `(?s)^SELECT\s+.*FROM\s+reminders`

	now := time.Now()
	mock.ExpectQuery(q).WithArgs(now, 10).WillReturnError(errors.New("db down"))

	_, err := repo.SelectDue(context.Background(), now, 10)
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}
