package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/sealbox/internal/common"
	"github.com/dmitrijs2005/sealbox/internal/dbx"
	"github.com/dmitrijs2005/sealbox/internal/envelope"
	"github.com/dmitrijs2005/sealbox/internal/server/models"
	lettersrepo "github.com/dmitrijs2005/sealbox/internal/server/repositories/letters"
	remindersrepo "github.com/dmitrijs2005/sealbox/internal/server/repositories/reminders"
	sharetokensrepo "github.com/dmitrijs2005/sealbox/internal/server/repositories/sharetokens"
)

// --- helpers ---

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return db, mock
}

// --- in-memory letters repo ---

type fakeLettersRepo struct {
	letters map[string]*models.Letter
}

func newFakeLettersRepo() *fakeLettersRepo {
	return &fakeLettersRepo{letters: map[string]*models.Letter{}}
}

func (f *fakeLettersRepo) Create(ctx context.Context, letter *models.Letter) (*models.Letter, error) {
	cp := *letter
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	f.letters[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeLettersRepo) GetByID(ctx context.Context, id string) (*models.Letter, error) {
	l, ok := f.letters[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return l, nil
}

func (f *fakeLettersRepo) GetForAuthor(ctx context.Context, id, authorID string) (*models.Letter, error) {
	l, ok := f.letters[id]
	if !ok || l.AuthorID != authorID {
		return nil, common.ErrorNotFound
	}
	return l, nil
}

func (f *fakeLettersRepo) ListPrivate(ctx context.Context, authorID string) ([]*models.Letter, error) {
	result := []*models.Letter{}
	for _, l := range f.letters {
		if l.VisibilityScope == models.ScopePrivate && l.AuthorID == authorID {
			result = append(result, l)
		}
	}
	return result, nil
}

func (f *fakeLettersRepo) ListFamily(ctx context.Context, familyIDs []string) ([]*models.Letter, error) {
	allowed := map[string]struct{}{}
	for _, id := range familyIDs {
		allowed[id] = struct{}{}
	}
	result := []*models.Letter{}
	for _, l := range f.letters {
		if l.VisibilityScope != models.ScopeFamily || l.FamilyID == nil {
			continue
		}
		if _, ok := allowed[*l.FamilyID]; ok {
			result = append(result, l)
		}
	}
	return result, nil
}

func (f *fakeLettersRepo) UpdateSchedule(ctx context.Context, id, authorID string, unlockAt *time.Time) (bool, error) {
	l, ok := f.letters[id]
	if !ok || l.AuthorID != authorID || l.IsUnlocked {
		return false, nil
	}
	l.UnlockAt = unlockAt
	return true, nil
}

func (f *fakeLettersRepo) ReplaceEnvelope(ctx context.Context, id, authorID string, env *envelope.Envelope, at time.Time) (bool, error) {
	l, ok := f.letters[id]
	if !ok || l.AuthorID != authorID || l.IsUnlocked || l.UnlockCodeRegeneratedAt != nil {
		return false, nil
	}
	l.Envelope = *env
	l.UnlockCodeRegeneratedAt = &at
	return true, nil
}

func (f *fakeLettersRepo) PromoteToLink(ctx context.Context, id string) error {
	l, ok := f.letters[id]
	if !ok {
		return nil
	}
	l.VisibilityScope = models.ScopeLink
	l.FamilyID = nil
	return nil
}

func (f *fakeLettersRepo) MarkUnlocked(ctx context.Context, id string, at time.Time) (bool, error) {
	l, ok := f.letters[id]
	if !ok || l.IsUnlocked {
		return false, nil
	}
	l.IsUnlocked = true
	l.UnlockedAt = &at
	return true, nil
}

func (f *fakeLettersRepo) Delete(ctx context.Context, id, authorID string) (bool, error) {
	l, ok := f.letters[id]
	if !ok || l.AuthorID != authorID {
		return false, nil
	}
	delete(f.letters, id)
	return true, nil
}

// --- in-memory share tokens repo ---

type fakeTokensRepo struct {
	tokens []*models.ShareToken
}

func (f *fakeTokensRepo) Create(ctx context.Context, token *models.ShareToken) (*models.ShareToken, error) {
	for _, t := range f.tokens {
		if t.LetterID == token.LetterID && t.Status == models.TokenStatusActive {
			return nil, common.ErrorConflict
		}
	}
	cp := *token
	cp.CreatedAt = time.Now()
	f.tokens = append(f.tokens, &cp)
	return &cp, nil
}

func (f *fakeTokensRepo) GetByToken(ctx context.Context, token string) (*models.ShareToken, error) {
	for _, t := range f.tokens {
		if t.Token == token {
			return t, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeTokensRepo) GetActiveByLetter(ctx context.Context, letterID string) (*models.ShareToken, error) {
	for _, t := range f.tokens {
		if t.LetterID == letterID && t.Status == models.TokenStatusActive {
			return t, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeTokensRepo) Revoke(ctx context.Context, letterID string, reason *string, at time.Time) (bool, error) {
	for _, t := range f.tokens {
		if t.LetterID == letterID && t.Status == models.TokenStatusActive {
			t.Status = models.TokenStatusRevoked
			t.RevokedReason = reason
			t.RevokedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTokensRepo) Rotate(ctx context.Context, letterID, newToken string, at time.Time) (bool, error) {
	for _, t := range f.tokens {
		if t.LetterID == letterID && t.Status == models.TokenStatusActive {
			t.Status = models.TokenStatusRotated
			t.ReplacedByToken = &newToken
			t.RotatedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTokensRepo) RecordAccess(ctx context.Context, token string, at time.Time) error {
	for _, t := range f.tokens {
		if t.Token == token {
			t.ViewCount++
			t.LastAccessedAt = &at
		}
	}
	return nil
}

func (f *fakeTokensRepo) activeCount(letterID string) int {
	n := 0
	for _, t := range f.tokens {
		if t.LetterID == letterID && t.Status == models.TokenStatusActive {
			n++
		}
	}
	return n
}

// --- in-memory reminders repo ---

type fakeRemindersRepo struct {
	rows []*models.Reminder

	// When set, SelectDue returns this snapshot instead of filtering rows,
	// simulating a dispatch pass that raced an earlier one.
	dueOverride []*models.Reminder
}

func (f *fakeRemindersRepo) InsertPending(ctx context.Context, reminder *models.Reminder) (bool, error) {
	for _, r := range f.rows {
		if r.LetterID == reminder.LetterID && r.DaysBefore == reminder.DaysBefore {
			return false, nil
		}
	}
	cp := *reminder
	cp.Status = models.ReminderStatusPending
	cp.CreatedAt = time.Now()
	f.rows = append(f.rows, &cp)
	return true, nil
}

func (f *fakeRemindersRepo) DeletePending(ctx context.Context, letterID string) error {
	kept := f.rows[:0]
	for _, r := range f.rows {
		if r.LetterID == letterID && r.Status == models.ReminderStatusPending {
			continue
		}
		kept = append(kept, r)
	}
	f.rows = kept
	return nil
}

func (f *fakeRemindersRepo) SelectDue(ctx context.Context, now time.Time, limit int) ([]*models.Reminder, error) {
	if f.dueOverride != nil {
		return f.dueOverride, nil
	}
	result := []*models.Reminder{}
	for _, r := range f.rows {
		if r.Status == models.ReminderStatusPending && !r.ScheduledAt.After(now) {
			result = append(result, r)
		}
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (f *fakeRemindersRepo) MarkSent(ctx context.Context, id string, at time.Time) (bool, error) {
	for _, r := range f.rows {
		if r.ID == id && r.Status == models.ReminderStatusPending {
			r.Status = models.ReminderStatusSent
			r.SentAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRemindersRepo) MarkFailed(ctx context.Context, id string, cause string) error {
	for _, r := range f.rows {
		if r.ID == id {
			r.Status = models.ReminderStatusFailed
			r.LastError = &cause
		}
	}
	return nil
}

func (f *fakeRemindersRepo) ListByLetter(ctx context.Context, letterID string) ([]*models.Reminder, error) {
	result := []*models.Reminder{}
	for _, r := range f.rows {
		if r.LetterID == letterID {
			result = append(result, r)
		}
	}
	return result, nil
}

func (f *fakeRemindersRepo) byOffset(letterID string, daysBefore int) *models.Reminder {
	for _, r := range f.rows {
		if r.LetterID == letterID && r.DaysBefore == daysBefore {
			return r
		}
	}
	return nil
}

// --- repo manager over the fakes ---

type fakeRepoManager struct {
	letters   *fakeLettersRepo
	tokens    *fakeTokensRepo
	reminders *fakeRemindersRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		letters:   newFakeLettersRepo(),
		tokens:    &fakeTokensRepo{},
		reminders: &fakeRemindersRepo{},
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error       { return nil }
func (m *fakeRepoManager) Letters(db dbx.DBTX) lettersrepo.Repository         { return m.letters }
func (m *fakeRepoManager) ShareTokens(db dbx.DBTX) sharetokensrepo.Repository { return m.tokens }
func (m *fakeRepoManager) Reminders(db dbx.DBTX) remindersrepo.Repository     { return m.reminders }

// --- collaborator fakes ---

type fakeBlobStore struct {
	putErr error
	getErr error
}

func (f *fakeBlobStore) PresignPut(ctx context.Context) (string, string, error) {
	if f.putErr != nil {
		return "", "", f.putErr
	}
	return "letters/2026/1/1/fixture", "https://blobs.local/put/fixture", nil
}

func (f *fakeBlobStore) PresignGet(ctx context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	return "https://blobs.local/get/" + key, nil
}

type fakeFamilies struct {
	families []string
	member   bool
	err      error
}

func (f *fakeFamilies) FamiliesOf(ctx context.Context, userID string) ([]string, error) {
	return f.families, f.err
}

func (f *fakeFamilies) IsMember(ctx context.Context, userID, familyID string) (bool, error) {
	return f.member, f.err
}

type fakeNotifier struct {
	sent []*models.Reminder
	err  error
}

func (f *fakeNotifier) NotifyReminder(ctx context.Context, reminder *models.Reminder) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, reminder)
	return nil
}
