// Package services contains server-side business logic. This file implements
// LetterService, which handles sealing letters, author reads and listings,
// schedule edits, unlock-code regeneration, and deletion.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/sealbox/internal/blobstore"
	"github.com/dmitrijs2005/sealbox/internal/common"
	"github.com/dmitrijs2005/sealbox/internal/dbx"
	"github.com/dmitrijs2005/sealbox/internal/envelope"
	"github.com/dmitrijs2005/sealbox/internal/secretshare"
	"github.com/dmitrijs2005/sealbox/internal/server/config"
	"github.com/dmitrijs2005/sealbox/internal/server/models"
	"github.com/dmitrijs2005/sealbox/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// FamilyDirectory resolves family membership. Identity and family data live
// in an external system; this core only consumes membership answers.
type FamilyDirectory interface {
	FamiliesOf(ctx context.Context, userID string) ([]string, error)
	IsMember(ctx context.Context, userID, familyID string) (bool, error)
}

// CreateLetterRequest carries everything the author submits at sealing time.
// DataKey is the raw symmetric key produced by the client-side cipher; it is
// split and wiped here, never persisted.
type CreateLetterRequest struct {
	VisibilityScope    string
	FamilyID           *string
	DataKey            []byte
	UnlockCode         string
	EncryptionIV       []byte
	UnlockAt           *time.Time
	ReminderDaysBefore []int
}

// CreateLetterResult returns the persisted letter, the backup share for the
// author to store offline, and a presigned URL to upload the encrypted body.
type CreateLetterResult struct {
	Letter      *models.Letter
	BackupShare []byte
	UploadURL   string
}

// LetterService provides author-facing letter operations:
// - Create: split the data key, wrap the client share, persist, presign upload
// - Get/List: author view and scope-isolated listings
// - UpdateSchedule / RegenerateUnlockCode: pre-unlock mutations, conflict-safe
// - Delete: allowed at any time
type LetterService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blobstore.BlobStore
	families    FamilyDirectory
	reminders   *ReminderService
	splitter    *secretshare.Splitter
	codec       *envelope.Codec
	now         func() time.Time
}

// NewLetterService constructs a LetterService using repositories and server config.
func NewLetterService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config,
	blobs blobstore.BlobStore, families FamilyDirectory, reminders *ReminderService) *LetterService {
	return &LetterService{
		db:          db,
		repomanager: m,
		blobs:       blobs,
		families:    families,
		reminders:   reminders,
		splitter:    secretshare.Default(),
		codec:       envelope.NewCodec(cfg.KDFIterations),
		now:         time.Now,
	}
}

// Create seals a new letter. The data key is split into client, server, and
// backup shares; the client share is wrapped under the unlock code and only
// the wrapped form is stored. The key and the clear client share are wiped
// before returning. Letters are created private or family; link scope is
// reached only by promotion on first share.
func (s *LetterService) Create(ctx context.Context, authorID string, req *CreateLetterRequest) (*CreateLetterResult, error) {

	if err := s.validateCreate(ctx, authorID, req); err != nil {
		return nil, err
	}

	shares, err := s.splitter.Split(req.DataKey)
	if err != nil {
		return nil, err
	}
	common.WipeByteArray(req.DataKey)

	clientShare, serverShare, backupShare := shares[0], shares[1], shares[2]

	env, err := s.codec.Wrap(clientShare, req.UnlockCode)
	common.WipeByteArray(clientShare)
	if err != nil {
		return nil, err
	}

	storageKey, uploadURL, err := s.blobs.PresignPut(ctx)
	if err != nil {
		return nil, fmt.Errorf("error presigning upload: %v", err)
	}

	letter := &models.Letter{
		ID:              uuid.NewString(),
		AuthorID:        authorID,
		VisibilityScope: req.VisibilityScope,
		FamilyID:        req.FamilyID,
		CiphertextRef:   storageKey,
		EncryptionIV:    req.EncryptionIV,
		ServerShare:     serverShare,
		Envelope:        *env,
		UnlockAt:        req.UnlockAt,
	}

	repo := s.repomanager.Letters(s.db)
	letter, err = repo.Create(ctx, letter)
	if err != nil {
		return nil, fmt.Errorf("error creating letter: %v", err)
	}

	if err := s.reminders.Schedule(ctx, letter.ID, authorID, req.UnlockAt, req.ReminderDaysBefore); err != nil {
		return nil, fmt.Errorf("error scheduling reminders: %v", err)
	}

	return &CreateLetterResult{
		Letter:      letter,
		BackupShare: backupShare,
		UploadURL:   uploadURL,
	}, nil
}

func (s *LetterService) validateCreate(ctx context.Context, authorID string, req *CreateLetterRequest) error {
	switch req.VisibilityScope {
	case models.ScopePrivate:
		if req.FamilyID != nil {
			return fmt.Errorf("%w: family id set on a private letter", common.ErrorValidation)
		}
	case models.ScopeFamily:
		if req.FamilyID == nil {
			return fmt.Errorf("%w: family scope requires a family id", common.ErrorValidation)
		}
		member, err := s.families.IsMember(ctx, authorID, *req.FamilyID)
		if err != nil {
			return fmt.Errorf("error resolving family membership: %v", err)
		}
		if !member {
			return fmt.Errorf("%w: author is not a member of the family", common.ErrorValidation)
		}
	default:
		return fmt.Errorf("%w: scope must be private or family", common.ErrorValidation)
	}

	if req.UnlockCode == "" {
		return fmt.Errorf("%w: empty unlock code", common.ErrorValidation)
	}
	if req.UnlockAt != nil && !req.UnlockAt.After(s.now()) {
		return fmt.Errorf("%w: unlock time must be in the future", common.ErrorValidation)
	}
	return nil
}

// Get returns the author's view of a letter. Key material (the server share
// and the envelope) is never part of this view.
func (s *LetterService) Get(ctx context.Context, id, authorID string) (*models.Letter, error) {
	repo := s.repomanager.Letters(s.db)

	letter, err := repo.GetForAuthor(ctx, id, authorID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error getting letter: %v", err)
	}
	return letter, nil
}

// List returns the author's letters for one scope. Each scope's filter lives
// in a single SQL predicate; link letters are not listable at all.
func (s *LetterService) List(ctx context.Context, authorID, scope string) ([]*models.Letter, error) {
	repo := s.repomanager.Letters(s.db)

	switch scope {
	case models.ScopePrivate:
		return repo.ListPrivate(ctx, authorID)
	case models.ScopeFamily:
		familyIDs, err := s.families.FamiliesOf(ctx, authorID)
		if err != nil {
			return nil, fmt.Errorf("error resolving families: %v", err)
		}
		return repo.ListFamily(ctx, familyIDs)
	default:
		return nil, fmt.Errorf("%w: scope must be private or family", common.ErrorValidation)
	}
}

// UpdateSchedule changes the time lock and recomputes reminders. Refused
// once the letter has been unlocked.
func (s *LetterService) UpdateSchedule(ctx context.Context, id, authorID string, unlockAt *time.Time, daysBefore []int) error {

	if unlockAt != nil && !unlockAt.After(s.now()) {
		return fmt.Errorf("%w: unlock time must be in the future", common.ErrorValidation)
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Letters(tx)

		ok, err := repo.UpdateSchedule(ctx, id, authorID, unlockAt)
		if err != nil {
			return fmt.Errorf("error updating schedule: %v", err)
		}
		if !ok {
			return s.scheduleConflictCause(ctx, tx, id, authorID)
		}

		return s.reminders.scheduleTx(ctx, tx, id, authorID, unlockAt, daysBefore)
	})
	return err
}

// RegenerateUnlockCode replaces the stored envelope with one wrapped under a
// new code. Allowed at most once per letter, and never after first unlock;
// the conditional write enforces both even under racing requests.
func (s *LetterService) RegenerateUnlockCode(ctx context.Context, id, authorID string, env *envelope.Envelope) error {

	if env == nil || env.KDFAlgorithm != envelope.KDFPBKDF2SHA256 || env.KDFIterations <= 0 ||
		len(env.Ciphertext) == 0 || len(env.IV) == 0 || len(env.Salt) == 0 {
		return fmt.Errorf("%w: malformed envelope", common.ErrorValidation)
	}

	repo := s.repomanager.Letters(s.db)

	ok, err := repo.ReplaceEnvelope(ctx, id, authorID, env, s.now())
	if err != nil {
		return fmt.Errorf("error replacing envelope: %v", err)
	}
	if ok {
		return nil
	}

	// The guarded update matched nothing. Read the row to name the cause.
	letter, err := repo.GetForAuthor(ctx, id, authorID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("error getting letter: %v", err)
	}
	if letter.IsUnlocked {
		return common.ErrAlreadyUnlocked
	}
	if letter.UnlockCodeRegeneratedAt != nil {
		return common.ErrAlreadyRegenerated
	}
	return common.ErrorInternal
}

// Delete removes the letter and, through cascading foreign keys, its token
// history and reminders.
func (s *LetterService) Delete(ctx context.Context, id, authorID string) error {
	repo := s.repomanager.Letters(s.db)

	ok, err := repo.Delete(ctx, id, authorID)
	if err != nil {
		return fmt.Errorf("error deleting letter: %v", err)
	}
	if !ok {
		return common.ErrorNotFound
	}
	return nil
}

func (s *LetterService) scheduleConflictCause(ctx context.Context, db dbx.DBTX, id, authorID string) error {
	repo := s.repomanager.Letters(db)

	letter, err := repo.GetForAuthor(ctx, id, authorID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("error getting letter: %v", err)
	}
	if letter.IsUnlocked {
		return common.ErrAlreadyUnlocked
	}
	return common.ErrorInternal
}
