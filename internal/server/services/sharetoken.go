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
	"github.com/dmitrijs2005/sealbox/internal/server/models"
	"github.com/dmitrijs2005/sealbox/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/sealbox/internal/timelock"
	"github.com/google/uuid"
)

// tokenByteLen is the entropy of a minted share token; the wire form is its
// hex encoding, twice as long.
const tokenByteLen = 32

// ReleasePayload is what an unauthenticated requester receives for a valid
// share token. Before the time lock passes, CanUnlock is false and every
// secret-bearing field stays empty; this is the only read path that ever
// carries the server share.
type ReleasePayload struct {
	LetterID      string
	CanUnlock     bool
	UnlockAt      *time.Time
	ServerShare   []byte
	Envelope      *envelope.Envelope
	EncryptionIV  []byte
	CiphertextURL string
}

// ShareTokenService manages the capability-token lifecycle and the gated
// release path. All status transitions are conditional writes scoped by
// status='active', with a partial unique index as backstop, so concurrent
// requests cannot produce two active tokens for one letter.
type ShareTokenService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       blobstore.BlobStore
	now         func() time.Time
}

// NewShareTokenService constructs a ShareTokenService.
func NewShareTokenService(db *sql.DB, m repomanager.RepositoryManager, blobs blobstore.BlobStore) *ShareTokenService {
	return &ShareTokenService{
		db:          db,
		repomanager: m,
		blobs:       blobs,
		now:         time.Now,
	}
}

// Create mints the letter's first active token and promotes the letter to
// link scope. Fails with common.ErrorConflict when an active token already
// exists.
func (s *ShareTokenService) Create(ctx context.Context, letterID, authorID string) (*models.ShareToken, error) {

	if err := s.checkOwnership(ctx, letterID, authorID); err != nil {
		return nil, err
	}

	minted, err := s.mintToken()
	if err != nil {
		return nil, err
	}

	var created *models.ShareToken
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Letters(tx).PromoteToLink(ctx, letterID); err != nil {
			return fmt.Errorf("error promoting letter: %v", err)
		}

		created, err = s.repomanager.ShareTokens(tx).Create(ctx, &models.ShareToken{
			ID:       uuid.NewString(),
			Token:    minted,
			LetterID: letterID,
			Status:   models.TokenStatusActive,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, common.ErrorConflict
		}
		return nil, fmt.Errorf("error creating share token: %v", err)
	}

	return created, nil
}

// Revoke terminates the letter's active token. Returns whether a token was
// actually active; calling it again is an idempotent no-op.
func (s *ShareTokenService) Revoke(ctx context.Context, letterID, authorID string, reason *string) (bool, error) {

	if err := s.checkOwnership(ctx, letterID, authorID); err != nil {
		return false, err
	}

	repo := s.repomanager.ShareTokens(s.db)

	wasActive, err := repo.Revoke(ctx, letterID, reason, s.now())
	if err != nil {
		return false, fmt.Errorf("error revoking share token: %v", err)
	}
	return wasActive, nil
}

// Rotate retires the letter's active token and mints its successor in one
// transaction. When nothing was active (first share, or after a revocation)
// it degrades to Create and reports no old token.
func (s *ShareTokenService) Rotate(ctx context.Context, letterID, authorID string) (*models.ShareToken, *string, error) {

	if err := s.checkOwnership(ctx, letterID, authorID); err != nil {
		return nil, nil, err
	}

	minted, err := s.mintToken()
	if err != nil {
		return nil, nil, err
	}

	var created *models.ShareToken
	var oldToken *string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.ShareTokens(tx)

		active, err := repo.GetActiveByLetter(ctx, letterID)
		if err != nil && !errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("error getting active token: %v", err)
		}

		if active != nil {
			rotated, err := repo.Rotate(ctx, letterID, minted, s.now())
			if err != nil {
				return fmt.Errorf("error rotating share token: %v", err)
			}
			if rotated {
				oldToken = &active.Token
			}
		}

		if err := s.repomanager.Letters(tx).PromoteToLink(ctx, letterID); err != nil {
			return fmt.Errorf("error promoting letter: %v", err)
		}

		created, err = repo.Create(ctx, &models.ShareToken{
			ID:       uuid.NewString(),
			Token:    minted,
			LetterID: letterID,
			Status:   models.TokenStatusActive,
		})
		return err
	})
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return nil, nil, common.ErrorConflict
		}
		return nil, nil, fmt.Errorf("error rotating share token: %v", err)
	}

	return created, oldToken, nil
}

// Resolve looks up a token and classifies its state. The record is returned
// together with the lifecycle error so callers can surface the rotation
// replacement hint; a revoked token deliberately carries none.
func (s *ShareTokenService) Resolve(ctx context.Context, token string) (*models.ShareToken, error) {
	repo := s.repomanager.ShareTokens(s.db)

	rec, err := repo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("error resolving share token: %v", err)
	}

	switch rec.Status {
	case models.TokenStatusActive:
		return rec, nil
	case models.TokenStatusRevoked:
		return rec, common.ErrTokenRevoked
	case models.TokenStatusRotated:
		return rec, common.ErrTokenRotated
	default:
		return nil, common.ErrorInternal
	}
}

// Open resolves a token and builds the release payload. Lifecycle errors
// come back with the token record so the caller can distinguish revoked from
// rotated. A letter still under its time lock yields CanUnlock=false with no
// secret material; that is a normal outcome, not an error.
func (s *ShareTokenService) Open(ctx context.Context, token string) (*ReleasePayload, *models.ShareToken, error) {

	rec, err := s.Resolve(ctx, token)
	if err != nil {
		return nil, rec, err
	}

	now := s.now()
	letters := s.repomanager.Letters(s.db)

	letter, err := letters.GetByID(ctx, rec.LetterID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil, common.ErrorNotFound
		}
		return nil, nil, fmt.Errorf("error getting letter: %v", err)
	}

	if !timelock.CanRelease(letter.UnlockAt, now) {
		return &ReleasePayload{
			LetterID:  letter.ID,
			CanUnlock: false,
			UnlockAt:  letter.UnlockAt,
		}, rec, nil
	}

	ciphertextURL, err := s.blobs.PresignGet(ctx, letter.CiphertextRef)
	if err != nil {
		return nil, nil, fmt.Errorf("error presigning download: %v", err)
	}

	// First gated delivery stamps the unlock; later ones leave it alone.
	if _, err := letters.MarkUnlocked(ctx, letter.ID, now); err != nil {
		return nil, nil, fmt.Errorf("error marking letter unlocked: %v", err)
	}

	// View accounting is best effort and must not fail the release.
	_ = s.repomanager.ShareTokens(s.db).RecordAccess(ctx, rec.Token, now)

	return &ReleasePayload{
		LetterID:      letter.ID,
		CanUnlock:     true,
		UnlockAt:      letter.UnlockAt,
		ServerShare:   letter.ServerShare,
		Envelope:      &letter.Envelope,
		EncryptionIV:  letter.EncryptionIV,
		CiphertextURL: ciphertextURL,
	}, rec, nil
}

func (s *ShareTokenService) checkOwnership(ctx context.Context, letterID, authorID string) error {
	_, err := s.repomanager.Letters(s.db).GetForAuthor(ctx, letterID, authorID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("error getting letter: %v", err)
	}
	return nil
}

func (s *ShareTokenService) mintToken() (string, error) {
	minted, err := common.MakeRandHexString(tokenByteLen)
	if err != nil {
		return "", fmt.Errorf("error minting token: %v", err)
	}
	return minted, nil
}
