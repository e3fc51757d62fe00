package letters

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sealbox/internal/envelope"
	"github.com/dmitrijs2005/sealbox/internal/server/models"
)

// Repository persists letters. Listing and author-facing reads never select
// the server share column; only GetByID does, for the gated release path.
// All state transitions are conditional writes returning whether a row was
// actually affected, so races resolve at the storage layer.
type Repository interface {
	Create(ctx context.Context, letter *models.Letter) (*models.Letter, error)

	// GetByID returns the full record including the server share. It must
	// only be used by the release path, after the time-lock gate decides.
	GetByID(ctx context.Context, id string) (*models.Letter, error)

	// GetForAuthor returns the author's view of a letter, without the
	// server share or envelope.
	GetForAuthor(ctx context.Context, id, authorID string) (*models.Letter, error)

	// ListPrivate returns letters with scope=private owned by the author.
	// The scope and ownership predicates live in one SQL WHERE clause.
	ListPrivate(ctx context.Context, authorID string) ([]*models.Letter, error)

	// ListFamily returns letters with scope=family belonging to any of the
	// given families. Membership is resolved by the caller through the
	// family directory collaborator; link letters never match.
	ListFamily(ctx context.Context, familyIDs []string) ([]*models.Letter, error)

	// UpdateSchedule sets unlockAt, guarded by is_unlocked=false.
	UpdateSchedule(ctx context.Context, id, authorID string, unlockAt *time.Time) (bool, error)

	// ReplaceEnvelope stores a new wrapped client share, guarded by
	// "never regenerated before" and "not yet unlocked".
	ReplaceEnvelope(ctx context.Context, id, authorID string, env *envelope.Envelope, at time.Time) (bool, error)

	// PromoteToLink moves the letter to link scope and clears family_id.
	// One-way: no operation demotes a letter back.
	PromoteToLink(ctx context.Context, id string) error

	// MarkUnlocked records the first successful open, guarded by
	// is_unlocked=false so the timestamp is written exactly once.
	MarkUnlocked(ctx context.Context, id string, at time.Time) (bool, error)

	Delete(ctx context.Context, id, authorID string) (bool, error)
}
