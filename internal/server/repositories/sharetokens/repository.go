package sharetokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/sealbox/internal/server/models"
)

// Repository persists the append-only share-token history. Rows are never
// deleted or overwritten, only status-transitioned; Revoke and Rotate are
// compare-and-set writes scoped by status='active', so concurrent calls
// cannot race into two active tokens or a double revocation.
type Repository interface {
	Create(ctx context.Context, token *models.ShareToken) (*models.ShareToken, error)

	GetByToken(ctx context.Context, token string) (*models.ShareToken, error)

	GetActiveByLetter(ctx context.Context, letterID string) (*models.ShareToken, error)

	// Revoke transitions the letter's active token to revoked. Returns
	// false when no token was active (idempotent no-op).
	Revoke(ctx context.Context, letterID string, reason *string, at time.Time) (bool, error)

	// Rotate transitions the letter's active token to rotated and records
	// its successor. Returns false when no token was active.
	Rotate(ctx context.Context, letterID, newToken string, at time.Time) (bool, error)

	// RecordAccess bumps the view counter and access timestamp.
	RecordAccess(ctx context.Context, token string, at time.Time) error
}
