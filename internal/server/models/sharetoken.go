package models

import "time"

// Share token statuses. Both revoked and rotated are terminal; only a
// rotated token carries a successor.
const (
	TokenStatusActive  = "active"
	TokenStatusRevoked = "revoked"
	TokenStatusRotated = "rotated"
)

// ShareToken is a capability token granting reach to a letter through the
// unauthenticated share channel. The table is append-only history: tokens
// are status-transitioned, never deleted, so a rotation chain stays
// auditable. At most one token per letter is active at any instant.
type ShareToken struct {
	ID       string
	Token    string
	LetterID string
	Status   string

	ReplacedByToken *string
	RevokedReason   *string

	ViewCount      int64
	LastAccessedAt *time.Time

	CreatedAt time.Time
	RevokedAt *time.Time
	RotatedAt *time.Time
}
