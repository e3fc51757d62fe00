// Package models defines the persisted entities of the sealbox server.
package models

import (
	"time"

	"github.com/dmitrijs2005/sealbox/internal/envelope"
)

// Visibility scopes. Mutually exclusive per letter: private letters are
// readable only by their author, family letters by members of the family,
// and link letters only through an active share token.
const (
	ScopePrivate = "private"
	ScopeFamily  = "family"
	ScopeLink    = "link"
)

// Letter is the access-control record for one sealed artifact. The body
// itself is encrypted client-side and stored in the blob store; the server
// keeps only its Shamir server share and the password-wrapped client share.
// The raw key and the clear client share are never persisted.
type Letter struct {
	ID              string
	AuthorID        string
	VisibilityScope string
	FamilyID        *string

	// Opaque references to the externally-encrypted body.
	CiphertextRef string
	EncryptionIV  []byte

	ServerShare []byte
	Envelope    envelope.Envelope

	UnlockAt                *time.Time
	IsUnlocked              bool
	UnlockedAt              *time.Time
	UnlockCodeRegeneratedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
