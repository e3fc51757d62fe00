// Package envelope wraps a key share under a human-entered unlock code.
// The share is encrypted with AES-GCM under a key derived from the code by a
// slow password-based KDF; every parameter needed to reverse the operation
// except the code itself is stored in the envelope.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"fmt"

	"github.com/dmitrijs2005/sealbox/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

// KDFPBKDF2SHA256 identifies the PBKDF2-HMAC-SHA256 derivation. The
// algorithm name and iteration count travel with each envelope, so the
// defaults can be raised later without breaking stored envelopes.
const KDFPBKDF2SHA256 = "pbkdf2-sha256"

const (
	// DefaultKDFIterations follows the current OWASP recommendation for
	// PBKDF2-HMAC-SHA256.
	DefaultKDFIterations = 210000

	saltSize = 16
	keySize  = 32
	ivSize   = 12
)

// Envelope holds a password-wrapped share with all decryption parameters.
// It is safe to persist: without the unlock code it cannot be opened.
type Envelope struct {
	Ciphertext    []byte `json:"ciphertext"`
	IV            []byte `json:"iv"`
	Salt          []byte `json:"salt"`
	KDFAlgorithm  string `json:"kdf_algorithm"`
	KDFIterations int    `json:"kdf_iterations"`
}

// Codec wraps and unwraps envelopes. The iteration count applies to newly
// wrapped envelopes only; unwrapping always honors the count stored in the
// envelope itself.
type Codec struct {
	iterations int
}

// NewCodec creates a Codec. A non-positive iteration count selects the
// default.
func NewCodec(iterations int) *Codec {
	if iterations <= 0 {
		iterations = DefaultKDFIterations
	}
	return &Codec{iterations: iterations}
}

// Wrap derives a wrapping key from the code and a fresh random salt, then
// encrypts the share with AES-GCM under a fresh random IV.
func (c *Codec) Wrap(share []byte, code string) (*Envelope, error) {
	if len(share) == 0 {
		return nil, fmt.Errorf("%w: empty share", common.ErrorValidation)
	}
	if code == "" {
		return nil, fmt.Errorf("%w: empty unlock code", common.ErrorValidation)
	}

	salt := common.GenerateRandByteArray(saltSize)
	key := deriveKey(code, salt, c.iterations)
	defer common.WipeByteArray(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	iv := common.GenerateRandByteArray(ivSize)
	ciphertext := aesgcm.Seal(nil, iv, share, nil)

	return &Envelope{
		Ciphertext:    ciphertext,
		IV:            iv,
		Salt:          salt,
		KDFAlgorithm:  KDFPBKDF2SHA256,
		KDFIterations: c.iterations,
	}, nil
}

// Unwrap re-derives the wrapping key from the stored parameters and the
// code, then decrypts and verifies the share. Every failure surfaces as the
// single common.ErrUnwrapFailed: a wrong code is indistinguishable from a
// corrupted envelope, so the error cannot serve as an oracle.
func (c *Codec) Unwrap(env *Envelope, code string) ([]byte, error) {
	if env == nil || env.KDFAlgorithm != KDFPBKDF2SHA256 || env.KDFIterations <= 0 {
		return nil, common.ErrUnwrapFailed
	}
	if len(env.IV) != ivSize || len(env.Salt) == 0 || len(env.Ciphertext) == 0 {
		return nil, common.ErrUnwrapFailed
	}

	key := deriveKey(code, env.Salt, env.KDFIterations)
	defer common.WipeByteArray(key)

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, common.ErrUnwrapFailed
	}

	share, err := aesgcm.Open(nil, env.IV, env.Ciphertext, nil)
	if err != nil {
		return nil, common.ErrUnwrapFailed
	}
	return share, nil
}

func deriveKey(code string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(code), salt, iterations, keySize, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
