package envelope

import (
	"bytes"
	"errors"
	"testing"

	"github.com/dmitrijs2005/sealbox/internal/common"
)

// Small iteration count keeps the tests fast; production uses the default.
const testIterations = 1000

func TestWrapUnwrap_RoundTrip(t *testing.T) {
	c := NewCodec(testIterations)
	share := common.GenerateRandByteArray(33)

	env, err := c.Wrap(share, "correct horse battery staple")
	if err != nil {
		t.Fatalf("Wrap error: %v", err)
	}
	if env.KDFAlgorithm != KDFPBKDF2SHA256 {
		t.Fatalf("unexpected kdf algorithm: %s", env.KDFAlgorithm)
	}
	if env.KDFIterations != testIterations {
		t.Fatalf("expected %d iterations stored, got %d", testIterations, env.KDFIterations)
	}

	got, err := c.Unwrap(env, "correct horse battery staple")
	if err != nil {
		t.Fatalf("Unwrap error: %v", err)
	}
	if !bytes.Equal(got, share) {
		t.Fatal("unwrapped share differs from original")
	}
}

func TestUnwrap_WrongCode(t *testing.T) {
	c := NewCodec(testIterations)
	share := common.GenerateRandByteArray(33)

	env, err := c.Wrap(share, "right-code")
	if err != nil {
		t.Fatalf("Wrap error: %v", err)
	}

	_, err = c.Unwrap(env, "wrong-code")
	if !errors.Is(err, common.ErrUnwrapFailed) {
		t.Fatalf("want ErrUnwrapFailed, got %v", err)
	}
}

func TestUnwrap_TamperedCiphertext(t *testing.T) {
	c := NewCodec(testIterations)

	env, err := c.Wrap(common.GenerateRandByteArray(33), "code")
	if err != nil {
		t.Fatalf("Wrap error: %v", err)
	}
	env.Ciphertext[0] ^= 0xff

	_, err = c.Unwrap(env, "code")
	if !errors.Is(err, common.ErrUnwrapFailed) {
		t.Fatalf("want ErrUnwrapFailed for tampered ciphertext, got %v", err)
	}
}

// Failures must be indistinguishable regardless of cause: wrong code, bad
// parameters, or a mangled envelope all produce the same error value.
func TestUnwrap_GenericFailure(t *testing.T) {
	c := NewCodec(testIterations)

	env, err := c.Wrap(common.GenerateRandByteArray(33), "code")
	if err != nil {
		t.Fatalf("Wrap error: %v", err)
	}

	cases := []struct {
		name string
		env  *Envelope
	}{
		{"nil envelope", nil},
		{"unknown kdf", &Envelope{Ciphertext: env.Ciphertext, IV: env.IV, Salt: env.Salt, KDFAlgorithm: "scrypt", KDFIterations: 1}},
		{"zero iterations", &Envelope{Ciphertext: env.Ciphertext, IV: env.IV, Salt: env.Salt, KDFAlgorithm: KDFPBKDF2SHA256}},
		{"short iv", &Envelope{Ciphertext: env.Ciphertext, IV: env.IV[:4], Salt: env.Salt, KDFAlgorithm: KDFPBKDF2SHA256, KDFIterations: 1}},
		{"missing salt", &Envelope{Ciphertext: env.Ciphertext, IV: env.IV, KDFAlgorithm: KDFPBKDF2SHA256, KDFIterations: 1}},
		{"empty ciphertext", &Envelope{IV: env.IV, Salt: env.Salt, KDFAlgorithm: KDFPBKDF2SHA256, KDFIterations: 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Unwrap(tc.env, "code")
			if !errors.Is(err, common.ErrUnwrapFailed) {
				t.Fatalf("want ErrUnwrapFailed, got %v", err)
			}
		})
	}
}

func TestWrap_FreshSaltAndIV(t *testing.T) {
	c := NewCodec(testIterations)
	share := common.GenerateRandByteArray(33)

	a, err := c.Wrap(share, "code")
	if err != nil {
		t.Fatalf("Wrap error: %v", err)
	}
	b, err := c.Wrap(share, "code")
	if err != nil {
		t.Fatalf("Wrap error: %v", err)
	}

	if bytes.Equal(a.Salt, b.Salt) {
		t.Fatal("two wraps produced the same salt")
	}
	if bytes.Equal(a.IV, b.IV) {
		t.Fatal("two wraps produced the same iv")
	}
	if bytes.Equal(a.Ciphertext, b.Ciphertext) {
		t.Fatal("two wraps produced the same ciphertext")
	}
}

func TestWrap_Validation(t *testing.T) {
	c := NewCodec(testIterations)

	if _, err := c.Wrap(nil, "code"); !errors.Is(err, common.ErrorValidation) {
		t.Fatalf("want validation error for empty share, got %v", err)
	}
	if _, err := c.Wrap([]byte{1}, ""); !errors.Is(err, common.ErrorValidation) {
		t.Fatalf("want validation error for empty code, got %v", err)
	}
}

func TestUnwrap_HonorsStoredIterations(t *testing.T) {
	share := common.GenerateRandByteArray(33)

	env, err := NewCodec(testIterations).Wrap(share, "code")
	if err != nil {
		t.Fatalf("Wrap error: %v", err)
	}

	// A codec configured with a different default must still open old
	// envelopes using their stored iteration count.
	got, err := NewCodec(testIterations * 2).Unwrap(env, "code")
	if err != nil {
		t.Fatalf("Unwrap error: %v", err)
	}
	if !bytes.Equal(got, share) {
		t.Fatal("unwrapped share differs from original")
	}
}
