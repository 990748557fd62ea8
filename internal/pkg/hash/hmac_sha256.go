package hash

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ErrEmptySecret is returned when a digest key would be empty.
var ErrEmptySecret = errors.New("hash: hmac secret is empty")

// HMACSHA256 implements Hash with HMAC-SHA256.
type HMACSHA256 struct {
	secret []byte
}

// NewHMACSHA256 creates a hasher keyed directly by secret.
func NewHMACSHA256(secret string) (*HMACSHA256, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	return &HMACSHA256{secret: []byte(secret)}, nil
}

// Named derives an independent hasher for name using HKDF-SHA256 over the
// master secret.
func (s *HMACSHA256) Named(name string) (*HMACSHA256, error) {
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, s.secret, nil, []byte(name)), key); err != nil {
		return nil, err
	}

	return &HMACSHA256{secret: key}, nil
}

// Hash returns the hex-encoded HMAC of str.
func (s *HMACSHA256) Hash(str string) ([]byte, error) {
	return s.gen(str), nil
}

// Verify checks whether str digests to hashed.
func (s *HMACSHA256) Verify(hashed, str string) bool {
	return subtle.ConstantTimeCompare([]byte(hashed), s.gen(str)) == 1
}

func (s *HMACSHA256) gen(str string) []byte {
	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(str))
	sum := h.Sum(nil)

	out := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(out, sum)
	return out
}
