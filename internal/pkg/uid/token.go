package uid

import (
	"crypto/rand"
	"encoding/hex"
)

// DefaultTokenSize is the number of random bytes in a token.
const DefaultTokenSize = 24

// RandomToken generates opaque bearer tokens. Unlike time-ordered ids, its
// output carries no timestamp or host identity.
type RandomToken struct {
	size int
}

// NewRandomToken returns a generator producing hex tokens of size random bytes.
func NewRandomToken(size int) *RandomToken {
	if size <= 0 {
		size = DefaultTokenSize
	}
	return &RandomToken{size: size}
}

// Generate returns a hex-encoded token. crypto/rand.Read never returns an
// error on supported platforms.
func (t *RandomToken) Generate() string {
	b := make([]byte, t.size)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
