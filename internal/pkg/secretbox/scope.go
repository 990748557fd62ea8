package secretbox

import (
	"crypto/sha256"
	"fmt"
)

// Purpose identifies what a sealed value is used for.
type Purpose string

// PurposeFactorSecret scopes encryption to factor shared secrets.
const PurposeFactorSecret Purpose = "factor_secret"

// Scope binds a ciphertext to its owner.
type Scope struct {
	UserID         int64
	FactorConfigID int64
	Purpose        Purpose
}

// aad hashes a labelled canonical form so the additional data has a fixed
// length and no separator ambiguity.
func (s Scope) aad() []byte {
	canonical := fmt.Sprintf("uid=%d\nfactor=%d\npurpose=%s\n", s.UserID, s.FactorConfigID, s.Purpose)
	sum := sha256.Sum256([]byte(canonical))
	return sum[:]
}
