package entity

import (
	"time"
)

// FactorKind identifies a factor implementation.
type FactorKind string

const (
	// FactorKindTOTP is a time-based one-time password factor.
	FactorKindTOTP FactorKind = "totp"
)

func (k FactorKind) String() string {
	return string(k)
}

// IsKnown reports whether k is a supported kind.
func (k FactorKind) IsKnown() bool {
	switch k {
	case FactorKindTOTP:
		return true
	default:
		return false
	}
}

// FactorConfig is a factor enrolled by a user. SecretCiphertext is sealed with
// the key identified by KeyVersion and is never exposed outside the usecase.
type FactorConfig struct {
	ID               int64
	UserID           int64
	Kind             FactorKind
	Name             string
	SecretCiphertext []byte
	KeyVersion       int16
	CreatedAt        time.Time
}

// EnrollmentHint describes how a client should prompt for a factor.
type EnrollmentHint struct {
	Label        string
	Instructions string
	CodeLength   int
}

// Provenance tells the client whether the secret it sees is the one it sent.
type Provenance string

const (
	// ProvenanceVerified means the submitted candidate secret was issued by us.
	ProvenanceVerified Provenance = "verified"
	// ProvenanceGenerated means a fresh secret replaced the candidate.
	ProvenanceGenerated Provenance = "generated"
)
