package usecase

import (
	"errors"
	"time"

	"github.com/shandysiswandi/gotp/internal/factor/entity"
)

var (
	// ErrUnknownFactorKind is returned for a config whose kind has no Factor.
	ErrUnknownFactorKind = errors.New("factor: unknown factor kind")

	// ErrChallengeInvariant is returned when validation does not see exactly
	// one live challenge. It means the ledger lost its per-config exclusion.
	ErrChallengeInvariant = errors.New("factor: expected exactly one live challenge")
)

// Factor is one kind of authentication factor. Every method is called with
// the per-config ledger lock held and must not perform I/O.
type Factor interface {
	Kind() entity.FactorKind

	// IssueChallenges returns new challenges to persist, or none while any
	// challenge in live still blocks issuance.
	IssueChallenges(cfg entity.FactorConfig, session entity.Session, live []entity.Challenge, now time.Time) []entity.Challenge

	// ResultFromIssuedChallenges returns a wait result when the live
	// challenges cannot be answered by session right now, or nil.
	ResultFromIssuedChallenges(cfg entity.FactorConfig, session entity.Session, live []entity.Challenge, now time.Time) *entity.ValidationResult

	// ResultFromResponse checks code against the single live challenge. On
	// success AnsweredChallenge carries the updated challenge.
	ResultFromResponse(cfg entity.FactorConfig, secret, code string, live []entity.Challenge, now time.Time) (entity.ValidationResult, error)

	EnrollmentHint() entity.EnrollmentHint
}

func newFactorRegistry(factors ...Factor) map[entity.FactorKind]Factor {
	reg := make(map[entity.FactorKind]Factor, len(factors))
	for _, f := range factors {
		reg[f.Kind()] = f
	}

	return reg
}
