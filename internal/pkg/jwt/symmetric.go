package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	libJWT "github.com/golang-jwt/jwt/v5"
)

// minHS512Key is the HS512 block size; shorter keys weaken the MAC.
const minHS512Key = 64

// Symmetric signs and verifies HS512 tokens with a shared secret.
type Symmetric struct {
	secret    []byte
	issuer    string
	audiences []string
	ttl       time.Duration
	clock     clocker
	uuid      generator
	parser    *libJWT.Parser
}

// NewHS512 constructs a Symmetric JWT implementation using HS512.
func NewHS512(cfg Config) (*Symmetric, error) {
	if len(cfg.Secret) < minHS512Key {
		return nil, ErrSigningKeyTooShort
	}

	s := &Symmetric{
		secret:    cfg.Secret,
		issuer:    cfg.Issuer,
		audiences: cfg.Audiences,
		ttl:       cfg.TTLMinutes,
		clock:     cfg.Clock,
		uuid:      cfg.UUID,
	}

	opts := []libJWT.ParserOption{
		libJWT.WithValidMethods([]string{libJWT.SigningMethodHS512.Alg()}),
		libJWT.WithIssuer(cfg.Issuer),
		libJWT.WithIssuedAt(),
		libJWT.WithExpirationRequired(),
		libJWT.WithTimeFunc(func() time.Time { return s.clock.Now() }),
	}
	if len(cfg.Audiences) > 0 {
		opts = append(opts, libJWT.WithAudience(cfg.Audiences...))
	}
	s.parser = libJWT.NewParser(opts...)

	return s, nil
}

// Generate creates a signed JWT for the subject.
func (s *Symmetric) Generate(sub Subject) (string, error) {
	if sub.SessionID == "" {
		return "", ErrMissingSession
	}

	now := s.clock.Now()
	claims := Claims{
		RegisteredClaims: libJWT.RegisteredClaims{
			ID:        s.uuid.Generate(),
			Subject:   strconv.FormatInt(sub.UserID, 10),
			Issuer:    s.issuer,
			Audience:  s.audiences,
			IssuedAt:  libJWT.NewNumericDate(now),
			NotBefore: libJWT.NewNumericDate(now),
			ExpiresAt: libJWT.NewNumericDate(now.Add(s.ttl)),
		},
		UserID:    sub.UserID,
		Account:   sub.Account,
		SessionID: sub.SessionID,
	}

	return libJWT.NewWithClaims(libJWT.SigningMethodHS512, claims).SignedString(s.secret)
}

// Verify parses tokenStr and checks signature, issuer, audience and
// lifetime. Expired tokens report ErrTokenExpired; every other failure
// wraps ErrInvalidToken.
func (s *Symmetric) Verify(tokenStr string) (Claims, error) {
	var claims Claims

	_, err := s.parser.ParseWithClaims(tokenStr, &claims, func(*libJWT.Token) (any, error) {
		return s.secret, nil
	})
	switch {
	case errors.Is(err, libJWT.ErrTokenExpired):
		return Claims{}, ErrTokenExpired
	case err != nil:
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	case claims.SessionID == "":
		return Claims{}, ErrMissingSession
	}

	return claims, nil
}
