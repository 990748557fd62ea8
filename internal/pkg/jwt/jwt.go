package jwt

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrSigningKeyTooShort is returned when the HS512 signing key is less than 64 bytes.
	ErrSigningKeyTooShort = errors.New("HS512 signing key must be at least 64 bytes (512 bits)")

	// ErrTokenExpired is returned when the JWT token has expired.
	ErrTokenExpired = errors.New("JWT token has expired")

	// ErrInvalidToken is returned when the token is malformed or fails validation.
	ErrInvalidToken = errors.New("invalid token")

	// ErrMissingSession is returned when a token does not carry a session id.
	ErrMissingSession = errors.New("token has no session id")
)

// JWT defines the operations needed by the app: generate and verify a token.
type JWT interface {
	// Generate creates a signed token for the subject.
	Generate(sub Subject) (string, error)
	// Verify parses and validates the token and returns claims.
	Verify(tokenStr string) (Claims, error)
}

// Subject is the identity a token is issued for. SessionID binds every
// factor challenge issued under the token to one login session.
type Subject struct {
	UserID    int64
	Account   string
	SessionID string
}

type clocker interface {
	Now() time.Time
}

type generator interface {
	Generate() string
}

type jwtContextKey struct{}

// Config defines the inputs for building a JWT implementation. An empty
// Audiences disables the audience check.
type Config struct {
	Secret     []byte
	Issuer     string
	Audiences  []string
	TTLMinutes time.Duration
	Clock      clocker
	UUID       generator
}

// Claims are the registered claims plus the session-bound identity.
type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"user_id,string"`
	// Account is the human readable account name shown by authenticator apps.
	Account string `json:"account"`
	// SessionID identifies the login session the token belongs to.
	SessionID string `json:"sid"`
}

// GetAuth returns the claims SetAuth stored in ctx, or nil.
func GetAuth(ctx context.Context) *Claims {
	if clm, ok := ctx.Value(jwtContextKey{}).(Claims); ok {
		return &clm
	}
	return nil
}

// SetAuth stores JWT claims in the context.
func SetAuth(ctx context.Context, clm Claims) context.Context {
	return context.WithValue(ctx, jwtContextKey{}, clm)
}
