package entity

import "time"

// TokenTypeTOTPKey marks a token proving a TOTP secret was server generated.
const TokenTypeTOTPKey = "mfa.totp.key"

// EnrollmentToken proves a candidate secret came from this server. CodeHash
// is a keyed digest of the secret, never the secret itself.
type EnrollmentToken struct {
	ID         int64
	ResourceID int64
	TokenType  string
	CodeHash   string
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// IsExpired reports whether the token can no longer be presented.
func (t EnrollmentToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
