package otp

import (
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// secretSize yields 32 base32 symbols, the key length authenticator apps
// display and users type.
const secretSize = 20

// Key is a shared secret in its user-facing form plus the provisioning URI.
type Key struct {
	Secret string
	URI    string
}

// KeyGenerator creates enrollment keys for authenticator applications.
type KeyGenerator interface {
	// NewKey creates a random secret for accountName.
	NewKey(accountName string) (Key, error)
	// KeyFor renders the provisioning URI for an existing base32 secret.
	KeyFor(accountName, secret string) (Key, error)
}

// TOTP implements KeyGenerator with the parameters ComputeCode uses.
type TOTP struct {
	issuer string
}

// NewTOTP constructs a TOTP key generator for issuer.
func NewTOTP(issuer string) *TOTP {
	return &TOTP{issuer: issuer}
}

func (o *TOTP) opts(accountName string) totp.GenerateOpts {
	return totp.GenerateOpts{
		Issuer:      o.issuer,
		AccountName: accountName,
		Period:      uint(StepDuration.Seconds()),
		SecretSize:  secretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	}
}

// NewKey creates a random secret for accountName.
func (o *TOTP) NewKey(accountName string) (Key, error) {
	key, err := totp.Generate(o.opts(accountName))
	if err != nil {
		return Key{}, err
	}

	return Key{Secret: key.Secret(), URI: key.URL()}, nil
}

// KeyFor renders the provisioning URI for an existing base32 secret.
func (o *TOTP) KeyFor(accountName, secret string) (Key, error) {
	raw, err := Base32Decode(secret)
	if err != nil {
		return Key{}, err
	}

	opts := o.opts(accountName)
	opts.Secret = raw

	key, err := totp.Generate(opts)
	if err != nil {
		return Key{}, err
	}

	return Key{Secret: key.Secret(), URI: key.URL()}, nil
}
