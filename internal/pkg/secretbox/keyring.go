package secretbox

import (
	"fmt"
	"maps"
)

// KeyProvider resolves AES-256 keys by version.
type KeyProvider interface {
	// Current returns the version and key new ciphertexts are sealed with.
	Current() (uint16, []byte, error)
	// Key returns the key for version.
	Key(version uint16) ([]byte, error)
}

// Keyring is an in-memory KeyProvider loaded from configuration.
type Keyring struct {
	current uint16
	keys    map[uint16][]byte
}

// NewKeyring validates keys and returns a Keyring sealing with current.
func NewKeyring(current uint16, keys map[uint16][]byte) (*Keyring, error) {
	if current == 0 {
		return nil, fmt.Errorf("secretbox: key version must be positive: %w", ErrUnknownKeyVersion)
	}
	if _, ok := keys[current]; !ok {
		return nil, fmt.Errorf("secretbox: current key version %d: %w", current, ErrUnknownKeyVersion)
	}

	for v, k := range keys {
		if len(k) != aesKeyLen {
			return nil, fmt.Errorf("secretbox: key version %d has length %d (want %d): %w", v, len(k), aesKeyLen, ErrInvalidKeyLength)
		}
	}

	return &Keyring{current: current, keys: maps.Clone(keys)}, nil
}

// Current returns the sealing key.
func (r *Keyring) Current() (uint16, []byte, error) {
	k, err := r.Key(r.current)
	return r.current, k, err
}

// Key returns a copy of the key for version.
func (r *Keyring) Key(version uint16) ([]byte, error) {
	k, ok := r.keys[version]
	if !ok {
		return nil, fmt.Errorf("secretbox: key version %d: %w", version, ErrUnknownKeyVersion)
	}

	out := make([]byte, len(k))
	copy(out, k)
	return out, nil
}
