package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Encryptor seals and opens scoped secrets.
type Encryptor interface {
	Encrypt(plaintext []byte, scope Scope) ([]byte, error)
	Decrypt(ciphertext []byte, scope Scope) ([]byte, error)
}

// Ciphertext layout:
// [0..1]   uint16 key version
// [2..13]  12-byte nonce
// [14..]   gcm.Seal output (ciphertext + tag)
const (
	headerLen    = 2
	gcmNonceSize = 12
	aesKeyLen    = 32
)

var (
	// ErrEncryptorNotConfigured indicates a missing key provider.
	ErrEncryptorNotConfigured = errors.New("secretbox: encryptor not configured")
	// ErrPlaintextEmpty indicates an empty plaintext input.
	ErrPlaintextEmpty = errors.New("secretbox: plaintext is empty")
	// ErrInvalidKeyLength indicates a key that is not 32 bytes.
	ErrInvalidKeyLength = errors.New("secretbox: invalid key length")
	// ErrUnknownKeyVersion indicates a ciphertext sealed with a key the ring does not hold.
	ErrUnknownKeyVersion = errors.New("secretbox: unknown key version")
	// ErrCiphertextTooShort indicates a truncated ciphertext.
	ErrCiphertextTooShort = errors.New("secretbox: ciphertext too short")
	// ErrDecryptFailed indicates authentication failure on open.
	ErrDecryptFailed = errors.New("secretbox: decrypt failed")
)

// AESGCMEncryptor implements Encryptor using AES-256-GCM.
type AESGCMEncryptor struct {
	keys KeyProvider
}

// NewAESGCMEncryptor constructs an AES-GCM encryptor over keys.
func NewAESGCMEncryptor(keys KeyProvider) *AESGCMEncryptor {
	return &AESGCMEncryptor{keys: keys}
}

// Encrypt seals plaintext with the current key, bound to scope.
func (e *AESGCMEncryptor) Encrypt(plaintext []byte, scope Scope) ([]byte, error) {
	if e == nil || e.keys == nil {
		return nil, ErrEncryptorNotConfigured
	}
	if len(plaintext) == 0 {
		return nil, ErrPlaintextEmpty
	}

	version, key, err := e.keys.Current()
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, headerLen+gcmNonceSize, headerLen+gcmNonceSize+len(plaintext)+gcm.Overhead())
	binary.BigEndian.PutUint16(out[:headerLen], version)

	nonce := out[headerLen : headerLen+gcmNonceSize]
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("secretbox: nonce generation failed: %w", err)
	}

	return gcm.Seal(out, nonce, plaintext, scope.aad()), nil
}

// Decrypt opens ciphertext with the key version recorded in its header.
func (e *AESGCMEncryptor) Decrypt(ciphertext []byte, scope Scope) ([]byte, error) {
	if e == nil || e.keys == nil {
		return nil, ErrEncryptorNotConfigured
	}
	if len(ciphertext) < headerLen+gcmNonceSize+1 {
		return nil, ErrCiphertextTooShort
	}

	key, err := e.keys.Key(binary.BigEndian.Uint16(ciphertext[:headerLen]))
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := ciphertext[headerLen : headerLen+gcmNonceSize]
	plain, err := gcm.Open(nil, nonce, ciphertext[headerLen+gcmNonceSize:], scope.aad())
	if err != nil {
		// wrong scope, wrong key and tampering are indistinguishable on purpose
		return nil, ErrDecryptFailed
	}

	return plain, nil
}

// KeyVersion reports which key sealed ciphertext.
func KeyVersion(ciphertext []byte) (uint16, error) {
	if len(ciphertext) < headerLen {
		return 0, ErrCiphertextTooShort
	}
	return binary.BigEndian.Uint16(ciphertext[:headerLen]), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != aesKeyLen {
		return nil, fmt.Errorf("secretbox: key length %d (want %d): %w", len(key), aesKeyLen, ErrInvalidKeyLength)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secretbox: aes init failed: %w", err)
	}

	return cipher.NewGCM(block)
}
