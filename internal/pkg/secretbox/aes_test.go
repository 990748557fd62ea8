package secretbox

import (
	"bytes"
	"errors"
	"testing"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, aesKeyLen)
}

func newTestEncryptor(t *testing.T, current uint16, keys map[uint16][]byte) *AESGCMEncryptor {
	t.Helper()

	ring, err := NewKeyring(current, keys)
	if err != nil {
		t.Fatalf("keyring: %v", err)
	}
	return NewAESGCMEncryptor(ring)
}

func TestAESGCMEncryptor_RoundTrip(t *testing.T) {
	enc := newTestEncryptor(t, 1, map[uint16][]byte{1: testKey(1)})
	scope := Scope{UserID: 7, FactorConfigID: 11, Purpose: PurposeFactorSecret}

	sealed, err := enc.Encrypt([]byte("KFP6EBHKHTWE2PHK5GOK7K2ARBZWQDBV"), scope)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(sealed, []byte("KFP6EBHK")) {
		t.Fatal("ciphertext contains plaintext")
	}

	plain, err := enc.Decrypt(sealed, scope)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(plain) != "KFP6EBHKHTWE2PHK5GOK7K2ARBZWQDBV" {
		t.Fatalf("got %q", plain)
	}
}

func TestAESGCMEncryptor_ScopeBinding(t *testing.T) {
	enc := newTestEncryptor(t, 1, map[uint16][]byte{1: testKey(1)})
	scope := Scope{UserID: 7, FactorConfigID: 11, Purpose: PurposeFactorSecret}

	sealed, err := enc.Encrypt([]byte("secret"), scope)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	others := []Scope{
		{UserID: 8, FactorConfigID: 11, Purpose: PurposeFactorSecret},
		{UserID: 7, FactorConfigID: 12, Purpose: PurposeFactorSecret},
		{UserID: 7, FactorConfigID: 11, Purpose: "other"},
	}
	for _, s := range others {
		if _, err := enc.Decrypt(sealed, s); !errors.Is(err, ErrDecryptFailed) {
			t.Fatalf("scope %+v: expected ErrDecryptFailed, got %v", s, err)
		}
	}

	sealed[len(sealed)-1] ^= 0xff
	if _, err := enc.Decrypt(sealed, scope); !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("tampered: expected ErrDecryptFailed, got %v", err)
	}
}

func TestAESGCMEncryptor_Rotation(t *testing.T) {
	old := newTestEncryptor(t, 1, map[uint16][]byte{1: testKey(1)})
	scope := Scope{UserID: 1, FactorConfigID: 2, Purpose: PurposeFactorSecret}

	sealedV1, err := old.Encrypt([]byte("secret"), scope)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	rotated := newTestEncryptor(t, 2, map[uint16][]byte{1: testKey(1), 2: testKey(2)})

	plain, err := rotated.Decrypt(sealedV1, scope)
	if err != nil || string(plain) != "secret" {
		t.Fatalf("decrypt old ciphertext: %q, %v", plain, err)
	}

	sealedV2, err := rotated.Encrypt([]byte("secret"), scope)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if v, _ := KeyVersion(sealedV2); v != 2 {
		t.Fatalf("key version %d, want 2", v)
	}

	if _, err := old.Decrypt(sealedV2, scope); !errors.Is(err, ErrUnknownKeyVersion) {
		t.Fatalf("expected ErrUnknownKeyVersion, got %v", err)
	}
}

func TestAESGCMEncryptor_Errors(t *testing.T) {
	var nilEnc *AESGCMEncryptor
	if _, err := nilEnc.Encrypt([]byte("x"), Scope{}); !errors.Is(err, ErrEncryptorNotConfigured) {
		t.Fatalf("expected ErrEncryptorNotConfigured, got %v", err)
	}

	enc := newTestEncryptor(t, 1, map[uint16][]byte{1: testKey(1)})
	if _, err := enc.Encrypt(nil, Scope{}); !errors.Is(err, ErrPlaintextEmpty) {
		t.Fatalf("expected ErrPlaintextEmpty, got %v", err)
	}
	if _, err := enc.Decrypt([]byte{0, 1, 2}, Scope{}); !errors.Is(err, ErrCiphertextTooShort) {
		t.Fatalf("expected ErrCiphertextTooShort, got %v", err)
	}
}

func TestNewKeyring_Invalid(t *testing.T) {
	if _, err := NewKeyring(1, map[uint16][]byte{1: []byte("short")}); !errors.Is(err, ErrInvalidKeyLength) {
		t.Fatalf("expected ErrInvalidKeyLength, got %v", err)
	}
	if _, err := NewKeyring(2, map[uint16][]byte{1: testKey(1)}); !errors.Is(err, ErrUnknownKeyVersion) {
		t.Fatalf("expected ErrUnknownKeyVersion, got %v", err)
	}
	if _, err := NewKeyring(0, map[uint16][]byte{1: testKey(1)}); !errors.Is(err, ErrUnknownKeyVersion) {
		t.Fatalf("expected ErrUnknownKeyVersion, got %v", err)
	}
}
