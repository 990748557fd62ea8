// Package secretbox seals small secrets (TOTP seeds) for storage at rest with
// AES-256-GCM.
//
// Ciphertexts carry the version of the key that sealed them, so keys can be
// rotated by adding a new version to the Keyring and making it current.
// Every ciphertext is bound to a Scope through the GCM additional data, so a
// sealed secret copied onto another factor or user fails to open.
package secretbox
