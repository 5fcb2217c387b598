// Package cryptox implements the vault's encryption primitives: Argon2id
// key derivation from the master password and AES-256-GCM encryption of
// entry payloads. Ciphertext, authentication tag and nonce travel together
// as a single opaque blob, so storage never has to understand the layout.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/metabot/lockr/internal/common"
	"golang.org/x/crypto/argon2"
)

// nonceSize is the standard GCM nonce length in bytes.
const nonceSize = 12

// KeySize is the derived key length in bytes (AES-256).
const KeySize = 32

// Params tunes the Argon2id work factor. Raising any of these makes
// brute-forcing the master password proportionally more expensive.
type Params struct {
	Time    uint32
	MemoryK uint32
	Threads uint8
}

// DefaultParams is the production work factor. Derivation takes a few
// hundred milliseconds on commodity hardware.
var DefaultParams = Params{Time: 3, MemoryK: 64 * 1024, Threads: 4}

// DeriveKey stretches the master password and per-user salt into a
// 32-byte AES key using Argon2id. The same password and salt always yield
// the same key. Returns common.ErrInvalidInput if the password or salt
// is empty.
func DeriveKey(password, salt []byte, p Params) ([]byte, error) {
	if len(password) == 0 {
		return nil, fmt.Errorf("%w: empty password", common.ErrInvalidInput)
	}
	if len(salt) == 0 {
		return nil, fmt.Errorf("%w: empty salt", common.ErrInvalidInput)
	}
	return argon2.IDKey(password, salt, p.Time, p.MemoryK, p.Threads, KeySize), nil
}

// MakeVerifier returns a one-way fingerprint of the derived key. The
// verifier is stored on the user row and lets the server check a
// master-password attempt without touching any vault entry.
func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}

// Encrypt seals plaintext under key with AES-256-GCM. A fresh random
// 12-byte nonce is generated for every call and prepended to the sealed
// ciphertext, so the result is a self-contained blob:
//
//	nonce (12 bytes) || ciphertext || tag (16 bytes)
func Encrypt(plaintext, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	// Seal appends to the nonce slice, producing the packed blob directly.
	return aesgcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a blob produced by Encrypt. A structurally short blob
// yields common.ErrInvalidInput; a failed integrity check (wrong key or
// tampered data) yields common.ErrAuthentication. The two are deliberately
// distinct so callers can tell "wrong master password" from "corrupt
// entry".
func Decrypt(blob, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(blob) < nonceSize+aesgcm.Overhead() {
		return nil, fmt.Errorf("%w: blob too short", common.ErrInvalidInput)
	}

	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]
	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, common.ErrAuthentication
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes", common.ErrInvalidInput, KeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
